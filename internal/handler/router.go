package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/unclebandit/mica-backend/internal/controller"
	"github.com/unclebandit/mica-backend/internal/metrics"
)

// Routes collects what NewRouter mounts. A nil Demo disables /demo;
// an empty MetricsPath disables /metrics.
type Routes struct {
	Campaigns   *controller.CampaignController
	Details     *CampaignHandler
	Timeline    *controller.TimelineController
	Demo        *controller.DemoController
	MetricsPath string
	Log         zerolog.Logger
}

func NewRouter(rt Routes) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(rt.Log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		controller.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if rt.MetricsPath != "" {
		r.Method(http.MethodGet, rt.MetricsPath, metrics.Handler())
	}

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", rt.Campaigns.CreateCampaign)
		r.Get("/", rt.Campaigns.ListCampaigns)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", rt.Details.GetCampaignHandlerWithStats)

			r.Post("/tone-preview", rt.Campaigns.TonePreview)
			r.Post("/tone-preview/revise", rt.Campaigns.ReviseTone)
			r.Post("/tone/approve", rt.Campaigns.ApproveTone)

			r.Post("/generate", rt.Campaigns.Generate)
			r.Get("/generate", rt.Campaigns.GenerationProgress)

			r.Post("/launch", rt.Campaigns.Launch)
			r.Post("/pause", rt.Campaigns.Pause)
			r.Post("/resume", rt.Campaigns.Resume)
			r.Post("/test-send", rt.Campaigns.TestSend)

			r.Get("/timeline", rt.Timeline.Timeline)
			r.Get("/timeline/stream", rt.Timeline.Stream)
			r.Get("/logs", rt.Timeline.Logs)
			r.Get("/schedule/{entryID}/preview", rt.Campaigns.PersonalizedPreview)
		})
	})

	if rt.Demo != nil {
		r.Route("/demo", func(r chi.Router) {
			r.Get("/tone-preview", rt.Demo.TonePreview)
			r.Post("/sessions", rt.Demo.CreateSession)
			r.Route("/sessions/{sid}", func(r chi.Router) {
				r.Get("/", rt.Demo.GetSession)
				r.Delete("/", rt.Demo.DeleteSession)
				r.Get("/timeline", rt.Demo.Timeline)
				r.Get("/timeline/stream", rt.Demo.Stream)
				r.Get("/schedule/{entryID}/preview", rt.Demo.Preview)
			})
		})
	}

	return r
}

// RequestLogger logs one line per request through zerolog.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("took", time.Since(start)).
					Msg("http request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
