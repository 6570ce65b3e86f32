package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/unclebandit/mica-backend/internal/demo"
	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/model"
)

// DemoController serves the in-memory demo campaign, one session per visitor.
type DemoController struct {
	Sessions     *demo.SessionStore
	PollInterval time.Duration
	Now          func() time.Time
	Log          zerolog.Logger
}

type demoSessionResponse struct {
	SessionID      string         `json:"session_id"`
	Campaign       model.Campaign `json:"campaign"`
	Assets         model.AssetSet `json:"assets"`
	RecipientCount int            `json:"recipient_count"`
	Running        bool           `json:"running"`
}

func (c *DemoController) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *DemoController) session(r *http.Request) (*demo.Session, error) {
	sid := chi.URLParam(r, "sid")
	s, ok := c.Sessions.Get(sid)
	if !ok {
		return nil, appErrors.NewAssetNotFound("demo session", sid)
	}
	return s, nil
}

func (c *DemoController) respondSession(w http.ResponseWriter, status int, s *demo.Session) {
	RespondJSON(w, status, demoSessionResponse{
		SessionID:      s.ID,
		Campaign:       s.Campaign,
		Assets:         s.Assets,
		RecipientCount: c.Sessions.Dataset().RecipientCount,
		Running:        s.Running(),
	})
}

// CreateSession starts a demo whose campaign begins on start_date (today when
// omitted).
func (c *DemoController) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StartDate string `json:"start_date"`
	}
	if err := decodeBody(r, &body); err != nil {
		RespondError(w, c.Log, err)
		return
	}

	start := model.NewDate(c.now())
	if body.StartDate != "" {
		d, err := model.ParseDate(body.StartDate)
		if err != nil {
			RespondError(w, c.Log, appErrors.Validation("create demo session", "start_date must be YYYY-MM-DD"))
			return
		}
		start = d
	}

	c.respondSession(w, http.StatusCreated, c.Sessions.Create(start))
}

func (c *DemoController) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := c.session(r)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	c.respondSession(w, http.StatusOK, s)
}

// Timeline returns the session's timeline and kicks off the day-1 simulation.
func (c *DemoController) Timeline(w http.ResponseWriter, r *http.Request) {
	s, err := c.session(r)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	if err := s.StartSimulation(); err != nil {
		RespondError(w, c.Log, err)
		return
	}
	view, err := s.Timeline()
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

func (c *DemoController) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		RespondError(w, c.Log, errStreamUnsupported)
		return
	}
	s, err := c.session(r)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	if err := s.StartSimulation(); err != nil {
		RespondError(w, c.Log, err)
		return
	}

	interval := c.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if err := streamViews(w, flusher, s.Watch(r.Context(), interval)); err != nil {
		c.Log.Debug().Err(err).Str("session_id", s.ID).Msg("demo stream closed")
	}
}

func (c *DemoController) Preview(w http.ResponseWriter, r *http.Request) {
	s, err := c.session(r)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	p, err := s.Preview(chi.URLParam(r, "entryID"))
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, p)
}

// TonePreview returns the canned sample for ?tone=, falling back to the
// default variant.
func (c *DemoController) TonePreview(w http.ResponseWriter, r *http.Request) {
	tone := r.URL.Query().Get("tone")
	if tone == "" {
		tone = demo.DefaultToneVariant
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"tone":         tone,
		"tone_preview": c.Sessions.Dataset().ToneVariant(tone),
	})
}

func (c *DemoController) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	c.Sessions.Delete(sid)
	c.Log.Info().Str("session_id", sid).Msg("🧹 demo session discarded")
	w.WriteHeader(http.StatusNoContent)
}
