package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/service"
	"github.com/unclebandit/mica-backend/internal/timeline"
)

type TimelineController struct {
	TimelineService *service.TimelineService
	Log             zerolog.Logger
}

func (c *TimelineController) Timeline(w http.ResponseWriter, r *http.Request) {
	view, err := c.TimelineService.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

func (c *TimelineController) Logs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := c.TimelineService.Logs(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"data": logs})
}

// Stream pushes the timeline as server-sent events until the client leaves.
func (c *TimelineController) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		RespondError(w, c.Log, errStreamUnsupported)
		return
	}

	views, err := c.TimelineService.Stream(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	if err := streamViews(w, flusher, views); err != nil {
		c.Log.Debug().Err(err).Msg("timeline stream closed")
	}
}

var errStreamUnsupported = appErrors.Config("stream", "streaming unsupported")

// streamViews writes one "timeline" event per view. It returns when views is
// closed or a write fails; the producer stops with the request context.
func streamViews(w http.ResponseWriter, flusher http.Flusher, views <-chan timeline.View) error {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for view := range views {
		data, err := json.Marshal(view)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: timeline\ndata: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
	}
	return nil
}
