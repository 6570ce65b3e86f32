package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError maps err onto its HTTP status and writes the error body.
// Server-side failures are logged; client mistakes are not.
func RespondError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := appErrors.StatusCode(err)
	body := ErrorBody{
		Error:     message(err),
		Kind:      string(appErrors.KindOf(err)),
		Retryable: appErrors.IsRetryable(err),
	}
	if status == http.StatusNotFound {
		body.Kind = "not_found"
		body.Retryable = false
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("❌ request failed")
	}
	RespondJSON(w, status, body)
}

// message prefers the user-facing text over the op-prefixed chain.
func message(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return appErrors.Validation("decode body", "invalid body")
	}
	return nil
}
