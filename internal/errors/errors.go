// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCampaignNotFound is returned when a campaign row does not exist.
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrAssetNotFound is returned when a generated asset or schedule entry is missing.
type ErrAssetNotFound struct {
	Kind string
	ID   string
}

func (e *ErrAssetNotFound) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Kind, e.ID)
}

func NewAssetNotFound(kind, id string) error {
	return &ErrAssetNotFound{Kind: kind, ID: id}
}

// ErrStaleEntry is returned when a schedule entry was written by someone
// else since it was read.
var ErrStaleEntry = errors.New("schedule entry changed by another writer")

// Kind classifies failures so callers know whether to retry.
type Kind string

const (
	KindConfig          Kind = "config"           // missing key, bad setup; never retried
	KindTimeout         Kind = "timeout"          // outbound call exceeded its ceiling
	KindTransient       Kind = "transient"        // network / provider 5xx
	KindMalformedOutput Kind = "malformed_output" // generated text was not the JSON we asked for
	KindPartial         Kind = "partial"          // one item of a batch failed
	KindPersistence     Kind = "persistence"      // schedule/log/campaign write failed
	KindConflict        Kind = "conflict"         // wrong lifecycle status for the action
	KindValidation      Kind = "validation"       // bad input
)

// Error is the service-level error carried up to the HTTP layer.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the user can re-run the failed action.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindTransient, KindMalformedOutput, KindPartial, KindPersistence:
		return true
	}
	return false
}

func newError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

func Config(op, msg string) error { return newError(KindConfig, op, msg, nil) }
func Timeout(op, msg string, err error) error { return newError(KindTimeout, op, msg, err) }
func Transient(op, msg string, err error) error { return newError(KindTransient, op, msg, err) }
func Malformed(op, msg string, err error) error { return newError(KindMalformedOutput, op, msg, err) }
func Partial(op, msg string, err error) error { return newError(KindPartial, op, msg, err) }
func Persistence(op string, err error) error { return newError(KindPersistence, op, "", err) }
func Conflict(op, msg string) error { return newError(KindConflict, op, msg, nil) }
func Validation(op, msg string) error { return newError(KindValidation, op, msg, nil) }

// KindOf returns the Kind of the first *Error in err's chain.
// Not-found errors report as validation; anything else is transient.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	var nf *ErrCampaignNotFound
	var anf *ErrAssetNotFound
	if errors.As(err, &nf) || errors.As(err, &anf) {
		return KindValidation
	}
	return KindTransient
}

// IsRetryable reports whether err may succeed on a second attempt.
func IsRetryable(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Retryable()
	}
	return true
}

// StatusCode maps err to the HTTP status a handler should answer with.
func StatusCode(err error) int {
	var nf *ErrCampaignNotFound
	var anf *ErrAssetNotFound
	if errors.As(err, &nf) || errors.As(err, &anf) {
		return http.StatusNotFound
	}
	switch KindOf(err) {
	case KindConfig:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindMalformedOutput, KindTransient:
		return http.StatusBadGateway
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
