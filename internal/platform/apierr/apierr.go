package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies pipeline failures. Kinds decide HTTP status at the edge
// and retryability inside the orchestrator.
type Kind string

const (
	// KindInput: the source itself is unusable. Surfaced at submit time,
	// before any job row exists.
	KindInput Kind = "input_error"
	// KindExtraction: a collaborator failed to produce text (URL fetch,
	// unreadable file). Retryable.
	KindExtraction Kind = "extraction_error"
	// KindTranslation: the opaque translation collaborator failed. Retryable.
	KindTranslation Kind = "translation_error"
	// KindAlignmentLowConfidence: sentence counts mismatched beyond tolerance.
	// Fatal only when zero pairs survive; otherwise attached as a warning.
	KindAlignmentLowConfidence Kind = "alignment_low_confidence"
	// KindQualityBelowThreshold: informational, never blocks completion.
	KindQualityBelowThreshold Kind = "quality_below_threshold"
	// KindTimeout: a stage exceeded its time budget. Fatal for the job.
	KindTimeout Kind = "timeout_error"
	// KindInternal: unexpected failure in a deterministic heuristic. Fatal,
	// never retried (same input, same outcome).
	KindInternal Kind = "internal_error"
)

type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
	}
	if e.Code != "" {
		return string(e.Kind) + ": " + e.Code
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func Input(code string, err error) *Error       { return New(KindInput, code, err) }
func Extraction(code string, err error) *Error  { return New(KindExtraction, code, err) }
func Translation(code string, err error) *Error { return New(KindTranslation, code, err) }
func Timeout(code string, err error) *Error     { return New(KindTimeout, code, err) }
func Internal(code string, err error) *Error    { return New(KindInternal, code, err) }

func Alignment(code string, err error) *Error {
	return New(KindAlignmentLowConfidence, code, err)
}

// KindOf extracts the Kind from an error chain, defaulting to internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Retryable reports whether the failure came from an opaque external
// collaborator and may succeed on another attempt. Deterministic heuristic
// failures are not retryable.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindExtraction, KindTranslation:
		return true
	}
	return false
}

// HTTPStatus maps a Kind to the status used by the submit/poll surface.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInput:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindExtraction, KindTranslation:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
