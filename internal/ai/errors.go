package ai

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers only need to detect, not inspect.
var (
	// ErrNotConfigured indicates the upstream URL or API key is missing.
	ErrNotConfigured = errors.New("ai: upstream url and api key are required")
	// ErrTimeout indicates the global polling deadline or attempt cap was hit.
	ErrTimeout = errors.New("ai: generation timed out")
	// ErrUnrecognizedResult indicates a succeeded task carried no image URL
	// in any of the known result fields.
	ErrUnrecognizedResult = errors.New("ai: result format not recognized")
	// ErrNoDocumentContext indicates no fresh document is cached for the
	// session; the caller should ask the user to re-upload.
	ErrNoDocumentContext = errors.New("ai: no document in context")
)

// ValidationError reports a request rejected before any upstream call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "ai: invalid request: " + e.Reason
}

// UpstreamRequestError carries a non-success HTTP response from the
// upstream service. Never retried by this package.
type UpstreamRequestError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamRequestError) Error() string {
	return fmt.Sprintf("ai: upstream returned http %d: %s", e.StatusCode, e.Body)
}

// TransientPollError wraps a client-side network failure during a status
// poll. Retried internally by the poller; never surfaced to callers.
type TransientPollError struct {
	Err error
}

func (e *TransientPollError) Error() string {
	return "ai: transient poll failure: " + e.Err.Error()
}

func (e *TransientPollError) Unwrap() error { return e.Err }

// GenerationFailedError reports a task the upstream service itself marked
// as failed. Terminal, not retryable.
type GenerationFailedError struct {
	Detail string
}

func (e *GenerationFailedError) Error() string {
	return "ai: generation failed: " + e.Detail
}
