package warden

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MutationKind identifies which chat metadata slot a mutation targets.
type MutationKind string

const (
	// MutationKindTitle targets the chat title.
	MutationKindTitle MutationKind = "title"
	// MutationKindPhoto targets the chat photo.
	MutationKindPhoto MutationKind = "photo"
)

// PhotoLedgerValue is the placeholder recorded in the change ledger for photo
// mutations, which have no textual new value.
const PhotoLedgerValue = "[photo]"

// MutationRequest is one validated chat metadata mutation handed to the port.
type MutationRequest struct {
	// Conversation is the chat whose metadata changes.
	Conversation Conversation
	// Kind selects which metadata slot changes.
	Kind MutationKind
	// Title is the new title for title mutations.
	Title string
	// PhotoPath is the local staged image path for photo mutations.
	PhotoPath string
}

// Validate checks mutation request coherence.
func (r *MutationRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil mutation request", ErrInvalidRequest)
	}
	if r.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidRequest)
	}

	switch r.Kind {
	case MutationKindTitle:
		if r.Title == "" {
			return fmt.Errorf("%w: title mutation without title", ErrInvalidRequest)
		}
	case MutationKindPhoto:
		if r.PhotoPath == "" {
			return fmt.Errorf("%w: photo mutation without photo path", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unsupported mutation kind %q", ErrInvalidRequest, r.Kind)
	}

	return nil
}

// LedgerValue returns the value recorded in the change ledger for this
// mutation: the new title, or PhotoLedgerValue for photo mutations.
func (r *MutationRequest) LedgerValue() string {
	if r.Kind == MutationKindPhoto {
		return PhotoLedgerValue
	}

	return r.Title
}

// MutationOutcome reports how one mutation attempt concluded.
type MutationOutcome struct {
	// Accepted reports whether the platform accepted the mutation.
	Accepted bool
	// Retried reports whether a second attempt was needed after rate limiting.
	Retried bool
	// NotModified reports that the platform rejected the mutation as a no-op
	// because the value was already current. Accepted is true in that case.
	NotModified bool
}

// MutationErrorKind describes coarse-grained mutation failure classification.
type MutationErrorKind string

const (
	// MutationErrorKindRateLimited indicates platform-side rate limiting.
	MutationErrorKindRateLimited MutationErrorKind = "rate_limited"
	// MutationErrorKindNotModified indicates the value was already current.
	MutationErrorKindNotModified MutationErrorKind = "not_modified"
	// MutationErrorKindPrivilege indicates missing chat admin rights.
	MutationErrorKindPrivilege MutationErrorKind = "privilege"
	// MutationErrorKindRejected indicates the platform refused the payload,
	// such as an image with invalid dimensions or format.
	MutationErrorKindRejected MutationErrorKind = "rejected"
	// MutationErrorKindTemporary indicates retryable transient failure.
	MutationErrorKindTemporary MutationErrorKind = "temporary"
	// MutationErrorKindUnknown indicates unclassified failure.
	MutationErrorKindUnknown MutationErrorKind = "unknown"
)

// MutationError carries structured metadata for one failed port operation.
type MutationError struct {
	// Operation names the port operation that failed.
	Operation string
	// Kind classifies whether and how callers should retry.
	Kind MutationErrorKind
	// RetryAfter carries the platform retry delay for rate-limited failures.
	RetryAfter time.Duration
	// Code carries the platform RPC/status code when known.
	Code int
	// Type carries the platform error type token when known.
	Type string
	// Cause is the wrapped platform/transport error.
	Cause error
}

// Error returns one operator-readable failure summary.
func (e *MutationError) Error() string {
	if e == nil {
		return "<nil>"
	}

	fields := make([]string, 0, 5)
	if operation := strings.TrimSpace(e.Operation); operation != "" {
		fields = append(fields, "operation="+operation)
	}
	if kind := strings.TrimSpace(string(e.Kind)); kind != "" {
		fields = append(fields, "kind="+kind)
	}
	if e.RetryAfter > 0 {
		fields = append(fields, "retry_after="+e.RetryAfter.String())
	}
	if e.Code != 0 {
		fields = append(fields, fmt.Sprintf("code=%d", e.Code))
	}
	if errorType := strings.TrimSpace(e.Type); errorType != "" {
		fields = append(fields, "type="+errorType)
	}

	if len(fields) == 0 {
		if e.Cause == nil {
			return "mutation error"
		}
		return fmt.Sprintf("mutation error: %v", e.Cause)
	}

	if e.Cause == nil {
		return "mutation error: " + strings.Join(fields, " ")
	}
	return "mutation error: " + strings.Join(fields, " ") + ": " + e.Cause.Error()
}

// Unwrap returns the wrapped root cause.
func (e *MutationError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Cause
}

// AsMutationError extracts one MutationError from wrapped error chains.
func AsMutationError(err error) (*MutationError, bool) {
	if err == nil {
		return nil, false
	}

	var mutationErr *MutationError
	if errors.As(err, &mutationErr) {
		return mutationErr, true
	}

	return nil, false
}

// AsRateLimit extracts retry delay metadata from rate-limited mutation errors.
//
// It returns `(0, false)` if err is not classified as rate-limited.
// It returns `(0, true)` when rate-limited but no retry-after hint is known.
func AsRateLimit(err error) (time.Duration, bool) {
	mutationErr, ok := AsMutationError(err)
	if !ok || mutationErr == nil || mutationErr.Kind != MutationErrorKindRateLimited {
		return 0, false
	}

	return mutationErr.RetryAfter, true
}

// IsNotModified reports whether err is classified as a no-op rejection.
func IsNotModified(err error) bool {
	mutationErr, ok := AsMutationError(err)

	return ok && mutationErr != nil && mutationErr.Kind == MutationErrorKindNotModified
}
