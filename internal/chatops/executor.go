package chatops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatwarden/pkg/warden"
)

// defaultRetryWait is applied when the platform signals rate limiting without
// a retry-after hint.
const defaultRetryWait = time.Second

// SleepFunc waits for delay or until ctx is cancelled.
type SleepFunc func(ctx context.Context, delay time.Duration) error

// Executor applies one mutation request against the platform port with a
// single bounded retry after rate limiting. A second rate limit, or any
// other failure, is final.
type Executor struct {
	port   warden.ChatPort
	sleep  SleepFunc
	logger *slog.Logger
}

// NewExecutor builds an executor over port. A nil sleep uses a real
// context-aware timer.
func NewExecutor(port warden.ChatPort, sleep SleepFunc, logger *slog.Logger) *Executor {
	if sleep == nil {
		sleep = sleepWithContext
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{port: port, sleep: sleep, logger: logger}
}

// Execute applies the mutation request and reports the outcome.
//
// A no-op rejection counts as success with NotModified set. Rate limiting
// triggers exactly one waited retry; every other failure returns immediately.
func (e *Executor) Execute(ctx context.Context, request warden.MutationRequest) (warden.MutationOutcome, error) {
	if err := request.Validate(); err != nil {
		return warden.MutationOutcome{}, fmt.Errorf("execute mutation: %w", err)
	}

	err := e.apply(ctx, request)
	if err == nil {
		return warden.MutationOutcome{Accepted: true}, nil
	}
	if warden.IsNotModified(err) {
		return warden.MutationOutcome{Accepted: true, NotModified: true}, nil
	}

	retryAfter, rateLimited := warden.AsRateLimit(err)
	if !rateLimited {
		return warden.MutationOutcome{}, fmt.Errorf("execute %s mutation: %w", request.Kind, err)
	}
	if retryAfter <= 0 {
		retryAfter = defaultRetryWait
	}

	e.logger.Warn(
		"mutation rate limited, retrying once",
		"mutation", string(request.Kind),
		"chat_id", request.Conversation.ID,
		"retry_after", retryAfter.String(),
	)
	if waitErr := e.sleep(ctx, retryAfter); waitErr != nil {
		return warden.MutationOutcome{}, fmt.Errorf(
			"execute %s mutation: retry wait interrupted: %w",
			request.Kind,
			errors.Join(err, waitErr),
		)
	}

	retryErr := e.apply(ctx, request)
	if retryErr == nil {
		return warden.MutationOutcome{Accepted: true, Retried: true}, nil
	}
	if warden.IsNotModified(retryErr) {
		return warden.MutationOutcome{Accepted: true, Retried: true, NotModified: true}, nil
	}

	return warden.MutationOutcome{Retried: true}, fmt.Errorf(
		"execute %s mutation after retry: %w",
		request.Kind,
		retryErr,
	)
}

func (e *Executor) apply(ctx context.Context, request warden.MutationRequest) error {
	switch request.Kind {
	case warden.MutationKindTitle:
		return e.port.SetChatTitle(ctx, request.Conversation, request.Title)
	case warden.MutationKindPhoto:
		return e.port.SetChatPhoto(ctx, request.Conversation, request.PhotoPath)
	default:
		return fmt.Errorf("%w: unsupported mutation kind %q", warden.ErrInvalidRequest, request.Kind)
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep with context: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
