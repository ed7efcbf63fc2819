package chatops

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatwarden/pkg/warden"
)

func titleRequest(title string) warden.MutationRequest {
	return warden.MutationRequest{
		Conversation: testConversation(),
		Kind:         warden.MutationKindTitle,
		Title:        title,
	}
}

func TestExecutorAppliesTitleMutation(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	executor := NewExecutor(port, nil, nil)

	outcome, err := executor.Execute(context.Background(), titleRequest("new den"))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !outcome.Accepted || outcome.Retried || outcome.NotModified {
		t.Fatalf("outcome = %+v, want plain acceptance", outcome)
	}
	if len(port.titleCalls) != 1 || port.titleCalls[0] != "new den" {
		t.Fatalf("title calls = %v, want single %q", port.titleCalls, "new den")
	}
}

func TestExecutorAppliesPhotoMutation(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	executor := NewExecutor(port, nil, nil)

	request := warden.MutationRequest{
		Conversation: testConversation(),
		Kind:         warden.MutationKindPhoto,
		PhotoPath:    "/tmp/chat_photo_-100123_5.jpg",
	}
	outcome, err := executor.Execute(context.Background(), request)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !outcome.Accepted {
		t.Fatalf("outcome = %+v, want acceptance", outcome)
	}
	if len(port.photoCalls) != 1 || port.photoCalls[0] != request.PhotoPath {
		t.Fatalf("photo calls = %v, want single %q", port.photoCalls, request.PhotoPath)
	}
}

func TestExecutorTreatsNotModifiedAsSuccess(t *testing.T) {
	t.Parallel()

	port := &fakePort{titleErrs: []error{notModifiedError("set_chat_title")}}
	executor := NewExecutor(port, nil, nil)

	outcome, err := executor.Execute(context.Background(), titleRequest("same den"))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !outcome.Accepted || !outcome.NotModified || outcome.Retried {
		t.Fatalf("outcome = %+v, want not-modified acceptance", outcome)
	}
}

func TestExecutorRetriesOnceAfterRateLimit(t *testing.T) {
	t.Parallel()

	port := &fakePort{titleErrs: []error{rateLimitError("set_chat_title", 7 * time.Second)}}
	var slept []time.Duration
	executor := NewExecutor(port, func(_ context.Context, delay time.Duration) error {
		slept = append(slept, delay)
		return nil
	}, nil)

	outcome, err := executor.Execute(context.Background(), titleRequest("new den"))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !outcome.Accepted || !outcome.Retried {
		t.Fatalf("outcome = %+v, want retried acceptance", outcome)
	}
	if len(port.titleCalls) != 2 {
		t.Fatalf("title calls = %d, want 2", len(port.titleCalls))
	}
	if len(slept) != 1 || slept[0] != 7*time.Second {
		t.Fatalf("sleeps = %v, want single 7s wait", slept)
	}
}

func TestExecutorDefaultsRetryWaitWithoutHint(t *testing.T) {
	t.Parallel()

	port := &fakePort{titleErrs: []error{rateLimitError("set_chat_title", 0)}}
	var slept []time.Duration
	executor := NewExecutor(port, func(_ context.Context, delay time.Duration) error {
		slept = append(slept, delay)
		return nil
	}, nil)

	if _, err := executor.Execute(context.Background(), titleRequest("new den")); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(slept) != 1 || slept[0] != defaultRetryWait {
		t.Fatalf("sleeps = %v, want single default wait", slept)
	}
}

func TestExecutorGivesUpAfterSecondRateLimit(t *testing.T) {
	t.Parallel()

	port := &fakePort{titleErrs: []error{
		rateLimitError("set_chat_title", time.Second),
		rateLimitError("set_chat_title", time.Minute),
	}}
	sleeps := 0
	executor := NewExecutor(port, func(context.Context, time.Duration) error {
		sleeps++
		return nil
	}, nil)

	outcome, err := executor.Execute(context.Background(), titleRequest("new den"))
	if err == nil {
		t.Fatal("expected failure after second rate limit")
	}
	if _, rateLimited := warden.AsRateLimit(err); !rateLimited {
		t.Fatalf("error = %v, want rate-limited classification preserved", err)
	}
	if !outcome.Retried || outcome.Accepted {
		t.Fatalf("outcome = %+v, want rejected retry", outcome)
	}
	if len(port.titleCalls) != 2 || sleeps != 1 {
		t.Fatalf("calls = %d sleeps = %d, want exactly one retry", len(port.titleCalls), sleeps)
	}
}

func TestExecutorDoesNotRetryOtherFailures(t *testing.T) {
	t.Parallel()

	port := &fakePort{titleErrs: []error{privilegeError("set_chat_title")}}
	sleeps := 0
	executor := NewExecutor(port, func(context.Context, time.Duration) error {
		sleeps++
		return nil
	}, nil)

	outcome, err := executor.Execute(context.Background(), titleRequest("new den"))
	if err == nil {
		t.Fatal("expected privilege failure to surface")
	}
	if outcome.Accepted || outcome.Retried {
		t.Fatalf("outcome = %+v, want plain rejection", outcome)
	}
	if len(port.titleCalls) != 1 || sleeps != 0 {
		t.Fatalf("calls = %d sleeps = %d, want single attempt", len(port.titleCalls), sleeps)
	}
}

func TestExecutorStopsWhenRetryWaitIsInterrupted(t *testing.T) {
	t.Parallel()

	port := &fakePort{titleErrs: []error{rateLimitError("set_chat_title", time.Second)}}
	executor := NewExecutor(port, func(context.Context, time.Duration) error {
		return context.Canceled
	}, nil)

	_, err := executor.Execute(context.Background(), titleRequest("new den"))
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want interrupted wait", err)
	}
	if len(port.titleCalls) != 1 {
		t.Fatalf("calls = %d, want no retry after interrupted wait", len(port.titleCalls))
	}
}

func TestExecutorRejectsInvalidRequest(t *testing.T) {
	t.Parallel()

	executor := NewExecutor(&fakePort{}, nil, nil)

	_, err := executor.Execute(context.Background(), warden.MutationRequest{Kind: warden.MutationKindTitle})
	if !errors.Is(err, warden.ErrInvalidRequest) {
		t.Fatalf("error = %v, want ErrInvalidRequest", err)
	}
}
