package warden

import (
	"errors"
	"testing"
	"time"
)

func validMessageEvent() *Event {
	return &Event{
		ID:         "evt-1",
		Kind:       EventKindMessageCreated,
		OccurredAt: time.Unix(42, 0).UTC(),
		Platform:   PlatformTelegram,
		Conversation: Conversation{
			ID:   "chat-1",
			Type: ConversationTypeGroup,
		},
		Actor:   Actor{ID: "user-1", Username: "alice"},
		Message: &Message{ID: "msg-1", Text: "hello"},
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(event *Event)
		wantErr bool
	}{
		{
			name:   "valid message event",
			mutate: func(*Event) {},
		},
		{
			name: "valid notice event",
			mutate: func(event *Event) {
				event.Kind = EventKindNoticePosted
				event.Message = nil
				event.Notice = &ServiceNotice{
					Kind:      NoticeKindTitle,
					NewValue:  "renamed",
					MessageID: "msg-2",
				}
			},
		},
		{
			name: "valid command event",
			mutate: func(event *Event) {
				event.Kind = EventKindCommandReceived
				event.Command = &CommandInvocation{
					Name:          "rename",
					SourceEventID: "evt-1",
				}
			},
		},
		{
			name:    "missing id",
			mutate:  func(event *Event) { event.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing conversation",
			mutate:  func(event *Event) { event.Conversation.ID = "" },
			wantErr: true,
		},
		{
			name: "message event without message payload",
			mutate: func(event *Event) {
				event.Message = nil
			},
			wantErr: true,
		},
		{
			name: "notice event without notice message id",
			mutate: func(event *Event) {
				event.Kind = EventKindNoticePosted
				event.Notice = &ServiceNotice{Kind: NoticeKindPhoto}
			},
			wantErr: true,
		},
		{
			name: "command event without source message",
			mutate: func(event *Event) {
				event.Kind = EventKindCommandReceived
				event.Message = nil
				event.Command = &CommandInvocation{Name: "rename", SourceEventID: "evt-1"}
			},
			wantErr: true,
		},
		{
			name: "unsupported kind",
			mutate: func(event *Event) {
				event.Kind = EventKind("message.vanished")
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			event := validMessageEvent()
			testCase.mutate(event)

			err := event.Validate()
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidEvent) {
					t.Fatalf("err = %v, want %v", err, ErrInvalidEvent)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestActorIdentity(t *testing.T) {
	t.Parallel()

	withUsername := Actor{Username: "alice", DisplayName: "Alice A"}
	if got := withUsername.Identity(); got != "alice" {
		t.Fatalf("got %q, want %q", got, "alice")
	}

	withoutUsername := Actor{DisplayName: "Alice A"}
	if got := withoutUsername.Identity(); got != "Alice A" {
		t.Fatalf("got %q, want %q", got, "Alice A")
	}

	anonymous := Actor{}
	if got := anonymous.Identity(); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
