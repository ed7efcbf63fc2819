package qecho

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"chatwarden/pkg/warden"
)

func TestModuleHandleMessage(t *testing.T) {
	tests := []struct {
		name     string
		event    *warden.Event
		draw     float64
		sendErr  error
		wantErr  bool
		wantEcho bool
	}{
		{
			name:     "trigger reply echoes on a low draw",
			event:    newMessageEvent("/й", "700"),
			draw:     0.05,
			wantEcho: true,
		},
		{
			name:     "exact threshold draw is admitted",
			event:    newMessageEvent("/й", "700"),
			draw:     0.1,
			wantEcho: true,
		},
		{
			name:  "high draw stays silent",
			event: newMessageEvent("/й", "700"),
			draw:  0.5,
		},
		{
			name:     "surrounding whitespace and case are tolerated",
			event:    newMessageEvent("  /Й \n", "700"),
			draw:     0.05,
			wantEcho: true,
		},
		{
			name:  "other text is ignored",
			event: newMessageEvent("/q", "700"),
			draw:  0.05,
		},
		{
			name:  "non-reply trigger is ignored",
			event: newMessageEvent("/й", ""),
			draw:  0.05,
		},
		{
			name:  "non-group origin is ignored",
			event: privateMessageEvent("/й", "700"),
			draw:  0.05,
		},
		{
			name:  "missing message payload is ignored",
			event: &warden.Event{Kind: warden.EventKindMessageCreated},
			draw:  0.05,
		},
		{
			name:     "send failure returns error",
			event:    newMessageEvent("/й", "700"),
			draw:     0.05,
			sendErr:  errors.New("send failure"),
			wantErr:  true,
			wantEcho: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			module := New(WithDraw(func() float64 { return testCase.draw }))
			port := &fakeChatPort{sendErr: testCase.sendErr}
			module.port = port

			err := module.handleMessage(context.Background(), testCase.event)
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if echoed := len(port.sent) > 0; echoed != testCase.wantEcho {
				t.Fatalf("echoes sent = %d, want echo %v", len(port.sent), testCase.wantEcho)
			}
			if !testCase.wantEcho || testCase.wantErr {
				return
			}

			request := port.sent[0]
			if request.Text != echoText {
				t.Fatalf("echo text = %q, want %q", request.Text, echoText)
			}
			if request.ReplyToID != testCase.event.Message.ReplyToID {
				t.Fatalf("echo reply_to = %q, want %q", request.ReplyToID, testCase.event.Message.ReplyToID)
			}
			if len(port.deleted) != 1 || port.deleted[0] != "901" {
				t.Fatalf("deleted messages = %v, want the sent echo", port.deleted)
			}
		})
	}
}

func TestModuleToleratesEchoDeleteFailure(t *testing.T) {
	t.Parallel()

	module := New(WithDraw(func() float64 { return 0 }))
	module.port = &fakeChatPort{deleteErr: errors.New("delete failure")}

	if err := module.handleMessage(context.Background(), newMessageEvent("/й", "700")); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}
}

func TestModuleOnRegister(t *testing.T) {
	t.Parallel()

	module := New()
	runtime := moduleRuntimeStub{
		registry: serviceRegistryStub{values: map[string]any{
			warden.ServiceChatPort: &fakeChatPort{},
		}},
	}

	if err := module.OnRegister(context.Background(), runtime); err != nil {
		t.Fatalf("OnRegister failed: %v", err)
	}
	if module.port == nil {
		t.Fatal("chat port not resolved")
	}
}

func TestModuleSpecRegistersNoCommands(t *testing.T) {
	t.Parallel()

	spec := New().Spec()
	if len(spec.Commands) != 0 {
		t.Fatalf("commands = %d, want 0", len(spec.Commands))
	}
	if len(spec.Handlers) != 1 {
		t.Fatalf("handlers = %d, want 1", len(spec.Handlers))
	}
}

func newMessageEvent(text string, replyToID string) *warden.Event {
	return &warden.Event{
		ID:           "evt-1",
		Kind:         warden.EventKindMessageCreated,
		OccurredAt:   time.Unix(1700000000, 0).UTC(),
		Platform:     warden.PlatformTelegram,
		Conversation: warden.Conversation{ID: "100", Type: warden.ConversationTypeGroup},
		Actor:        warden.Actor{ID: "42", Username: "alice"},
		Message: &warden.Message{
			ID:        "555",
			Text:      text,
			ReplyToID: replyToID,
		},
	}
}

func privateMessageEvent(text string, replyToID string) *warden.Event {
	event := newMessageEvent(text, replyToID)
	event.Conversation = warden.Conversation{ID: "9", Type: warden.ConversationTypePrivate}

	return event
}

type fakeChatPort struct {
	sent      []warden.SendMessageRequest
	sendErr   error
	deleted   []string
	deleteErr error
}

func (p *fakeChatPort) SendMessage(_ context.Context, request warden.SendMessageRequest) (*warden.SentMessage, error) {
	p.sent = append(p.sent, request)
	if p.sendErr != nil {
		return nil, p.sendErr
	}

	return &warden.SentMessage{ID: "901", Conversation: request.Conversation}, nil
}

func (p *fakeChatPort) DeleteMessage(_ context.Context, _ warden.Conversation, messageID string) error {
	p.deleted = append(p.deleted, messageID)

	return p.deleteErr
}

func (p *fakeChatPort) DownloadMedia(context.Context, string, string) error {
	return errors.New("unexpected DownloadMedia call")
}

func (p *fakeChatPort) SetChatTitle(context.Context, warden.Conversation, string) error {
	return errors.New("unexpected SetChatTitle call")
}

func (p *fakeChatPort) SetChatPhoto(context.Context, warden.Conversation, string) error {
	return errors.New("unexpected SetChatPhoto call")
}

func (p *fakeChatPort) RecentMessages(context.Context, warden.Conversation, int) ([]warden.HistoryEntry, error) {
	return nil, errors.New("unexpected RecentMessages call")
}

func (p *fakeChatPort) Self(context.Context) (warden.Actor, error) {
	return warden.Actor{}, errors.New("unexpected Self call")
}

type moduleRuntimeStub struct {
	registry serviceRegistryStub
}

func (s moduleRuntimeStub) Services() warden.ServiceRegistry {
	return s.registry
}

func (s moduleRuntimeStub) Subscribe(
	context.Context,
	warden.SubscriptionSpec,
	warden.EventHandler,
) (warden.Subscription, error) {
	return nil, errors.New("unexpected Subscribe call")
}

type serviceRegistryStub struct {
	values map[string]any
}

func (s serviceRegistryStub) Register(string, any) error {
	return errors.New("unexpected Register call")
}

func (s serviceRegistryStub) Resolve(name string) (any, error) {
	value, ok := s.values[name]
	if !ok {
		return nil, fmt.Errorf("unknown service %s", name)
	}

	return value, nil
}
