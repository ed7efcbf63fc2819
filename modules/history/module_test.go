package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"chatwarden/pkg/warden"
)

func TestModuleHandleCommand(t *testing.T) {
	records := []warden.ChangeRecord{
		{Timestamp: time.Unix(1700000300, 0).UTC(), NewValue: "third den", ChangedBy: "alice"},
		{Timestamp: time.Unix(1700000200, 0).UTC(), NewValue: "[photo]", ChangedBy: "bob"},
		{Timestamp: time.Unix(1700000100, 0).UTC(), NewValue: "first den", ChangedBy: ""},
	}

	tests := []struct {
		name      string
		event     *warden.Event
		records   []warden.ChangeRecord
		recentErr error
		sendErr   error
		wantErr   bool
		wantReply string
	}{
		{
			name:    "authorized user gets the recent records newest first",
			event:   newHistoryEvent("alice"),
			records: records,
			wantReply: strings.Join([]string{
				"third den (changed by alice)",
				"[photo] (changed by bob)",
				"first den (changed by unknown)",
			}, "\n"),
		},
		{
			name:      "empty ledger gets the empty-history reply",
			event:     newHistoryEvent("alice"),
			wantReply: emptyHistoryReply,
		},
		{
			name:    "other senders are silently ignored",
			event:   newHistoryEvent("mallory"),
			records: records,
		},
		{
			name:    "anonymous senders are silently ignored",
			event:   newHistoryEvent(""),
			records: records,
		},
		{
			name:    "non-group origin is ignored",
			event:   privateHistoryEvent("alice"),
			records: records,
		},
		{
			name:  "missing command payload is ignored",
			event: &warden.Event{Kind: warden.EventKindCommandReceived},
		},
		{
			name:      "ledger failure returns error",
			event:     newHistoryEvent("alice"),
			recentErr: errors.New("ledger failure"),
			wantErr:   true,
		},
		{
			name:    "send failure returns error",
			event:   newHistoryEvent("alice"),
			records: records,
			sendErr: errors.New("send failure"),
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			module := New("alice")
			ledger := &fakeLedger{records: testCase.records, recentErr: testCase.recentErr}
			port := &fakeChatPort{sendErr: testCase.sendErr}
			module.ledger = ledger
			module.port = port

			err := module.handleCommand(context.Background(), testCase.event)
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if testCase.wantReply == "" {
				if !testCase.wantErr && len(port.sent) != 0 {
					t.Fatalf("sent messages = %d, want 0", len(port.sent))
				}

				return
			}

			if len(port.sent) != 1 {
				t.Fatalf("sent messages = %d, want 1", len(port.sent))
			}
			request := port.sent[0]
			if request.Text != testCase.wantReply {
				t.Fatalf("reply text = %q, want %q", request.Text, testCase.wantReply)
			}
			if request.ReplyToID != testCase.event.Message.ID {
				t.Fatalf("reply_to = %q, want %q", request.ReplyToID, testCase.event.Message.ID)
			}
			if ledger.lastLimit != defaultLimit {
				t.Fatalf("ledger limit = %d, want %d", ledger.lastLimit, defaultLimit)
			}
		})
	}
}

func TestModuleNeverDeletesTheCommand(t *testing.T) {
	t.Parallel()

	module := New("alice")
	port := &fakeChatPort{}
	module.ledger = &fakeLedger{}
	module.port = port

	if err := module.handleCommand(context.Background(), newHistoryEvent("alice")); err != nil {
		t.Fatalf("handleCommand failed: %v", err)
	}
	if port.deleteCalls != 0 {
		t.Fatalf("delete calls = %d, want 0", port.deleteCalls)
	}
}

func TestRenderHistoryFallsBackWhenOversized(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 200)
	records := make([]warden.ChangeRecord, 0, 30)
	for index := 0; index < 30; index++ {
		records = append(records, warden.ChangeRecord{
			Timestamp: time.Unix(1700000000+int64(index), 0).UTC(),
			NewValue:  fmt.Sprintf("%s-%d", long, index),
			ChangedBy: "alice",
		})
	}

	text := renderHistory(records)
	if !strings.HasPrefix(text, oversizeNotice) {
		t.Fatalf("text prefix = %q, want oversize notice", firstLine(text))
	}
	if got := strings.Count(text, "\n"); got != reducedLimit {
		t.Fatalf("reply lines after notice = %d, want %d", got, reducedLimit)
	}
	if !strings.Contains(text, long+"-0 ") {
		t.Fatal("fallback dropped the most recent record")
	}
}

func TestRenderHistoryKeepsShortRepliesIntact(t *testing.T) {
	t.Parallel()

	records := []warden.ChangeRecord{
		{Timestamp: time.Unix(1700000000, 0).UTC(), NewValue: "short den", ChangedBy: "alice"},
	}
	if got := renderHistory(records); got != "short den (changed by alice)" {
		t.Fatalf("rendered = %q", got)
	}
}

func TestModuleOnRegister(t *testing.T) {
	t.Parallel()

	module := New("alice")
	runtime := moduleRuntimeStub{
		registry: serviceRegistryStub{values: map[string]any{
			warden.ServiceChangeLedger: &fakeLedger{},
			warden.ServiceChatPort:     &fakeChatPort{},
		}},
	}

	if err := module.OnRegister(context.Background(), runtime); err != nil {
		t.Fatalf("OnRegister failed: %v", err)
	}
	if module.ledger == nil || module.port == nil {
		t.Fatal("dependencies not resolved")
	}
}

func TestModuleSpecRegistersLocalizedAlias(t *testing.T) {
	t.Parallel()

	spec := New("alice").Spec()
	if len(spec.Commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(spec.Commands))
	}
	command := spec.Commands[0]
	if err := command.Validate(); err != nil {
		t.Fatalf("command spec invalid: %v", err)
	}
	if len(command.Aliases) != 1 || command.Aliases[0] != historyAlias {
		t.Fatalf("aliases = %v, want [%s]", command.Aliases, historyAlias)
	}
}

func firstLine(text string) string {
	if index := strings.IndexByte(text, '\n'); index >= 0 {
		return text[:index]
	}

	return text
}

func newHistoryEvent(username string) *warden.Event {
	return &warden.Event{
		ID:           "evt-1",
		Kind:         warden.EventKindCommandReceived,
		OccurredAt:   time.Unix(1700000000, 0).UTC(),
		Platform:     warden.PlatformTelegram,
		Conversation: warden.Conversation{ID: "100", Type: warden.ConversationTypeGroup},
		Actor:        warden.Actor{ID: "42", Username: username},
		Message: &warden.Message{
			ID:   "555",
			Text: "/" + historyCommandName,
		},
		Command: &warden.CommandInvocation{
			Name:          historyCommandName,
			Trigger:       "/" + historyCommandName,
			SourceEventID: "evt-0",
		},
	}
}

func privateHistoryEvent(username string) *warden.Event {
	event := newHistoryEvent(username)
	event.Conversation = warden.Conversation{ID: "9", Type: warden.ConversationTypePrivate}

	return event
}

type fakeLedger struct {
	records   []warden.ChangeRecord
	recentErr error
	lastLimit int
}

func (l *fakeLedger) Append(warden.ChangeRecord) error {
	return errors.New("unexpected Append call")
}

func (l *fakeLedger) Recent(limit int) ([]warden.ChangeRecord, error) {
	l.lastLimit = limit
	if l.recentErr != nil {
		return nil, l.recentErr
	}

	return append([]warden.ChangeRecord(nil), l.records...), nil
}

type fakeChatPort struct {
	sent        []warden.SendMessageRequest
	sendErr     error
	deleteCalls int
}

func (p *fakeChatPort) SendMessage(_ context.Context, request warden.SendMessageRequest) (*warden.SentMessage, error) {
	p.sent = append(p.sent, request)
	if p.sendErr != nil {
		return nil, p.sendErr
	}

	return &warden.SentMessage{ID: "901", Conversation: request.Conversation}, nil
}

func (p *fakeChatPort) DeleteMessage(context.Context, warden.Conversation, string) error {
	p.deleteCalls++

	return nil
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
