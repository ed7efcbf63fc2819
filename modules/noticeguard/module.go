package noticeguard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatwarden/pkg/warden"
)

// Module watches platform service notices about chat metadata changes made by
// other members, records title changes in the change ledger, and deletes the
// notice from the chat.
//
// Notices caused by this account's own mutations are skipped: the mutation
// pipeline already suppresses and records those, and handling them twice
// would duplicate ledger rows.
type Module struct {
	port     warden.ChatPort
	ledger   warden.ChangeLedger
	pipeline warden.MutationPipeline
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes module construction.
type Option func(*Module)

// WithLogger sets the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock replaces the fallback ledger timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Module) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a notice guard module with default configuration.
func New(options ...Option) *Module {
	module := &Module{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "noticeguard"
}

// Spec declares interest in posted metadata change notices.
func (m *Module) Spec() warden.ModuleSpec {
	return warden.ModuleSpec{
		Handlers: []warden.ModuleHandler{
			{
				Capability: warden.Capability{
					Name:        "metadata-notice-guard",
					Description: "records and deletes external chat metadata change notices",
					Interest: warden.InterestSet{
						Kinds: []warden.EventKind{warden.EventKindNoticePosted},
						NoticeKinds: []warden.NoticeKind{
							warden.NoticeKindTitle,
							warden.NoticeKindPhoto,
						},
					},
					RequiredServices: []string{
						warden.ServiceChatPort,
						warden.ServiceChangeLedger,
						warden.ServiceMutationPipeline,
					},
				},
				Subscription: warden.NewDefaultSubscriptionSpec("metadata-notices"),
				Handler:      m.handleNotice,
			},
		},
	}
}

// OnRegister resolves port, ledger, and pipeline dependencies.
func (m *Module) OnRegister(_ context.Context, runtime warden.ModuleRuntime) error {
	port, err := warden.ResolveAs[warden.ChatPort](
		runtime.Services(),
		warden.ServiceChatPort,
	)
	if err != nil {
		return fmt.Errorf("noticeguard resolve chat port: %w", err)
	}
	ledger, err := warden.ResolveAs[warden.ChangeLedger](
		runtime.Services(),
		warden.ServiceChangeLedger,
	)
	if err != nil {
		return fmt.Errorf("noticeguard resolve change ledger: %w", err)
	}
	pipeline, err := warden.ResolveAs[warden.MutationPipeline](
		runtime.Services(),
		warden.ServiceMutationPipeline,
	)
	if err != nil {
		return fmt.Errorf("noticeguard resolve mutation pipeline: %w", err)
	}

	m.port = port
	m.ledger = ledger
	m.pipeline = pipeline

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(_ context.Context) error {
	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleNotice(ctx context.Context, event *warden.Event) error {
	if event == nil || event.Notice == nil {
		return nil
	}
	if event.Kind != warden.EventKindNoticePosted {
		return nil
	}
	if !event.Conversation.IsGroup() {
		return nil
	}
	notice := event.Notice
	if notice.Kind != warden.NoticeKindTitle && notice.Kind != warden.NoticeKindPhoto {
		return nil
	}
	if m.port == nil || m.ledger == nil || m.pipeline == nil {
		return fmt.Errorf("noticeguard handle notice: dependencies not configured")
	}

	self, err := m.port.Self(ctx)
	if err != nil {
		return fmt.Errorf("noticeguard resolve self actor: %w", err)
	}
	if event.Actor.ID != "" && event.Actor.ID == self.ID {
		return nil
	}

	if notice.Kind == warden.NoticeKindTitle && notice.NewValue != "" {
		m.recordTitleChange(ctx, event)
	}

	m.deleteNotice(ctx, event)

	return nil
}

// recordTitleChange appends the externally made title change. An append
// failure is logged and the notice is still deleted, the external mutation
// already happened and cannot be rolled back from here.
func (m *Module) recordTitleChange(ctx context.Context, event *warden.Event) {
	timestamp := event.OccurredAt
	if timestamp.IsZero() {
		timestamp = m.now()
	}

	record := warden.ChangeRecord{
		Timestamp: timestamp,
		NewValue:  event.Notice.NewValue,
		ChangedBy: event.Actor.Identity(),
	}
	if err := m.ledger.Append(record); err != nil {
		m.logger.ErrorContext(ctx, "external title change not recorded",
			slog.String("conversation_id", event.Conversation.ID),
			slog.String("new_value", record.NewValue),
			slog.Any("error", err),
		)

		return
	}

	m.logger.InfoContext(ctx, "external title change recorded",
		slog.String("conversation_id", event.Conversation.ID),
		slog.String("new_value", record.NewValue),
		slog.String("changed_by", record.ChangedBy),
	)
}

// deleteNotice removes the notice message directly when its identifier is
// known, and otherwise falls back to the bounded lookback suppressor. Both
// paths are best-effort.
func (m *Module) deleteNotice(ctx context.Context, event *warden.Event) {
	notice := event.Notice

	if notice.MessageID != "" {
		err := m.port.DeleteMessage(ctx, event.Conversation, notice.MessageID)
		if err == nil {
			return
		}
		m.logger.WarnContext(ctx, "notice delete failed, trying lookback suppression",
			slog.String("conversation_id", event.Conversation.ID),
			slog.String("message_id", notice.MessageID),
			slog.Any("error", err),
		)
	}

	if err := m.pipeline.SuppressNotice(ctx, event.Conversation, notice.Kind); err != nil {
		m.logger.WarnContext(ctx, "notice suppression failed",
			slog.String("conversation_id", event.Conversation.ID),
			slog.String("notice_kind", string(notice.Kind)),
			slog.Any("error", err),
		)
	}
}
