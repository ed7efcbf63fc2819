package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chatwarden/pkg/warden"
)

const (
	historyCommandName = "history"
	historyAlias       = "/история"

	// defaultLimit bounds how many ledger records one reply can show.
	defaultLimit = 50
	// maxReplyRunes is the platform ceiling on message length.
	maxReplyRunes = 4096
	// reducedLimit is the fallback entry count for oversized replies.
	reducedLimit = 5

	emptyHistoryReply = "The change history is empty."
	oversizeNotice    = "History is too long, showing the latest entries:"
)

// Module replies with recent change ledger entries for /history commands.
//
// The command is gated to one configured identity. Everyone else is ignored
// without any visible reaction, the command must not leak its own existence.
type Module struct {
	ledger warden.ChangeLedger
	port   warden.ChatPort

	allowedIdentity string
	logger          *slog.Logger
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

// New creates a history module gated to allowedIdentity.
func New(allowedIdentity string, options ...Option) *Module {
	module := &Module{
		allowedIdentity: strings.TrimSpace(allowedIdentity),
		logger:          slog.Default(),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "history"
}

// Spec declares interest in received history command events.
func (m *Module) Spec() warden.ModuleSpec {
	return warden.ModuleSpec{
		Handlers: []warden.ModuleHandler{
			{
				Capability: warden.Capability{
					Name:        "history-command-handler",
					Description: "replies with recent title change records for /history",
					Interest: warden.InterestSet{
						Kinds:        []warden.EventKind{warden.EventKindCommandReceived},
						CommandNames: []string{historyCommandName},
					},
					RequiredServices: []string{
						warden.ServiceChangeLedger,
						warden.ServiceChatPort,
					},
				},
				Subscription: warden.NewDefaultSubscriptionSpec("history-commands"),
				Handler:      m.handleCommand,
			},
		},
		Commands: []warden.CommandSpec{
			{
				Name:        historyCommandName,
				Aliases:     []string{historyAlias},
				Description: "show recent chat title changes",
			},
		},
	}
}

// OnRegister resolves ledger and outbound dependencies.
func (m *Module) OnRegister(_ context.Context, runtime warden.ModuleRuntime) error {
	ledger, err := warden.ResolveAs[warden.ChangeLedger](
		runtime.Services(),
		warden.ServiceChangeLedger,
	)
	if err != nil {
		return fmt.Errorf("history resolve change ledger: %w", err)
	}
	port, err := warden.ResolveAs[warden.ChatPort](
		runtime.Services(),
		warden.ServiceChatPort,
	)
	if err != nil {
		return fmt.Errorf("history resolve chat port: %w", err)
	}

	m.ledger = ledger
	m.port = port

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

func (m *Module) handleCommand(ctx context.Context, event *warden.Event) error {
	if event == nil || event.Command == nil || event.Message == nil {
		return nil
	}
	if event.Kind != warden.EventKindCommandReceived {
		return nil
	}
	if event.Command.Name != historyCommandName {
		return nil
	}
	if !event.Conversation.IsGroup() {
		return nil
	}
	if m.allowedIdentity == "" || event.Actor.Identity() != m.allowedIdentity {
		return nil
	}
	if m.ledger == nil || m.port == nil {
		return fmt.Errorf("history handle command: dependencies not configured")
	}

	records, err := m.ledger.Recent(defaultLimit)
	if err != nil {
		return fmt.Errorf("history read ledger: %w", err)
	}

	text := emptyHistoryReply
	if len(records) > 0 {
		text = renderHistory(records)
	}

	_, err = m.port.SendMessage(ctx, warden.SendMessageRequest{
		Conversation: event.Conversation,
		Text:         text,
		ReplyToID:    event.Message.ID,
	})
	if err != nil {
		return fmt.Errorf("history send reply: %w", err)
	}

	m.logger.InfoContext(ctx, "change history displayed",
		slog.String("conversation_id", event.Conversation.ID),
		slog.Int("records", len(records)),
	)

	return nil
}

// renderHistory formats ledger records newest first. When the full rendering
// exceeds the platform message ceiling it falls back to the most recent few
// entries behind an explanatory first line.
func renderHistory(records []warden.ChangeRecord) string {
	text := joinRecords(records)
	if len([]rune(text)) <= maxReplyRunes {
		return text
	}

	if len(records) > reducedLimit {
		records = records[:reducedLimit]
	}

	return oversizeNotice + "\n" + joinRecords(records)
}

func joinRecords(records []warden.ChangeRecord) string {
	lines := make([]string, 0, len(records))
	for _, record := range records {
		changedBy := record.ChangedBy
		if changedBy == "" {
			changedBy = "unknown"
		}
		lines = append(lines, fmt.Sprintf("%s (changed by %s)", record.NewValue, changedBy))
	}

	return strings.Join(lines, "\n")
}
