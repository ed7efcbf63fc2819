package rename

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chatwarden/pkg/warden"
)

const renameCommandName = "rename"

// Module renames the chat when it receives a /rename command event.
//
// The new title comes from the replied-to message text or from the command
// tail, reply winning. The triggering command message is deleted before the
// mutation starts, so there is no user-facing cancel path.
type Module struct {
	pipeline warden.MutationPipeline
	port     warden.ChatPort
	logger   *slog.Logger
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

// New creates a rename module with default configuration.
func New(options ...Option) *Module {
	module := &Module{logger: slog.Default()}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "rename"
}

// Spec declares interest in received rename command events.
func (m *Module) Spec() warden.ModuleSpec {
	return warden.ModuleSpec{
		Handlers: []warden.ModuleHandler{
			{
				Capability: warden.Capability{
					Name:        "rename-command-handler",
					Description: "changes the chat title for /rename commands",
					Interest: warden.InterestSet{
						Kinds:        []warden.EventKind{warden.EventKindCommandReceived},
						CommandNames: []string{renameCommandName},
					},
					RequiredServices: []string{
						warden.ServiceMutationPipeline,
						warden.ServiceChatPort,
					},
				},
				Subscription: warden.NewDefaultSubscriptionSpec("rename-commands"),
				Handler:      m.handleCommand,
			},
		},
		Commands: []warden.CommandSpec{
			{
				Name:        renameCommandName,
				Description: "rename the chat to the command tail or the replied-to text",
			},
		},
	}
}

// OnRegister resolves mutation dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime warden.ModuleRuntime) error {
	pipeline, err := warden.ResolveAs[warden.MutationPipeline](
		runtime.Services(),
		warden.ServiceMutationPipeline,
	)
	if err != nil {
		return fmt.Errorf("rename resolve mutation pipeline: %w", err)
	}
	port, err := warden.ResolveAs[warden.ChatPort](
		runtime.Services(),
		warden.ServiceChatPort,
	)
	if err != nil {
		return fmt.Errorf("rename resolve chat port: %w", err)
	}

	m.pipeline = pipeline
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
	if event.Command.Name != renameCommandName {
		return nil
	}
	if !event.Conversation.IsGroup() {
		return nil
	}
	if m.pipeline == nil || m.port == nil {
		return fmt.Errorf("rename handle command: dependencies not configured")
	}

	intent, err := warden.ClassifyRename(event)
	if errors.Is(err, warden.ErrNoTitle) {
		m.deleteCommandMessage(ctx, event)

		return nil
	}
	if err != nil {
		return fmt.Errorf("rename classify intent: %w", err)
	}

	m.deleteCommandMessage(ctx, event)

	if _, err := m.pipeline.Rename(ctx, intent); err != nil {
		if errors.Is(err, warden.ErrChatBusy) {
			m.logger.InfoContext(ctx, "rename rejected, mutation already in flight",
				slog.String("conversation_id", event.Conversation.ID),
			)

			return nil
		}

		return fmt.Errorf("rename chat %s: %w", event.Conversation.ID, err)
	}

	return nil
}

func (m *Module) deleteCommandMessage(ctx context.Context, event *warden.Event) {
	err := m.port.DeleteMessage(ctx, event.Conversation, event.Message.ID)
	if err != nil {
		m.logger.WarnContext(ctx, "rename command message delete failed",
			slog.String("conversation_id", event.Conversation.ID),
			slog.String("message_id", event.Message.ID),
			slog.Any("error", err),
		)
	}
}
