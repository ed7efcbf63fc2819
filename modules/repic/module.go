package repic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"chatwarden/pkg/warden"
)

const (
	repicCommandName = "repic"
	// repicRareAlias responds only occasionally, the draw happens once per
	// event before any side effect.
	repicRareAlias        = "репик"
	repicAdmitProbability = 0.1

	usageHint = "Attach a photo or reply to one: /repic"
)

// Module changes the chat photo when it receives a /repic command event.
//
// The photo comes from the replied-to message or from the command message
// itself, reply winning. A command with no usable image anywhere gets a usage
// hint reply and is otherwise left alone.
type Module struct {
	pipeline warden.MutationPipeline
	port     warden.ChatPort
	draw     func() float64
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

// WithDraw replaces the admission random source.
func WithDraw(draw func() float64) Option {
	return func(m *Module) {
		if draw != nil {
			m.draw = draw
		}
	}
}

// New creates a repic module with default configuration.
func New(options ...Option) *Module {
	module := &Module{
		draw:   rand.Float64,
		logger: slog.Default(),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "repic"
}

// Spec declares interest in received repic command events.
func (m *Module) Spec() warden.ModuleSpec {
	return warden.ModuleSpec{
		Handlers: []warden.ModuleHandler{
			{
				Capability: warden.Capability{
					Name:        "repic-command-handler",
					Description: "changes the chat photo for /repic commands",
					Interest: warden.InterestSet{
						Kinds:        []warden.EventKind{warden.EventKindCommandReceived},
						CommandNames: []string{repicCommandName},
					},
					RequiredServices: []string{
						warden.ServiceMutationPipeline,
						warden.ServiceChatPort,
					},
				},
				Subscription: warden.NewDefaultSubscriptionSpec("repic-commands"),
				Handler:      m.handleCommand,
			},
		},
		Commands: []warden.CommandSpec{
			{
				Name:        repicCommandName,
				Aliases:     []string{repicRareAlias},
				Description: "set the chat photo from the attached or replied-to image",
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
		return fmt.Errorf("repic resolve mutation pipeline: %w", err)
	}
	port, err := warden.ResolveAs[warden.ChatPort](
		runtime.Services(),
		warden.ServiceChatPort,
	)
	if err != nil {
		return fmt.Errorf("repic resolve chat port: %w", err)
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
	if event.Command.Name != repicCommandName {
		return nil
	}
	if !event.Conversation.IsGroup() {
		return nil
	}
	if m.pipeline == nil || m.port == nil {
		return fmt.Errorf("repic handle command: dependencies not configured")
	}

	if event.Command.Trigger == repicRareAlias && m.draw() > repicAdmitProbability {
		m.deleteCommandMessage(ctx, event)

		return nil
	}

	intent, err := warden.ClassifyRepic(event)
	if errors.Is(err, warden.ErrNoMedia) {
		_, sendErr := m.port.SendMessage(ctx, warden.SendMessageRequest{
			Conversation: event.Conversation,
			Text:         usageHint,
			ReplyToID:    event.Message.ID,
		})
		if sendErr != nil {
			return fmt.Errorf("repic send usage hint: %w", sendErr)
		}

		return nil
	}
	if err != nil {
		return fmt.Errorf("repic classify intent: %w", err)
	}

	m.deleteCommandMessage(ctx, event)

	if _, err := m.pipeline.SetPhoto(ctx, intent); err != nil {
		if errors.Is(err, warden.ErrChatBusy) {
			m.logger.InfoContext(ctx, "repic rejected, mutation already in flight",
				slog.String("conversation_id", event.Conversation.ID),
			)

			return nil
		}

		return fmt.Errorf("repic chat %s: %w", event.Conversation.ID, err)
	}

	return nil
}

func (m *Module) deleteCommandMessage(ctx context.Context, event *warden.Event) {
	err := m.port.DeleteMessage(ctx, event.Conversation, event.Message.ID)
	if err != nil {
		m.logger.WarnContext(ctx, "repic command message delete failed",
			slog.String("conversation_id", event.Conversation.ID),
			slog.String("message_id", event.Message.ID),
			slog.Any("error", err),
		)
	}
}
