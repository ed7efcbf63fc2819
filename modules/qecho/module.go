package qecho

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"chatwarden/pkg/warden"
)

const (
	triggerText      = "/й"
	echoText         = "/q"
	admitProbability = 0.1
)

// Module is an easter egg: a reply that says "/й" occasionally makes the
// account answer the same target with "/q" and immediately delete its own
// answer. The trigger is never registered as a command so it stays out of
// help output.
type Module struct {
	port   warden.ChatPort
	draw   func() float64
	logger *slog.Logger
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

// New creates a qecho module with default configuration.
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
	return "qecho"
}

// Spec declares interest in created group messages.
func (m *Module) Spec() warden.ModuleSpec {
	return warden.ModuleSpec{
		Handlers: []warden.ModuleHandler{
			{
				Capability: warden.Capability{
					Name:        "qecho-reply-watcher",
					Description: "occasionally answers /й replies with a vanishing /q",
					Interest: warden.InterestSet{
						Kinds: []warden.EventKind{warden.EventKindMessageCreated},
					},
					RequiredServices: []string{warden.ServiceChatPort},
				},
				Subscription: warden.NewDefaultSubscriptionSpec("qecho-messages"),
				Handler:      m.handleMessage,
			},
		},
	}
}

// OnRegister resolves outbound dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime warden.ModuleRuntime) error {
	port, err := warden.ResolveAs[warden.ChatPort](
		runtime.Services(),
		warden.ServiceChatPort,
	)
	if err != nil {
		return fmt.Errorf("qecho resolve chat port: %w", err)
	}

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

func (m *Module) handleMessage(ctx context.Context, event *warden.Event) error {
	if event == nil || event.Message == nil {
		return nil
	}
	if event.Kind != warden.EventKindMessageCreated {
		return nil
	}
	if !event.Conversation.IsGroup() {
		return nil
	}
	if strings.ToLower(strings.TrimSpace(event.Message.Text)) != triggerText {
		return nil
	}
	if event.Message.ReplyToID == "" {
		return nil
	}
	if m.port == nil {
		return fmt.Errorf("qecho handle message: chat port not configured")
	}

	if m.draw() > admitProbability {
		return nil
	}

	sent, err := m.port.SendMessage(ctx, warden.SendMessageRequest{
		Conversation: event.Conversation,
		Text:         echoText,
		ReplyToID:    event.Message.ReplyToID,
	})
	if err != nil {
		return fmt.Errorf("qecho send echo: %w", err)
	}

	if err := m.port.DeleteMessage(ctx, event.Conversation, sent.ID); err != nil {
		m.logger.WarnContext(ctx, "qecho echo message delete failed",
			slog.String("conversation_id", event.Conversation.ID),
			slog.String("message_id", sent.ID),
			slog.Any("error", err),
		)
	}

	return nil
}
