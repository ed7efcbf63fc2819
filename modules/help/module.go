package help

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"chatwarden/pkg/warden"
)

const helpCommandName = "help"

// Module replies with command reference text when it receives a /help command.
type Module struct {
	port           warden.ChatPort
	commandCatalog warden.CommandCatalog
}

// New creates a help module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "help"
}

// Spec declares interest in received help command events.
func (m *Module) Spec() warden.ModuleSpec {
	return warden.ModuleSpec{
		Handlers: []warden.ModuleHandler{
			{
				Capability: warden.Capability{
					Name:        "help-command-handler",
					Description: "renders registered command help for /help",
					Interest: warden.InterestSet{
						Kinds:        []warden.EventKind{warden.EventKindCommandReceived},
						CommandNames: []string{helpCommandName},
					},
					RequiredServices: []string{
						warden.ServiceChatPort,
						warden.ServiceCommandCatalog,
					},
				},
				Subscription: warden.NewDefaultSubscriptionSpec("help-commands"),
				Handler:      m.handleCommand,
			},
		},
		Commands: []warden.CommandSpec{
			{
				Name:        helpCommandName,
				Description: "show all available commands",
			},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime warden.ModuleRuntime) error {
	port, err := warden.ResolveAs[warden.ChatPort](
		runtime.Services(),
		warden.ServiceChatPort,
	)
	if err != nil {
		return fmt.Errorf("help resolve chat port: %w", err)
	}
	commandCatalog, err := warden.ResolveAs[warden.CommandCatalog](
		runtime.Services(),
		warden.ServiceCommandCatalog,
	)
	if err != nil {
		return fmt.Errorf("help resolve command catalog: %w", err)
	}

	m.port = port
	m.commandCatalog = commandCatalog

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
	if event.Command.Name != helpCommandName {
		return nil
	}
	if m.port == nil {
		return fmt.Errorf("help handle command: chat port not configured")
	}
	if m.commandCatalog == nil {
		return fmt.Errorf("help handle command: command catalog not configured")
	}

	commands, err := m.commandCatalog.ListCommands(ctx)
	if err != nil {
		return fmt.Errorf("help list commands: %w", err)
	}
	body := renderHelp(commands)

	_, err = m.port.SendMessage(ctx, warden.SendMessageRequest{
		Conversation: event.Conversation,
		Text:         body,
		ReplyToID:    event.Message.ID,
	})
	if err != nil {
		return fmt.Errorf("help send help message: %w", err)
	}

	return nil
}

func renderHelp(commands []warden.RegisteredCommand) string {
	if len(commands) == 0 {
		return "Available commands:\n(none)"
	}

	sorted := append([]warden.RegisteredCommand(nil), commands...)
	sort.Slice(sorted, func(i, j int) bool {
		left := commandLabel(sorted[i].Command)
		right := commandLabel(sorted[j].Command)
		if left == right {
			return sorted[i].ModuleName < sorted[j].ModuleName
		}
		return left < right
	})

	lines := make([]string, 0, len(sorted)*4+1)
	lines = append(lines, "Available commands:\n")
	for index, command := range sorted {
		if index > 0 {
			lines = append(lines, "")
		}
		label := commandLabel(command.Command)
		description := strings.TrimSpace(command.Command.Description)
		moduleName := strings.TrimSpace(command.ModuleName)
		if moduleName == "" {
			moduleName = "unknown"
		}

		lines = append(lines, label)
		if len(command.Command.Aliases) != 0 {
			lines = append(lines, fmt.Sprintf("also: %s", strings.Join(command.Command.Aliases, ", ")))
		}
		if description != "" {
			lines = append(lines, description)
		}
		lines = append(lines, fmt.Sprintf("(%s)", moduleName))
	}

	return strings.Join(lines, "\n")
}

func commandLabel(command warden.CommandSpec) string {
	return warden.CommandPrefix + strings.ToLower(strings.TrimSpace(command.Name))
}
