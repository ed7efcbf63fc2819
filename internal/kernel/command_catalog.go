package kernel

import (
	"context"
	"fmt"
	"sort"

	"chatwarden/pkg/warden"
)

// kernelCommandCatalog exposes kernel command registrations through ServiceRegistry.
type kernelCommandCatalog struct {
	kernel *Kernel
}

// ListCommands returns all registered command entries sorted by command then module.
// Alias triggers do not produce extra entries, one entry per declared command.
func (c *kernelCommandCatalog) ListCommands(ctx context.Context) ([]warden.RegisteredCommand, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	if c == nil || c.kernel == nil {
		return nil, fmt.Errorf("list commands: nil catalog")
	}

	c.kernel.mu.RLock()
	seen := make(map[string]struct{}, len(c.kernel.commands))
	commands := make([]warden.RegisteredCommand, 0, len(c.kernel.commands))
	for _, registration := range c.kernel.commands {
		key := registration.moduleName + ":" + registration.spec.Name
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		commands = append(commands, warden.RegisteredCommand{
			ModuleName: registration.moduleName,
			Command:    cloneCommandSpec(registration.spec),
		})
	}
	c.kernel.mu.RUnlock()

	sort.Slice(commands, func(i, j int) bool {
		if commands[i].Command.Name == commands[j].Command.Name {
			return commands[i].ModuleName < commands[j].ModuleName
		}
		return commands[i].Command.Name < commands[j].Command.Name
	})

	return commands, nil
}

var _ warden.CommandCatalog = (*kernelCommandCatalog)(nil)
