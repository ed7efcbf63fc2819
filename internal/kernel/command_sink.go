package kernel

import (
	"context"
	"fmt"

	"chatwarden/pkg/warden"
)

type commandRegistration struct {
	moduleName string
	spec       warden.CommandSpec
}

// registerModuleCommands validates and registers module-owned command specs.
// Every trigger token of a command, canonical slash form and aliases alike,
// gets its own registry entry so bare-word aliases resolve in one lookup.
func (k *Kernel) registerModuleCommands(
	_ context.Context,
	moduleName string,
	commands []warden.CommandSpec,
) error {
	if len(commands) == 0 {
		return nil
	}

	normalized := make([]warden.CommandSpec, 0, len(commands))
	seenInModule := make(map[string]struct{})
	for index, command := range commands {
		if err := command.Validate(); err != nil {
			return fmt.Errorf("register command[%d] for module %s: %w", index, moduleName, err)
		}

		command = cloneCommandSpec(command)
		for _, trigger := range command.Triggers() {
			if _, exists := seenInModule[trigger]; exists {
				return fmt.Errorf(
					"register command %s for module %s: duplicate trigger %s",
					command.Name,
					moduleName,
					trigger,
				)
			}
			seenInModule[trigger] = struct{}{}
		}
		normalized = append(normalized, command)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, command := range normalized {
		for _, trigger := range command.Triggers() {
			existing, exists := k.commands[trigger]
			if exists {
				return fmt.Errorf(
					"register command %s for module %s: trigger %s already registered by module %s",
					command.Name,
					moduleName,
					trigger,
					existing.moduleName,
				)
			}
		}
	}
	for _, command := range normalized {
		registration := commandRegistration{
			moduleName: moduleName,
			spec:       command,
		}
		for _, trigger := range command.Triggers() {
			k.commands[trigger] = registration
		}
	}

	return nil
}

// unregisterModuleCommands removes every command trigger owned by one module.
func (k *Kernel) unregisterModuleCommands(moduleName string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for trigger, registration := range k.commands {
		if registration.moduleName == moduleName {
			delete(k.commands, trigger)
		}
	}
}

// lookupCommand resolves one command spec by literal trigger token.
func (k *Kernel) lookupCommand(trigger string) (warden.CommandSpec, bool) {
	k.mu.RLock()
	registration, exists := k.commands[trigger]
	k.mu.RUnlock()
	if !exists {
		return warden.CommandSpec{}, false
	}

	return cloneCommandSpec(registration.spec), true
}

// newDriverEventSink creates the source-event sink wrapped with command derivation.
func (k *Kernel) newDriverEventSink() warden.EventSink {
	return &commandDerivingSink{
		base:          k.bus,
		lookupCommand: k.lookupCommand,
	}
}

// commandDerivingSink publishes source events and derives command events.
type commandDerivingSink struct {
	base          warden.EventSink
	lookupCommand func(trigger string) (warden.CommandSpec, bool)
}

// Publish forwards one source event and conditionally derives one command event.
func (s *commandDerivingSink) Publish(ctx context.Context, event *warden.Event) error {
	if event == nil {
		return fmt.Errorf("publish command deriving sink: nil event")
	}
	if s.base == nil {
		return fmt.Errorf("publish command deriving sink: nil base sink")
	}

	if err := s.base.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish source event %s: %w", event.Kind, err)
	}

	if event.Kind != warden.EventKindMessageCreated || event.Message == nil {
		return nil
	}

	candidate, matched := warden.ParseCommandCandidate(event.Message.Text)
	if !matched {
		return nil
	}

	trigger := candidate.Name
	if candidate.Slash {
		trigger = warden.CommandPrefix + candidate.Name
	}
	spec, registered := s.lookupCommand(trigger)
	if !registered {
		return nil
	}

	invocation, bound, bindErr := warden.BindCommand(candidate, spec, event)
	if bindErr != nil {
		return fmt.Errorf("bind command %s: %w", spec.Name, bindErr)
	}
	if !bound {
		return nil
	}

	commandEvent := derivedCommandEvent(event, invocation)
	if err := s.base.Publish(ctx, commandEvent); err != nil {
		return fmt.Errorf("publish derived command %s: %w", invocation.Name, err)
	}

	return nil
}

// derivedCommandEvent builds the command event carrying both the invocation
// and a copy of the source message so handlers can reach media and reply context.
func derivedCommandEvent(
	sourceEvent *warden.Event,
	invocation warden.CommandInvocation,
) *warden.Event {
	message := cloneMessage(*sourceEvent.Message)
	invocationCopy := invocation

	return &warden.Event{
		ID:         sourceEvent.ID + "#command",
		Kind:       warden.EventKindCommandReceived,
		OccurredAt: sourceEvent.OccurredAt,
		Platform:   sourceEvent.Platform,
		Conversation: warden.Conversation{
			ID:    sourceEvent.Conversation.ID,
			Type:  sourceEvent.Conversation.Type,
			Title: sourceEvent.Conversation.Title,
		},
		Actor: warden.Actor{
			ID:          sourceEvent.Actor.ID,
			Username:    sourceEvent.Actor.Username,
			DisplayName: sourceEvent.Actor.DisplayName,
			IsBot:       sourceEvent.Actor.IsBot,
		},
		Message: &message,
		Command: &invocationCopy,
	}
}

func cloneCommandSpec(spec warden.CommandSpec) warden.CommandSpec {
	cloned := spec
	if len(spec.Aliases) > 0 {
		cloned.Aliases = append([]string(nil), spec.Aliases...)
	}

	return cloned
}

func cloneMessage(message warden.Message) warden.Message {
	cloned := message
	if len(message.Media) > 0 {
		cloned.Media = append([]warden.MediaAttachment(nil), message.Media...)
	}
	if message.Reply != nil {
		reply := *message.Reply
		if len(message.Reply.Media) > 0 {
			reply.Media = append([]warden.MediaAttachment(nil), message.Reply.Media...)
		}
		cloned.Reply = &reply
	}

	return cloned
}
