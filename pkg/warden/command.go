package warden

import (
	"fmt"
	"strings"
)

// CommandPrefix is the prefix introducing slash-style command invocations.
const CommandPrefix = "/"

// CommandCandidate is a parsed command-looking message before command-spec binding.
type CommandCandidate struct {
	// Slash reports whether the header token carried the command prefix.
	Slash bool
	// Name is the normalized header token without prefix and mention suffix.
	Name string
	// Mention is the optional mention suffix from `<name>@<mention>`.
	Mention string
	// Tail is the text after the header token with leading whitespace removed
	// and internal spacing preserved.
	Tail string
	// RawInput is the original untrimmed message text.
	RawInput string
}

// CommandInvocation carries one validated command event payload.
type CommandInvocation struct {
	// Name is the normalized canonical command name.
	Name string
	// Trigger is the literal header token that selected the command,
	// prefix included for slash-style triggers.
	Trigger string
	// Mention is the optional mention suffix from `<name>@<mention>`.
	Mention string
	// Tail is the command tail with internal spacing preserved.
	Tail string
	// SourceEventID identifies the inbound source event that produced this command.
	SourceEventID string
	// RawInput stores the original inbound message text.
	RawInput string
}

// Validate checks command invocation contract fields.
func (c *CommandInvocation) Validate() error {
	if c == nil {
		return fmt.Errorf("validate command invocation: nil invocation")
	}
	if normalizeCommandName(c.Name) == "" {
		return fmt.Errorf("validate command invocation: missing name")
	}
	if c.SourceEventID == "" {
		return fmt.Errorf("validate command invocation: missing source_event_id")
	}

	return nil
}

// CommandSpec declares one module command registration.
type CommandSpec struct {
	// Name is the canonical command name without prefix and mention suffix.
	Name string
	// Aliases lists literal alternative trigger tokens. Slash-style aliases
	// carry the prefix, bare-word aliases do not.
	Aliases []string
	// Description describes command behavior for diagnostics and help text.
	Description string
}

// Validate checks command specification coherence.
func (s CommandSpec) Validate() error {
	if normalizeCommandName(s.Name) == "" {
		return fmt.Errorf("validate command spec: missing name")
	}
	if strings.ContainsAny(s.Name, " \t\r\n") {
		return fmt.Errorf("validate command spec: name %q contains whitespace", s.Name)
	}

	seen := make(map[string]struct{}, len(s.Aliases))
	for index, alias := range s.Aliases {
		normalized := normalizeCommandName(alias)
		if normalized == "" || normalized == CommandPrefix {
			return fmt.Errorf("validate command spec %s alias[%d]: empty alias", s.Name, index)
		}
		if strings.ContainsAny(normalized, " \t\r\n") {
			return fmt.Errorf("validate command spec %s alias[%d]: alias %q contains whitespace", s.Name, index, alias)
		}
		if _, exists := seen[normalized]; exists {
			return fmt.Errorf("validate command spec %s: duplicate alias %q", s.Name, alias)
		}
		seen[normalized] = struct{}{}
	}

	return nil
}

// Triggers returns all literal trigger tokens for the command: the
// slash-prefixed canonical name followed by every declared alias.
func (s CommandSpec) Triggers() []string {
	triggers := make([]string, 0, 1+len(s.Aliases))
	triggers = append(triggers, CommandPrefix+normalizeCommandName(s.Name))
	for _, alias := range s.Aliases {
		triggers = append(triggers, normalizeCommandName(alias))
	}

	return triggers
}

// ParseCommandCandidate parses one input text into a command candidate.
//
// matched is false only for empty input. Bare-word candidates match too so
// that non-prefixed aliases can bind; binding decides whether a candidate
// actually names a registered command.
func ParseCommandCandidate(text string) (candidate CommandCandidate, matched bool) {
	candidate.RawInput = text

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return candidate, false
	}

	header := trimmed
	if split := strings.IndexFunc(trimmed, isCommandSpace); split >= 0 {
		header = trimmed[:split]
		candidate.Tail = strings.TrimLeftFunc(trimmed[split:], isCommandSpace)
	}

	if strings.HasPrefix(header, CommandPrefix) {
		candidate.Slash = true
		name, mention := splitCommandHeader(header[len(CommandPrefix):])
		candidate.Name = normalizeCommandName(name)
		candidate.Mention = strings.TrimSpace(mention)
		if candidate.Name == "" {
			return candidate, false
		}

		return candidate, true
	}

	candidate.Name = normalizeCommandName(header)

	return candidate, true
}

// BindCommand matches one parsed candidate against one command spec.
//
// bound is false when the candidate header does not name this command.
// sourceEvent must identify the inbound event that produced the candidate.
func BindCommand(
	candidate CommandCandidate,
	spec CommandSpec,
	sourceEvent *Event,
) (invocation CommandInvocation, bound bool, err error) {
	if sourceEvent == nil {
		return CommandInvocation{}, false, fmt.Errorf("bind command: nil source event")
	}
	if err := spec.Validate(); err != nil {
		return CommandInvocation{}, false, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}

	trigger, bound := matchTrigger(candidate, spec)
	if !bound {
		return CommandInvocation{}, false, nil
	}

	invocation = CommandInvocation{
		Name:          normalizeCommandName(spec.Name),
		Trigger:       trigger,
		Mention:       candidate.Mention,
		Tail:          candidate.Tail,
		SourceEventID: sourceEvent.ID,
		RawInput:      candidate.RawInput,
	}
	if err := invocation.Validate(); err != nil {
		return CommandInvocation{}, false, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}

	return invocation, true, nil
}

func matchTrigger(candidate CommandCandidate, spec CommandSpec) (trigger string, bound bool) {
	if candidate.Slash {
		if candidate.Name == normalizeCommandName(spec.Name) {
			return CommandPrefix + candidate.Name, true
		}
		for _, alias := range spec.Aliases {
			normalized := normalizeCommandName(alias)
			if strings.HasPrefix(normalized, CommandPrefix) &&
				candidate.Name == normalized[len(CommandPrefix):] {
				return normalized, true
			}
		}

		return "", false
	}

	for _, alias := range spec.Aliases {
		normalized := normalizeCommandName(alias)
		if !strings.HasPrefix(normalized, CommandPrefix) && candidate.Name == normalized {
			return normalized, true
		}
	}

	return "", false
}

func splitCommandHeader(token string) (name string, mention string) {
	if token == "" {
		return "", ""
	}
	separator := strings.Index(token, "@")
	if separator < 0 {
		return token, ""
	}

	return token[:separator], token[separator+1:]
}

func isCommandSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n':
		return true
	default:
		return false
	}
}

func normalizeCommandName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
