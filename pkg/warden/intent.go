package warden

import (
	"fmt"
	"strings"
)

// MaxTitleRunes is the platform ceiling on chat title length. Longer titles
// are truncated, never rejected.
const MaxTitleRunes = 255

// IntentKind identifies one classified moderation intent.
type IntentKind string

const (
	// IntentKindRename asks for a chat title change.
	IntentKindRename IntentKind = "rename"
	// IntentKindRepic asks for a chat photo change.
	IntentKindRepic IntentKind = "repic"
)

// Intent is one classified moderation request extracted from a command event.
type Intent struct {
	// Kind identifies what the intent asks for.
	Kind IntentKind
	// Conversation is the chat the intent targets.
	Conversation Conversation
	// Actor is the user that issued the intent.
	Actor Actor
	// SourceMessageID is the command message that produced this intent.
	SourceMessageID string
	// Title is the resolved new title for rename intents.
	Title string
	// Media is the resolved source attachment for repic intents.
	Media *MediaAttachment
}

// Validate checks intent contract fields.
func (i *Intent) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: nil intent", ErrInvalidRequest)
	}
	if i.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidRequest)
	}

	switch i.Kind {
	case IntentKindRename:
		if i.Title == "" {
			return fmt.Errorf("%w: rename intent without title", ErrInvalidRequest)
		}
	case IntentKindRepic:
		if i.Media == nil {
			return fmt.Errorf("%w: repic intent without media", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unsupported intent kind %q", ErrInvalidRequest, i.Kind)
	}

	return nil
}

// ClassifyRename resolves a rename intent from one command event.
//
// The replied-to message text wins over the command tail when both are
// present. Missing text in both places yields ErrNoTitle. The resolved title
// is whitespace-trimmed and truncated to MaxTitleRunes.
func ClassifyRename(event *Event) (Intent, error) {
	if err := requireCommandEvent(event); err != nil {
		return Intent{}, err
	}

	title := strings.TrimSpace(event.Command.Tail)
	if reply := event.Message.Reply; reply != nil {
		if replyText := strings.TrimSpace(reply.Text); replyText != "" {
			title = replyText
		}
	}
	if title == "" {
		return Intent{}, ErrNoTitle
	}
	title = TruncateTitle(title)

	return Intent{
		Kind:            IntentKindRename,
		Conversation:    event.Conversation,
		Actor:           event.Actor,
		SourceMessageID: event.Message.ID,
		Title:           title,
	}, nil
}

// ClassifyRepic resolves a photo-change intent from one command event.
//
// The replied-to message wins over the command message when both carry a
// usable image. Within one message a native photo wins over an image-typed
// document. Missing usable media in both places yields ErrNoMedia.
func ClassifyRepic(event *Event) (Intent, error) {
	if err := requireCommandEvent(event); err != nil {
		return Intent{}, err
	}

	var media *MediaAttachment
	if reply := event.Message.Reply; reply != nil {
		media = selectImage(reply.Media)
	}
	if media == nil {
		media = selectImage(event.Message.Media)
	}
	if media == nil {
		return Intent{}, ErrNoMedia
	}

	return Intent{
		Kind:            IntentKindRepic,
		Conversation:    event.Conversation,
		Actor:           event.Actor,
		SourceMessageID: event.Message.ID,
		Media:           media,
	}, nil
}

// TruncateTitle clamps a title to MaxTitleRunes runes.
func TruncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= MaxTitleRunes {
		return title
	}

	return string(runes[:MaxTitleRunes])
}

func selectImage(attachments []MediaAttachment) *MediaAttachment {
	var document *MediaAttachment
	for index := range attachments {
		attachment := &attachments[index]
		switch attachment.Type {
		case MediaTypePhoto:
			return attachment
		case MediaTypeDocument:
			if document == nil && strings.HasPrefix(attachment.MIMEType, "image/") {
				document = attachment
			}
		}
	}

	return document
}

func requireCommandEvent(event *Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if event.Kind != EventKindCommandReceived {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidEvent, EventKindCommandReceived, event.Kind)
	}
	if event.Command == nil || event.Message == nil {
		return fmt.Errorf("%w: command event missing payload", ErrInvalidEvent)
	}

	return nil
}
