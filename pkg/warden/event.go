package warden

import (
	"fmt"
	"time"
)

// EventKind identifies a neutral domain event type.
type EventKind string

const (
	// EventKindMessageCreated is emitted when a new message is posted.
	EventKindMessageCreated EventKind = "message.created"
	// EventKindNoticePosted is emitted when the platform inserts a system
	// notice announcing a chat metadata change.
	EventKindNoticePosted EventKind = "notice.posted"
	// EventKindCommandReceived is derived by the kernel from message events
	// whose text parses as a registered command.
	EventKindCommandReceived EventKind = "command.received"
)

// Platform identifies an external chat platform source.
type Platform string

const (
	// PlatformTelegram is Telegram.
	PlatformTelegram Platform = "telegram"
)

// ConversationType identifies conversation scope.
type ConversationType string

const (
	// ConversationTypePrivate is a direct/private conversation.
	ConversationTypePrivate ConversationType = "private"
	// ConversationTypeGroup is a group conversation.
	ConversationTypeGroup ConversationType = "group"
	// ConversationTypeChannel is a channel-style conversation.
	ConversationTypeChannel ConversationType = "channel"
)

// Event is the neutral envelope that the driver publishes and modules consume.
//
// Message, Notice, and Command are optional payload branches selected by Kind.
// Command events additionally carry the source Message so handlers can reach
// attachments and reply context without a second lookup.
type Event struct {
	// ID is a stable identifier for this event instance.
	ID string
	// Kind selects which payload branch is expected.
	Kind EventKind
	// OccurredAt is the source-platform timestamp for the event.
	OccurredAt time.Time
	// Platform identifies the upstream platform that produced the event.
	Platform Platform
	// Conversation identifies where the event happened.
	Conversation Conversation
	// Actor identifies who initiated the event when available.
	Actor Actor
	// Message carries message content for message and command events.
	Message *Message
	// Notice carries the platform system notice for notice events.
	Notice *ServiceNotice
	// Command carries the parsed invocation for command events.
	Command *CommandInvocation
}

// Conversation identifies the neutral destination where an event occurred.
type Conversation struct {
	// ID is the stable conversation identifier on the source platform.
	ID string
	// Type describes the conversation scope.
	Type ConversationType
	// Title is a best-effort display label for the conversation.
	Title string
}

// IsGroup reports whether the conversation is a group or megagroup.
func (c Conversation) IsGroup() bool {
	return c.Type == ConversationTypeGroup
}

// Actor identifies the user/account that initiated an event.
type Actor struct {
	// ID is the stable actor identifier on the source platform.
	ID string
	// Username is the platform handle when available.
	Username string
	// DisplayName is the human-readable actor name.
	DisplayName string
	// IsBot reports whether the actor is an automated account.
	IsBot bool
}

// Identity returns the best available audit identity for the actor.
// It prefers the username, falls back to the display name, and is empty for
// fully anonymous actors.
func (a Actor) Identity() string {
	if a.Username != "" {
		return a.Username
	}

	return a.DisplayName
}

// Message holds neutral message content including media and reply context.
type Message struct {
	// ID is the message identifier on the source platform.
	ID string
	// ReplyToID is the parent message identifier when this is a reply.
	ReplyToID string
	// Text is the normalized message text or media caption.
	Text string
	// Media contains normalized attachments associated with the message.
	Media []MediaAttachment
	// Reply is the resolved single-hop reply target when ReplyToID is set.
	// Deeper reply chains are never resolved.
	Reply *RepliedMessage
}

// RepliedMessage is the resolved content of a reply target message.
type RepliedMessage struct {
	// ID is the reply target message identifier.
	ID string
	// Text is the reply target text or caption.
	Text string
	// Media contains the reply target attachments.
	Media []MediaAttachment
}

// MediaType identifies attachment media categories.
type MediaType string

const (
	// MediaTypePhoto identifies a native image attachment.
	MediaTypePhoto MediaType = "photo"
	// MediaTypeDocument identifies a generic file attachment.
	MediaTypeDocument MediaType = "document"
)

// MediaAttachment represents rich media payload metadata.
type MediaAttachment struct {
	// ID is the stable attachment identifier when provided by the platform.
	ID string
	// Type is the normalized media category.
	Type MediaType
	// MIMEType is the attachment content type when known.
	MIMEType string
	// FileName is the original attachment filename when available.
	FileName string
	// SizeBytes is the attachment size in bytes when available.
	SizeBytes int64
	// Ref is an opaque driver token that lets the owning driver download
	// this attachment later. Modules must not interpret it.
	Ref string
}

// NoticeKind identifies which chat metadata slot a service notice announces.
type NoticeKind string

const (
	// NoticeKindTitle announces a chat title change.
	NoticeKindTitle NoticeKind = "title"
	// NoticeKindPhoto announces a chat photo change.
	NoticeKindPhoto NoticeKind = "photo"
)

// ServiceNotice is a platform-generated system message describing a prior
// chat metadata mutation. It is observed and deleted, never created here.
type ServiceNotice struct {
	// Kind identifies the announced metadata slot.
	Kind NoticeKind
	// NewValue is the announced value: the new title, or empty for photos.
	NewValue string
	// MessageID is the notice's own message identifier, used for deletion.
	MessageID string
}

// Validate checks event envelope and payload coherence.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	if e.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidEvent)
	}

	switch e.Kind {
	case EventKindMessageCreated:
		if e.Message == nil {
			return fmt.Errorf("%w: message.created requires message payload", ErrInvalidEvent)
		}
	case EventKindNoticePosted:
		if e.Notice == nil {
			return fmt.Errorf("%w: notice.posted requires notice payload", ErrInvalidEvent)
		}
		if e.Notice.MessageID == "" {
			return fmt.Errorf("%w: notice.posted requires notice message id", ErrInvalidEvent)
		}
	case EventKindCommandReceived:
		if e.Command == nil {
			return fmt.Errorf("%w: command.received requires command payload", ErrInvalidEvent)
		}
		if e.Message == nil {
			return fmt.Errorf("%w: command.received requires source message payload", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, e.Kind)
	}

	return nil
}
