package warden

import (
	"context"
	"fmt"
)

// SendMessageRequest is one outbound message dispatch request.
type SendMessageRequest struct {
	// Conversation is the destination chat.
	Conversation Conversation
	// Text is the message text.
	Text string
	// ReplyToID optionally makes the message a reply to another message.
	ReplyToID string
}

// Validate checks send request coherence.
func (r *SendMessageRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil send request", ErrInvalidRequest)
	}
	if r.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidRequest)
	}
	if r.Text == "" {
		return fmt.Errorf("%w: missing text", ErrInvalidRequest)
	}

	return nil
}

// SentMessage identifies one successfully dispatched outbound message.
type SentMessage struct {
	// ID is the platform message identifier of the sent message.
	ID string
	// Conversation is the chat the message landed in.
	Conversation Conversation
}

// HistoryEntry is one message summary returned by RecentMessages.
type HistoryEntry struct {
	// MessageID is the platform message identifier.
	MessageID string
	// FromSelf reports whether the logged-in account posted the message.
	FromSelf bool
	// Notice is the decoded service notice when the message is one,
	// nil for ordinary messages.
	Notice *ServiceNotice
}

// ChatPort is the platform-facing surface the moderation logic drives.
//
// Failures from mutation and dispatch operations are reported as
// MutationError values so callers can classify them without platform
// knowledge.
type ChatPort interface {
	// SendMessage dispatches one text message.
	SendMessage(ctx context.Context, request SendMessageRequest) (*SentMessage, error)
	// DeleteMessage removes one message for all participants.
	DeleteMessage(ctx context.Context, conversation Conversation, messageID string) error
	// DownloadMedia fetches the attachment behind one opaque media ref into
	// a local file at path.
	DownloadMedia(ctx context.Context, ref string, path string) error
	// SetChatTitle renames one chat.
	SetChatTitle(ctx context.Context, conversation Conversation, title string) error
	// SetChatPhoto replaces one chat photo with the image file at photoPath.
	SetChatPhoto(ctx context.Context, conversation Conversation, photoPath string) error
	// RecentMessages returns up to limit most recent messages in one chat,
	// newest first.
	RecentMessages(ctx context.Context, conversation Conversation, limit int) ([]HistoryEntry, error)
	// Self returns the logged-in account identity.
	Self(ctx context.Context) (Actor, error)
}
