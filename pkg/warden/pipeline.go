package warden

import "context"

// MutationPipeline runs validated moderation intents through staging,
// platform mutation, notice suppression, and ledger recording.
//
// Implementations serialize mutations per chat: a second intent for a chat
// with one already in flight is rejected with ErrChatBusy, never queued.
type MutationPipeline interface {
	// Rename changes the chat title for one rename intent.
	Rename(ctx context.Context, intent Intent) (MutationOutcome, error)
	// SetPhoto changes the chat photo for one repic intent.
	SetPhoto(ctx context.Context, intent Intent) (MutationOutcome, error)
	// SuppressNotice scans recent chat history and deletes service notices
	// of the given kind that were not produced by the logged-in account.
	SuppressNotice(ctx context.Context, conversation Conversation, kind NoticeKind) error
}
