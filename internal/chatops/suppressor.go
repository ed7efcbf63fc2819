package chatops

import (
	"context"
	"fmt"
	"log/slog"

	"chatwarden/pkg/warden"
)

const (
	// OwnNoticeLookback is how many recent messages are scanned for the
	// notice announcing a mutation this process just performed. The notice
	// lands directly after the mutation, so one message is enough.
	OwnNoticeLookback = 1
	// ExternalNoticeLookback is how many recent messages are scanned for
	// notices announcing mutations made by other participants, which may
	// arrive with ordinary messages interleaved.
	ExternalNoticeLookback = 10
)

// NoticeSuppressor deletes platform service notices that announce chat
// metadata changes, keeping the chat history clean of rename/photo chatter.
// Individual deletions are best effort.
type NoticeSuppressor struct {
	port   warden.ChatPort
	logger *slog.Logger
}

// NewNoticeSuppressor builds a suppressor over port.
func NewNoticeSuppressor(port warden.ChatPort, logger *slog.Logger) *NoticeSuppressor {
	if logger == nil {
		logger = slog.Default()
	}

	return &NoticeSuppressor{port: port, logger: logger}
}

// SuppressOwn deletes the notice announcing a mutation performed by the
// logged-in account.
func (s *NoticeSuppressor) SuppressOwn(
	ctx context.Context,
	conversation warden.Conversation,
	kind warden.NoticeKind,
) error {
	return s.suppress(ctx, conversation, kind, OwnNoticeLookback, true)
}

// SuppressExternal deletes notices announcing mutations performed by other
// chat participants.
func (s *NoticeSuppressor) SuppressExternal(
	ctx context.Context,
	conversation warden.Conversation,
	kind warden.NoticeKind,
) error {
	return s.suppress(ctx, conversation, kind, ExternalNoticeLookback, false)
}

func (s *NoticeSuppressor) suppress(
	ctx context.Context,
	conversation warden.Conversation,
	kind warden.NoticeKind,
	lookback int,
	fromSelf bool,
) error {
	entries, err := s.port.RecentMessages(ctx, conversation, lookback)
	if err != nil {
		return fmt.Errorf("suppress %s notice: load recent messages: %w", kind, err)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.Notice == nil || entry.Notice.Kind != kind || entry.FromSelf != fromSelf {
			continue
		}

		if deleteErr := s.port.DeleteMessage(ctx, conversation, entry.MessageID); deleteErr != nil {
			s.logger.Warn(
				"notice deletion failed",
				"chat_id", conversation.ID,
				"message_id", entry.MessageID,
				"notice_kind", string(kind),
				"error", deleteErr,
			)

			continue
		}
		deleted++
	}

	if deleted == 0 {
		s.logger.Debug(
			"no matching notice found",
			"chat_id", conversation.ID,
			"notice_kind", string(kind),
			"lookback", lookback,
		)
	}

	return nil
}
