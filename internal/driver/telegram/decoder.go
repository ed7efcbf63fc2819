package telegram

import (
	"context"
	"fmt"
	"time"

	"chatwarden/pkg/warden"
)

// Decoder converts Telegram update DTOs into neutral warden events.
type Decoder interface {
	// Decode maps one adapter update into a validated neutral event envelope.
	Decode(ctx context.Context, update Update) (*warden.Event, error)
}

// DefaultDecoder provides default Telegram-to-warden mappings.
type DefaultDecoder struct{}

// NewDefaultDecoder creates a default decoder.
func NewDefaultDecoder() DefaultDecoder {
	return DefaultDecoder{}
}

// Decode converts a Telegram update into a neutral event.
func (d DefaultDecoder) Decode(_ context.Context, update Update) (*warden.Event, error) {
	event := newBaseEvent(update)

	switch update.Type {
	case UpdateTypeMessage:
		event.Kind = warden.EventKindMessageCreated
		message, err := decodeMessage(update.Message)
		if err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		event.Message = message
	case UpdateTypeNotice:
		event.Kind = warden.EventKindNoticePosted
		if update.Notice == nil {
			return nil, fmt.Errorf("decode notice: missing notice payload")
		}
		notice := *update.Notice
		event.Notice = &notice
	default:
		return nil, fmt.Errorf("decode update %s: unsupported type", update.Type)
	}

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("decode update %s: %w", update.Type, err)
	}

	return event, nil
}

// newBaseEvent builds the shared envelope fields used by all update mappings.
func newBaseEvent(update Update) *warden.Event {
	occurredAt := update.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return &warden.Event{
		ID:         update.ID,
		OccurredAt: occurredAt,
		Platform:   warden.PlatformTelegram,
		Conversation: warden.Conversation{
			ID:    update.Chat.ID,
			Type:  update.Chat.Type,
			Title: update.Chat.Title,
		},
		Actor: warden.Actor{
			ID:          update.Actor.ID,
			Username:    update.Actor.Username,
			DisplayName: update.Actor.DisplayName,
			IsBot:       update.Actor.IsBot,
		},
	}
}

// decodeMessage maps Telegram message payload into neutral message content.
func decodeMessage(payload *MessagePayload) (*warden.Message, error) {
	if payload == nil {
		return nil, fmt.Errorf("missing message payload")
	}

	message := &warden.Message{
		ID:        payload.ID,
		ReplyToID: payload.ReplyToID,
		Text:      payload.Text,
		Media:     mapMedia(payload.Media),
	}
	if payload.Reply != nil {
		message.Reply = &warden.RepliedMessage{
			ID:    payload.Reply.ID,
			Text:  payload.Reply.Text,
			Media: mapMedia(payload.Reply.Media),
		}
	}

	return message, nil
}

// mapMedia converts media descriptors into neutral attachment metadata.
func mapMedia(media []MediaPayload) []warden.MediaAttachment {
	if len(media) == 0 {
		return nil
	}

	mapped := make([]warden.MediaAttachment, 0, len(media))
	for _, item := range media {
		mapped = append(mapped, warden.MediaAttachment{
			ID:        item.ID,
			Type:      item.Type,
			MIMEType:  item.MIMEType,
			FileName:  item.FileName,
			SizeBytes: item.SizeBytes,
			Ref:       item.Ref,
		})
	}

	return mapped
}
