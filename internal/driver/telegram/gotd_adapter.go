package telegram

import (
	"context"
	"fmt"
	"time"

	gotdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
)

const defaultGotdUpdateBuffer = 1024

// GotdClientAdapter adapts gotd telegram.Client to GotdUserbotClient.
type GotdClientAdapter struct {
	client *gotdtelegram.Client
}

// NewGotdClientAdapter creates a gotd userbot client adapter.
func NewGotdClientAdapter(client *gotdtelegram.Client) (*GotdClientAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("new gotd client adapter: nil client")
	}

	return &GotdClientAdapter{client: client}, nil
}

// Run keeps the client connection alive until the callback or context ends.
func (a *GotdClientAdapter) Run(ctx context.Context, run func(ctx context.Context) error) error {
	if err := a.client.Run(ctx, run); err != nil {
		return fmt.Errorf("run gotd client: %w", err)
	}

	return nil
}

// API returns the raw MTProto invoker.
func (a *GotdClientAdapter) API() *tg.Client {
	return a.client.API()
}

// GotdUpdateChannel is a telegram.UpdateHandler that fans raw gotd updates
// into a channel, flattening container update classes into per-update
// envelopes that carry their own user and chat entity indexes.
type GotdUpdateChannel struct {
	updates chan any
}

// NewGotdUpdateChannel creates a raw update stream with the given buffer.
func NewGotdUpdateChannel(buffer int) *GotdUpdateChannel {
	if buffer <= 0 {
		buffer = defaultGotdUpdateBuffer
	}

	return &GotdUpdateChannel{updates: make(chan any, buffer)}
}

// Handle implements telegram.UpdateHandler.
func (c *GotdUpdateChannel) Handle(ctx context.Context, updates tg.UpdatesClass) error {
	for _, envelope := range flattenGotdUpdates(updates) {
		select {
		case c.updates <- envelope:
		case <-ctx.Done():
			return fmt.Errorf("enqueue gotd update: %w", ctx.Err())
		}
	}

	return nil
}

// Updates returns the raw update stream consumed by the userbot source.
func (c *GotdUpdateChannel) Updates() <-chan any {
	return c.updates
}

func flattenGotdUpdates(updates tg.UpdatesClass) []gotdUpdateEnvelope {
	receivedAt := time.Now().UTC()

	switch typed := updates.(type) {
	case *tg.Updates:
		return flattenUpdateBatch(typed.Updates, typed.Users, typed.Chats, receivedAt)
	case *tg.UpdatesCombined:
		return flattenUpdateBatch(typed.Updates, typed.Users, typed.Chats, receivedAt)
	case *tg.UpdateShort:
		return flattenUpdateBatch([]tg.UpdateClass{typed.Update}, nil, nil, receivedAt)
	case *tg.UpdateShortMessage:
		return []gotdUpdateEnvelope{flattenShortMessage(typed, receivedAt)}
	case *tg.UpdateShortChatMessage:
		return []gotdUpdateEnvelope{flattenShortChatMessage(typed, receivedAt)}
	default:
		return nil
	}
}

func flattenUpdateBatch(
	updates []tg.UpdateClass,
	users []tg.UserClass,
	chats []tg.ChatClass,
	receivedAt time.Time,
) []gotdUpdateEnvelope {
	if len(updates) == 0 {
		return nil
	}

	usersByID := indexGotdUsers(users)
	chatsByID := indexGotdChats(chats)

	envelopes := make([]gotdUpdateEnvelope, 0, len(updates))
	for _, update := range updates {
		if update == nil {
			continue
		}
		envelopes = append(envelopes, gotdUpdateEnvelope{
			update:      update,
			occurredAt:  receivedAt,
			usersByID:   usersByID,
			chatsByID:   chatsByID,
			updateClass: update.TypeName(),
		})
	}

	return envelopes
}

// flattenShortMessage reshapes the compact private-message update into the
// regular UpdateNewMessage form so one mapping path handles both.
func flattenShortMessage(short *tg.UpdateShortMessage, receivedAt time.Time) gotdUpdateEnvelope {
	message := &tg.Message{
		ID:      short.ID,
		Out:     short.Out,
		PeerID:  &tg.PeerUser{UserID: short.UserID},
		FromID:  &tg.PeerUser{UserID: short.UserID},
		Date:    short.Date,
		Message: short.Message,
	}
	if replyTo, ok := short.GetReplyTo(); ok {
		message.SetReplyTo(replyTo)
	}

	return gotdUpdateEnvelope{
		update:      &tg.UpdateNewMessage{Message: message},
		occurredAt:  receivedAt,
		updateClass: short.TypeName(),
	}
}

func flattenShortChatMessage(short *tg.UpdateShortChatMessage, receivedAt time.Time) gotdUpdateEnvelope {
	message := &tg.Message{
		ID:      short.ID,
		Out:     short.Out,
		PeerID:  &tg.PeerChat{ChatID: short.ChatID},
		FromID:  &tg.PeerUser{UserID: short.FromID},
		Date:    short.Date,
		Message: short.Message,
	}
	if replyTo, ok := short.GetReplyTo(); ok {
		message.SetReplyTo(replyTo)
	}

	return gotdUpdateEnvelope{
		update:      &tg.UpdateNewMessage{Message: message},
		occurredAt:  receivedAt,
		updateClass: short.TypeName(),
	}
}
