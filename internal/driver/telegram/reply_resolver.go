package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gotd/td/tg"
)

// ReplyResolver loads the content of a message being replied to.
type ReplyResolver interface {
	Resolve(ctx context.Context, peer tg.InputPeerClass, messageID int) (*ReplySnapshot, error)
}

// replyResolverAPI is the slice of tg.Client needed to fetch messages by ID.
type replyResolverAPI interface {
	MessagesGetMessages(ctx context.Context, id []tg.InputMessageClass) (tg.MessagesMessagesClass, error)
	ChannelsGetMessages(ctx context.Context, request *tg.ChannelsGetMessagesRequest) (tg.MessagesMessagesClass, error)
}

const defaultReplyResolveTimeout = 5 * time.Second

// GotdReplyResolver resolves reply targets through the MTProto API.
type GotdReplyResolver struct {
	api     replyResolverAPI
	timeout time.Duration
}

// NewGotdReplyResolver creates a reply resolver over the given API surface.
func NewGotdReplyResolver(api replyResolverAPI) (*GotdReplyResolver, error) {
	if api == nil {
		return nil, fmt.Errorf("new gotd reply resolver: nil api")
	}

	return &GotdReplyResolver{
		api:     api,
		timeout: defaultReplyResolveTimeout,
	}, nil
}

// Resolve fetches one message by ID from the peer's conversation.
func (r *GotdReplyResolver) Resolve(
	ctx context.Context,
	peer tg.InputPeerClass,
	messageID int,
) (*ReplySnapshot, error) {
	if peer == nil {
		return nil, fmt.Errorf("resolve reply target: nil peer")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}}

	var (
		result tg.MessagesMessagesClass
		err    error
	)
	if channel, ok := peer.(*tg.InputPeerChannel); ok {
		result, err = r.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{
				ChannelID:  channel.ChannelID,
				AccessHash: channel.AccessHash,
			},
			ID: ids,
		})
	} else {
		result, err = r.api.MessagesGetMessages(ctx, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch reply target %d: %w", messageID, err)
	}

	message := findMessageByID(result, messageID)
	if message == nil {
		return nil, fmt.Errorf("reply target %d not found", messageID)
	}

	return &ReplySnapshot{
		ID:    strconv.Itoa(message.ID),
		Text:  message.Message,
		Media: mapMessageMedia(message.Media),
	}, nil
}

func findMessageByID(result tg.MessagesMessagesClass, messageID int) *tg.Message {
	var messages []tg.MessageClass
	switch typed := result.(type) {
	case *tg.MessagesMessages:
		messages = typed.Messages
	case *tg.MessagesMessagesSlice:
		messages = typed.Messages
	case *tg.MessagesChannelMessages:
		messages = typed.Messages
	default:
		return nil
	}

	for _, candidate := range messages {
		message, ok := candidate.(*tg.Message)
		if !ok {
			continue
		}
		if message.ID == messageID {
			return message
		}
	}

	return nil
}
