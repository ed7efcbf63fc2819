package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"chatwarden/pkg/warden"

	"github.com/gotd/td/crypto"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/message/unpack"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
)

const defaultPortTimeout = 15 * time.Second

// chatRPC is the slice of tg.Client driving chat administration calls.
type chatRPC interface {
	MessagesSendMessage(ctx context.Context, request *tg.MessagesSendMessageRequest) (tg.UpdatesClass, error)
	MessagesDeleteMessages(ctx context.Context, request *tg.MessagesDeleteMessagesRequest) (*tg.MessagesAffectedMessages, error)
	ChannelsDeleteMessages(ctx context.Context, request *tg.ChannelsDeleteMessagesRequest) (*tg.MessagesAffectedMessages, error)
	MessagesEditChatTitle(ctx context.Context, request *tg.MessagesEditChatTitleRequest) (tg.UpdatesClass, error)
	ChannelsEditTitle(ctx context.Context, request *tg.ChannelsEditTitleRequest) (tg.UpdatesClass, error)
	MessagesEditChatPhoto(ctx context.Context, request *tg.MessagesEditChatPhotoRequest) (tg.UpdatesClass, error)
	ChannelsEditPhoto(ctx context.Context, request *tg.ChannelsEditPhotoRequest) (tg.UpdatesClass, error)
	MessagesGetHistory(ctx context.Context, request *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
	UsersGetUsers(ctx context.Context, id []tg.InputUserClass) ([]tg.UserClass, error)
}

type uploadFunc func(ctx context.Context, path string) (tg.InputFileClass, error)

type downloadFunc func(ctx context.Context, location tg.InputFileLocationClass, path string) error

// ChatPortOption mutates GotdChatPort configuration.
type ChatPortOption func(*GotdChatPort)

// WithPortTimeout bounds each platform RPC call.
func WithPortTimeout(timeout time.Duration) ChatPortOption {
	return func(port *GotdChatPort) {
		if timeout > 0 {
			port.timeout = timeout
		}
	}
}

// WithPortLogger configures structured logging for port operations.
func WithPortLogger(logger *slog.Logger) ChatPortOption {
	return func(port *GotdChatPort) {
		if logger != nil {
			port.logger = logger
		}
	}
}

// WithUploadFunc overrides media upload transport.
func WithUploadFunc(upload uploadFunc) ChatPortOption {
	return func(port *GotdChatPort) {
		if upload != nil {
			port.uploadFile = upload
		}
	}
}

// WithDownloadFunc overrides media download transport.
func WithDownloadFunc(download downloadFunc) ChatPortOption {
	return func(port *GotdChatPort) {
		if download != nil {
			port.downloadRef = download
		}
	}
}

// GotdChatPort drives Telegram chat administration over gotd RPC.
//
// Failures from platform calls surface as warden.MutationError values so the
// mutation pipeline can classify them without Telegram knowledge.
type GotdChatPort struct {
	rpc         chatRPC
	peers       *PeerCache
	logger      *slog.Logger
	timeout     time.Duration
	uploadFile  uploadFunc
	downloadRef downloadFunc

	selfMu sync.Mutex
	self   *warden.Actor
}

var _ warden.ChatPort = (*GotdChatPort)(nil)

// NewGotdChatPort creates a chat port over the given RPC surface.
//
// When rpc is a *tg.Client the default gotd uploader and downloader carry
// media transfers; other rpc implementations must inject WithUploadFunc and
// WithDownloadFunc.
func NewGotdChatPort(rpc chatRPC, peers *PeerCache, options ...ChatPortOption) (*GotdChatPort, error) {
	if rpc == nil {
		return nil, fmt.Errorf("new telegram chat port: nil rpc")
	}
	if peers == nil {
		return nil, fmt.Errorf("new telegram chat port: nil peer cache")
	}

	port := &GotdChatPort{
		rpc:     rpc,
		peers:   peers,
		logger:  slog.Default(),
		timeout: defaultPortTimeout,
	}
	for _, option := range options {
		option(port)
	}

	if client, ok := rpc.(*tg.Client); ok {
		if port.uploadFile == nil {
			port.uploadFile = newGotdUpload(client)
		}
		if port.downloadRef == nil {
			port.downloadRef = newGotdDownload(client)
		}
	}
	if port.uploadFile == nil || port.downloadRef == nil {
		return nil, fmt.Errorf("new telegram chat port: media transfer functions required")
	}

	return port, nil
}

func newGotdUpload(client *tg.Client) uploadFunc {
	up := uploader.NewUploader(client)

	return func(ctx context.Context, path string) (tg.InputFileClass, error) {
		file, err := up.FromPath(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", path, err)
		}

		return file, nil
	}
}

func newGotdDownload(client *tg.Client) downloadFunc {
	down := downloader.NewDownloader()

	return func(ctx context.Context, location tg.InputFileLocationClass, path string) error {
		if _, err := down.Download(client, location).ToPath(ctx, path); err != nil {
			return fmt.Errorf("download to %s: %w", path, err)
		}

		return nil
	}
}

// SendMessage dispatches one text message.
func (p *GotdChatPort) SendMessage(
	ctx context.Context,
	request warden.SendMessageRequest,
) (*warden.SentMessage, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("send message validate: %w", err)
	}

	peer, err := p.peers.Resolve(request.Conversation)
	if err != nil {
		return nil, fmt.Errorf("send message resolve peer: %w", err)
	}

	sendRequest := &tg.MessagesSendMessageRequest{
		Peer:    peer,
		Message: request.Text,
	}
	if request.ReplyToID != "" {
		replyID, err := parseMessageID(request.ReplyToID)
		if err != nil {
			return nil, fmt.Errorf("send message parse reply id %s: %w", request.ReplyToID, err)
		}
		sendRequest.ReplyTo = &tg.InputReplyToMessage{ReplyToMsgID: replyID}
	}

	randomID, err := crypto.RandInt64(crypto.DefaultRand())
	if err != nil {
		return nil, fmt.Errorf("send message random id: %w", err)
	}
	sendRequest.RandomID = randomID

	rpcCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	messageID, err := unpack.MessageID(p.rpc.MessagesSendMessage(rpcCtx, sendRequest))
	if err != nil {
		return nil, mapTelegramMutationError("send_message", err)
	}

	p.logOperation(ctx, "send_message",
		"conversation", request.Conversation.ID,
		"message_id", messageID,
		"reply_to_id", request.ReplyToID,
	)

	return &warden.SentMessage{
		ID:           strconv.Itoa(messageID),
		Conversation: request.Conversation,
	}, nil
}

// DeleteMessage removes one message for all participants.
func (p *GotdChatPort) DeleteMessage(
	ctx context.Context,
	conversation warden.Conversation,
	messageID string,
) error {
	peer, err := p.peers.Resolve(conversation)
	if err != nil {
		return fmt.Errorf("delete message resolve peer: %w", err)
	}

	id, err := parseMessageID(messageID)
	if err != nil {
		return fmt.Errorf("delete message parse id %s: %w", messageID, err)
	}

	rpcCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	if channel, ok := peer.(*tg.InputPeerChannel); ok {
		_, err = p.rpc.ChannelsDeleteMessages(rpcCtx, &tg.ChannelsDeleteMessagesRequest{
			Channel: &tg.InputChannel{
				ChannelID:  channel.ChannelID,
				AccessHash: channel.AccessHash,
			},
			ID: []int{id},
		})
	} else {
		_, err = p.rpc.MessagesDeleteMessages(rpcCtx, &tg.MessagesDeleteMessagesRequest{
			Revoke: true,
			ID:     []int{id},
		})
	}
	if err != nil {
		return mapTelegramMutationError("delete_message", err)
	}

	p.logOperation(ctx, "delete_message",
		"conversation", conversation.ID,
		"message_id", messageID,
	)

	return nil
}

// DownloadMedia fetches the attachment behind one opaque media ref.
func (p *GotdChatPort) DownloadMedia(ctx context.Context, ref string, path string) error {
	parsed, err := parseMediaRef(ref)
	if err != nil {
		return fmt.Errorf("download media parse ref: %w", err)
	}

	if err := p.downloadRef(ctx, parsed.fileLocation(), path); err != nil {
		return mapTelegramMutationError("download_media", err)
	}

	p.logOperation(ctx, "download_media", "media_kind", parsed.kind, "path", path)

	return nil
}

// SetChatTitle renames one chat.
func (p *GotdChatPort) SetChatTitle(
	ctx context.Context,
	conversation warden.Conversation,
	title string,
) error {
	peer, err := p.peers.Resolve(conversation)
	if err != nil {
		return fmt.Errorf("set chat title resolve peer: %w", err)
	}

	rpcCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	switch typed := peer.(type) {
	case *tg.InputPeerChat:
		_, err = p.rpc.MessagesEditChatTitle(rpcCtx, &tg.MessagesEditChatTitleRequest{
			ChatID: typed.ChatID,
			Title:  title,
		})
	case *tg.InputPeerChannel:
		_, err = p.rpc.ChannelsEditTitle(rpcCtx, &tg.ChannelsEditTitleRequest{
			Channel: &tg.InputChannel{
				ChannelID:  typed.ChannelID,
				AccessHash: typed.AccessHash,
			},
			Title: title,
		})
	default:
		return fmt.Errorf("%w: conversation %s is not a group or channel", warden.ErrInvalidRequest, conversation.ID)
	}
	if err != nil {
		return mapTelegramMutationError("set_chat_title", err)
	}

	p.logOperation(ctx, "set_chat_title", "conversation", conversation.ID, "title", title)

	return nil
}

// SetChatPhoto replaces one chat photo with the image file at photoPath.
func (p *GotdChatPort) SetChatPhoto(
	ctx context.Context,
	conversation warden.Conversation,
	photoPath string,
) error {
	peer, err := p.peers.Resolve(conversation)
	if err != nil {
		return fmt.Errorf("set chat photo resolve peer: %w", err)
	}

	file, err := p.uploadFile(ctx, photoPath)
	if err != nil {
		return mapTelegramMutationError("upload_chat_photo", err)
	}

	photo := &tg.InputChatUploadedPhoto{}
	photo.SetFile(file)

	rpcCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	switch typed := peer.(type) {
	case *tg.InputPeerChat:
		_, err = p.rpc.MessagesEditChatPhoto(rpcCtx, &tg.MessagesEditChatPhotoRequest{
			ChatID: typed.ChatID,
			Photo:  photo,
		})
	case *tg.InputPeerChannel:
		_, err = p.rpc.ChannelsEditPhoto(rpcCtx, &tg.ChannelsEditPhotoRequest{
			Channel: &tg.InputChannel{
				ChannelID:  typed.ChannelID,
				AccessHash: typed.AccessHash,
			},
			Photo: photo,
		})
	default:
		return fmt.Errorf("%w: conversation %s is not a group or channel", warden.ErrInvalidRequest, conversation.ID)
	}
	if err != nil {
		return mapTelegramMutationError("set_chat_photo", err)
	}

	p.logOperation(ctx, "set_chat_photo", "conversation", conversation.ID, "photo_path", photoPath)

	return nil
}

// RecentMessages returns up to limit most recent messages, newest first.
func (p *GotdChatPort) RecentMessages(
	ctx context.Context,
	conversation warden.Conversation,
	limit int,
) ([]warden.HistoryEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: non-positive history limit", warden.ErrInvalidRequest)
	}

	peer, err := p.peers.Resolve(conversation)
	if err != nil {
		return nil, fmt.Errorf("recent messages resolve peer: %w", err)
	}

	rpcCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	result, err := p.rpc.MessagesGetHistory(rpcCtx, &tg.MessagesGetHistoryRequest{
		Peer:  peer,
		Limit: limit,
	})
	if err != nil {
		return nil, mapTelegramMutationError("recent_messages", err)
	}

	entries := historyEntriesFromResult(result, limit)

	p.logOperation(ctx, "recent_messages",
		"conversation", conversation.ID,
		"limit", limit,
		"entries", len(entries),
	)

	return entries, nil
}

// Self returns the logged-in account identity. The result is cached after the
// first successful lookup.
func (p *GotdChatPort) Self(ctx context.Context) (warden.Actor, error) {
	p.selfMu.Lock()
	defer p.selfMu.Unlock()

	if p.self != nil {
		return *p.self, nil
	}

	rpcCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	users, err := p.rpc.UsersGetUsers(rpcCtx, []tg.InputUserClass{&tg.InputUserSelf{}})
	if err != nil {
		return warden.Actor{}, mapTelegramMutationError("self", err)
	}

	for _, candidate := range users {
		user, ok := candidate.AsNotEmpty()
		if !ok || user == nil {
			continue
		}

		username, _ := user.GetUsername()
		firstName, _ := user.GetFirstName()
		lastName, _ := user.GetLastName()
		displayName := strings.TrimSpace(firstName + " " + lastName)
		if displayName == "" {
			displayName = username
		}

		actor := warden.Actor{
			ID:          strconv.FormatInt(user.ID, 10),
			Username:    username,
			DisplayName: displayName,
			IsBot:       user.Bot,
		}
		p.self = &actor

		return actor, nil
	}

	return warden.Actor{}, fmt.Errorf("self lookup returned no user")
}

// historyEntriesFromResult decodes get-history payloads, decoding service
// messages into their notice form.
func historyEntriesFromResult(result tg.MessagesMessagesClass, limit int) []warden.HistoryEntry {
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

	entries := make([]warden.HistoryEntry, 0, len(messages))
	for _, candidate := range messages {
		if len(entries) >= limit {
			break
		}

		switch message := candidate.(type) {
		case *tg.Message:
			entries = append(entries, warden.HistoryEntry{
				MessageID: strconv.Itoa(message.ID),
				FromSelf:  message.Out,
			})
		case *tg.MessageService:
			id := strconv.Itoa(message.ID)
			entries = append(entries, warden.HistoryEntry{
				MessageID: id,
				FromSelf:  message.Out,
				Notice:    serviceNoticeFromAction(message.Action, id),
			})
		}
	}

	return entries
}

func (p *GotdChatPort) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, p.timeout)
}

func (p *GotdChatPort) logOperation(ctx context.Context, operation string, attrs ...any) {
	values := make([]any, 0, 4+len(attrs))
	values = append(values, "operation", operation, "platform", DriverPlatform)
	values = append(values, attrs...)
	p.logger.DebugContext(ctx, "telegram chat port operation", values...)
}

func parseMessageID(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid message id: %w", warden.ErrInvalidRequest, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: invalid message id", warden.ErrInvalidRequest)
	}

	return value, nil
}
