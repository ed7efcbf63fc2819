package telegram

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chatwarden/pkg/warden"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

type fakeChatRPC struct {
	sendRequests      []*tg.MessagesSendMessageRequest
	chatDeletes       []*tg.MessagesDeleteMessagesRequest
	channelDeletes    []*tg.ChannelsDeleteMessagesRequest
	chatTitleRequests []*tg.MessagesEditChatTitleRequest
	channelTitles     []*tg.ChannelsEditTitleRequest
	chatPhotoRequests []*tg.MessagesEditChatPhotoRequest
	channelPhotos     []*tg.ChannelsEditPhotoRequest
	historyRequests   []*tg.MessagesGetHistoryRequest
	selfCalls         int

	sendErr       error
	titleErr      error
	photoErr      error
	historyResult tg.MessagesMessagesClass
	historyErr    error
	sentMessageID int
}

func (f *fakeChatRPC) MessagesSendMessage(
	_ context.Context,
	request *tg.MessagesSendMessageRequest,
) (tg.UpdatesClass, error) {
	f.sendRequests = append(f.sendRequests, request)
	if f.sendErr != nil {
		return nil, f.sendErr
	}

	return &tg.Updates{
		Updates: []tg.UpdateClass{
			&tg.UpdateMessageID{ID: f.sentMessageID, RandomID: request.RandomID},
		},
	}, nil
}

func (f *fakeChatRPC) MessagesDeleteMessages(
	_ context.Context,
	request *tg.MessagesDeleteMessagesRequest,
) (*tg.MessagesAffectedMessages, error) {
	f.chatDeletes = append(f.chatDeletes, request)
	return &tg.MessagesAffectedMessages{}, nil
}

func (f *fakeChatRPC) ChannelsDeleteMessages(
	_ context.Context,
	request *tg.ChannelsDeleteMessagesRequest,
) (*tg.MessagesAffectedMessages, error) {
	f.channelDeletes = append(f.channelDeletes, request)
	return &tg.MessagesAffectedMessages{}, nil
}

func (f *fakeChatRPC) MessagesEditChatTitle(
	_ context.Context,
	request *tg.MessagesEditChatTitleRequest,
) (tg.UpdatesClass, error) {
	f.chatTitleRequests = append(f.chatTitleRequests, request)
	if f.titleErr != nil {
		return nil, f.titleErr
	}
	return &tg.Updates{}, nil
}

func (f *fakeChatRPC) ChannelsEditTitle(
	_ context.Context,
	request *tg.ChannelsEditTitleRequest,
) (tg.UpdatesClass, error) {
	f.channelTitles = append(f.channelTitles, request)
	if f.titleErr != nil {
		return nil, f.titleErr
	}
	return &tg.Updates{}, nil
}

func (f *fakeChatRPC) MessagesEditChatPhoto(
	_ context.Context,
	request *tg.MessagesEditChatPhotoRequest,
) (tg.UpdatesClass, error) {
	f.chatPhotoRequests = append(f.chatPhotoRequests, request)
	if f.photoErr != nil {
		return nil, f.photoErr
	}
	return &tg.Updates{}, nil
}

func (f *fakeChatRPC) ChannelsEditPhoto(
	_ context.Context,
	request *tg.ChannelsEditPhotoRequest,
) (tg.UpdatesClass, error) {
	f.channelPhotos = append(f.channelPhotos, request)
	if f.photoErr != nil {
		return nil, f.photoErr
	}
	return &tg.Updates{}, nil
}

func (f *fakeChatRPC) MessagesGetHistory(
	_ context.Context,
	request *tg.MessagesGetHistoryRequest,
) (tg.MessagesMessagesClass, error) {
	f.historyRequests = append(f.historyRequests, request)
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if f.historyResult != nil {
		return f.historyResult, nil
	}
	return &tg.MessagesMessages{}, nil
}

func (f *fakeChatRPC) UsersGetUsers(
	_ context.Context,
	_ []tg.InputUserClass,
) ([]tg.UserClass, error) {
	f.selfCalls++
	return []tg.UserClass{
		newTGUser(7, "warden", "Ward", "En", false),
	}, nil
}

func newTestChatPort(t *testing.T, rpc *fakeChatRPC) *GotdChatPort {
	t.Helper()

	peers := NewPeerCache()
	peers.RememberConversation(
		ChatRef{ID: "100", Type: warden.ConversationTypeGroup},
		&tg.InputPeerChat{ChatID: 100},
	)
	peers.RememberConversation(
		ChatRef{ID: "200", Type: warden.ConversationTypeGroup},
		&tg.InputPeerChannel{ChannelID: 200, AccessHash: 2020},
	)

	port, err := NewGotdChatPort(
		rpc,
		peers,
		WithUploadFunc(func(_ context.Context, path string) (tg.InputFileClass, error) {
			return &tg.InputFile{Name: filepath.Base(path)}, nil
		}),
		WithDownloadFunc(func(_ context.Context, _ tg.InputFileLocationClass, path string) error {
			return os.WriteFile(path, []byte("payload"), 0o600)
		}),
	)
	if err != nil {
		t.Fatalf("new chat port failed: %v", err)
	}

	return port
}

func groupConversation(id string) warden.Conversation {
	return warden.Conversation{ID: id, Type: warden.ConversationTypeGroup}
}

func TestGotdChatPortSendMessage(t *testing.T) {
	t.Parallel()

	rpc := &fakeChatRPC{sentMessageID: 901}
	port := newTestChatPort(t, rpc)

	sent, err := port.SendMessage(context.Background(), warden.SendMessageRequest{
		Conversation: groupConversation("100"),
		Text:         "history follows",
		ReplyToID:    "55",
	})
	if err != nil {
		t.Fatalf("send message failed: %v", err)
	}
	if sent.ID != "901" {
		t.Fatalf("sent id = %s, want 901", sent.ID)
	}
	if len(rpc.sendRequests) != 1 {
		t.Fatalf("send calls = %d, want 1", len(rpc.sendRequests))
	}

	request := rpc.sendRequests[0]
	if request.Message != "history follows" {
		t.Fatalf("message = %q, want history follows", request.Message)
	}
	if request.RandomID == 0 {
		t.Fatal("expected non-zero random id")
	}
	reply, ok := request.ReplyTo.(*tg.InputReplyToMessage)
	if !ok || reply.ReplyToMsgID != 55 {
		t.Fatalf("reply to = %+v, want message 55", request.ReplyTo)
	}
}

func TestGotdChatPortSendMessageUnknownConversation(t *testing.T) {
	t.Parallel()

	port := newTestChatPort(t, &fakeChatRPC{sentMessageID: 901})

	if _, err := port.SendMessage(context.Background(), warden.SendMessageRequest{
		Conversation: groupConversation("404"),
		Text:         "hi",
	}); err == nil {
		t.Fatal("expected resolve error")
	}
}

func TestGotdChatPortDeleteMessageDispatchesByPeerKind(t *testing.T) {
	t.Parallel()

	rpc := &fakeChatRPC{}
	port := newTestChatPort(t, rpc)

	if err := port.DeleteMessage(context.Background(), groupConversation("100"), "41"); err != nil {
		t.Fatalf("delete in basic group failed: %v", err)
	}
	if len(rpc.chatDeletes) != 1 || len(rpc.channelDeletes) != 0 {
		t.Fatalf("deletes = %d/%d, want 1 chat and 0 channel", len(rpc.chatDeletes), len(rpc.channelDeletes))
	}
	if !rpc.chatDeletes[0].Revoke {
		t.Fatal("expected revoke delete for all participants")
	}
	if len(rpc.chatDeletes[0].ID) != 1 || rpc.chatDeletes[0].ID[0] != 41 {
		t.Fatalf("chat delete ids = %v, want [41]", rpc.chatDeletes[0].ID)
	}

	if err := port.DeleteMessage(context.Background(), groupConversation("200"), "42"); err != nil {
		t.Fatalf("delete in megagroup failed: %v", err)
	}
	if len(rpc.channelDeletes) != 1 {
		t.Fatalf("channel deletes = %d, want 1", len(rpc.channelDeletes))
	}
	channel, ok := rpc.channelDeletes[0].Channel.(*tg.InputChannel)
	if !ok || channel.ChannelID != 200 || channel.AccessHash != 2020 {
		t.Fatalf("channel = %+v, want 200/2020", rpc.channelDeletes[0].Channel)
	}

	if err := port.DeleteMessage(context.Background(), groupConversation("100"), "nope"); err == nil {
		t.Fatal("expected message id parse error")
	}
}

func TestGotdChatPortSetChatTitle(t *testing.T) {
	t.Parallel()

	rpc := &fakeChatRPC{}
	port := newTestChatPort(t, rpc)

	if err := port.SetChatTitle(context.Background(), groupConversation("100"), "new den"); err != nil {
		t.Fatalf("set chat title failed: %v", err)
	}
	if len(rpc.chatTitleRequests) != 1 {
		t.Fatalf("chat title calls = %d, want 1", len(rpc.chatTitleRequests))
	}
	if rpc.chatTitleRequests[0].ChatID != 100 || rpc.chatTitleRequests[0].Title != "new den" {
		t.Fatalf("chat title request = %+v, want chat 100 title new den", rpc.chatTitleRequests[0])
	}

	if err := port.SetChatTitle(context.Background(), groupConversation("200"), "mega den"); err != nil {
		t.Fatalf("set channel title failed: %v", err)
	}
	if len(rpc.channelTitles) != 1 || rpc.channelTitles[0].Title != "mega den" {
		t.Fatalf("channel title calls = %+v, want one with mega den", rpc.channelTitles)
	}
}

func TestGotdChatPortSetChatTitleMapsRPCErrors(t *testing.T) {
	t.Parallel()

	rpc := &fakeChatRPC{titleErr: tgerr.New(400, "CHAT_NOT_MODIFIED")}
	port := newTestChatPort(t, rpc)

	err := port.SetChatTitle(context.Background(), groupConversation("100"), "same")
	if !warden.IsNotModified(err) {
		t.Fatalf("error = %v, want not-modified classification", err)
	}
}

func TestGotdChatPortSetChatPhoto(t *testing.T) {
	t.Parallel()

	rpc := &fakeChatRPC{}
	port := newTestChatPort(t, rpc)

	photoPath := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(photoPath, []byte("jpg"), 0o600); err != nil {
		t.Fatalf("write photo fixture: %v", err)
	}

	if err := port.SetChatPhoto(context.Background(), groupConversation("100"), photoPath); err != nil {
		t.Fatalf("set chat photo failed: %v", err)
	}
	if len(rpc.chatPhotoRequests) != 1 {
		t.Fatalf("chat photo calls = %d, want 1", len(rpc.chatPhotoRequests))
	}

	uploaded, ok := rpc.chatPhotoRequests[0].Photo.(*tg.InputChatUploadedPhoto)
	if !ok {
		t.Fatalf("photo type = %T, want *tg.InputChatUploadedPhoto", rpc.chatPhotoRequests[0].Photo)
	}
	file, ok := uploaded.GetFile()
	if !ok {
		t.Fatal("expected uploaded file on photo request")
	}
	if inputFile, ok := file.(*tg.InputFile); !ok || inputFile.Name != "photo.jpg" {
		t.Fatalf("uploaded file = %+v, want name photo.jpg", file)
	}

	if err := port.SetChatPhoto(context.Background(), groupConversation("200"), photoPath); err != nil {
		t.Fatalf("set channel photo failed: %v", err)
	}
	if len(rpc.channelPhotos) != 1 {
		t.Fatalf("channel photo calls = %d, want 1", len(rpc.channelPhotos))
	}
}

func TestGotdChatPortSetChatPhotoUploadFailure(t *testing.T) {
	t.Parallel()

	peers := NewPeerCache()
	peers.RememberConversation(
		ChatRef{ID: "100", Type: warden.ConversationTypeGroup},
		&tg.InputPeerChat{ChatID: 100},
	)

	rpc := &fakeChatRPC{}
	port, err := NewGotdChatPort(
		rpc,
		peers,
		WithUploadFunc(func(_ context.Context, _ string) (tg.InputFileClass, error) {
			return nil, errors.New("disk gone")
		}),
		WithDownloadFunc(func(_ context.Context, _ tg.InputFileLocationClass, _ string) error {
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("new chat port failed: %v", err)
	}

	uploadErr := port.SetChatPhoto(context.Background(), groupConversation("100"), "missing.jpg")
	if uploadErr == nil {
		t.Fatal("expected upload error")
	}
	if len(rpc.chatPhotoRequests) != 0 {
		t.Fatalf("chat photo calls = %d, want 0 after upload failure", len(rpc.chatPhotoRequests))
	}
	mutationErr, ok := warden.AsMutationError(uploadErr)
	if !ok || mutationErr.Operation != "upload_chat_photo" {
		t.Fatalf("error = %v, want upload_chat_photo mutation error", uploadErr)
	}
}

func TestGotdChatPortDownloadMedia(t *testing.T) {
	t.Parallel()

	port := newTestChatPort(t, &fakeChatRPC{})

	target := filepath.Join(t.TempDir(), "media.jpg")
	ref := encodePhotoRef(newTestPhoto(9001))

	if err := port.DownloadMedia(context.Background(), ref, target); err != nil {
		t.Fatalf("download media failed: %v", err)
	}
	payload, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(payload) != "payload" {
		t.Fatalf("payload = %q, want payload", payload)
	}

	if err := port.DownloadMedia(context.Background(), "garbage", target); err == nil {
		t.Fatal("expected ref parse error")
	}
}

func TestGotdChatPortRecentMessagesDecodesNotices(t *testing.T) {
	t.Parallel()

	rpc := &fakeChatRPC{
		historyResult: &tg.MessagesMessagesSlice{
			Messages: []tg.MessageClass{
				&tg.Message{ID: 903, Out: true, Message: "mine"},
				&tg.MessageService{
					ID:     902,
					Action: &tg.MessageActionChatEditTitle{Title: "new den"},
				},
				&tg.Message{ID: 901, Message: "theirs"},
			},
		},
	}
	port := newTestChatPort(t, rpc)

	entries, err := port.RecentMessages(context.Background(), groupConversation("100"), 10)
	if err != nil {
		t.Fatalf("recent messages failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].MessageID != "903" || !entries[0].FromSelf {
		t.Fatalf("entries[0] = %+v, want own message 903", entries[0])
	}
	if entries[1].Notice == nil || entries[1].Notice.Kind != warden.NoticeKindTitle {
		t.Fatalf("entries[1] = %+v, want title notice", entries[1])
	}
	if entries[1].Notice.NewValue != "new den" {
		t.Fatalf("notice value = %s, want new den", entries[1].Notice.NewValue)
	}
	if entries[2].FromSelf {
		t.Fatal("entries[2] must not be from self")
	}
	if rpc.historyRequests[0].Limit != 10 {
		t.Fatalf("history limit = %d, want 10", rpc.historyRequests[0].Limit)
	}
}

func TestGotdChatPortRecentMessagesHonorsLimit(t *testing.T) {
	t.Parallel()

	rpc := &fakeChatRPC{
		historyResult: &tg.MessagesMessages{
			Messages: []tg.MessageClass{
				&tg.Message{ID: 903},
				&tg.Message{ID: 902},
				&tg.Message{ID: 901},
			},
		},
	}
	port := newTestChatPort(t, rpc)

	entries, err := port.RecentMessages(context.Background(), groupConversation("100"), 2)
	if err != nil {
		t.Fatalf("recent messages failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	if _, err := port.RecentMessages(context.Background(), groupConversation("100"), 0); err == nil {
		t.Fatal("expected limit validation error")
	}
}

func TestGotdChatPortSelfIsCached(t *testing.T) {
	t.Parallel()

	rpc := &fakeChatRPC{}
	port := newTestChatPort(t, rpc)

	first, err := port.Self(context.Background())
	if err != nil {
		t.Fatalf("self failed: %v", err)
	}
	if first.ID != "7" || first.Username != "warden" {
		t.Fatalf("self = %+v, want id 7 username warden", first)
	}

	second, err := port.Self(context.Background())
	if err != nil {
		t.Fatalf("second self failed: %v", err)
	}
	if second != first {
		t.Fatalf("second self = %+v, want cached %+v", second, first)
	}
	if rpc.selfCalls != 1 {
		t.Fatalf("self rpc calls = %d, want 1", rpc.selfCalls)
	}
}
