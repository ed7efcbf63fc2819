package telegram

import (
	"fmt"
	"testing"

	"chatwarden/pkg/warden"

	"github.com/gotd/td/tg"
)

func typeName(value any) string {
	return fmt.Sprintf("%T", value)
}

func TestPeerCacheRememberEnvelopeAndResolve(t *testing.T) {
	t.Parallel()

	user := &tg.User{ID: 7}
	user.SetAccessHash(77)

	cache := NewPeerCache()
	cache.RememberEnvelope(gotdUpdateEnvelope{
		usersByID: map[int64]*tg.User{
			7: user,
		},
		chatsByID: map[int64]gotdChatInfo{
			10: {
				kind:      warden.ConversationTypeGroup,
				inputPeer: &tg.InputPeerChat{ChatID: 10},
			},
			20: {
				kind:      warden.ConversationTypeGroup,
				inputPeer: &tg.InputPeerChannel{ChannelID: 20, AccessHash: 2020},
			},
			30: {
				kind:      warden.ConversationTypeChannel,
				inputPeer: &tg.InputPeerChannel{ChannelID: 30, AccessHash: 3030},
			},
		},
	})

	tests := []struct {
		name         string
		conversation warden.Conversation
		wantType     string
		wantErr      bool
	}{
		{
			name: "resolve private user",
			conversation: warden.Conversation{
				ID:   "7",
				Type: warden.ConversationTypePrivate,
			},
			wantType: "*tg.InputPeerUser",
		},
		{
			name: "resolve group chat",
			conversation: warden.Conversation{
				ID:   "10",
				Type: warden.ConversationTypeGroup,
			},
			wantType: "*tg.InputPeerChat",
		},
		{
			name: "resolve megagroup channel as group",
			conversation: warden.Conversation{
				ID:   "20",
				Type: warden.ConversationTypeGroup,
			},
			wantType: "*tg.InputPeerChannel",
		},
		{
			name: "resolve group fallback from channel key",
			conversation: warden.Conversation{
				ID:   "20",
				Type: warden.ConversationTypeChannel,
			},
			wantType: "*tg.InputPeerChannel",
		},
		{
			name: "resolve channel",
			conversation: warden.Conversation{
				ID:   "30",
				Type: warden.ConversationTypeChannel,
			},
			wantType: "*tg.InputPeerChannel",
		},
		{
			name: "unknown conversation",
			conversation: warden.Conversation{
				ID:   "999",
				Type: warden.ConversationTypeGroup,
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			peer, err := cache.Resolve(testCase.conversation)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := typeName(peer); got != testCase.wantType {
				t.Fatalf("peer type = %s, want %s", got, testCase.wantType)
			}
		})
	}
}

func TestPeerCacheRememberConversation(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	cache.RememberConversation(
		ChatRef{ID: "55", Type: warden.ConversationTypeGroup},
		&tg.InputPeerChannel{ChannelID: 55, AccessHash: 555},
	)

	groupPeer, err := cache.Resolve(warden.Conversation{
		ID:   "55",
		Type: warden.ConversationTypeGroup,
	})
	if err != nil {
		t.Fatalf("resolve group peer failed: %v", err)
	}
	if got := typeName(groupPeer); got != "*tg.InputPeerChannel" {
		t.Fatalf("group peer type = %s, want *tg.InputPeerChannel", got)
	}

	channelPeer, err := cache.Resolve(warden.Conversation{
		ID:   "55",
		Type: warden.ConversationTypeChannel,
	})
	if err != nil {
		t.Fatalf("resolve channel peer fallback failed: %v", err)
	}
	if got := typeName(channelPeer); got != "*tg.InputPeerChannel" {
		t.Fatalf("channel peer type = %s, want *tg.InputPeerChannel", got)
	}
}
