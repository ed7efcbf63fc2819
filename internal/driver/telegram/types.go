package telegram

import (
	"time"

	"chatwarden/pkg/warden"
)

// UpdateType identifies the Telegram update semantic category.
type UpdateType string

const (
	// UpdateTypeMessage identifies new ordinary message updates.
	UpdateTypeMessage UpdateType = "message"
	// UpdateTypeNotice identifies service messages announcing chat
	// metadata changes.
	UpdateTypeNotice UpdateType = "notice"
)

// Update is the Telegram adapter's internal DTO before neutral decoding.
type Update struct {
	ID         string
	Type       UpdateType
	OccurredAt time.Time
	Chat       ChatRef
	Actor      ActorRef
	Message    *MessagePayload
	Notice     *warden.ServiceNotice
	Metadata   map[string]string
}

// ChatRef identifies Telegram chat context.
type ChatRef struct {
	ID    string
	Title string
	Type  warden.ConversationType
}

// ActorRef identifies Telegram actor context.
type ActorRef struct {
	ID          string
	Username    string
	DisplayName string
	IsBot       bool
}

// MessagePayload represents a Telegram message projection.
type MessagePayload struct {
	ID        string
	ReplyToID string
	Text      string
	Media     []MediaPayload
	Reply     *ReplySnapshot
}

// ReplySnapshot captures the one-hop resolved reply target content.
type ReplySnapshot struct {
	ID    string
	Text  string
	Media []MediaPayload
}

// MediaPayload represents Telegram media metadata. Ref is the opaque
// download token understood by the chat port.
type MediaPayload struct {
	ID        string
	Type      warden.MediaType
	MIMEType  string
	FileName  string
	SizeBytes int64
	Ref       string
}
