package chatops

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"chatwarden/pkg/warden"
)

// fakePort is an in-memory ChatPort double shared by the package tests.
type fakePort struct {
	mu sync.Mutex

	titleCalls []string
	photoCalls []string
	deleted    []string
	downloads  []string
	sent       []warden.SendMessageRequest

	historyLimits  []int
	historyEntries []warden.HistoryEntry
	historyErr     error

	titleErrs   []error
	photoErrs   []error
	downloadErr error
	deleteErr   error

	selfActor warden.Actor

	// titleGate, when non-nil, blocks SetChatTitle until the channel closes.
	// titleStarted, when non-nil, receives one signal as the call enters.
	titleGate    chan struct{}
	titleStarted chan struct{}
}

func (p *fakePort) SendMessage(_ context.Context, request warden.SendMessageRequest) (*warden.SentMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, request)

	return &warden.SentMessage{
		ID:           fmt.Sprintf("sent-%d", len(p.sent)),
		Conversation: request.Conversation,
	}, nil
}

func (p *fakePort) DeleteMessage(_ context.Context, _ warden.Conversation, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleteErr != nil {
		return p.deleteErr
	}
	p.deleted = append(p.deleted, messageID)

	return nil
}

func (p *fakePort) DownloadMedia(_ context.Context, ref string, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.downloadErr != nil {
		return p.downloadErr
	}
	if err := os.WriteFile(path, []byte(ref), 0o644); err != nil {
		return err
	}
	p.downloads = append(p.downloads, path)

	return nil
}

func (p *fakePort) SetChatTitle(_ context.Context, _ warden.Conversation, title string) error {
	p.mu.Lock()
	gate := p.titleGate
	started := p.titleStarted
	p.mu.Unlock()
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.titleCalls = append(p.titleCalls, title)

	return p.nextError(&p.titleErrs)
}

func (p *fakePort) SetChatPhoto(_ context.Context, _ warden.Conversation, photoPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.photoCalls = append(p.photoCalls, photoPath)

	return p.nextError(&p.photoErrs)
}

func (p *fakePort) RecentMessages(_ context.Context, _ warden.Conversation, limit int) ([]warden.HistoryEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.historyLimits = append(p.historyLimits, limit)
	if p.historyErr != nil {
		return nil, p.historyErr
	}
	if limit < len(p.historyEntries) {
		return append([]warden.HistoryEntry(nil), p.historyEntries[:limit]...), nil
	}

	return append([]warden.HistoryEntry(nil), p.historyEntries...), nil
}

func (p *fakePort) Self(_ context.Context) (warden.Actor, error) {
	return p.selfActor, nil
}

func (p *fakePort) nextError(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]

	return err
}

func (p *fakePort) titleCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.titleCalls)
}

func (p *fakePort) deletedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.deleted...)
}

var _ warden.ChatPort = (*fakePort)(nil)

// fakeLedger records appended change records in memory.
type fakeLedger struct {
	mu        sync.Mutex
	records   []warden.ChangeRecord
	appendErr error
}

func (l *fakeLedger) Append(record warden.ChangeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	l.records = append(l.records, record)

	return nil
}

func (l *fakeLedger) Recent(limit int) ([]warden.ChangeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit > len(l.records) {
		limit = len(l.records)
	}

	result := make([]warden.ChangeRecord, 0, limit)
	for index := len(l.records) - 1; index >= 0 && len(result) < limit; index-- {
		result = append(result, l.records[index])
	}

	return result, nil
}

func (l *fakeLedger) recorded() []warden.ChangeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]warden.ChangeRecord(nil), l.records...)
}

var _ warden.ChangeLedger = (*fakeLedger)(nil)

func rateLimitError(operation string, retryAfter time.Duration) error {
	return &warden.MutationError{
		Operation:  operation,
		Kind:       warden.MutationErrorKindRateLimited,
		RetryAfter: retryAfter,
		Type:       "FLOOD_WAIT_X",
	}
}

func notModifiedError(operation string) error {
	return &warden.MutationError{
		Operation: operation,
		Kind:      warden.MutationErrorKindNotModified,
		Type:      "CHAT_NOT_MODIFIED",
	}
}

func privilegeError(operation string) error {
	return &warden.MutationError{
		Operation: operation,
		Kind:      warden.MutationErrorKindPrivilege,
		Type:      "CHAT_ADMIN_REQUIRED",
	}
}

func testConversation() warden.Conversation {
	return warden.Conversation{ID: "-100123", Type: warden.ConversationTypeGroup, Title: "den"}
}

func testActor() warden.Actor {
	return warden.Actor{ID: "7", Username: "alice", DisplayName: "Alice"}
}
