package chatops

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatwarden/pkg/warden"
)

// Pipeline serializes chat metadata mutations per chat and carries each one
// through staging, platform execution, notice suppression, and ledger
// recording. A chat with a mutation in flight rejects further intents with
// warden.ErrChatBusy instead of queueing them.
type Pipeline struct {
	port       warden.ChatPort
	ledger     warden.ChangeLedger
	stager     *AssetStager
	executor   *Executor
	suppressor *NoticeSuppressor
	logger     *slog.Logger
	now        func() time.Time

	chatLocks sync.Map
}

type pipelineConfig struct {
	logger     *slog.Logger
	stagingDir string
	sleep      SleepFunc
	now        func() time.Time
}

// PipelineOption customizes pipeline construction.
type PipelineOption func(*pipelineConfig)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(config *pipelineConfig) {
		if logger != nil {
			config.logger = logger
		}
	}
}

// WithStagingDir sets the directory photo attachments are downloaded into.
func WithStagingDir(dir string) PipelineOption {
	return func(config *pipelineConfig) {
		config.stagingDir = dir
	}
}

// WithSleep replaces the rate-limit retry wait.
func WithSleep(sleep SleepFunc) PipelineOption {
	return func(config *pipelineConfig) {
		config.sleep = sleep
	}
}

// WithClock replaces the ledger timestamp source.
func WithClock(now func() time.Time) PipelineOption {
	return func(config *pipelineConfig) {
		if now != nil {
			config.now = now
		}
	}
}

// NewPipeline builds a mutation pipeline over port and changeLedger.
func NewPipeline(
	port warden.ChatPort,
	changeLedger warden.ChangeLedger,
	options ...PipelineOption,
) (*Pipeline, error) {
	if port == nil {
		return nil, fmt.Errorf("new pipeline: %w: nil chat port", warden.ErrInvalidRequest)
	}
	if changeLedger == nil {
		return nil, fmt.Errorf("new pipeline: %w: nil change ledger", warden.ErrInvalidRequest)
	}

	config := pipelineConfig{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, option := range options {
		option(&config)
	}

	return &Pipeline{
		port:       port,
		ledger:     changeLedger,
		stager:     NewAssetStager(port, config.stagingDir, config.logger),
		executor:   NewExecutor(port, config.sleep, config.logger),
		suppressor: NewNoticeSuppressor(port, config.logger),
		logger:     config.logger,
		now:        config.now,
	}, nil
}

var _ warden.MutationPipeline = (*Pipeline)(nil)

// Rename changes the chat title for one rename intent.
func (p *Pipeline) Rename(ctx context.Context, intent warden.Intent) (warden.MutationOutcome, error) {
	if err := requireIntentKind(&intent, warden.IntentKindRename); err != nil {
		return warden.MutationOutcome{}, err
	}

	request := warden.MutationRequest{
		Conversation: intent.Conversation,
		Kind:         warden.MutationKindTitle,
		Title:        intent.Title,
	}

	return p.mutate(ctx, intent, request, warden.NoticeKindTitle)
}

// SetPhoto changes the chat photo for one repic intent.
func (p *Pipeline) SetPhoto(ctx context.Context, intent warden.Intent) (warden.MutationOutcome, error) {
	if err := requireIntentKind(&intent, warden.IntentKindRepic); err != nil {
		return warden.MutationOutcome{}, err
	}

	asset, err := p.stager.Stage(ctx, intent.Conversation, intent.SourceMessageID, *intent.Media)
	if err != nil {
		return warden.MutationOutcome{}, fmt.Errorf("set photo: %w", err)
	}
	defer asset.Release()

	request := warden.MutationRequest{
		Conversation: intent.Conversation,
		Kind:         warden.MutationKindPhoto,
		PhotoPath:    asset.Path(),
	}

	return p.mutate(ctx, intent, request, warden.NoticeKindPhoto)
}

// SuppressNotice deletes recent notices of the given kind posted for
// mutations made by other chat participants.
func (p *Pipeline) SuppressNotice(
	ctx context.Context,
	conversation warden.Conversation,
	kind warden.NoticeKind,
) error {
	return p.suppressor.SuppressExternal(ctx, conversation, kind)
}

func (p *Pipeline) mutate(
	ctx context.Context,
	intent warden.Intent,
	request warden.MutationRequest,
	noticeKind warden.NoticeKind,
) (warden.MutationOutcome, error) {
	unlock, err := p.lockChat(intent.Conversation)
	if err != nil {
		return warden.MutationOutcome{}, err
	}
	defer unlock()

	logger := p.logger.With(
		"correlation_id", uuid.NewString(),
		"chat_id", intent.Conversation.ID,
		"mutation", string(request.Kind),
	)

	outcome, err := p.executor.Execute(ctx, request)
	if err != nil {
		logger.Error("mutation failed", "retried", outcome.Retried, "error", err)

		return outcome, err
	}
	if outcome.NotModified {
		logger.Info("mutation was a no-op, value already current")

		return outcome, nil
	}

	if suppressErr := p.suppressor.SuppressOwn(ctx, intent.Conversation, noticeKind); suppressErr != nil {
		logger.Warn("notice suppression failed", "error", suppressErr)
	}

	record := warden.ChangeRecord{
		Timestamp: p.now(),
		NewValue:  request.LedgerValue(),
		ChangedBy: intent.Actor.Identity(),
	}
	if appendErr := p.ledger.Append(record); appendErr != nil {
		// The platform mutation already happened, so a ledger write failure
		// must not fail the operation. The change is simply unrecorded.
		logger.Error("ledger append failed", "error", appendErr)
	}

	logger.Info("mutation applied", "retried", outcome.Retried)

	return outcome, nil
}

func (p *Pipeline) lockChat(conversation warden.Conversation) (func(), error) {
	value, _ := p.chatLocks.LoadOrStore(conversation.ID, &sync.Mutex{})
	lock, ok := value.(*sync.Mutex)
	if !ok {
		return nil, fmt.Errorf("lock chat %s: %w: corrupt lock table", conversation.ID, warden.ErrInvalidRequest)
	}
	if !lock.TryLock() {
		return nil, fmt.Errorf("chat %s has a mutation in flight: %w", conversation.ID, warden.ErrChatBusy)
	}

	return lock.Unlock, nil
}

func requireIntentKind(intent *warden.Intent, kind warden.IntentKind) error {
	if err := intent.Validate(); err != nil {
		return err
	}
	if intent.Kind != kind {
		return fmt.Errorf("%w: expected %s intent, got %s", warden.ErrInvalidRequest, kind, intent.Kind)
	}

	return nil
}
