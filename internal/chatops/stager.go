package chatops

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"chatwarden/pkg/warden"
)

// StagedAsset is one downloaded attachment on local disk, owned by the
// caller until released. Release is idempotent.
type StagedAsset struct {
	path    string
	logger  *slog.Logger
	release sync.Once
}

// Path returns the local file path of the staged asset.
func (a *StagedAsset) Path() string {
	if a == nil {
		return ""
	}

	return a.path
}

// Release removes the staged file from disk. Safe to call more than once.
func (a *StagedAsset) Release() {
	if a == nil {
		return
	}

	a.release.Do(func() {
		if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("staged asset cleanup failed", "path", a.path, "error", err)
		}
	})
}

// AssetStager downloads command attachments into a staging directory so the
// platform port can upload them from a stable local path.
type AssetStager struct {
	port   warden.ChatPort
	dir    string
	logger *slog.Logger
}

// NewAssetStager builds a stager writing into dir, or the OS temp directory
// when dir is empty.
func NewAssetStager(port warden.ChatPort, dir string, logger *slog.Logger) *AssetStager {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AssetStager{port: port, dir: dir, logger: logger}
}

// Stage downloads media into the staging directory and returns the staged
// asset. The caller owns the asset and must call Release when done.
func (s *AssetStager) Stage(
	ctx context.Context,
	conversation warden.Conversation,
	sourceMessageID string,
	media warden.MediaAttachment,
) (*StagedAsset, error) {
	if media.Ref == "" {
		return nil, fmt.Errorf("stage media: %w: missing media ref", warden.ErrInvalidRequest)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("stage media: create staging dir %s: %w", s.dir, err)
	}

	name := fmt.Sprintf(
		"chat_photo_%s_%s.jpg",
		sanitizePathToken(conversation.ID),
		sanitizePathToken(sourceMessageID),
	)
	path := filepath.Join(s.dir, name)

	if err := s.port.DownloadMedia(ctx, media.Ref, path); err != nil {
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			s.logger.Warn("partial download cleanup failed", "path", path, "error", removeErr)
		}

		return nil, fmt.Errorf("stage media: download %s: %w", media.Ref, err)
	}

	return &StagedAsset{path: path, logger: s.logger}, nil
}

func sanitizePathToken(token string) string {
	if token == "" {
		return "unknown"
	}

	return strings.Map(func(char rune) rune {
		switch {
		case char >= 'a' && char <= 'z',
			char >= 'A' && char <= 'Z',
			char >= '0' && char <= '9',
			char == '-', char == '_':
			return char
		default:
			return '_'
		}
	}, token)
}
