package telegram

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/gotd/td/tg"
)

const (
	mediaRefKindPhoto    = "photo"
	mediaRefKindDocument = "document"
)

// mediaRef is the decoded form of the opaque attachment token the driver
// hands out in MediaPayload.Ref. It carries everything needed to build a
// Telegram file location later, without keeping gotd objects alive.
type mediaRef struct {
	kind          string
	id            int64
	accessHash    int64
	fileReference []byte
	thumbType     string
}

func encodePhotoRef(photo *tg.Photo) string {
	if photo == nil {
		return ""
	}
	thumbType := largestPhotoSizeType(photo.Sizes)
	if thumbType == "" {
		return ""
	}

	return strings.Join([]string{
		mediaRefKindPhoto,
		strconv.FormatInt(photo.ID, 10),
		strconv.FormatInt(photo.AccessHash, 10),
		base64.RawURLEncoding.EncodeToString(photo.FileReference),
		thumbType,
	}, ":")
}

func encodeDocumentRef(document *tg.Document) string {
	if document == nil {
		return ""
	}

	return strings.Join([]string{
		mediaRefKindDocument,
		strconv.FormatInt(document.ID, 10),
		strconv.FormatInt(document.AccessHash, 10),
		base64.RawURLEncoding.EncodeToString(document.FileReference),
	}, ":")
}

func parseMediaRef(ref string) (mediaRef, error) {
	parts := strings.Split(ref, ":")
	if len(parts) < 4 {
		return mediaRef{}, fmt.Errorf("parse media ref: malformed token")
	}

	parsed := mediaRef{kind: parts[0]}
	switch parsed.kind {
	case mediaRefKindPhoto:
		if len(parts) != 5 {
			return mediaRef{}, fmt.Errorf("parse media ref: malformed photo token")
		}
		parsed.thumbType = parts[4]
	case mediaRefKindDocument:
		if len(parts) != 4 {
			return mediaRef{}, fmt.Errorf("parse media ref: malformed document token")
		}
	default:
		return mediaRef{}, fmt.Errorf("parse media ref: unsupported kind %q", parsed.kind)
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return mediaRef{}, fmt.Errorf("parse media ref id: %w", err)
	}
	accessHash, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return mediaRef{}, fmt.Errorf("parse media ref access hash: %w", err)
	}
	fileReference, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil {
		return mediaRef{}, fmt.Errorf("parse media ref file reference: %w", err)
	}

	parsed.id = id
	parsed.accessHash = accessHash
	parsed.fileReference = fileReference

	return parsed, nil
}

func (r mediaRef) fileLocation() tg.InputFileLocationClass {
	switch r.kind {
	case mediaRefKindPhoto:
		return &tg.InputPhotoFileLocation{
			ID:            r.id,
			AccessHash:    r.accessHash,
			FileReference: r.fileReference,
			ThumbSize:     r.thumbType,
		}
	case mediaRefKindDocument:
		return &tg.InputDocumentFileLocation{
			ID:            r.id,
			AccessHash:    r.accessHash,
			FileReference: r.fileReference,
		}
	default:
		return nil
	}
}

// largestPhotoSizeType picks the size token of the highest-resolution
// downloadable variant.
func largestPhotoSizeType(sizes []tg.PhotoSizeClass) string {
	bestType := ""
	bestArea := -1
	for _, size := range sizes {
		var area int
		var sizeType string
		switch typed := size.(type) {
		case *tg.PhotoSize:
			area = typed.W * typed.H
			sizeType = typed.Type
		case *tg.PhotoSizeProgressive:
			area = typed.W * typed.H
			sizeType = typed.Type
		case *tg.PhotoCachedSize:
			area = typed.W * typed.H
			sizeType = typed.Type
		default:
			continue
		}
		if area > bestArea && sizeType != "" {
			bestArea = area
			bestType = sizeType
		}
	}

	return bestType
}
