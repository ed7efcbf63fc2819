package telegram

import (
	"strings"
	"time"

	"chatwarden/pkg/warden"

	"github.com/gotd/td/tgerr"
)

// mapTelegramMutationError classifies one failed Telegram RPC into the
// neutral mutation error taxonomy.
func mapTelegramMutationError(operation string, err error) error {
	if err == nil {
		return nil
	}

	mutationErr := &warden.MutationError{
		Operation: operation,
		Kind:      warden.MutationErrorKindUnknown,
		Cause:     err,
	}

	if duration, ok := tgerr.AsFloodWait(err); ok {
		mutationErr.Kind = warden.MutationErrorKindRateLimited
		mutationErr.RetryAfter = duration
		fillRPCMetadata(mutationErr, err)
		return mutationErr
	}

	rpcErr, ok := tgerr.As(err)
	if !ok {
		mutationErr.Kind = warden.MutationErrorKindTemporary
		return mutationErr
	}

	mutationErr.Code = rpcErr.Code
	mutationErr.Type = rpcErr.Type
	mutationErr.Kind = classifyRPCError(rpcErr.Code, rpcErr.Type)
	if mutationErr.Kind == warden.MutationErrorKindRateLimited && mutationErr.RetryAfter == 0 {
		mutationErr.RetryAfter = time.Duration(rpcErr.Argument) * time.Second
	}

	return mutationErr
}

func fillRPCMetadata(mutationErr *warden.MutationError, err error) {
	rpcErr, ok := tgerr.As(err)
	if !ok {
		return
	}
	mutationErr.Code = rpcErr.Code
	mutationErr.Type = rpcErr.Type
}

func classifyRPCError(code int, errType string) warden.MutationErrorKind {
	switch {
	case errType == "CHAT_NOT_MODIFIED":
		return warden.MutationErrorKindNotModified
	case errType == "CHAT_ADMIN_REQUIRED" || errType == "CHAT_WRITE_FORBIDDEN" || errType == "USER_RESTRICTED":
		return warden.MutationErrorKindPrivilege
	case strings.HasPrefix(errType, "PHOTO_"):
		return warden.MutationErrorKindRejected
	case code == 420 || code == 429 || strings.Contains(errType, "FLOOD"):
		return warden.MutationErrorKindRateLimited
	case code >= 500:
		return warden.MutationErrorKindTemporary
	case code >= 400 && code <= 406:
		return warden.MutationErrorKindRejected
	default:
		return warden.MutationErrorKindUnknown
	}
}
