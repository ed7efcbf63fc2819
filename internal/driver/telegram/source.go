package telegram

import (
	"context"
	"fmt"
)

// UpdateHandler processes one decoded platform update.
type UpdateHandler func(ctx context.Context, update Update) error

// UpdateSource feeds platform updates into the driver loop.
type UpdateSource interface {
	// Consume invokes handler for every update until the context ends or
	// the underlying stream fails.
	Consume(ctx context.Context, handler UpdateHandler) error
}

// ChannelSource drains a prepared update channel in order.
type ChannelSource struct {
	Updates <-chan Update
}

// Consume delivers updates until the channel closes or the context ends.
// A closed channel is a clean stream end, not an error.
func (s ChannelSource) Consume(ctx context.Context, handler UpdateHandler) error {
	if handler == nil {
		return fmt.Errorf("channel source: nil handler")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-s.Updates:
			if !ok {
				return nil
			}
			if err := handler(ctx, update); err != nil {
				return fmt.Errorf("channel source: deliver %s update: %w", update.Type, err)
			}
		}
	}
}
