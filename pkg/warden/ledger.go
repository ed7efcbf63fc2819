package warden

import (
	"fmt"
	"time"
)

// ChangeRecord is one chat metadata change recorded in the change ledger.
type ChangeRecord struct {
	// Timestamp is when the change was recorded.
	Timestamp time.Time
	// NewValue is the new title, or PhotoLedgerValue for photo changes.
	NewValue string
	// ChangedBy is the audit identity of whoever made the change.
	ChangedBy string
}

// Validate checks change record coherence.
func (r *ChangeRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil change record", ErrInvalidRequest)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidRequest)
	}
	if r.NewValue == "" {
		return fmt.Errorf("%w: missing new value", ErrInvalidRequest)
	}

	return nil
}

// ChangeLedger is the append-only audit record of chat metadata changes.
//
// Appended records are never rewritten or deleted.
type ChangeLedger interface {
	// Append durably records one change.
	Append(record ChangeRecord) error
	// Recent returns up to limit most recent records, newest first.
	// An empty ledger yields an empty slice, not an error.
	Recent(limit int) ([]ChangeRecord, error)
}
