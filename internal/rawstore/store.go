// Package rawstore implements the Raw Store (RS): append-only persistence
// for raw provider rows, upserting on eventId. Rows start pending and are
// moved to processed or failed; a failed row can later be marked
// processed. Contract and naming grounded on
// the chain adapter's TransactionStateStore (Get/Set/Delete/List/Clean),
// generalized from one keyed-by-hash blob to the raw-transaction shape.
package rawstore

import (
	"time"

	"github.com/arcsign/ledgerkit/internal/model"
)

// Filter selects a subset of raw rows for Load.
type Filter struct {
	SessionID *string
	Source    *string
	Status    *model.ProcessingStatus
	Since     *time.Time
}

// Store is the RS contract.
type Store interface {
	// Save upserts rows on eventId: an existing eventId is left untouched
	// (no duplicate insert across retries), a new eventId is inserted
	// pending.
	Save(sessionID string, rows []model.RawTransaction) error

	Load(f Filter) ([]model.RawTransaction, error)

	// MarkProcessed transitions rows from pending or failed to processed.
	MarkProcessed(ids []string) error

	// MarkFailed transitions one row to failed with an error detail.
	MarkFailed(id string, errMsg string) error
}
