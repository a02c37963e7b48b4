// Package processor implements the Processor (PROC): it maps raw venue
// rows into canonical transactions via a registry of pure, per-venue
// mapper functions, then validates every mapped transaction before it
// reaches the Canonical Store.
//
// Grounded on the chain adapter's per-chain transaction-decoding
// functions (each chain package's own row-to-domain-object conversion),
// generalized into an explicit registry keyed by (source, providerName)
// instead of one function per chain package.
package processor

import (
	"time"

	"github.com/arcsign/ledgerkit/internal/model"
)

// SessionMetadata is the read-only context a mapper may consult; it
// never performs I/O itself, so whatever a mapper needs from the
// account or session is threaded in here instead.
type SessionMetadata struct {
	AccountID  string
	SourceName string
	ImportedAt time.Time
}

// Mapper is the PROC mapper contract for one (source, providerName)
// pair. Pair runs first over an entire batch so multi-row operations
// (convert/swap pairs) can be detected before per-group mapping; the
// default behavior (embed baseMapper) leaves every row ungrouped.
type Mapper interface {
	// Pair partitions rows into groups representing one logical
	// operation each. Most mappers return one singleton group per row.
	Pair(rows []model.RawTransaction) [][]model.RawTransaction
	// Map converts one group into a canonical transaction, or returns a
	// nil transaction to signal an intentional skip (e.g. an internal
	// transfer the venue double-reports).
	Map(group []model.RawTransaction, meta SessionMetadata) (*model.CanonicalTransaction, error)
}

// baseMapper gives concrete mappers a default Pair (no grouping) so
// they only need to implement Map, unless they also group rows.
type baseMapper struct{}

func (baseMapper) Pair(rows []model.RawTransaction) [][]model.RawTransaction {
	groups := make([][]model.RawTransaction, len(rows))
	for i, r := range rows {
		groups[i] = []model.RawTransaction{r}
	}
	return groups
}
