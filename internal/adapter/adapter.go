// Package adapter defines the Provider Adapter (PA) contract consumed by
// the Provider Manager, grounded on the chain adapter's BlockchainProvider
// interface generalized from "one blockchain RPC" to "one venue, chain or
// exchange alike."
package adapter

import (
	"context"

	"github.com/arcsign/ledgerkit/internal/model"
)

// OperationType enumerates the operation kinds PM/IMP drive adapters with.
type OperationType string

const (
	OpGetRawAddressTransactions OperationType = "getRawAddressTransactions"
	OpGetAddressBalance         OperationType = "getAddressBalance"
	OpHasAddressTransactions    OperationType = "hasAddressTransactions"
	OpGetAddressTransactions    OperationType = "getAddressTransactions"
)

// TransactionTypeHint discriminates sub-streams within GetAddressTransactions.
type TransactionTypeHint string

const (
	TxHintNormal            TransactionTypeHint = "normal"
	TxHintInternal           TransactionTypeHint = "internal"
	TxHintToken              TransactionTypeHint = "token"
	TxHintBeaconWithdrawal   TransactionTypeHint = "beacon_withdrawal"
)

// Operation is what PM routes to a provider: a type tag, parameters, and
// an optional cache-key function. Params is adapter-specific and left as
// a map so PM never needs to know a venue's request shape.
type Operation struct {
	Type            OperationType
	TransactionType TransactionTypeHint
	Params          map[string]string
	Cursor          *model.Cursor
}

// CacheKey returns the operation's cache key, or "" if the operation
// should never be cached (e.g. a write or a streaming tail op).
func (op Operation) CacheKey(source, provider string) string {
	if op.Params == nil {
		return ""
	}
	key := source + "|" + provider + "|" + string(op.Type) + "|" + string(op.TransactionType)
	if op.Cursor != nil {
		key += "|" + op.Cursor.Primary.Value
	}
	for _, v := range op.Params {
		key += "|" + v
	}
	return key
}

// Chunk is one slice of a streaming operation's results.
type Chunk struct {
	Rows         []RawRow
	ProviderName string
	Cursor       model.Cursor
	IsComplete   bool
	Stats        ChunkStats
}

// ChunkStats is advisory bookkeeping surfaced to IMP/metrics.
type ChunkStats struct {
	FetchedCount int
	ElapsedMs    int64
}

// RawRow is one venue row plus enough provenance for RS/PROC, before an
// eventId has been computed.
type RawRow struct {
	VenueTransactionID  string
	TransactionTypeHint string
	SourceAddress       string
	Payload             []byte
}

// Capabilities is what an adapter publishes so PM can capability-match.
type Capabilities struct {
	SupportedOperations        []OperationType
	SupportedTransactionTypes  []TransactionTypeHint
}

func (c Capabilities) SupportsOperation(op OperationType) bool {
	for _, o := range c.SupportedOperations {
		if o == op {
			return true
		}
	}
	return false
}

// RateLimit is the adapter's declared default throttle; PM may override
// per operator configuration.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// ProviderAdapter is the PA contract. Every reference adapter
// (evmchain, exchangecsv, exchangeapi) implements this.
type ProviderAdapter interface {
	Name() string
	Source() string
	Capabilities() Capabilities
	RateLimit() RateLimit

	Execute(ctx context.Context, op Operation) (RawRow, error)
	ExecuteStreaming(ctx context.Context, op Operation) (<-chan StreamResult, error)

	IsHealthy(ctx context.Context) (bool, error)
	BenchmarkRateLimit(ctx context.Context) (RateLimit, error)

	ExtractCursors(row RawRow) []model.Cursor
	ApplyReplayWindow(c model.Cursor) model.Cursor
}

// StreamResult is one element of ExecuteStreaming's channel: either a
// Chunk or an error, never both, mirroring Result<Chunk, ProviderError>.
type StreamResult struct {
	Chunk *Chunk
	Err   error
}
