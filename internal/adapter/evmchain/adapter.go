package evmchain

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/arcsign/ledgerkit/internal/adapter"
	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/model"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Config is the adapter's construction-time metadata, matching the PA
// contract's "registers metadata: displayName, baseUrl, rateLimit
// defaults, required/optional credentials, capability set".
type Config struct {
	DisplayName  string
	Endpoint     string
	ChainID      string
	ReplayWindow int // blocks re-fetched on resume
	RequestsPerSecond float64
	Burst             int
}

// Adapter is the reference EVM-chain Provider Adapter.
type Adapter struct {
	cfg    Config
	client *httpRPCClient
}

// New builds an Adapter against cfg. Credentials, if the venue needs an
// API key query param, are folded into cfg.Endpoint by the caller —
// credentials are opaque to the core.
func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, client: newHTTPRPCClient(cfg.Endpoint, 10*time.Second)}
}

func (a *Adapter) Name() string   { return "evmchain:" + a.cfg.DisplayName }
func (a *Adapter) Source() string { return "blockchain" }

func (a *Adapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		SupportedOperations: []adapter.OperationType{
			adapter.OpGetRawAddressTransactions,
			adapter.OpGetAddressBalance,
			adapter.OpHasAddressTransactions,
			adapter.OpGetAddressTransactions,
		},
		SupportedTransactionTypes: []adapter.TransactionTypeHint{
			adapter.TxHintNormal,
			adapter.TxHintInternal,
			adapter.TxHintToken,
			adapter.TxHintBeaconWithdrawal,
		},
	}
}

func (a *Adapter) RateLimit() adapter.RateLimit {
	rps := a.cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := a.cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return adapter.RateLimit{RequestsPerSecond: rps, Burst: burst}
}

// CanImport validates the address shape before an import session starts,
// the Importer contract's canImport pre-flight check.
func (a *Adapter) CanImport(address string) bool {
	return addressPattern.MatchString(address)
}

// Execute serves single-shot operations (balance checks, existence
// checks); address-history is always driven through ExecuteStreaming.
func (a *Adapter) Execute(ctx context.Context, op adapter.Operation) (adapter.RawRow, error) {
	address := op.Params["address"]
	if !addressPattern.MatchString(address) {
		return adapter.RawRow{}, ledgererr.New(ledgererr.CodeInput, "invalid EVM address: "+address)
	}

	switch op.Type {
	case adapter.OpGetAddressBalance:
		raw, err := a.client.call(ctx, "eth_getBalance", address, "latest")
		if err != nil {
			return adapter.RawRow{}, a.wrapProviderErr(err)
		}
		return adapter.RawRow{VenueTransactionID: address, Payload: raw}, nil
	case adapter.OpHasAddressTransactions:
		raw, err := a.client.call(ctx, "eth_getTransactionCount", address, "latest")
		if err != nil {
			return adapter.RawRow{}, a.wrapProviderErr(err)
		}
		return adapter.RawRow{VenueTransactionID: address, Payload: raw}, nil
	default:
		return adapter.RawRow{}, ledgererr.New(ledgererr.CodeInput, "unsupported single-shot op: "+string(op.Type))
	}
}

func (a *Adapter) wrapProviderErr(err error) error {
	return ledgererr.Wrap(ledgererr.CodeProvider, a.Name(), "evm rpc call failed", true, err)
}

// ExecuteStreaming fetches one eth_getLogs window of 2000 blocks starting
// at the cursor and emits it as a single Chunk; later windows are not
// fetched within the same call.
func (a *Adapter) ExecuteStreaming(ctx context.Context, op adapter.Operation) (<-chan adapter.StreamResult, error) {
	address := op.Params["address"]
	if !addressPattern.MatchString(address) {
		return nil, ledgererr.New(ledgererr.CodeInput, "invalid EVM address: "+address)
	}

	out := make(chan adapter.StreamResult)
	go func() {
		defer close(out)

		fromBlock := int64(0)
		if op.Cursor != nil && op.Cursor.Primary.Value != "" {
			if n, err := strconv.ParseInt(op.Cursor.Primary.Value, 10, 64); err == nil {
				fromBlock = n
			}
		}

		const windowSize = 2000
		raw, err := a.client.call(ctx, "eth_getLogs", map[string]string{
			"address":   address,
			"fromBlock": fmt.Sprintf("0x%x", fromBlock),
			"toBlock":   fmt.Sprintf("0x%x", fromBlock+windowSize),
		})
		if err != nil {
			select {
			case out <- adapter.StreamResult{Err: a.wrapProviderErr(err)}:
			case <-ctx.Done():
			}
			return
		}

		var logs []json.RawMessage
		_ = json.Unmarshal(raw, &logs)

		rows := make([]adapter.RawRow, 0, len(logs))
		for i, l := range logs {
			rows = append(rows, adapter.RawRow{
				VenueTransactionID:  fmt.Sprintf("%s-%d-%d", address, fromBlock, i),
				TransactionTypeHint: string(op.TransactionType),
				SourceAddress:       address,
				Payload:             l,
			})
		}

		chunk := adapter.Chunk{
			Rows:         rows,
			ProviderName: a.Name(),
			Cursor: model.Cursor{
				Primary:           model.CursorPrimary{Type: "blockNumber", Value: strconv.FormatInt(fromBlock+windowSize, 10)},
				LastTransactionID: lastVenueID(rows),
				TotalFetched:      int64(len(rows)),
				Metadata: model.CursorMetadata{
					ProviderName: a.Name(),
					UpdatedAt:    time.Now(),
					IsComplete:   len(rows) < windowSize,
				},
			},
			IsComplete: len(rows) < windowSize,
			Stats:      adapter.ChunkStats{FetchedCount: len(rows)},
		}

		select {
		case out <- adapter.StreamResult{Chunk: &chunk}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

func lastVenueID(rows []adapter.RawRow) string {
	if len(rows) == 0 {
		return ""
	}
	return rows[len(rows)-1].VenueTransactionID
}

func (a *Adapter) IsHealthy(ctx context.Context) (bool, error) {
	_, err := a.client.call(ctx, "eth_blockNumber")
	return err == nil, err
}

func (a *Adapter) BenchmarkRateLimit(ctx context.Context) (adapter.RateLimit, error) {
	return a.RateLimit(), nil
}

// ExtractCursors derives a candidate cursor from a single raw row — used
// when a venue row itself carries a block number IMP wants to fast-forward
// to, independent of the chunk-level cursor ExecuteStreaming already
// advances.
func (a *Adapter) ExtractCursors(row adapter.RawRow) []model.Cursor {
	return nil
}

// ApplyReplayWindow rewinds the cursor by cfg.ReplayWindow blocks so a
// resume re-fetches the overlap and catches late-arriving reorgs.
func (a *Adapter) ApplyReplayWindow(c model.Cursor) model.Cursor {
	if c.Primary.Value == "" {
		return c
	}
	n, err := strconv.ParseInt(c.Primary.Value, 10, 64)
	if err != nil {
		return c
	}
	window := int64(a.cfg.ReplayWindow)
	rewound := n - window
	if rewound < 0 {
		rewound = 0
	}
	c.Primary.Value = strconv.FormatInt(rewound, 10)
	c.Metadata.ReplayWindow = a.cfg.ReplayWindow
	return c
}

var _ adapter.ProviderAdapter = (*Adapter)(nil)
