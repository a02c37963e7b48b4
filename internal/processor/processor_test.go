package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/ledgerkit/internal/model"
)

func TestProcessBatch_NoMapperRegisteredQuarantinesAllRows(t *testing.T) {
	registry := NewRegistry()
	p := New(registry, nil)

	rows := []model.RawTransaction{
		{ID: "r1", ProviderName: "unknown:primary", Payload: []byte(`{}`)},
	}
	outcomes := p.ProcessBatch(rows, SessionMetadata{SourceName: "exchange-csv"})

	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0].Err)
	assert.Nil(t, outcomes[0].Canonical)
}

func TestProcessBatch_OneMalformedRowDoesNotBlockTheRest(t *testing.T) {
	registry := NewRegistry()
	registry.Register("exchange-csv", "exchangecsv:primary", NewExchangeCSVMapper())
	p := New(registry, nil)

	good := csvRow(t, "r1", map[string]string{
		"venue_tx_id": "tx-ok", "timestamp": "2026-01-01T00:00:00Z",
		"type": "deposit", "base_asset": "BTC", "base_amount": "1",
	})
	bad := model.RawTransaction{ID: "r2", ProviderName: "exchangecsv:primary", Payload: []byte("garbage")}

	outcomes := p.ProcessBatch([]model.RawTransaction{good, bad}, SessionMetadata{SourceName: "exchange-csv"})
	require.Len(t, outcomes, 2)

	var sawSuccess, sawFailure bool
	for _, o := range outcomes {
		switch {
		case o.Canonical != nil:
			sawSuccess = true
		case o.Err != nil:
			sawFailure = true
		}
	}
	assert.True(t, sawSuccess, "the well-formed row must still be mapped")
	assert.True(t, sawFailure, "the malformed row must be quarantined, not silently dropped")
}

func TestProcessBatch_ValidationFailureIsReportedAsOutcomeError(t *testing.T) {
	registry := NewRegistry()
	registry.Register("exchange-csv", "exchangecsv:primary", NewExchangeCSVMapper())
	p := New(registry, nil)

	zeroAmount := csvRow(t, "r1", map[string]string{
		"venue_tx_id": "tx-zero", "timestamp": "2026-01-01T00:00:00Z",
		"type": "deposit", "base_asset": "BTC", "base_amount": "0",
	})

	outcomes := p.ProcessBatch([]model.RawTransaction{zeroAmount}, SessionMetadata{SourceName: "exchange-csv"})
	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0].Err)
	assert.Nil(t, outcomes[0].Canonical)
}
