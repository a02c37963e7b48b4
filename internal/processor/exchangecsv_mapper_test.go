package processor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/ledgerkit/internal/model"
)

func csvRow(t *testing.T, id string, cols map[string]string) model.RawTransaction {
	t.Helper()
	payload, err := json.Marshal(cols)
	require.NoError(t, err)
	return model.RawTransaction{
		ID:                 id,
		SourceName:         "exchange-csv",
		ProviderName:       "exchangecsv:primary",
		VenueTransactionID: cols["venue_tx_id"],
		Payload:            payload,
	}
}

func TestExchangeCSVMapper_MapsBuyTradeWithFee(t *testing.T) {
	m := NewExchangeCSVMapper()
	row := csvRow(t, "r1", map[string]string{
		"venue_tx_id":  "tx-1",
		"timestamp":    "2026-01-01T00:00:00Z",
		"type":         "buy",
		"base_asset":   "BTC",
		"base_amount":  "0.5",
		"quote_asset":  "USD",
		"quote_amount": "20000",
		"fee_amount":   "5",
		"fee_asset":    "USD",
		"order_id":     "ord-1",
	})

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-csv"})
	require.NoError(t, err)
	require.NotNil(t, ct)

	assert.Equal(t, "tx-1", ct.ExternalID)
	assert.Equal(t, "trade", ct.Operation.Category)
	assert.Equal(t, "buy", ct.Operation.Type)
	require.Len(t, ct.Movements, 2)
	assert.Equal(t, model.DirectionInflow, ct.Movements[0].Direction)
	assert.Equal(t, model.DirectionOutflow, ct.Movements[1].Direction)
	require.Len(t, ct.Fees, 1)
	assert.Equal(t, model.FeeScopePlatform, ct.Fees[0].Scope)

	require.NoError(t, validate(ct))
}

func TestExchangeCSVMapper_WithdrawalFeeLedgerDebitAddsMovement(t *testing.T) {
	m := NewExchangeCSVMapper()
	row := csvRow(t, "r1", map[string]string{
		"venue_tx_id":      "tx-2",
		"timestamp":        "2026-01-01T00:00:00Z",
		"type":             "withdrawal",
		"base_asset":       "ETH",
		"base_amount":      "1.0",
		"fee_amount":       "0.01",
		"fee_asset":        "ETH",
		"fee_ledger_debit": "true",
	})

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-csv"})
	require.NoError(t, err)
	require.NotNil(t, ct)

	require.Len(t, ct.Movements, 2, "fee_ledger_debit=true must add a separate outflow movement for the fee")
	assert.Equal(t, model.DirectionOutflow, ct.Movements[1].Direction)
	assert.Equal(t, "ETH", ct.Movements[1].Asset)
}

func TestExchangeCSVMapper_PlatformFeeInDifferentAssetWithoutLedgerDebit(t *testing.T) {
	m := NewExchangeCSVMapper()
	row := csvRow(t, "r1", map[string]string{
		"venue_tx_id": "tx-s4", "timestamp": "2026-01-01T00:00:00Z",
		"type": "withdrawal", "base_asset": "BTC", "base_amount": "0.25",
		"fee_amount": "0.0005", "fee_asset": "BNB",
	})

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-csv"})
	require.NoError(t, err)
	require.NotNil(t, ct)

	require.Len(t, ct.Movements, 1, "no fee_ledger_debit flag means no separate BNB outflow movement")
	assert.True(t, ct.Movements[0].GrossAmount.Equal(mustAmount(t, "0.25")))
	assert.True(t, ct.Movements[0].NetAmount.Equal(mustAmount(t, "0.25")))

	require.Len(t, ct.Fees, 1)
	assert.Equal(t, model.FeeScopePlatform, ct.Fees[0].Scope)
	assert.Equal(t, "BNB", ct.Fees[0].Currency)
}

func TestExchangeCSVMapper_UnrecognizedTypeIsIntentionalSkip(t *testing.T) {
	m := NewExchangeCSVMapper()
	row := csvRow(t, "r1", map[string]string{
		"venue_tx_id": "tx-3",
		"timestamp":   "2026-01-01T00:00:00Z",
		"type":        "staking_reward_lock",
	})

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-csv"})
	assert.NoError(t, err)
	assert.Nil(t, ct, "an unrecognized row type must be a silent skip, not an error")
}

func TestExchangeCSVMapper_MalformedPayloadIsSchemaError(t *testing.T) {
	m := NewExchangeCSVMapper()
	row := model.RawTransaction{ID: "r1", SourceName: "exchange-csv", Payload: []byte("not json")}

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-csv"})
	require.Error(t, err)
	assert.Nil(t, ct)
}

func TestExchangeCSVMapper_PairsConvertMarketRows(t *testing.T) {
	m := NewExchangeCSVMapper()
	deposit := csvRow(t, "r1", map[string]string{
		"venue_tx_id": "tx-4a", "timestamp": "2026-01-01T00:00:00Z",
		"type": "deposit", "base_asset": "BTC", "base_amount": "0.01", "remark": convertMarketRemark,
	})
	withdrawal := csvRow(t, "r2", map[string]string{
		"venue_tx_id": "tx-4b", "timestamp": "2026-01-01T00:00:00Z",
		"type": "withdrawal", "base_asset": "USD", "base_amount": "500", "remark": convertMarketRemark,
	})

	groups := m.Pair([]model.RawTransaction{deposit, withdrawal})
	require.Len(t, groups, 1, "a matched convert-market pair must collapse to one group")
	require.Len(t, groups[0], 2)

	ct, err := m.Map(groups[0], SessionMetadata{SourceName: "exchange-csv"})
	require.NoError(t, err)
	require.NotNil(t, ct)
	assert.Equal(t, "swap", ct.Operation.Type)
	assert.Equal(t, "tx-4a+tx-4b", ct.ExternalID)
	require.NoError(t, validate(ct))
}

func TestExchangeCSVMapper_MapIsPureAndDeterministic(t *testing.T) {
	row := csvRow(t, "r1", map[string]string{
		"venue_tx_id": "tx-6", "timestamp": "2026-01-01T00:00:00Z",
		"type": "buy", "base_asset": "BTC", "base_amount": "0.1",
		"quote_asset": "USDT", "quote_amount": "4200",
	})
	m := NewExchangeCSVMapper()

	first, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-csv"})
	require.NoError(t, err)
	second, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-csv"})
	require.NoError(t, err)

	assert.Equal(t, first.ExternalID, second.ExternalID)
	assert.Equal(t, first.Operation, second.Operation)
	assert.Equal(t, first.Movements, second.Movements)
}

func TestExchangeCSVMapper_UnpairedConvertMarketRowFallsBackToOrdinary(t *testing.T) {
	m := NewExchangeCSVMapper()
	lonely := csvRow(t, "r1", map[string]string{
		"venue_tx_id": "tx-5", "timestamp": "2026-01-01T00:00:00Z",
		"type": "deposit", "base_asset": "BTC", "base_amount": "0.01", "remark": convertMarketRemark,
	})

	groups := m.Pair([]model.RawTransaction{lonely})
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 1, "an unmatched convert-market row must map individually rather than be dropped")
}
