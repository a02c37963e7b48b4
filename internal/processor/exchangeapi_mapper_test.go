package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/ledgerkit/internal/model"
)

func ledgerRow(t *testing.T, id, venueTxID, body string) model.RawTransaction {
	t.Helper()
	return model.RawTransaction{
		ID:                 id,
		SourceName:         "exchange-api",
		ProviderName:       "exchangeapi:primary",
		VenueTransactionID: venueTxID,
		Payload:            []byte(body),
	}
}

func TestExchangeAPIMapper_MapsDepositEntry(t *testing.T) {
	m := NewExchangeAPIMapper()
	row := ledgerRow(t, "r1", "tx-1", `{
		"timestamp":"2026-01-01T00:00:00Z",
		"type":"deposit","asset":"BTC","amount":"0.5","direction":"inflow"
	}`)

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-api"})
	require.NoError(t, err)
	require.NotNil(t, ct)

	assert.Equal(t, "tx-1", ct.ExternalID)
	assert.Equal(t, "deposit", ct.Operation.Type)
	require.Len(t, ct.Movements, 1)
	assert.Equal(t, model.DirectionInflow, ct.Movements[0].Direction)
	assert.Empty(t, ct.Fees)

	require.NoError(t, validate(ct))
}

func TestExchangeAPIMapper_WithdrawalWithPlatformFeeInDifferentAsset(t *testing.T) {
	m := NewExchangeAPIMapper()
	row := ledgerRow(t, "r1", "tx-2", `{
		"timestamp":"2026-01-01T00:00:00Z",
		"type":"withdrawal","asset":"ETH","amount":"1.0","direction":"outflow",
		"feeAmount":"2.5","feeAsset":"USD"
	}`)

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-api"})
	require.NoError(t, err)
	require.NotNil(t, ct)

	require.Len(t, ct.Movements, 1, "a platform fee in a different asset does not add a second movement")
	require.Len(t, ct.Fees, 1)
	assert.Equal(t, model.FeeScopePlatform, ct.Fees[0].Scope)
	assert.Equal(t, model.FeeSettlementBalance, ct.Fees[0].Settlement)
	assert.Equal(t, "USD", ct.Fees[0].Currency)
	assert.Equal(t, ct.Movements[0].MovementID, ct.Fees[0].FundedFromMovementID)

	require.NoError(t, validate(ct))
}

func TestExchangeAPIMapper_ZeroFeeAmountIsOmitted(t *testing.T) {
	m := NewExchangeAPIMapper()
	row := ledgerRow(t, "r1", "tx-3", `{
		"timestamp":"2026-01-01T00:00:00Z",
		"type":"deposit","asset":"BTC","amount":"1.0","direction":"inflow",
		"feeAmount":"0","feeAsset":"BTC"
	}`)

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-api"})
	require.NoError(t, err)
	assert.Empty(t, ct.Fees, "an explicit zero feeAmount must not produce a Fee entry")
}

func TestExchangeAPIMapper_DefaultsOperationTypeFromDirectionWhenTypeMissing(t *testing.T) {
	m := NewExchangeAPIMapper()
	row := ledgerRow(t, "r1", "tx-4", `{
		"timestamp":"2026-01-01T00:00:00Z",
		"asset":"BTC","amount":"1.0","direction":"outflow"
	}`)

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-api"})
	require.NoError(t, err)
	assert.Equal(t, "withdrawal", ct.Operation.Type)
}

func TestExchangeAPIMapper_InvalidTimestampIsSchemaError(t *testing.T) {
	m := NewExchangeAPIMapper()
	row := ledgerRow(t, "r1", "tx-5", `{
		"timestamp":"not-a-time",
		"type":"deposit","asset":"BTC","amount":"1.0","direction":"inflow"
	}`)

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-api"})
	require.Error(t, err)
	assert.Nil(t, ct)
}

func TestExchangeAPIMapper_MalformedPayloadIsSchemaError(t *testing.T) {
	m := NewExchangeAPIMapper()
	row := ledgerRow(t, "r1", "tx-6", `not json`)

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "exchange-api"})
	require.Error(t, err)
	assert.Nil(t, ct)
}
