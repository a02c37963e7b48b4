package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/ledgerkit/internal/model"
)

func evmRow(t *testing.T, id, venueTxID, body string) model.RawTransaction {
	t.Helper()
	return model.RawTransaction{
		ID:                 id,
		SourceName:         "blockchain",
		ProviderName:       "evmchain:1",
		VenueTransactionID: venueTxID,
		Payload:            []byte(body),
	}
}

func TestEVMChainMapper_OutflowNetsGasIntoOnChainFee(t *testing.T) {
	m := NewEVMChainMapper()
	row := evmRow(t, "r1", "0xhash1", `{
		"timestamp":"2026-01-01T00:00:00Z",
		"asset":"ETH","amount":"1.0","direction":"outflow",
		"gasPaid":"0.002","gasAsset":"ETH"
	}`)

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "blockchain"})
	require.NoError(t, err)
	require.NotNil(t, ct)

	require.Len(t, ct.Movements, 1)
	mv := ct.Movements[0]
	assert.True(t, mv.GrossAmount.Equal(mustAmount(t, "1.0")))
	assert.True(t, mv.NetAmount.Equal(mustAmount(t, "0.998")), "net must be gross minus gas")

	require.Len(t, ct.Fees, 1)
	assert.Equal(t, model.FeeScopeNetwork, ct.Fees[0].Scope)
	assert.Equal(t, model.FeeSettlementOnChain, ct.Fees[0].Settlement)
	assert.Equal(t, mv.MovementID, ct.Fees[0].FundedFromMovementID)

	require.NoError(t, validate(ct))
}

func TestEVMChainMapper_InflowHasNoGasFee(t *testing.T) {
	m := NewEVMChainMapper()
	row := evmRow(t, "r1", "0xhash2", `{
		"timestamp":"2026-01-01T00:00:00Z",
		"asset":"ETH","amount":"2.0","direction":"inflow"
	}`)

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "blockchain"})
	require.NoError(t, err)
	assert.Empty(t, ct.Fees)
	assert.Equal(t, "deposit", ct.Operation.Type)
}

func TestEVMChainMapper_GasInDifferentAssetIsNotNetted(t *testing.T) {
	// an outflow whose gas was paid in a different asset than the
	// transferred one (e.g. an ERC-20 transfer, gas paid in the native
	// coin) must not net against this movement's amount.
	m := NewEVMChainMapper()
	row := evmRow(t, "r1", "0xhash3", `{
		"timestamp":"2026-01-01T00:00:00Z",
		"asset":"USDC","amount":"100","direction":"outflow",
		"gasPaid":"0.002","gasAsset":"ETH"
	}`)

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "blockchain"})
	require.NoError(t, err)
	assert.Empty(t, ct.Fees)
	assert.True(t, ct.Movements[0].NetAmount.Equal(mustAmount(t, "100")))
}

func TestEVMChainMapper_MalformedPayloadIsSchemaError(t *testing.T) {
	m := NewEVMChainMapper()
	row := evmRow(t, "r1", "0xhash4", `not json`)

	ct, err := m.Map([]model.RawTransaction{row}, SessionMetadata{SourceName: "blockchain"})
	require.Error(t, err)
	assert.Nil(t, ct)
}
