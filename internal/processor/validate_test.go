package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/model"
)

func mustAmount(t *testing.T, s string) model.Amount {
	t.Helper()
	amt, err := model.ParseAmount(s)
	require.NoError(t, err)
	return amt
}

func TestValidate_RejectsNoMovements(t *testing.T) {
	ct := &model.CanonicalTransaction{}
	err := validate(ct)
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.CodeInvariantViolation))
}

func TestValidate_RejectsZeroGrossAmount(t *testing.T) {
	ct := &model.CanonicalTransaction{
		Movements: []model.Movement{
			{MovementID: "m1", GrossAmount: model.ZeroAmount, NetAmount: model.ZeroAmount},
		},
	}
	err := validate(ct)
	require.Error(t, err)
}

func TestValidate_RejectsNetExceedingGross(t *testing.T) {
	ct := &model.CanonicalTransaction{
		Movements: []model.Movement{
			{MovementID: "m1", GrossAmount: mustAmount(t, "10"), NetAmount: mustAmount(t, "11")},
		},
	}
	err := validate(ct)
	require.Error(t, err)
}

func TestValidate_RejectsFeeReferencingUnknownMovement(t *testing.T) {
	ct := &model.CanonicalTransaction{
		Movements: []model.Movement{
			{MovementID: "m1", GrossAmount: mustAmount(t, "10"), NetAmount: mustAmount(t, "10")},
		},
		Fees: []model.Fee{
			{Amount: mustAmount(t, "1"), Currency: "ETH", FundedFromMovementID: "does-not-exist"},
		},
	}
	err := validate(ct)
	require.Error(t, err)
}

func TestValidate_RejectsUnfundedNetworkOnChainFee(t *testing.T) {
	ct := &model.CanonicalTransaction{
		Movements: []model.Movement{
			{MovementID: "m1", GrossAmount: mustAmount(t, "10"), NetAmount: mustAmount(t, "10")},
		},
		Fees: []model.Fee{
			{Amount: mustAmount(t, "1"), Currency: "ETH", Scope: model.FeeScopeNetwork, Settlement: model.FeeSettlementOnChain},
		},
	}
	err := validate(ct)
	require.Error(t, err)
}

func TestValidate_AcceptsFundedNetworkOnChainFee(t *testing.T) {
	ct := &model.CanonicalTransaction{
		Movements: []model.Movement{
			{MovementID: "m1", GrossAmount: mustAmount(t, "10"), NetAmount: mustAmount(t, "9")},
		},
		Fees: []model.Fee{
			{Amount: mustAmount(t, "1"), Currency: "ETH", Scope: model.FeeScopeNetwork, Settlement: model.FeeSettlementOnChain, FundedFromMovementID: "m1"},
		},
	}
	assert.NoError(t, validate(ct))
}

func TestValidate_AcceptsWellFormedTransaction(t *testing.T) {
	ct := &model.CanonicalTransaction{
		Movements: []model.Movement{
			{MovementID: "m1", GrossAmount: mustAmount(t, "10"), NetAmount: mustAmount(t, "10")},
			{MovementID: "m2", GrossAmount: mustAmount(t, "5"), NetAmount: mustAmount(t, "5")},
		},
		Fees: []model.Fee{
			{Amount: mustAmount(t, "0.1"), Currency: "USD", Scope: model.FeeScopePlatform, Settlement: model.FeeSettlementBalance},
		},
	}
	assert.NoError(t, validate(ct))
}
