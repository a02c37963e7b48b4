package processor

import (
	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/model"
)

// validate enforces the invariants PROC owns regardless of which
// mapper produced ct: nonzero gross amounts, net-never-exceeds-gross,
// and every fee's FundedFromMovementID (when set) naming a movement
// that actually exists in this transaction. A row failing any of these
// is quarantined rather than written to the Canonical Store.
func validate(ct *model.CanonicalTransaction) error {
	if len(ct.Movements) == 0 {
		return ledgererr.New(ledgererr.CodeInvariantViolation, "canonical transaction has no movements")
	}

	movementIDs := make(map[string]bool, len(ct.Movements))
	for _, m := range ct.Movements {
		if m.GrossAmount.IsZero() {
			return ledgererr.New(ledgererr.CodeInvariantViolation, "movement "+m.MovementID+" has zero grossAmount")
		}
		if m.NetAmount.Abs().GreaterThan(m.GrossAmount.Abs()) {
			return ledgererr.New(ledgererr.CodeInvariantViolation, "movement "+m.MovementID+" netAmount exceeds grossAmount")
		}
		if m.MovementID != "" {
			movementIDs[m.MovementID] = true
		}
	}

	for _, f := range ct.Fees {
		if f.FundedFromMovementID != "" && !movementIDs[f.FundedFromMovementID] {
			return ledgererr.New(ledgererr.CodeInvariantViolation, "fee references unknown movement "+f.FundedFromMovementID)
		}
		if f.Scope == model.FeeScopeNetwork && f.Settlement == model.FeeSettlementOnChain && f.FundedFromMovementID == "" {
			return ledgererr.New(ledgererr.CodeInvariantViolation, "network/on-chain fee must name its funding movement")
		}
	}

	return nil
}
