package processor

import (
	"encoding/json"
	"time"

	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/model"
)

// ledgerEntry is the shape one exchangeapi ledger row decodes to:
// timestamp, direction, asset/amount, and an optional platform fee
// charged in a possibly different asset.
type ledgerEntry struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"` // deposit, withdrawal, trade
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	Direction string `json:"direction"`
	FeeAmount string `json:"feeAmount,omitempty"`
	FeeAsset  string `json:"feeAsset,omitempty"`
}

// ExchangeAPIMapper maps one ledger entry into a canonical transfer.
// It never pairs rows — the REST ledger already reports one entry per
// movement — so it uses the package default Pair.
type ExchangeAPIMapper struct {
	baseMapper
}

func NewExchangeAPIMapper() *ExchangeAPIMapper { return &ExchangeAPIMapper{} }

func (m *ExchangeAPIMapper) Map(group []model.RawTransaction, meta SessionMetadata) (*model.CanonicalTransaction, error) {
	r := group[0]
	var entry ledgerEntry
	if err := json.Unmarshal(r.Payload, &entry); err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "unreadable ledger entry: "+err.Error())
	}

	ts, err := time.Parse(time.RFC3339, entry.Timestamp)
	if err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid timestamp: "+err.Error())
	}

	amt, err := model.ParseAmount(entry.Amount)
	if err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid amount: "+err.Error())
	}

	direction := model.DirectionInflow
	if entry.Direction == "outflow" {
		direction = model.DirectionOutflow
	}
	movementID := r.ID + "-movement"

	var fees []model.Fee
	if entry.FeeAmount != "" {
		feeAmt, err := model.ParseAmount(entry.FeeAmount)
		if err != nil {
			return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid feeAmount: "+err.Error())
		}
		if !feeAmt.IsZero() {
			fees = append(fees, model.Fee{
				Amount:               feeAmt,
				Currency:             entry.FeeAsset,
				Scope:                model.FeeScopePlatform,
				Settlement:           model.FeeSettlementBalance,
				FundedFromMovementID: movementID,
			})
		}
	}

	opType := entry.Type
	if opType == "" {
		opType = "deposit"
		if direction == model.DirectionOutflow {
			opType = "withdrawal"
		}
	}

	return &model.CanonicalTransaction{
		ExternalID: r.VenueTransactionID,
		Source:     r.SourceName,
		Timestamp:  ts,
		Status:     model.StatusClosed,
		Operation:  model.Operation{Category: "transfer", Type: opType},
		Movements: []model.Movement{
			{MovementID: movementID, Direction: direction, Asset: entry.Asset, GrossAmount: amt, NetAmount: amt},
		},
		Fees: fees,
	}, nil
}

var _ Mapper = (*ExchangeAPIMapper)(nil)
