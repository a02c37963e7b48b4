package processor

import (
	"encoding/json"
	"time"

	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/model"
)

// evmLogRow is the JSON shape the evmchain adapter's ExecuteStreaming
// rows carry in Payload: a decoded transfer event plus the gas paid by
// the sending address, when this row represents an outflow from it.
type evmLogRow struct {
	Timestamp    string `json:"timestamp"`
	Asset        string `json:"asset"`
	Amount       string `json:"amount"`
	Direction    string `json:"direction"` // "inflow" or "outflow"
	GasPaid      string `json:"gasPaid,omitempty"`
	GasAsset     string `json:"gasAsset,omitempty"`
}

// EVMChainMapper maps one on-chain transfer row into a canonical
// transaction. An outflow row whose GasPaid is nonzero and whose
// GasAsset equals the transferred Asset nets the gas out of that same
// movement and records a network/on-chain fee funded by it, per the
// gross-vs-net distinction in the glossary. Gas paid in another asset
// is neither netted nor recorded as a fee.
type EVMChainMapper struct{}

func NewEVMChainMapper() *EVMChainMapper { return &EVMChainMapper{} }

func (m *EVMChainMapper) Pair(rows []model.RawTransaction) [][]model.RawTransaction {
	groups := make([][]model.RawTransaction, len(rows))
	for i, r := range rows {
		groups[i] = []model.RawTransaction{r}
	}
	return groups
}

func (m *EVMChainMapper) Map(group []model.RawTransaction, meta SessionMetadata) (*model.CanonicalTransaction, error) {
	r := group[0]
	var row evmLogRow
	if err := json.Unmarshal(r.Payload, &row); err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "unreadable evm row: "+err.Error())
	}

	ts, err := time.Parse(time.RFC3339, row.Timestamp)
	if err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid timestamp: "+err.Error())
	}

	gross, err := model.ParseAmount(row.Amount)
	if err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid amount: "+err.Error())
	}

	direction := model.DirectionInflow
	if row.Direction == "outflow" {
		direction = model.DirectionOutflow
	}

	net := gross
	movementID := r.ID + "-transfer"
	var fees []model.Fee

	if direction == model.DirectionOutflow && row.GasPaid != "" && row.GasAsset == row.Asset {
		gas, err := model.ParseAmount(row.GasPaid)
		if err != nil {
			return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid gasPaid: "+err.Error())
		}
		if !gas.IsZero() {
			net = gross.Sub(gas)
			fees = append(fees, model.Fee{
				Amount:               gas,
				Currency:             row.GasAsset,
				Scope:                model.FeeScopeNetwork,
				Settlement:           model.FeeSettlementOnChain,
				FundedFromMovementID: movementID,
			})
		}
	}

	opType := "deposit"
	if direction == model.DirectionOutflow {
		opType = "withdrawal"
	}

	return &model.CanonicalTransaction{
		ExternalID: r.VenueTransactionID,
		Source:     r.SourceName,
		Timestamp:  ts,
		Status:     model.StatusClosed,
		Operation:  model.Operation{Category: "transfer", Type: opType},
		Movements: []model.Movement{
			{MovementID: movementID, Direction: direction, Asset: row.Asset, GrossAmount: gross, NetAmount: net},
		},
		Fees: fees,
	}, nil
}

var _ Mapper = (*EVMChainMapper)(nil)
