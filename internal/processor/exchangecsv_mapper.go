package processor

import (
	"encoding/json"
	"time"

	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/model"
)

// ExchangeCSVMapper maps rows produced by the exchangecsv adapter's
// generic export shape: one JSON object per row with at minimum the
// columns timestamp, type (buy|sell|deposit|withdrawal), base_asset,
// base_amount, quote_asset, quote_amount, fee_amount, fee_asset, remark,
// and fee_ledger_debit ("true" when the venue recorded the fee as a
// separate balance debit in the fee asset, distinct from the traded
// asset).
//
// Convert-market pairing: two rows at the same timestamp both tagged
// remark="Convert Market" are grouped into one swap before mapping,
// per the venue's habit of recording a convert as a paired
// deposit+withdrawal rather than a single trade row.
type ExchangeCSVMapper struct{}

func NewExchangeCSVMapper() *ExchangeCSVMapper { return &ExchangeCSVMapper{} }

const convertMarketRemark = "Convert Market"

func (m *ExchangeCSVMapper) Pair(rows []model.RawTransaction) [][]model.RawTransaction {
	byTimestamp := make(map[string][]model.RawTransaction)
	var ordinary []model.RawTransaction

	for _, r := range rows {
		cols, err := decodeRow(r.Payload)
		if err != nil || cols["remark"] != convertMarketRemark {
			ordinary = append(ordinary, r)
			continue
		}
		byTimestamp[cols["timestamp"]] = append(byTimestamp[cols["timestamp"]], r)
	}

	var groups [][]model.RawTransaction
	for _, rs := range byTimestamp {
		if len(rs) == 2 {
			groups = append(groups, rs)
			continue
		}
		// an odd convert-market grouping (not exactly a pair) cannot be
		// paired confidently; fall back to mapping rows individually.
		ordinary = append(ordinary, rs...)
	}
	for _, r := range ordinary {
		groups = append(groups, []model.RawTransaction{r})
	}
	return groups
}

func (m *ExchangeCSVMapper) Map(group []model.RawTransaction, meta SessionMetadata) (*model.CanonicalTransaction, error) {
	if len(group) == 2 {
		return m.mapConvertPair(group, meta)
	}
	return m.mapSingle(group[0], meta)
}

func (m *ExchangeCSVMapper) mapSingle(r model.RawTransaction, meta SessionMetadata) (*model.CanonicalTransaction, error) {
	cols, err := decodeRow(r.Payload)
	if err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "unreadable csv row: "+err.Error())
	}

	ts, err := parseTimestamp(cols["timestamp"])
	if err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid timestamp: "+err.Error())
	}

	var movements []model.Movement
	var fees []model.Fee

	switch cols["type"] {
	case "buy", "sell":
		baseAmt, err := model.ParseAmount(cols["base_amount"])
		if err != nil {
			return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid base_amount: "+err.Error())
		}
		quoteAmt, err := model.ParseAmount(cols["quote_amount"])
		if err != nil {
			return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid quote_amount: "+err.Error())
		}

		baseDir, quoteDir := model.DirectionInflow, model.DirectionOutflow
		opType := "buy"
		if cols["type"] == "sell" {
			baseDir, quoteDir = model.DirectionOutflow, model.DirectionInflow
			opType = "sell"
		}

		baseMovement := model.Movement{MovementID: r.ID + "-base", Direction: baseDir, Asset: cols["base_asset"], GrossAmount: baseAmt, NetAmount: baseAmt}
		quoteMovement := model.Movement{MovementID: r.ID + "-quote", Direction: quoteDir, Asset: cols["quote_asset"], GrossAmount: quoteAmt, NetAmount: quoteAmt}
		movements = append(movements, baseMovement, quoteMovement)

		if fee, ok, err := buildFee(r.ID, cols); err != nil {
			return nil, err
		} else if ok {
			fees = append(fees, fee)
		}

		return &model.CanonicalTransaction{
			ExternalID: r.VenueTransactionID,
			Source:     r.SourceName,
			Timestamp:  ts,
			Status:     model.StatusClosed,
			Operation:  model.Operation{Category: "trade", Type: opType},
			Movements:  movements,
			Fees:       fees,
			Metadata:   map[string]string{"orderId": cols["order_id"]},
		}, nil

	case "deposit", "withdrawal":
		amt, err := model.ParseAmount(cols["base_amount"])
		if err != nil {
			return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid base_amount: "+err.Error())
		}
		dir := model.DirectionInflow
		if cols["type"] == "withdrawal" {
			dir = model.DirectionOutflow
		}
		movements = append(movements, model.Movement{MovementID: r.ID + "-base", Direction: dir, Asset: cols["base_asset"], GrossAmount: amt, NetAmount: amt})

		if fee, ok, err := buildFee(r.ID, cols); err != nil {
			return nil, err
		} else if ok {
			fees = append(fees, fee)
			if cols["fee_ledger_debit"] == "true" {
				feeAmt, _ := model.ParseAmount(cols["fee_amount"])
				movements = append(movements, model.Movement{
					MovementID: r.ID + "-fee-debit", Direction: model.DirectionOutflow,
					Asset: cols["fee_asset"], GrossAmount: feeAmt, NetAmount: feeAmt,
				})
			}
		}

		return &model.CanonicalTransaction{
			ExternalID: r.VenueTransactionID,
			Source:     r.SourceName,
			Timestamp:  ts,
			Status:     model.StatusClosed,
			Operation:  model.Operation{Category: "transfer", Type: cols["type"]},
			Movements:  movements,
			Fees:       fees,
		}, nil

	default:
		// unrecognized row type: an internal housekeeping entry the
		// venue reports but this ledger does not track.
		return nil, nil
	}
}

func (m *ExchangeCSVMapper) mapConvertPair(group []model.RawTransaction, meta SessionMetadata) (*model.CanonicalTransaction, error) {
	depositRow, withdrawalRow := group[0], group[1]
	depositCols, err := decodeRow(depositRow.Payload)
	if err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "unreadable csv row: "+err.Error())
	}
	withdrawalCols, err := decodeRow(withdrawalRow.Payload)
	if err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "unreadable csv row: "+err.Error())
	}
	if depositCols["type"] != "deposit" {
		depositCols, withdrawalCols = withdrawalCols, depositCols
		depositRow, withdrawalRow = withdrawalRow, depositRow
	}

	ts, err := parseTimestamp(depositCols["timestamp"])
	if err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid timestamp: "+err.Error())
	}

	inAmt, err := model.ParseAmount(depositCols["base_amount"])
	if err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid base_amount: "+err.Error())
	}
	outAmt, err := model.ParseAmount(withdrawalCols["base_amount"])
	if err != nil {
		return nil, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid base_amount: "+err.Error())
	}

	return &model.CanonicalTransaction{
		ExternalID: depositRow.VenueTransactionID + "+" + withdrawalRow.VenueTransactionID,
		Source:     depositRow.SourceName,
		Timestamp:  ts,
		Status:     model.StatusClosed,
		Operation:  model.Operation{Category: "trade", Type: "swap"},
		Movements: []model.Movement{
			{MovementID: depositRow.ID, Direction: model.DirectionInflow, Asset: depositCols["base_asset"], GrossAmount: inAmt, NetAmount: inAmt},
			{MovementID: withdrawalRow.ID, Direction: model.DirectionOutflow, Asset: withdrawalCols["base_asset"], GrossAmount: outAmt, NetAmount: outAmt},
		},
		Metadata: map[string]string{"type": "convert_market"},
	}, nil
}

// buildFee constructs a platform/balance fee from cols when a
// fee_amount column is present and nonzero; returns ok=false when the
// row has no fee.
func buildFee(rowID string, cols map[string]string) (model.Fee, bool, error) {
	if cols["fee_amount"] == "" {
		return model.Fee{}, false, nil
	}
	amt, err := model.ParseAmount(cols["fee_amount"])
	if err != nil {
		return model.Fee{}, false, ledgererr.New(ledgererr.CodeSchemaValidation, "invalid fee_amount: "+err.Error())
	}
	if amt.IsZero() {
		return model.Fee{}, false, nil
	}
	return model.Fee{
		Amount:     amt,
		Currency:   cols["fee_asset"],
		Scope:      model.FeeScopePlatform,
		Settlement: model.FeeSettlementBalance,
	}, true, nil
}

func decodeRow(payload []byte) (map[string]string, error) {
	var cols map[string]string
	if err := json.Unmarshal(payload, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

var _ Mapper = (*ExchangeCSVMapper)(nil)
