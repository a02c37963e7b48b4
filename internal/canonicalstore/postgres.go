package canonicalstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/arcsign/ledgerkit/internal/model"
	"github.com/lib/pq"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// Upsert writes the transaction plus its movements/fees inside one
// transaction: the canonical row upserts on (external_id, source) via
// ON CONFLICT, and movements/fees are replaced wholesale since a
// CanonicalTransaction is never mutated in place — only re-upserted
// identically on retry or superseded by a new reversal event.
func (s *PostgresStore) Upsert(ct model.CanonicalTransaction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	metadata, _ := json.Marshal(ct.Metadata)

	var id string
	err = tx.QueryRow(`
		INSERT INTO canonical_transactions
			(id, external_id, source, "timestamp", status, operation_category, operation_type, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (external_id, source) DO UPDATE SET
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata
		RETURNING id
	`, ct.Key(), ct.ExternalID, ct.Source, ct.Timestamp, string(ct.Status),
		ct.Operation.Category, ct.Operation.Type, string(metadata)).Scan(&id)
	if err != nil {
		return fmt.Errorf("upsert canonical_transaction: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM movements WHERE canonical_transaction_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM fees WHERE canonical_transaction_id = $1`, id); err != nil {
		return err
	}

	for i, m := range ct.Movements {
		meta, _ := json.Marshal(m.Metadata)
		var price interface{}
		if m.PriceAtTxTime != nil {
			price = m.PriceAtTxTime.String()
		}
		movementID := m.MovementID
		if movementID == "" {
			movementID = fmt.Sprintf("%s-m%d", id, i)
		}
		if _, err := tx.Exec(`
			INSERT INTO movements (id, canonical_transaction_id, direction, asset, gross_amount, net_amount, price_at_tx_time, metadata)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, movementID, id, string(m.Direction), m.Asset, m.GrossAmount.String(), m.NetAmount.String(), price, string(meta)); err != nil {
			return fmt.Errorf("insert movement: %w", err)
		}
	}

	for i, f := range ct.Fees {
		var funded interface{}
		if f.FundedFromMovementID != "" {
			funded = f.FundedFromMovementID
		}
		feeID := fmt.Sprintf("%s-f%d", id, i)
		if _, err := tx.Exec(`
			INSERT INTO fees (id, canonical_transaction_id, amount, currency, scope, settlement, funded_from_movement_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, feeID, id, f.Amount.String(), f.Currency, string(f.Scope), string(f.Settlement), funded); err != nil {
			return fmt.Errorf("insert fee: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) Get(source, externalID string) (*model.CanonicalTransaction, error) {
	all, err := s.ListBySource(source)
	if err != nil {
		return nil, err
	}
	for _, ct := range all {
		if ct.ExternalID == externalID {
			return &ct, nil
		}
	}
	return nil, nil
}

func (s *PostgresStore) ListBySource(source string) ([]model.CanonicalTransaction, error) {
	rows, err := s.db.Query(`SELECT id, external_id, source, "timestamp", status, operation_category, operation_type, metadata
		FROM canonical_transactions WHERE source = $1`, source)
	if err != nil {
		return nil, err
	}

	var out []model.CanonicalTransaction
	byID := make(map[string]*model.CanonicalTransaction)
	for rows.Next() {
		var ct model.CanonicalTransaction
		var status, metadata string
		if err := rows.Scan(&ct.ID, &ct.ExternalID, &ct.Source, &ct.Timestamp, &status,
			&ct.Operation.Category, &ct.Operation.Type, &metadata); err != nil {
			rows.Close()
			return nil, err
		}
		ct.Status = model.TransactionStatus(status)
		_ = json.Unmarshal([]byte(metadata), &ct.Metadata)
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		byID[out[i].ID] = &out[i]
	}

	if err := s.loadMovements(byID); err != nil {
		return nil, err
	}
	if err := s.loadFees(byID); err != nil {
		return nil, err
	}

	return out, nil
}

// loadMovements and loadFees reload every movement/fee sub-row for the
// given canonical transaction ids, keeping the wholesale-replace write
// path in Upsert symmetric with a full round-trip read.
func (s *PostgresStore) loadMovements(byID map[string]*model.CanonicalTransaction) error {
	if len(byID) == 0 {
		return nil
	}
	rows, err := s.db.Query(`SELECT id, canonical_transaction_id, direction, asset, gross_amount, net_amount, price_at_tx_time, metadata
		FROM movements WHERE canonical_transaction_id = ANY($1)`, pq.Array(idsOf(byID)))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m model.Movement
		var ctID, grossAmt, netAmt, metadata string
		var price sql.NullString
		if err := rows.Scan(&m.MovementID, &ctID, &m.Direction, &m.Asset, &grossAmt, &netAmt, &price, &metadata); err != nil {
			return err
		}
		ct, ok := byID[ctID]
		if !ok {
			continue
		}
		if amt, err := model.ParseAmount(grossAmt); err == nil {
			m.GrossAmount = amt
		}
		if amt, err := model.ParseAmount(netAmt); err == nil {
			m.NetAmount = amt
		}
		if price.Valid {
			if amt, err := model.ParseAmount(price.String); err == nil {
				m.PriceAtTxTime = &amt
			}
		}
		_ = json.Unmarshal([]byte(metadata), &m.Metadata)
		ct.Movements = append(ct.Movements, m)
	}
	return rows.Err()
}

func (s *PostgresStore) loadFees(byID map[string]*model.CanonicalTransaction) error {
	if len(byID) == 0 {
		return nil
	}
	rows, err := s.db.Query(`SELECT canonical_transaction_id, amount, currency, scope, settlement, funded_from_movement_id
		FROM fees WHERE canonical_transaction_id = ANY($1)`, pq.Array(idsOf(byID)))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var f model.Fee
		var ctID, amt string
		var funded sql.NullString
		if err := rows.Scan(&ctID, &amt, &f.Currency, &f.Scope, &f.Settlement, &funded); err != nil {
			return err
		}
		ct, ok := byID[ctID]
		if !ok {
			continue
		}
		if parsed, err := model.ParseAmount(amt); err == nil {
			f.Amount = parsed
		}
		if funded.Valid {
			f.FundedFromMovementID = funded.String
		}
		ct.Fees = append(ct.Fees, f)
	}
	return rows.Err()
}

func idsOf(byID map[string]*model.CanonicalTransaction) []string {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	return ids
}

var _ Store = (*PostgresStore)(nil)
