package rawstore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/arcsign/ledgerkit/internal/model"
)

// PostgresStore is the relational RS implementation. Insertion relies on
// the raw_transactions.event_id unique constraint: ON CONFLICT DO NOTHING
// makes Save idempotent across retries without a round-trip existence
// check per row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Save(sessionID string, rows []model.RawTransaction) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO raw_transactions
			(id, session_id, source_name, provider_name, venue_transaction_id,
			 transaction_type_hint, source_address, payload, normalized_preview,
			 event_id, processing_status, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (event_id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		status := row.ProcessingStatus
		if status == "" {
			status = model.ProcessingPending
		}
		id := row.ID
		if id == "" {
			id = row.EventID[:16]
		}
		if _, err := stmt.Exec(
			id, sessionID, row.SourceName, row.ProviderName, row.VenueTransactionID,
			row.TransactionTypeHint, row.SourceAddress, string(row.Payload), nullableBytes(row.NormalizedPreview),
			row.EventID, string(status), row.Error,
		); err != nil {
			return fmt.Errorf("insert raw_transaction: %w", err)
		}
	}

	return tx.Commit()
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func (s *PostgresStore) Load(f Filter) ([]model.RawTransaction, error) {
	query := `SELECT id, session_id, source_name, provider_name, venue_transaction_id,
		transaction_type_hint, source_address, payload, normalized_preview, event_id,
		processing_status, error FROM raw_transactions WHERE 1=1`
	var args []interface{}
	n := 1

	if f.SessionID != nil {
		query += fmt.Sprintf(" AND session_id = $%d", n)
		args = append(args, *f.SessionID)
		n++
	}
	if f.Source != nil {
		query += fmt.Sprintf(" AND source_name = $%d", n)
		args = append(args, *f.Source)
		n++
	}
	if f.Status != nil {
		query += fmt.Sprintf(" AND processing_status = $%d", n)
		args = append(args, string(*f.Status))
		n++
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RawTransaction
	for rows.Next() {
		var r model.RawTransaction
		var payload, status string
		var preview sql.NullString
		if err := rows.Scan(&r.ID, &r.SessionID, &r.SourceName, &r.ProviderName, &r.VenueTransactionID,
			&r.TransactionTypeHint, &r.SourceAddress, &payload, &preview, &r.EventID, &status, &r.Error); err != nil {
			return nil, err
		}
		r.Payload = []byte(payload)
		if preview.Valid {
			r.NormalizedPreview = []byte(preview.String)
		}
		r.ProcessingStatus = model.ProcessingStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkProcessed(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`UPDATE raw_transactions SET processing_status = '%s'
		WHERE id IN (%s) AND processing_status IN ('%s', '%s')`,
		model.ProcessingProcessed, strings.Join(placeholders, ","), model.ProcessingPending, model.ProcessingFailed)
	_, err := s.db.Exec(query, args...)
	return err
}

func (s *PostgresStore) MarkFailed(id string, errMsg string) error {
	_, err := s.db.Exec(`UPDATE raw_transactions SET processing_status = $1, error = $2 WHERE id = $3`,
		model.ProcessingFailed, errMsg, id)
	return err
}

var _ Store = (*PostgresStore)(nil)
