package session

import (
	"database/sql"
	"encoding/json"

	"github.com/arcsign/ledgerkit/internal/model"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Insert(sess model.ImportSession) error {
	warnings, _ := json.Marshal(sess.Warnings)
	_, err := s.db.Exec(`
		INSERT INTO import_sessions (id, account_id, status, started_at, warnings)
		VALUES ($1,$2,$3,$4,$5)
	`, sess.ID, sess.AccountID, string(sess.Status), sess.StartedAt, string(warnings))
	return err
}

func (s *PostgresStore) Update(sess model.ImportSession) error {
	warnings, _ := json.Marshal(sess.Warnings)
	_, err := s.db.Exec(`
		UPDATE import_sessions SET
			status = $1, completed_at = $2, duration_ms = $3,
			transactions_imported = $4, transactions_skipped = $5,
			error_message = $6, error_details = $7, warnings = $8
		WHERE id = $9
	`, string(sess.Status), sess.CompletedAt, sess.DurationMs, sess.TransactionsImported,
		sess.TransactionsSkipped, sess.ErrorMessage, nullableJSON(sess.ErrorDetails), string(warnings), sess.ID)
	return err
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func (s *PostgresStore) Get(id string) (*model.ImportSession, error) {
	row := s.db.QueryRow(`SELECT id, account_id, status, started_at, completed_at, duration_ms,
		transactions_imported, transactions_skipped, error_message, warnings
		FROM import_sessions WHERE id = $1`, id)

	var sess model.ImportSession
	var status, warnings string
	var completedAt sql.NullTime
	if err := row.Scan(&sess.ID, &sess.AccountID, &status, &sess.StartedAt, &completedAt, &sess.DurationMs,
		&sess.TransactionsImported, &sess.TransactionsSkipped, &sess.ErrorMessage, &warnings); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	sess.Status = model.SessionStatus(status)
	if completedAt.Valid {
		sess.CompletedAt = &completedAt.Time
	}
	_ = json.Unmarshal([]byte(warnings), &sess.Warnings)
	return &sess, nil
}

func (s *PostgresStore) LatestForAccount(accountID string) ([]model.ImportSession, error) {
	rows, err := s.db.Query(`SELECT id, account_id, status, started_at, completed_at, duration_ms,
		transactions_imported, transactions_skipped, error_message, warnings
		FROM import_sessions WHERE account_id = $1 ORDER BY started_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ImportSession
	for rows.Next() {
		var sess model.ImportSession
		var status, warnings string
		var completedAt sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.AccountID, &status, &sess.StartedAt, &completedAt, &sess.DurationMs,
			&sess.TransactionsImported, &sess.TransactionsSkipped, &sess.ErrorMessage, &warnings); err != nil {
			return nil, err
		}
		sess.Status = model.SessionStatus(status)
		if completedAt.Valid {
			sess.CompletedAt = &completedAt.Time
		}
		_ = json.Unmarshal([]byte(warnings), &sess.Warnings)
		out = append(out, sess)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
