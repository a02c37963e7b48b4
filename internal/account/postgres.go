package account

import (
	"database/sql"
	"encoding/json"

	"github.com/arcsign/ledgerkit/internal/model"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// FindByIdentity uses IS NOT DISTINCT FROM so a nil UserID matches a
// stored NULL exactly, rather than the usual SQL NULL != NULL behavior.
func (s *PostgresStore) FindByIdentity(tuple model.IdentityTuple) (*model.Account, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, account_type, source_name, identifier, parent_account_id,
			provider_preference, credentials, last_cursor, verified_at, created_at, updated_at
		FROM accounts
		WHERE user_id IS NOT DISTINCT FROM $1 AND account_type = $2 AND source_name = $3 AND identifier = $4
	`, tuple.UserID, string(tuple.AccountType), tuple.SourceName, tuple.Identifier)
	return scanAccount(row)
}

func (s *PostgresStore) Insert(a model.Account) error {
	cursor, _ := json.Marshal(a.LastCursor)
	_, err := s.db.Exec(`
		INSERT INTO accounts
			(id, user_id, account_type, source_name, identifier, parent_account_id,
			 provider_preference, credentials, last_cursor, verified_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, a.ID, a.UserID, string(a.AccountType), a.SourceName, a.Identifier, a.ParentAccountID,
		a.ProviderPreference, a.Credentials, string(cursor), a.VerifiedAt, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *PostgresStore) Update(a model.Account) error {
	cursor, _ := json.Marshal(a.LastCursor)
	_, err := s.db.Exec(`
		UPDATE accounts SET
			provider_preference = $1, credentials = $2, last_cursor = $3,
			verified_at = $4, updated_at = $5
		WHERE id = $6
	`, a.ProviderPreference, a.Credentials, string(cursor), a.VerifiedAt, a.UpdatedAt, a.ID)
	return err
}

func (s *PostgresStore) Get(id string) (*model.Account, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, account_type, source_name, identifier, parent_account_id,
			provider_preference, credentials, last_cursor, verified_at, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id)
	return scanAccount(row)
}

func (s *PostgresStore) ListChildren(parentID string) ([]model.Account, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, account_type, source_name, identifier, parent_account_id,
			provider_preference, credentials, last_cursor, verified_at, created_at, updated_at
		FROM accounts WHERE parent_account_id = $1
	`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row *sql.Row) (*model.Account, error) {
	a, err := scanAccountRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func scanAccountRow(row rowScanner) (*model.Account, error) {
	var a model.Account
	var accountType string
	var userID, parentID sql.NullString
	var providerPreference sql.NullString
	var credentials []byte
	var cursor string
	var verifiedAt sql.NullTime

	if err := row.Scan(&a.ID, &userID, &accountType, &a.SourceName, &a.Identifier, &parentID,
		&providerPreference, &credentials, &cursor, &verifiedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	a.AccountType = model.AccountType(accountType)
	if userID.Valid {
		v := userID.String
		a.UserID = &v
	}
	if parentID.Valid {
		v := parentID.String
		a.ParentAccountID = &v
	}
	if providerPreference.Valid {
		a.ProviderPreference = providerPreference.String
	}
	a.Credentials = credentials
	if verifiedAt.Valid {
		a.VerifiedAt = &verifiedAt.Time
	}
	a.LastCursor = make(map[string]model.Cursor)
	_ = json.Unmarshal([]byte(cursor), &a.LastCursor)

	return &a, nil
}

var _ Store = (*PostgresStore)(nil)
