package model

import "time"

// AccountType enumerates the kinds of account identity the registry tracks.
type AccountType string

const (
	AccountTypeBlockchain  AccountType = "blockchain"
	AccountTypeExchangeAPI AccountType = "exchange-api"
	AccountTypeExchangeCSV AccountType = "exchange-csv"
)

// Account is a stable identity: the tuple (UserID, AccountType, SourceName,
// Identifier) is unique and is what findOrCreate dedupes on. UserID is a
// pointer so a nil value matches stored NULL rows exactly, per the AR
// contract — an empty string would be a distinct, wrong identity.
type Account struct {
	ID              string
	UserID          *string
	AccountType     AccountType
	SourceName      string
	Identifier      string
	ParentAccountID *string

	ProviderPreference string
	Credentials        []byte // opaque to the core; schema lives with the adapter

	LastCursor map[string]Cursor // keyed by operation-type

	VerifiedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IdentityTuple is the uniqueness key AR enforces and findOrCreate looks
// up by.
type IdentityTuple struct {
	UserID      *string
	AccountType AccountType
	SourceName  string
	Identifier  string
}

func (a Account) Identity() IdentityTuple {
	return IdentityTuple{
		UserID:      a.UserID,
		AccountType: a.AccountType,
		SourceName:  a.SourceName,
		Identifier:  a.Identifier,
	}
}

// Equal compares two identity tuples including the nil/non-nil UserID
// distinction the AR contract requires.
func (t IdentityTuple) Equal(o IdentityTuple) bool {
	if t.AccountType != o.AccountType || t.SourceName != o.SourceName || t.Identifier != o.Identifier {
		return false
	}
	switch {
	case t.UserID == nil && o.UserID == nil:
		return true
	case t.UserID == nil || o.UserID == nil:
		return false
	default:
		return *t.UserID == *o.UserID
	}
}

// AccountPatch carries only the fields an AR.Update call should write;
// nil fields are no-ops, matching the "undefined fields are no-ops"
// contract in spec §4.8.
type AccountPatch struct {
	ProviderPreference *string
	Credentials        []byte
	VerifiedAt         *time.Time
}
