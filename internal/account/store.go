// Package account implements the Account Registry (AR): idempotent
// account identity, cursor maintenance, session locking, and HD-wallet
// derivation for xpub parent / derived-address child hierarchies.
package account

import "github.com/arcsign/ledgerkit/internal/model"

// Store is the persistence contract AR drives.
type Store interface {
	// FindByIdentity returns the account matching tuple, or nil if none.
	FindByIdentity(tuple model.IdentityTuple) (*model.Account, error)
	Insert(a model.Account) error
	Update(a model.Account) error
	Get(id string) (*model.Account, error)
	ListChildren(parentID string) ([]model.Account, error)
}
