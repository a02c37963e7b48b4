// Package canonicalstore implements the Canonical Store (CS): persistence
// for CanonicalTransactions and their Movements/Fees, upserting on
// (externalId, source).
package canonicalstore

import "github.com/arcsign/ledgerkit/internal/model"

type Store interface {
	// Upsert writes tx atomically with its movements and fees. A second
	// call with the same (ExternalID, Source) updates the existing record
	// instead of adding another, so re-upserting an identical tx on retry
	// leaves the store unchanged.
	Upsert(tx model.CanonicalTransaction) error

	Get(source, externalID string) (*model.CanonicalTransaction, error)

	ListBySource(source string) ([]model.CanonicalTransaction, error)
}
