package canonicalstore

import (
	"sync"

	"github.com/arcsign/ledgerkit/internal/model"
)

type MemoryStore struct {
	mu   sync.Mutex
	byKey map[string]*model.CanonicalTransaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: make(map[string]*model.CanonicalTransaction)}
}

func (s *MemoryStore) Upsert(tx model.CanonicalTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tx.Key()
	if tx.ID == "" {
		tx.ID = key
	}
	stored := tx
	s.byKey[key] = &stored
	return nil
}

func (s *MemoryStore) Get(source, externalID string) (*model.CanonicalTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := source + "|" + externalID
	tx, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (s *MemoryStore) ListBySource(source string) ([]model.CanonicalTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.CanonicalTransaction
	for _, tx := range s.byKey {
		if tx.Source == source {
			out = append(out, *tx)
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
