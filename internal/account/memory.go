package account

import (
	"sync"

	"github.com/arcsign/ledgerkit/internal/model"
)

type MemoryStore struct {
	mu   sync.Mutex
	byID map[string]*model.Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*model.Account)}
}

func (s *MemoryStore) FindByIdentity(tuple model.IdentityTuple) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.Identity().Equal(tuple) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Insert(a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := a
	s.byID[a.ID] = &cp
	return nil
}

func (s *MemoryStore) Update(a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := a
	s.byID[a.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(id string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) ListChildren(parentID string) ([]model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Account
	for _, a := range s.byID {
		if a.ParentAccountID != nil && *a.ParentAccountID == parentID {
			out = append(out, *a)
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
