package session

import (
	"sort"
	"sync"

	"github.com/arcsign/ledgerkit/internal/model"
)

type MemoryStore struct {
	mu   sync.Mutex
	byID map[string]*model.ImportSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*model.ImportSession)}
}

func (s *MemoryStore) Insert(sess model.ImportSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sess
	s.byID[sess.ID] = &cp
	return nil
}

func (s *MemoryStore) Update(sess model.ImportSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sess
	s.byID[sess.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(id string) (*model.ImportSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) LatestForAccount(accountID string) ([]model.ImportSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ImportSession
	for _, sess := range s.byID {
		if sess.AccountID == accountID {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
