package rawstore

import (
	"sync"

	"github.com/arcsign/ledgerkit/internal/model"
)

// MemoryStore is an in-process implementation used by tests and by the
// orchestrator when no DATABASE_DSN is configured.
type MemoryStore struct {
	mu       sync.Mutex
	byEvent  map[string]*model.RawTransaction
	byID     map[string]*model.RawTransaction
	nextSeq  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byEvent: make(map[string]*model.RawTransaction),
		byID:    make(map[string]*model.RawTransaction),
	}
}

func (s *MemoryStore) Save(sessionID string, rows []model.RawTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		if _, exists := s.byEvent[row.EventID]; exists {
			continue // upsert on eventId: no duplicate across retries
		}
		s.nextSeq++
		stored := row
		stored.SessionID = sessionID
		if stored.ID == "" {
			stored.ID = idFromSeq(s.nextSeq)
		}
		if stored.ProcessingStatus == "" {
			stored.ProcessingStatus = model.ProcessingPending
		}
		s.byEvent[row.EventID] = &stored
		s.byID[stored.ID] = &stored
	}
	return nil
}

func (s *MemoryStore) Load(f Filter) ([]model.RawTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.RawTransaction
	for _, row := range s.byID {
		if f.SessionID != nil && row.SessionID != *f.SessionID {
			continue
		}
		if f.Source != nil && row.SourceName != *f.Source {
			continue
		}
		if f.Status != nil && row.ProcessingStatus != *f.Status {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (s *MemoryStore) MarkProcessed(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if row, ok := s.byID[id]; ok {
			row.ProcessingStatus = model.ProcessingProcessed
		}
	}
	return nil
}

func (s *MemoryStore) MarkFailed(id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.byID[id]; ok {
		row.ProcessingStatus = model.ProcessingFailed
		row.Error = errMsg
	}
	return nil
}

func idFromSeq(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "0"
	}
	buf := make([]byte, 0, 8)
	for n > 0 {
		buf = append([]byte{alphabet[n%36]}, buf...)
		n /= 36
	}
	return "rt_" + string(buf)
}

var _ Store = (*MemoryStore)(nil)
