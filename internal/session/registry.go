// Package session implements the Session Registry (SR): recording and
// finalizing import executions.
package session

import (
	"fmt"
	"time"

	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/model"
)

// Store is the persistence contract SR drives; MemoryStore and
// PostgresStore below implement it.
type Store interface {
	Insert(s model.ImportSession) error
	Update(s model.ImportSession) error
	Get(id string) (*model.ImportSession, error)
	// LatestForAccount returns sessions for accountID ordered newest-first.
	LatestForAccount(accountID string) ([]model.ImportSession, error)
}

// Registry is the SR component.
type Registry struct {
	store Store
	seq   int
}

func New(store Store) *Registry { return &Registry{store: store} }

// Start creates a new session in the `started` state.
func (r *Registry) Start(accountID string) (model.ImportSession, error) {
	r.seq++
	s := model.ImportSession{
		ID:        fmt.Sprintf("sess_%s_%d_%d", accountID, time.Now().UnixNano(), r.seq),
		AccountID: accountID,
		Status:    model.SessionStarted,
		StartedAt: time.Now(),
	}
	if err := r.store.Insert(s); err != nil {
		return model.ImportSession{}, err
	}
	return s, nil
}

// Finalize transitions a session to a terminal status exactly once;
// calling Finalize twice on the same session is rejected.
func (r *Registry) Finalize(id string, status model.SessionStatus, imported, skipped int, errMsg string, errDetails []byte, warnings []string) error {
	s, err := r.store.Get(id)
	if err != nil {
		return err
	}
	if s == nil {
		return ledgererr.New(ledgererr.CodeNotFound, "session not found: "+id)
	}
	if !s.CanTransitionTo(status) {
		return ledgererr.New(ledgererr.CodeInvariantViolation, "session already finalized: "+id)
	}

	now := time.Now()
	s.Status = status
	s.CompletedAt = &now
	s.DurationMs = now.Sub(s.StartedAt).Milliseconds()
	s.TransactionsImported = imported
	s.TransactionsSkipped = skipped
	s.ErrorMessage = errMsg
	s.ErrorDetails = errDetails
	s.Warnings = warnings

	return r.store.Update(*s)
}

// Get returns the session with id, or nil if none exists.
func (r *Registry) Get(id string) (*model.ImportSession, error) {
	return r.store.Get(id)
}

// FindLatestIncomplete returns the newest session for accountID with
// status in {started, failed}, used to decide where a resume continues.
func (r *Registry) FindLatestIncomplete(accountID string) (*model.ImportSession, error) {
	sessions, err := r.store.LatestForAccount(accountID)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.Status == model.SessionStarted || s.Status == model.SessionFailed {
			return &s, nil
		}
	}
	return nil, nil
}
