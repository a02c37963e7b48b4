package model

import "time"

// SessionStatus transitions are monotonic: started -> {completed, failed,
// cancelled}; no reopen.
type SessionStatus string

const (
	SessionStarted   SessionStatus = "started"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// ImportSession is one execution instance against one account.
type ImportSession struct {
	ID          string
	AccountID   string
	Status      SessionStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	DurationMs  int64

	TransactionsImported int
	TransactionsSkipped  int

	ErrorMessage string
	ErrorDetails []byte // opaque blob, structured error summary

	Warnings []string
}

// CanTransitionTo reports whether the session may move to next, enforcing
// the single terminal transition invariant.
func (s ImportSession) CanTransitionTo(next SessionStatus) bool {
	if s.Status != SessionStarted {
		return false
	}
	switch next {
	case SessionCompleted, SessionFailed, SessionCancelled:
		return true
	default:
		return false
	}
}
