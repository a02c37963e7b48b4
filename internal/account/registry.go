package account

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/logging"
	"github.com/arcsign/ledgerkit/internal/model"
	"github.com/arcsign/ledgerkit/internal/session"
)

// ErrSessionAlreadyRunning is returned by Registry.Lock when an import
// is already in flight for the account.
var ErrSessionAlreadyRunning = ledgererr.New(ledgererr.CodeConcurrency, "an import session is already running for this account")

// Registry is the Account Registry (AR) component: identity
// find-or-create, cursor/patch updates, HD address derivation, and the
// per-account session lock that keeps two imports from racing.
type Registry struct {
	store    Store
	sessions *session.Registry
	wallet   *hdWallet
	logger   *logging.ComponentLogger

	locksMu sync.Mutex
	locks   map[string]struct{}

	seq int

	onAddressChecked func()
}

func New(store Store, sessions *session.Registry) *Registry {
	return &Registry{
		store:    store,
		sessions: sessions,
		wallet:   newHDWallet(),
		logger:   logging.NewComponentLogger("account-registry"),
		locks:    make(map[string]struct{}),
	}
}

// FindOrCreate looks up an account by identity tuple and creates one if
// none exists. It holds locksMu across the lookup and the insert, so
// concurrent calls with the same tuple create at most one account.
func (r *Registry) FindOrCreate(tuple model.IdentityTuple, sourceDefaults model.AccountPatch) (model.Account, error) {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	existing, err := r.store.FindByIdentity(tuple)
	if err != nil {
		return model.Account{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	r.seq++
	now := time.Now()
	a := model.Account{
		ID:          fmt.Sprintf("acct_%d_%d", now.UnixNano(), r.seq),
		UserID:      tuple.UserID,
		AccountType: tuple.AccountType,
		SourceName:  tuple.SourceName,
		Identifier:  tuple.Identifier,
		LastCursor:  make(map[string]model.Cursor),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sourceDefaults.ProviderPreference != nil {
		a.ProviderPreference = *sourceDefaults.ProviderPreference
	}
	if sourceDefaults.Credentials != nil {
		a.Credentials = sourceDefaults.Credentials
	}
	if err := r.store.Insert(a); err != nil {
		return model.Account{}, err
	}
	return a, nil
}

// Update applies patch to an existing account; nil patch fields leave
// the corresponding column untouched, and UpdatedAt only advances when
// at least one field actually changed.
func (r *Registry) Update(id string, patch model.AccountPatch) (model.Account, error) {
	a, err := r.store.Get(id)
	if err != nil {
		return model.Account{}, err
	}
	if a == nil {
		return model.Account{}, ledgererr.New(ledgererr.CodeNotFound, "account not found: "+id)
	}

	changed := false
	if patch.ProviderPreference != nil && *patch.ProviderPreference != a.ProviderPreference {
		a.ProviderPreference = *patch.ProviderPreference
		changed = true
	}
	if patch.Credentials != nil {
		a.Credentials = patch.Credentials
		changed = true
	}
	if patch.VerifiedAt != nil {
		a.VerifiedAt = patch.VerifiedAt
		changed = true
	}
	if changed {
		a.UpdatedAt = time.Now()
		if err := r.store.Update(*a); err != nil {
			return model.Account{}, err
		}
	}
	return *a, nil
}

// UpdateCursor merges a new cursor into the account's per-operation
// cursor map. An empty operationType is rejected as a schema-validation
// error; any other operation key is accepted as given. A cursor that
// regresses the stored resumption position is rejected as an invariant
// violation, unless the incoming cursor is the failed sentinel (a failed
// stream is allowed to report back a position behind the last success).
func (r *Registry) UpdateCursor(id, operationType string, cursor model.Cursor) (model.Account, error) {
	if operationType == "" {
		return model.Account{}, ledgererr.New(ledgererr.CodeSchemaValidation, "operationType must not be empty")
	}
	a, err := r.store.Get(id)
	if err != nil {
		return model.Account{}, err
	}
	if a == nil {
		return model.Account{}, ledgererr.New(ledgererr.CodeNotFound, "account not found: "+id)
	}

	if existing, ok := a.LastCursor[operationType]; ok && cursorRegresses(existing, cursor) {
		return model.Account{}, ledgererr.New(ledgererr.CodeInvariantViolation,
			"cursor for "+operationType+" would regress the stored resumption position")
	}

	if a.LastCursor == nil {
		a.LastCursor = make(map[string]model.Cursor)
	}
	a.LastCursor[operationType] = cursor
	a.UpdatedAt = time.Now()
	if err := r.store.Update(*a); err != nil {
		return model.Account{}, err
	}
	return *a, nil
}

// cursorRegresses reports whether next is an earlier resumption position
// than prev. The failed sentinel is exempt: a stream that exhausted every
// provider reports back whatever position it last confirmed, which is
// expected to sit behind prev rather than ahead of it.
//
// The ordinal compared is CursorPrimary.Value when both cursors set it,
// falling back to LastTransactionID otherwise — each adapter's own
// monotonic counter (a block number, a row count, a venue sequence id).
// Both are parsed as integers first (the common case for every reference
// adapter); if either side isn't numeric, fall back to a lexicographic
// comparison rather than guessing further.
func cursorRegresses(prev, next model.Cursor) bool {
	if next.IsFailedSentinel() {
		return false
	}

	prevVal, nextVal := prev.Primary.Value, next.Primary.Value
	if prevVal == "" || nextVal == "" {
		prevVal, nextVal = prev.LastTransactionID, next.LastTransactionID
	}
	if prevVal == "" || nextVal == "" {
		return false
	}

	prevN, errPrev := strconv.ParseInt(prevVal, 10, 64)
	nextN, errNext := strconv.ParseInt(nextVal, 10, 64)
	if errPrev == nil && errNext == nil {
		return nextN < prevN
	}
	return nextVal < prevVal
}

// FindLatestIncomplete delegates to the Session Registry, since session
// lifecycle state lives there, not in AR's own storage.
func (r *Registry) FindLatestIncomplete(accountID string) (*model.ImportSession, error) {
	return r.sessions.FindLatestIncomplete(accountID)
}

// Lock claims the in-process import lock for accountID, returning
// ErrSessionAlreadyRunning if another goroutine already holds it. The
// lock is process-local: it prevents two concurrent imports racing
// within one running instance, not a distributed lock across replicas.
func (r *Registry) Lock(accountID string) error {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	if _, held := r.locks[accountID]; held {
		return ErrSessionAlreadyRunning
	}
	r.locks[accountID] = struct{}{}
	return nil
}

// Unlock releases the lock acquired by Lock. Safe to call even if no
// lock is held.
func (r *Registry) Unlock(accountID string) {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	delete(r.locks, accountID)
}

// GapScan derives addresses under basePath starting at startIndex and
// reports back those isUsed confirms as used, stopping after
// maxConsecutiveUnused consecutive unused addresses. Any error from
// isUsed aborts the whole scan with nothing committed — a partial
// derivation is never written to the account's address list.
func (r *Registry) GapScan(xpub, basePath string, startIndex, maxConsecutiveUnused int, isUsed func(address string) (bool, error)) ([]string, error) {
	wrapped := isUsed
	if r.onAddressChecked != nil {
		wrapped = func(address string) (bool, error) {
			r.onAddressChecked()
			return isUsed(address)
		}
	}
	used, err := r.wallet.gapScan(xpub, basePath, startIndex, maxConsecutiveUnused, wrapped)
	if err != nil {
		r.logger.Warn().Err(err).Msg("gap scan aborted")
		return nil, err
	}
	return used, nil
}

// SetAddressCheckedHook registers a callback invoked once per address
// gapScan examines, used to feed the gap-scan-progress metric without
// making this package depend on the metrics package.
func (r *Registry) SetAddressCheckedHook(fn func()) {
	r.onAddressChecked = fn
}

// DeriveAddress derives a single address from an account's stored xpub
// at path, used to materialize one more address on demand rather than
// scanning.
func (r *Registry) DeriveAddress(xpub, path string) (string, error) {
	return r.wallet.deriveEVMAddress(xpub, path)
}
