// Package orchestrator implements the Ingestion Orchestrator (IO): the
// top-level driver wiring AR -> SR -> IMP -> RS -> PROC -> CS with the
// session and cancellation semantics the rest of the engine assumes.
//
// Grounded on the chain adapter's top-level sync orchestration (each
// chain package's own "fetch then persist" driver loop in its
// client.go), generalized into one venue-agnostic driver that delegates
// every venue-specific step to the component it belongs to.
package orchestrator

import (
	"context"
	"time"

	"github.com/arcsign/ledgerkit/internal/account"
	"github.com/arcsign/ledgerkit/internal/adapter"
	"github.com/arcsign/ledgerkit/internal/canonicalstore"
	"github.com/arcsign/ledgerkit/internal/importer"
	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/logging"
	"github.com/arcsign/ledgerkit/internal/model"
	"github.com/arcsign/ledgerkit/internal/processor"
	"github.com/arcsign/ledgerkit/internal/rawstore"
	"github.com/arcsign/ledgerkit/internal/session"
)

// Orchestrator is the IO component.
type Orchestrator struct {
	accounts  *account.Registry
	sessions  *session.Registry
	importer  *importer.Importer
	rawStore  rawstore.Store
	processor *processor.Processor
	canonical canonicalstore.Store
	logger    *logging.ComponentLogger
}

func New(
	accounts *account.Registry,
	sessions *session.Registry,
	imp *importer.Importer,
	rawStore rawstore.Store,
	proc *processor.Processor,
	canonical canonicalstore.Store,
	logger *logging.ComponentLogger,
) *Orchestrator {
	return &Orchestrator{
		accounts:  accounts,
		sessions:  sessions,
		importer:  imp,
		rawStore:  rawStore,
		processor: proc,
		canonical: canonical,
		logger:    logger,
	}
}

// Stream names one operation IO should drive for this run: Op is the PM
// operation to execute against Request.Source.
type Stream struct {
	Op adapter.Operation
}

// Request is one call to Run.
type Request struct {
	Identity       model.IdentityTuple
	AccountDefaults model.AccountPatch
	Source         string
	Streams        []Stream
}

// Run executes one full import: resolve-or-create the account, claim
// its session lock, open a session, drive every stream through IMP and
// RS, map every raw row through PROC into CS, and finalize the session
// exactly once. A second concurrent Run for the same identity fails
// immediately with ErrSessionAlreadyRunning rather than queuing.
func (o *Orchestrator) Run(ctx context.Context, req Request) (model.ImportSession, error) {
	acc, err := o.accounts.FindOrCreate(req.Identity, req.AccountDefaults)
	if err != nil {
		return model.ImportSession{}, err
	}

	if err := o.accounts.Lock(acc.ID); err != nil {
		return model.ImportSession{}, err
	}
	defer o.accounts.Unlock(acc.ID)

	sess, err := o.sessions.Start(acc.ID)
	if err != nil {
		return model.ImportSession{}, err
	}

	var warnings []string
	var fatalErr error
	cancelled := false

streams:
	for _, stream := range req.Streams {
		select {
		case <-ctx.Done():
			cancelled = true
			break streams
		default:
		}

		opKey := string(stream.Op.Type) + ":" + string(stream.Op.TransactionType)
		var storedCursor *model.Cursor
		if c, ok := acc.LastCursor[opKey]; ok {
			storedCursor = &c
		}

		result, runErr := o.importer.Run(ctx, req.Source, stream.Op, storedCursor)
		if runErr != nil {
			if ledgererr.Is(runErr, ledgererr.CodeCredential) || ledgererr.Is(runErr, ledgererr.CodeNoProviders) {
				fatalErr = runErr
				break streams
			}
			warnings = append(warnings, runErr.Error())
			continue
		}
		warnings = append(warnings, result.Warnings...)

		if len(result.Rows) > 0 {
			rows := make([]model.RawTransaction, len(result.Rows))
			for i, r := range result.Rows {
				rows[i] = model.RawTransaction{
					SourceName:          req.Source,
					ProviderName:        r.ProviderName,
					VenueTransactionID:  r.VenueTransactionID,
					TransactionTypeHint: r.TransactionTypeHint,
					SourceAddress:       r.SourceAddress,
					Payload:             r.Payload,
					EventID:             r.EventID,
					ProcessingStatus:    model.ProcessingPending,
				}
			}
			if err := o.rawStore.Save(sess.ID, rows); err != nil {
				fatalErr = err
				break streams
			}
		}

		if _, err := o.accounts.UpdateCursor(acc.ID, opKey, result.FinalCursor); err != nil {
			warnings = append(warnings, err.Error())
		}
		if ctx.Err() != nil {
			cancelled = true
			break streams
		}
	}

	imported, skipped, procWarnings := o.runProcessor(sess.ID, req.Source, acc.ID)
	warnings = append(warnings, procWarnings...)

	status := model.SessionCompleted
	errMsg := ""
	switch {
	case cancelled:
		status = model.SessionCancelled
	case fatalErr != nil && imported == 0:
		status = model.SessionFailed
		errMsg = fatalErr.Error()
	case fatalErr != nil:
		// partial progress despite a fatal stream error: still a
		// completed session, the error surfaces only as a warning.
		warnings = append(warnings, fatalErr.Error())
	}

	if err := o.sessions.Finalize(sess.ID, status, imported, skipped, errMsg, nil, warnings); err != nil {
		return model.ImportSession{}, err
	}

	final, err := o.sessions.Get(sess.ID)
	if err != nil || final == nil {
		return sess, err
	}
	return *final, nil
}

// runProcessor loads this session's pending raw rows, maps them via
// PROC, upserts successes into CS, and marks every row processed or
// failed. It never aborts the session on a single row's mapping
// failure — that row is quarantined and the rest proceed.
func (o *Orchestrator) runProcessor(sessionID, source, accountID string) (imported, skipped int, warnings []string) {
	sid := sessionID
	pending := model.ProcessingPending
	rows, err := o.rawStore.Load(rawstore.Filter{SessionID: &sid, Status: &pending})
	if err != nil {
		return 0, 0, []string{err.Error()}
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}

	outcomes := o.processor.ProcessBatch(rows, processor.SessionMetadata{
		AccountID:  accountID,
		SourceName: source,
		ImportedAt: time.Now(),
	})

	for _, oc := range outcomes {
		if oc.Err != nil {
			for _, id := range oc.SourceRowIDs {
				if err := o.rawStore.MarkFailed(id, oc.Err.Error()); err != nil {
					warnings = append(warnings, err.Error())
				}
			}
			skipped++
			continue
		}
		if oc.Canonical == nil {
			if err := o.rawStore.MarkProcessed(oc.SourceRowIDs); err != nil {
				warnings = append(warnings, err.Error())
			}
			skipped++
			continue
		}
		if err := o.canonical.Upsert(*oc.Canonical); err != nil {
			for _, id := range oc.SourceRowIDs {
				_ = o.rawStore.MarkFailed(id, err.Error())
			}
			warnings = append(warnings, err.Error())
			skipped++
			continue
		}
		if err := o.rawStore.MarkProcessed(oc.SourceRowIDs); err != nil {
			warnings = append(warnings, err.Error())
		}
		imported++
	}

	return imported, skipped, warnings
}
