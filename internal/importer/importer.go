// Package importer implements the Importer (IMP): it drives the Provider
// Manager for one account/operation pair, applies the replay window of the
// first adapter registered for the source to a stored cursor, deduplicates rows within the run, and
// computes each row's eventId before handing it to the Raw Store.
//
// Grounded on the chain adapter's streaming consumers in
// src/chainadapter/*/client.go, generalized from "page through one
// blockchain's RPC" to "page through PM, across providers."
package importer

import (
	"context"

	"github.com/arcsign/ledgerkit/internal/adapter"
	"github.com/arcsign/ledgerkit/internal/eventid"
	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/logging"
	"github.com/arcsign/ledgerkit/internal/model"
	"github.com/arcsign/ledgerkit/internal/provider"
)

// Importer is the IMP component.
type Importer struct {
	pm     *provider.Manager
	logger *logging.ComponentLogger
}

func New(pm *provider.Manager, logger *logging.ComponentLogger) *Importer {
	return &Importer{pm: pm, logger: logger}
}

// Row is one fetched, deduplicated, eventId-stamped row ready for RS.
type Row struct {
	EventID string
	adapter.RawRow
	ProviderName string
}

// RunResult is everything IMP learned while draining one operation.
type RunResult struct {
	Rows        []Row
	FinalCursor model.Cursor
	Warnings    []string
}

// Run rejects an empty source, resumes from storedCursor (after asking
// the first adapter registered for the source to apply its replay
// window), drains PM's stream, and deduplicates rows by
// (venueTxId, transactionTypeHint, sourceAddress) within this run. A
// provider-side failure that exhausts every candidate does not abort
// the whole run: IMP yields a failed-sentinel cursor so the caller can
// retry just this stream later, per the cursor contract in model.Cursor.
func (imp *Importer) Run(ctx context.Context, source string, op adapter.Operation, storedCursor *model.Cursor) (RunResult, error) {
	if source == "" {
		return RunResult{}, ledgererr.New(ledgererr.CodeInput, "source must not be empty")
	}

	cursor := storedCursor
	if cursor != nil {
		applied := imp.applyReplayWindow(source, *cursor)
		cursor = &applied
	}
	op.Cursor = cursor

	stream, err := imp.pm.ExecuteStreaming(ctx, source, op)
	if err != nil {
		return RunResult{}, err
	}

	var result RunResult
	seen := make(map[model.UniqueKey]struct{})

	for sr := range stream {
		if sr.Err != nil {
			if imp.logger != nil {
				imp.logger.Warn().Str("source", source).Err(sr.Err).Msg("stream exhausted")
			}
			result.FinalCursor = failedSentinel(result.FinalCursor)
			result.Warnings = append(result.Warnings, sr.Err.Error())
			return result, nil
		}

		for _, raw := range sr.Chunk.Rows {
			key := model.UniqueKey{
				SourceName:          source,
				VenueTransactionID:  raw.VenueTransactionID,
				TransactionTypeHint: raw.TransactionTypeHint,
				SourceAddress:       raw.SourceAddress,
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			id := eventid.Compute(source, sr.Chunk.ProviderName, raw.VenueTransactionID, raw.TransactionTypeHint, raw.SourceAddress)
			result.Rows = append(result.Rows, Row{EventID: id, RawRow: raw, ProviderName: sr.Chunk.ProviderName})
		}
		result.FinalCursor = sr.Chunk.Cursor
	}

	return result, nil
}

// applyReplayWindow asks the first adapter registered for source, in
// registration order and without a capability check, to rewind cursor.
// The adapter PM later picks to serve the resumed stream may be a
// different one.
func (imp *Importer) applyReplayWindow(source string, cursor model.Cursor) model.Cursor {
	for _, a := range imp.pm.Registry().Adapters(source) {
		return a.ApplyReplayWindow(cursor)
	}
	return cursor
}

func failedSentinel(last model.Cursor) model.Cursor {
	last.LastTransactionID = model.FailedSentinelTxID
	last.Metadata.FetchStatus = model.FetchStatusFailed
	return last
}
