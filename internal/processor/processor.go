package processor

import (
	"github.com/arcsign/ledgerkit/internal/logging"
	"github.com/arcsign/ledgerkit/internal/model"
)

// Processor is the PROC component.
type Processor struct {
	registry *Registry
	logger   *logging.ComponentLogger
}

func New(registry *Registry, logger *logging.ComponentLogger) *Processor {
	return &Processor{registry: registry, logger: logger}
}

// Outcome is one row (or paired group)'s mapping result.
type Outcome struct {
	SourceRowIDs []string // RawTransaction.ID of every row in the group
	Canonical    *model.CanonicalTransaction
	Err          error
}

// ProcessBatch maps every raw transaction in rows, grouping same-venue
// same-timestamp pairs (e.g. convert-market) before invoking the
// per-(source, providerName) mapper's Map on each group. A row whose
// mapper is missing, whose Map call errors, or whose mapped output
// fails validate is reported as a failed Outcome; the rest of the
// batch still proceeds, per the spec's one-malformed-row boundary.
func (p *Processor) ProcessBatch(rows []model.RawTransaction, meta SessionMetadata) []Outcome {
	bySource := make(map[string][]model.RawTransaction)
	for _, r := range rows {
		bySource[r.ProviderName] = append(bySource[r.ProviderName], r)
	}

	var outcomes []Outcome
	for providerName, group := range bySource {
		if len(group) == 0 {
			continue
		}
		mapper := p.registry.Lookup(meta.SourceName, providerName)
		if mapper == nil {
			err := errNoMapper(meta.SourceName, providerName)
			for _, r := range group {
				outcomes = append(outcomes, Outcome{SourceRowIDs: []string{r.ID}, Err: err})
			}
			continue
		}

		for _, rowGroup := range mapper.Pair(group) {
			ids := make([]string, len(rowGroup))
			for i, r := range rowGroup {
				ids[i] = r.ID
			}

			ct, err := mapper.Map(rowGroup, meta)
			if err != nil {
				outcomes = append(outcomes, Outcome{SourceRowIDs: ids, Err: err})
				continue
			}
			if ct == nil {
				// intentional skip: not a failure, nothing to persist
				outcomes = append(outcomes, Outcome{SourceRowIDs: ids})
				continue
			}
			if err := validate(ct); err != nil {
				if p.logger != nil {
					p.logger.Warn().Strs("rows", ids).Err(err).Msg("mapped transaction failed validation")
				}
				outcomes = append(outcomes, Outcome{SourceRowIDs: ids, Err: err})
				continue
			}
			outcomes = append(outcomes, Outcome{SourceRowIDs: ids, Canonical: ct})
		}
	}

	return outcomes
}
