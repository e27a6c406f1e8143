// Package scenario implements scenario cloning with multiplicative
// adjustments.
package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store"
)

// Store is the slice of the record store the cloner needs.
type Store interface {
	Query(ctx context.Context, f store.RecordFilter) ([]*domain.FinancialRecord, error)
	AddRecords(ctx context.Context, records []*domain.FinancialRecord) error
	AddChangeHistory(ctx context.Context, entry *domain.ChangeHistoryEntry) error
}

// CloneRequest describes one clone operation. BaseVersion is optional; when
// empty, every record of the base scenario is cloned.
type CloneRequest struct {
	BaseScenario string              `json:"baseScenario"`
	BaseVersion  string              `json:"baseVersion,omitempty"`
	NewScenario  string              `json:"newScenario"`
	Adjustments  []domain.Adjustment `json:"adjustments,omitempty"`
}

// CloneResult reports what a clone produced.
type CloneResult struct {
	NewScenario string    `json:"newScenario"`
	Version     string    `json:"version"`
	Count       int       `json:"count"`
	Cloned      time.Time `json:"cloned"`
}

// Cloner copies the records of a base scenario into a new scenario under a
// timestamp-derived version tag.
type Cloner struct {
	store Store
	now   func() time.Time
}

func NewCloner(s Store) *Cloner {
	return &Cloner{store: s, now: time.Now}
}

// Clone reads a snapshot of the base scenario and writes adjusted copies
// under the new scenario name. Adjustments apply in request order and
// compound when several match the same record. The snapshot is not locked
// against concurrent writers: two clones of the same base racing an upload
// may observe different record sets.
func (c *Cloner) Clone(ctx context.Context, req CloneRequest) (*CloneResult, error) {
	if req.BaseScenario == "" {
		return nil, &domain.ValidationError{Field: "baseScenario", Message: "base scenario is required"}
	}
	if req.NewScenario == "" {
		return nil, &domain.ValidationError{Field: "newScenario", Message: "new scenario is required"}
	}
	if req.NewScenario == req.BaseScenario {
		return nil, &domain.ValidationError{Field: "newScenario", Message: "new scenario must differ from base"}
	}

	base, err := c.store.Query(ctx, store.RecordFilter{Scenario: req.BaseScenario, Version: req.BaseVersion})
	if err != nil {
		return nil, fmt.Errorf("load base scenario %q: %w", req.BaseScenario, err)
	}
	if len(base) == 0 {
		return nil, fmt.Errorf("base scenario %q has no records: %w", req.BaseScenario, store.ErrNotFound)
	}

	cloned := c.now().UTC()
	version := cloned.Format("2006-01-02-150405")

	out := make([]*domain.FinancialRecord, 0, len(base))
	for _, r := range base {
		amount := r.Amount
		for _, adj := range req.Adjustments {
			if adj.Matches(r) {
				amount = amount.Mul(adj.Factor)
			}
		}
		out = append(out, &domain.FinancialRecord{
			Type:            r.Type,
			Account:         r.Account,
			Department:      r.Department,
			Year:            r.Year,
			Month:           r.Month,
			Amount:          amount,
			Scenario:        req.NewScenario,
			Version:         version,
			UploadTimestamp: cloned,
		})
	}

	if err := c.store.AddRecords(ctx, out); err != nil {
		return nil, fmt.Errorf("store cloned scenario: %w", err)
	}

	log := zerolog.Ctx(ctx)
	for _, r := range out {
		entry := &domain.ChangeHistoryEntry{
			RecordID:  r.ID,
			Action:    domain.ActionCloned,
			UserName:  "System",
			Timestamp: cloned,
		}
		if err := c.store.AddChangeHistory(ctx, entry); err != nil {
			log.Warn().Err(err).Str("record_id", r.ID).Msg("audit entry write failed")
		}
	}

	log.Info().
		Str("base_scenario", req.BaseScenario).
		Str("new_scenario", req.NewScenario).
		Str("version", version).
		Int("count", len(out)).
		Msg("scenario cloned")

	return &CloneResult{NewScenario: req.NewScenario, Version: version, Count: len(out), Cloned: cloned}, nil
}
