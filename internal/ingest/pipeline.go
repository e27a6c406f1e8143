// Package ingest turns parsed upload rows into stored financial records.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/lookup"
)

// Writer is the slice of the store the pipeline needs.
type Writer interface {
	AddRecords(ctx context.Context, records []*domain.FinancialRecord) error
	AddChangeHistory(ctx context.Context, entry *domain.ChangeHistoryEntry) error
}

// Pipeline validates, resolves and persists one upload batch at a time.
type Pipeline struct {
	store    Writer
	resolver *lookup.Resolver
	now      func() time.Time
}

func NewPipeline(store Writer, resolver *lookup.Resolver) *Pipeline {
	return &Pipeline{store: store, resolver: resolver, now: time.Now}
}

// Result summarizes one processed upload.
type Result struct {
	Scenario string    `json:"scenario"`
	Version  string    `json:"version"`
	Count    int       `json:"count"`
	Uploaded time.Time `json:"uploaded"`
}

// ProcessUpload ingests one batch of rows into (scenario, version). All rows
// share a single upload timestamp so the batch is identifiable as one upload.
// Any invalid row rejects the whole batch before anything is written; the
// store write itself is atomic. Audit entries are written after the batch
// commits and are best-effort: a failing audit write is logged, not returned,
// since the records are already durable.
func (p *Pipeline) ProcessUpload(ctx context.Context, rows []domain.RawRow, scenario, version, userName string) (*Result, error) {
	if scenario == "" {
		return nil, &domain.ValidationError{Field: "scenario", Message: "scenario is required"}
	}
	if version == "" {
		return nil, &domain.ValidationError{Field: "version", Message: "version is required"}
	}
	if len(rows) == 0 {
		return nil, &domain.ValidationError{Field: "rows", Message: "upload contains no rows"}
	}
	if userName == "" {
		userName = "System"
	}

	uploaded := p.now().UTC()
	records := make([]*domain.FinancialRecord, 0, len(rows))
	for i, row := range rows {
		if err := row.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		account, err := p.resolver.ResolveAccount(ctx, row.Account)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		amount, err := p.resolver.ConvertAmount(ctx, row.Amount, domain.PeriodOf(row.Year, row.Month))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		records = append(records, &domain.FinancialRecord{
			Type:            row.Type,
			Account:         account,
			Department:      row.Department,
			Year:            row.Year,
			Month:           row.Month,
			Amount:          amount,
			Scenario:        scenario,
			Version:         version,
			UploadTimestamp: uploaded,
		})
	}

	if err := p.store.AddRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("store upload batch: %w", err)
	}

	log := zerolog.Ctx(ctx)
	for _, r := range records {
		entry := &domain.ChangeHistoryEntry{
			RecordID:  r.ID,
			Action:    domain.ActionImported,
			UserName:  userName,
			Timestamp: uploaded,
		}
		if err := p.store.AddChangeHistory(ctx, entry); err != nil {
			log.Warn().Err(err).Str("record_id", r.ID).Msg("audit entry write failed")
		}
	}

	log.Info().
		Str("scenario", scenario).
		Str("version", version).
		Int("count", len(records)).
		Msg("upload ingested")

	return &Result{Scenario: scenario, Version: version, Count: len(records), Uploaded: uploaded}, nil
}

// DefaultVersion returns the timestamp-derived version tag used when an
// upload does not name one.
func (p *Pipeline) DefaultVersion() string {
	return p.now().UTC().Format("2006-01-02-150405")
}
