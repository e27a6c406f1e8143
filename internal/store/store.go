// Package store defines the persistence contract for financial records,
// change history and lookup tables. Backends live in subpackages.
package store

import (
	"context"
	"errors"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
)

// ErrNotFound is returned when a keyed lookup has no match. Backends wrap it
// so callers can test with errors.Is.
var ErrNotFound = errors.New("not found")

// RecordFilter narrows a Query. Zero-value fields are ignored. Scenario,
// Version and Period match exactly; Account, Type and Department match as
// case-insensitive substrings to back the browsing UI filters.
type RecordFilter struct {
	Scenario   string
	Version    string
	Account    string
	Department string
	Type       string
	Period     *domain.Period
}

// RecordStore is the full persistence surface. Writes are append-only:
// records and change history entries are never updated or deleted.
type RecordStore interface {
	// AddRecords persists a batch atomically, assigning each record an ID.
	// Either every record is stored or none are.
	AddRecords(ctx context.Context, records []*domain.FinancialRecord) error

	// Query returns records matching the filter, newest upload first.
	Query(ctx context.Context, f RecordFilter) ([]*domain.FinancialRecord, error)

	// LatestByScenario returns the records of the scenario's most recent
	// upload batch (maximum upload timestamp).
	LatestByScenario(ctx context.Context, scenario string) ([]*domain.FinancialRecord, error)

	// AddChangeHistory appends one audit entry, assigning it an ID.
	AddChangeHistory(ctx context.Context, entry *domain.ChangeHistoryEntry) error

	// ChangeHistoryByRecord returns a record's audit trail, newest first.
	ChangeHistoryByRecord(ctx context.Context, recordID string) ([]*domain.ChangeHistoryEntry, error)

	// AddFXRates loads conversion rates into the lookup table.
	AddFXRates(ctx context.Context, rates []*domain.FXRate) error

	// GetFXRate returns the rate for (from, to, period) or ErrNotFound.
	GetFXRate(ctx context.Context, from, to, period string) (*domain.FXRate, error)

	// AddAccountMaps loads account code mappings into the lookup table.
	AddAccountMaps(ctx context.Context, maps []*domain.AccountMap) error

	// GetAccountMap returns the mapping for a code or ErrNotFound.
	GetAccountMap(ctx context.Context, code string) (*domain.AccountMap, error)

	// Scenarios returns the distinct scenario names, sorted.
	Scenarios(ctx context.Context) ([]string, error)

	// Accounts returns the distinct account names, sorted.
	Accounts(ctx context.Context) ([]string, error)

	// Departments returns the distinct non-empty department names, sorted.
	Departments(ctx context.Context) ([]string, error)
}
