// Package memory provides an in-memory RecordStore for tests and local
// development. All methods are safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store"
)

// Store keeps everything in slices guarded by one RWMutex. Returned records
// are copies so callers cannot mutate stored state.
type Store struct {
	mu      sync.RWMutex
	records []domain.FinancialRecord
	history []domain.ChangeHistoryEntry
	rates   []domain.FXRate
	maps    []domain.AccountMap
}

var _ store.RecordStore = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) AddRecords(_ context.Context, records []*domain.FinancialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.records = append(s.records, *r)
	}
	return nil
}

func (s *Store) Query(_ context.Context, f store.RecordFilter) ([]*domain.FinancialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.FinancialRecord
	for i := range s.records {
		r := s.records[i]
		if !matches(&r, f) {
			continue
		}
		out = append(out, &r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadTimestamp.After(out[j].UploadTimestamp)
	})
	return out, nil
}

func matches(r *domain.FinancialRecord, f store.RecordFilter) bool {
	if f.Scenario != "" && r.Scenario != f.Scenario {
		return false
	}
	if f.Version != "" && r.Version != f.Version {
		return false
	}
	if f.Period != nil && !f.Period.Contains(r.Year, r.Month) {
		return false
	}
	if f.Account != "" && !containsFold(r.Account, f.Account) {
		return false
	}
	if f.Department != "" && !containsFold(r.Department, f.Department) {
		return false
	}
	if f.Type != "" && !containsFold(r.Type, f.Type) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (s *Store) LatestByScenario(_ context.Context, scenario string) ([]*domain.FinancialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.FinancialRecord
	for i := range s.records {
		r := &s.records[i]
		if r.Scenario != scenario {
			continue
		}
		if latest == nil || r.UploadTimestamp.After(latest.UploadTimestamp) {
			latest = r
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario, store.ErrNotFound)
	}

	var out []*domain.FinancialRecord
	for i := range s.records {
		r := s.records[i]
		if r.Scenario == scenario && r.UploadTimestamp.Equal(latest.UploadTimestamp) {
			out = append(out, &r)
		}
	}
	return out, nil
}

func (s *Store) AddChangeHistory(_ context.Context, entry *domain.ChangeHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	s.history = append(s.history, *entry)
	return nil
}

func (s *Store) ChangeHistoryByRecord(_ context.Context, recordID string) ([]*domain.ChangeHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ChangeHistoryEntry
	for i := range s.history {
		e := s.history[i]
		if e.RecordID == recordID {
			out = append(out, &e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) AddFXRates(_ context.Context, rates []*domain.FXRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rates {
		s.rates = append(s.rates, *r)
	}
	return nil
}

func (s *Store) GetFXRate(_ context.Context, from, to, period string) (*domain.FXRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.rates {
		r := s.rates[i]
		if r.FromCurrency == from && r.ToCurrency == to && r.Period == period {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("fx rate %s/%s %s: %w", from, to, period, store.ErrNotFound)
}

func (s *Store) AddAccountMaps(_ context.Context, maps []*domain.AccountMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range maps {
		s.maps = append(s.maps, *m)
	}
	return nil
}

func (s *Store) GetAccountMap(_ context.Context, code string) (*domain.AccountMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.maps {
		m := s.maps[i]
		if m.AccountCode == code {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("account map %q: %w", code, store.ErrNotFound)
}

func (s *Store) Scenarios(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.distinct(func(r *domain.FinancialRecord) string { return r.Scenario }), nil
}

func (s *Store) Accounts(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.distinct(func(r *domain.FinancialRecord) string { return r.Account }), nil
}

func (s *Store) Departments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.distinct(func(r *domain.FinancialRecord) string { return r.Department }), nil
}

func (s *Store) distinct(key func(*domain.FinancialRecord) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range s.records {
		k := key(&s.records[i])
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
