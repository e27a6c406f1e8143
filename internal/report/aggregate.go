// Package report computes aggregation reports and cross-scenario
// comparisons over stored financial records.
package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store"
)

// Reader is the slice of the record store the report engine needs.
type Reader interface {
	Query(ctx context.Context, f store.RecordFilter) ([]*domain.FinancialRecord, error)
}

// Engine computes reports. It holds no state beyond the store handle.
type Engine struct {
	store Reader
}

func NewEngine(s Reader) *Engine {
	return &Engine{store: s}
}

// Filter narrows Summary and Monthly reports. Scenario is required; Account
// and Department are exact matches when set. From/To are inclusive bounds
// comparing against the first day of each record's period.
type Filter struct {
	Scenario   string
	Account    string
	Department string
	From       *domain.Period
	To         *domain.Period
}

func (f Filter) match(r *domain.FinancialRecord) bool {
	if f.Account != "" && r.Account != f.Account {
		return false
	}
	if f.Department != "" && r.Department != f.Department {
		return false
	}
	date := domain.PeriodOf(r.Year, r.Month).Date()
	if f.From != nil && date.Before(f.From.Date()) {
		return false
	}
	if f.To != nil && date.After(f.To.Date()) {
		return false
	}
	return true
}

func (e *Engine) filtered(ctx context.Context, f Filter) ([]*domain.FinancialRecord, error) {
	if f.Scenario == "" {
		return nil, &domain.ValidationError{Field: "scenario", Message: "scenario is required"}
	}
	records, err := e.store.Query(ctx, store.RecordFilter{Scenario: f.Scenario})
	if err != nil {
		return nil, fmt.Errorf("load scenario %q: %w", f.Scenario, err)
	}
	out := records[:0]
	for _, r := range records {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// SummaryRow is one (account, department, scenario) total.
type SummaryRow struct {
	Account    string          `json:"account"`
	Department string          `json:"department,omitempty"`
	Scenario   string          `json:"scenario"`
	Total      decimal.Decimal `json:"total"`
}

// Summary sums filtered records per (account, department, scenario), sorted
// by account, then department, then scenario.
func (e *Engine) Summary(ctx context.Context, f Filter) ([]SummaryRow, error) {
	records, err := e.filtered(ctx, f)
	if err != nil {
		return nil, err
	}

	type key struct {
		account    string
		department string
		scenario   string
	}
	totals := make(map[key]decimal.Decimal)
	for _, r := range records {
		k := key{account: r.Account, department: r.Department, scenario: r.Scenario}
		totals[k] = totals[k].Add(r.Amount)
	}

	out := make([]SummaryRow, 0, len(totals))
	for k, total := range totals {
		out = append(out, SummaryRow{Account: k.account, Department: k.department, Scenario: k.scenario, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Account != out[j].Account {
			return out[i].Account < out[j].Account
		}
		if out[i].Department != out[j].Department {
			return out[i].Department < out[j].Department
		}
		return out[i].Scenario < out[j].Scenario
	})
	return out, nil
}

// MonthlyRow is one period total in a monthly report.
type MonthlyRow struct {
	Period string          `json:"period"`
	Total  decimal.Decimal `json:"total"`
}

// Monthly sums filtered records per "YYYY-MM" period, ascending.
func (e *Engine) Monthly(ctx context.Context, f Filter) ([]MonthlyRow, error) {
	records, err := e.filtered(ctx, f)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal)
	for _, r := range records {
		label := domain.PeriodOf(r.Year, r.Month).String()
		totals[label] = totals[label].Add(r.Amount)
	}

	out := make([]MonthlyRow, 0, len(totals))
	for period, total := range totals {
		out = append(out, MonthlyRow{Period: period, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

// Drilldown returns the individual records behind one account in a scenario.
// A period string that does not parse as "YYYY-MM" drops the period filter
// rather than failing; the department filter is an exact match when set.
func (e *Engine) Drilldown(ctx context.Context, scenario, account, period, department string) ([]*domain.FinancialRecord, error) {
	if scenario == "" {
		return nil, &domain.ValidationError{Field: "scenario", Message: "scenario is required"}
	}
	if account == "" {
		return nil, &domain.ValidationError{Field: "account", Message: "account is required"}
	}

	records, err := e.store.Query(ctx, store.RecordFilter{Scenario: scenario})
	if err != nil {
		return nil, fmt.Errorf("load scenario %q: %w", scenario, err)
	}

	p, hasPeriod := domain.ParsePeriod(period)

	var out []*domain.FinancialRecord
	for _, r := range records {
		if r.Account != account {
			continue
		}
		if hasPeriod && !p.Contains(r.Year, r.Month) {
			continue
		}
		if department != "" && r.Department != department {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
