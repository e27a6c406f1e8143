package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store"
)

// ComparisonRow is one group in a scenario comparison. Percentage is the
// delta relative to the base sum, rounded to two decimals, and zero when the
// base sum is zero.
type ComparisonRow struct {
	Account      string          `json:"account"`
	Department   string          `json:"department,omitempty"`
	BaseAmount   decimal.Decimal `json:"baseAmount"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	Delta        decimal.Decimal `json:"delta"`
	Percentage   decimal.Decimal `json:"percentage"`
}

type groupKey struct {
	account    string
	department string
}

var hundred = decimal.NewFromInt(100)

// Compare sums both scenarios per account, or per (account, department) when
// includeDepartment is set, and reports the union of groups. A group absent
// from one side contributes a zero sum. The period follows the drilldown
// parsing rule: unparseable means unfiltered. Comparing a scenario with
// itself yields all-zero deltas.
func (e *Engine) Compare(ctx context.Context, baseScenario, targetScenario, period string, includeDepartment bool) ([]ComparisonRow, error) {
	if baseScenario == "" {
		return nil, &domain.ValidationError{Field: "base", Message: "base scenario is required"}
	}
	if targetScenario == "" {
		return nil, &domain.ValidationError{Field: "target", Message: "target scenario is required"}
	}

	p, hasPeriod := domain.ParsePeriod(period)
	var pp *domain.Period
	if hasPeriod {
		pp = &p
	}

	base, n, err := e.sumByGroup(ctx, baseScenario, pp, includeDepartment)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("base scenario %q has no records: %w", baseScenario, store.ErrNotFound)
	}
	target, _, err := e.sumByGroup(ctx, targetScenario, pp, includeDepartment)
	if err != nil {
		return nil, err
	}

	keys := make(map[groupKey]struct{}, len(base)+len(target))
	for k := range base {
		keys[k] = struct{}{}
	}
	for k := range target {
		keys[k] = struct{}{}
	}

	out := make([]ComparisonRow, 0, len(keys))
	for k := range keys {
		baseSum := base[k]
		targetSum := target[k]
		delta := targetSum.Sub(baseSum)

		var percentage decimal.Decimal
		if !baseSum.IsZero() {
			percentage = delta.Div(baseSum).Mul(hundred).Round(2)
		}

		out = append(out, ComparisonRow{
			Account:      k.account,
			Department:   k.department,
			BaseAmount:   baseSum,
			TargetAmount: targetSum,
			Delta:        delta,
			Percentage:   percentage,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Account != out[j].Account {
			return out[i].Account < out[j].Account
		}
		return out[i].Department < out[j].Department
	})
	return out, nil
}

// sumByGroup returns group sums plus the count of records in the scenario
// before period filtering, so the caller can tell an empty scenario apart
// from a period with no activity.
func (e *Engine) sumByGroup(ctx context.Context, scenario string, period *domain.Period, includeDepartment bool) (map[groupKey]decimal.Decimal, int, error) {
	records, err := e.store.Query(ctx, store.RecordFilter{Scenario: scenario})
	if err != nil {
		return nil, 0, fmt.Errorf("load scenario %q: %w", scenario, err)
	}
	sums := make(map[groupKey]decimal.Decimal)
	for _, r := range records {
		if period != nil && !period.Contains(r.Year, r.Month) {
			continue
		}
		k := groupKey{account: r.Account}
		if includeDepartment {
			k.department = r.Department
		}
		sums[k] = sums[k].Add(r.Amount)
	}
	return sums, len(records), nil
}
