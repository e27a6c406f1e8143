package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(scenario, version, account, department string, ts time.Time) *domain.FinancialRecord {
	return &domain.FinancialRecord{
		Type:            "Actual",
		Account:         account,
		Department:      department,
		Year:            2025,
		Month:           3,
		Amount:          decimal.RequireFromString("100.50"),
		Scenario:        scenario,
		Version:         version,
		UploadTimestamp: ts,
	}
}

func TestRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	in := rec("Budget2025", "v1", "Revenue", "Sales", ts)
	require.NoError(t, s.AddRecords(ctx, []*domain.FinancialRecord{in}))
	require.NotEmpty(t, in.ID)

	got, err := s.Query(ctx, store.RecordFilter{Scenario: "Budget2025"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, in.ID, got[0].ID)
	assert.Equal(t, "Revenue", got[0].Account)
	assert.Equal(t, "Sales", got[0].Department)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("100.50")))
	assert.True(t, got[0].UploadTimestamp.Equal(ts))
}

func TestQueryFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddRecords(ctx, []*domain.FinancialRecord{
		rec("Budget2025", "v1", "Revenue", "Sales", now),
		rec("Budget2025", "v2", "Revenue", "Sales", now.Add(time.Hour)),
		rec("Forecast", "v1", "COGS", "Ops", now),
	}))

	got, err := s.Query(ctx, store.RecordFilter{Scenario: "Budget2025", Version: "v1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].Version)

	got, err = s.Query(ctx, store.RecordFilter{Account: "REVEN"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.Query(ctx, store.RecordFilter{Scenario: "Budget2025"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "v2", got[0].Version)

	p := domain.PeriodOf(2025, 4)
	got, err = s.Query(ctx, store.RecordFilter{Period: &p})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAddRecordsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	dup := rec("Budget2025", "v1", "Revenue", "", now)
	dup.ID = "fixed-id"
	other := rec("Budget2025", "v1", "COGS", "", now)
	other.ID = "fixed-id" // primary key collision fails the whole batch

	err := s.AddRecords(ctx, []*domain.FinancialRecord{dup, other})
	require.Error(t, err)

	got, err := s.Query(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLatestByScenario(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := old.Add(24 * time.Hour)

	require.NoError(t, s.AddRecords(ctx, []*domain.FinancialRecord{
		rec("Budget2025", "v1", "Revenue", "", old),
		rec("Budget2025", "v2", "Revenue", "", newer),
		rec("Budget2025", "v2", "COGS", "", newer),
	}))

	got, err := s.LatestByScenario(ctx, "Budget2025")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, "v2", r.Version)
	}

	_, err = s.LatestByScenario(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestChangeHistoryOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddChangeHistory(ctx, &domain.ChangeHistoryEntry{
		RecordID: "r1", Action: domain.ActionImported, UserName: "alice", Timestamp: now,
	}))
	require.NoError(t, s.AddChangeHistory(ctx, &domain.ChangeHistoryEntry{
		RecordID: "r1", Action: domain.ActionCloned, UserName: "System", Timestamp: now.Add(time.Minute),
	}))

	got, err := s.ChangeHistoryByRecord(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.ActionCloned, got[0].Action)
	assert.Equal(t, "System", got[0].UserName)
}

func TestLookupTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddFXRates(ctx, []*domain.FXRate{
		{FromCurrency: "EUR", ToCurrency: "USD", Rate: decimal.RequireFromString("1.0825"), Period: "2025-03"},
	}))
	rate, err := s.GetFXRate(ctx, "EUR", "USD", "2025-03")
	require.NoError(t, err)
	assert.True(t, rate.Rate.Equal(decimal.RequireFromString("1.0825")))

	_, err = s.GetFXRate(ctx, "GBP", "USD", "2025-03")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.AddAccountMaps(ctx, []*domain.AccountMap{
		{AccountCode: "4000", AccountName: "Revenue"},
	}))
	m, err := s.GetAccountMap(ctx, "4000")
	require.NoError(t, err)
	assert.Equal(t, "Revenue", m.AccountName)

	_, err = s.GetAccountMap(ctx, "9999")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDistinctValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.AddRecords(ctx, []*domain.FinancialRecord{
		rec("Forecast", "v1", "Revenue", "Sales", now),
		rec("Budget2025", "v1", "Revenue", "", now),
		rec("Budget2025", "v1", "COGS", "Ops", now),
	}))

	scenarios, err := s.Scenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Budget2025", "Forecast"}, scenarios)

	departments, err := s.Departments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ops", "Sales"}, departments)
}
