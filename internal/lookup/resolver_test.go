package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store/memory"
)

func TestResolveAccount(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.AddAccountMaps(ctx, []*domain.AccountMap{
		{AccountCode: "4000", AccountName: "Revenue"},
	}))

	r := NewResolver(s, "EUR", "USD")

	name, err := r.ResolveAccount(ctx, "4000")
	require.NoError(t, err)
	assert.Equal(t, "Revenue", name)

	name, err = r.ResolveAccount(ctx, "5000")
	require.NoError(t, err)
	assert.Equal(t, "5000", name, "unmapped code passes through")
}

func TestConvertAmount(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.AddFXRates(ctx, []*domain.FXRate{
		{FromCurrency: "EUR", ToCurrency: "USD", Rate: decimal.RequireFromString("1.10"), Period: "2025-03"},
	}))

	r := NewResolver(s, "EUR", "USD")

	got, err := r.ConvertAmount(ctx, decimal.NewFromInt(200), domain.PeriodOf(2025, 3))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(220)), "got %s", got)

	got, err = r.ConvertAmount(ctx, decimal.NewFromInt(200), domain.PeriodOf(2025, 4))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(200)), "missing rate passes through")
}

type failingTables struct{}

func (failingTables) GetFXRate(context.Context, string, string, string) (*domain.FXRate, error) {
	return nil, errors.New("backend down")
}

func (failingTables) GetAccountMap(context.Context, string) (*domain.AccountMap, error) {
	return nil, errors.New("backend down")
}

func TestStoreFailuresPropagate(t *testing.T) {
	r := NewResolver(failingTables{}, "EUR", "USD")
	ctx := context.Background()

	_, err := r.ResolveAccount(ctx, "4000")
	require.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrNotFound))

	_, err = r.ConvertAmount(ctx, decimal.NewFromInt(1), domain.PeriodOf(2025, 3))
	require.Error(t, err)
}
