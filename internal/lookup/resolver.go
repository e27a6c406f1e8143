// Package lookup resolves raw upload values against the account map and FX
// rate tables. Resolution happens once, at ingestion; stored records already
// carry canonical account names and converted amounts.
package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store"
)

// Tables is the slice of the store the resolver needs.
type Tables interface {
	GetFXRate(ctx context.Context, from, to, period string) (*domain.FXRate, error)
	GetAccountMap(ctx context.Context, code string) (*domain.AccountMap, error)
}

// Resolver maps account codes to canonical names and converts amounts for a
// fixed currency pair. Both lookups are passthrough on a miss: an unmapped
// code stays as-is and a missing rate leaves the amount unchanged.
type Resolver struct {
	tables Tables
	from   string
	to     string
}

// NewResolver builds a resolver converting from -> to, e.g. "EUR" -> "USD".
func NewResolver(tables Tables, from, to string) *Resolver {
	return &Resolver{tables: tables, from: from, to: to}
}

// ResolveAccount returns the canonical account name for a code, or the code
// itself when no mapping exists.
func (r *Resolver) ResolveAccount(ctx context.Context, code string) (string, error) {
	m, err := r.tables.GetAccountMap(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return code, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve account %q: %w", code, err)
	}
	return m.AccountName, nil
}

// ConvertAmount converts an amount using the rate for the record's own
// period. Without a rate the amount passes through unchanged.
func (r *Resolver) ConvertAmount(ctx context.Context, amount decimal.Decimal, period domain.Period) (decimal.Decimal, error) {
	rate, err := r.tables.GetFXRate(ctx, r.from, r.to, period.String())
	if errors.Is(err, store.ErrNotFound) {
		return amount, nil
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("resolve fx rate %s/%s %s: %w", r.from, r.to, period, err)
	}
	return amount.Mul(rate.Rate), nil
}
