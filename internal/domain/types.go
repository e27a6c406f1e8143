// Package domain holds the core data model for the scenario engine:
// financial records, change history, lookup tables and adjustments.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Action tags a change history entry with the event that produced it.
type Action string

const (
	ActionImported Action = "Imported"
	ActionCloned   Action = "Cloned"
)

// FinancialRecord is one planning fact. Records are immutable once written:
// corrections happen through new uploads or clones, never in-place updates.
// A record belongs to exactly one (scenario, version) pair.
type FinancialRecord struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Account         string          `json:"account"`
	Department      string          `json:"department,omitempty"`
	Year            int             `json:"year"`
	Month           int             `json:"month"`
	Amount          decimal.Decimal `json:"amount"`
	Scenario        string          `json:"scenario"`
	Version         string          `json:"version"`
	UploadTimestamp time.Time       `json:"uploadTimestamp"`
}

// ChangeHistoryEntry is an append-only audit fact for one record.
// Entries are never updated or deleted.
type ChangeHistoryEntry struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"recordId"`
	Action    Action    `json:"action"`
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

// FXRate is a conversion rate keyed by (from, to, period). The store returns
// the first match for a key; loading duplicate keys is a caller error.
type FXRate struct {
	FromCurrency string          `json:"fromCurrency"`
	ToCurrency   string          `json:"toCurrency"`
	Rate         decimal.Decimal `json:"rate"`
	Period       string          `json:"period"`
}

// AccountMap maps a raw account code to a canonical account name.
type AccountMap struct {
	AccountCode string `json:"accountCode"`
	AccountName string `json:"accountName"`
}

// RawRow is one parsed upload row before normalization.
type RawRow struct {
	Type       string
	Account    string
	Department string
	Year       int
	Month      int
	Amount     decimal.Decimal
}

// Validate checks a raw row before ingestion.
func (r *RawRow) Validate() error {
	if r.Account == "" {
		return &ValidationError{Field: "account", Message: "account is required"}
	}
	if r.Year <= 0 {
		return &ValidationError{Field: "year", Message: fmt.Sprintf("invalid year %d", r.Year)}
	}
	if r.Month < 1 || r.Month > 12 {
		return &ValidationError{Field: "month", Message: fmt.Sprintf("month must be in [1,12], got %d", r.Month)}
	}
	return nil
}

// Adjustment is a multiplicative factor applied conditionally during scenario
// cloning. A record matches when the account filter is set and equal, or the
// department filter is set and equal. An adjustment with both filters empty
// matches nothing (empty means "no match", not "match all").
type Adjustment struct {
	Account    string          `json:"account,omitempty"`
	Department string          `json:"department,omitempty"`
	Factor     decimal.Decimal `json:"factor"`
}

// Matches reports whether the adjustment applies to the given record.
func (a Adjustment) Matches(r *FinancialRecord) bool {
	if a.Account != "" && r.Account == a.Account {
		return true
	}
	if a.Department != "" && r.Department == a.Department {
		return true
	}
	return false
}
