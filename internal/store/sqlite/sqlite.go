// Package sqlite implements the RecordStore on an embedded SQLite database.
// Amounts and rates are stored as TEXT to keep decimal values exact.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store"
)

// Fixed-width fractional seconds so stored UTC timestamps sort
// lexicographically in ORDER BY and MAX().
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db *sql.DB
}

var _ store.RecordStore = (*Store)(nil)

// New opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an ephemeral database in tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS financial_records (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			account TEXT NOT NULL,
			department TEXT NOT NULL DEFAULT '',
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			amount TEXT NOT NULL,
			scenario TEXT NOT NULL,
			version TEXT NOT NULL,
			upload_timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_scenario ON financial_records(scenario)`,
		`CREATE INDEX IF NOT EXISTS idx_records_scenario_version ON financial_records(scenario, version)`,
		`CREATE TABLE IF NOT EXISTS change_history (
			id TEXT PRIMARY KEY,
			record_id TEXT NOT NULL,
			action TEXT NOT NULL,
			user_name TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_record ON change_history(record_id)`,
		`CREATE TABLE IF NOT EXISTS fx_rates (
			from_currency TEXT NOT NULL,
			to_currency TEXT NOT NULL,
			period TEXT NOT NULL,
			rate TEXT NOT NULL,
			PRIMARY KEY (from_currency, to_currency, period)
		)`,
		`CREATE TABLE IF NOT EXISTS account_maps (
			account_code TEXT PRIMARY KEY,
			account_name TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) AddRecords(ctx context.Context, records []*domain.FinancialRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO financial_records
			 (id, type, account, department, year, month, amount, scenario, version, upload_timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Type, r.Account, r.Department, r.Year, r.Month,
			r.Amount.String(), r.Scenario, r.Version, r.UploadTimestamp.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert record %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, f store.RecordFilter) ([]*domain.FinancialRecord, error) {
	q := `SELECT id, type, account, department, year, month, amount, scenario, version, upload_timestamp
	      FROM financial_records WHERE 1=1`
	var args []any
	if f.Scenario != "" {
		q += ` AND scenario = ?`
		args = append(args, f.Scenario)
	}
	if f.Version != "" {
		q += ` AND version = ?`
		args = append(args, f.Version)
	}
	if f.Period != nil {
		q += ` AND year = ? AND month = ?`
		args = append(args, f.Period.Year, f.Period.Month)
	}
	if f.Account != "" {
		q += ` AND instr(lower(account), lower(?)) > 0`
		args = append(args, f.Account)
	}
	if f.Department != "" {
		q += ` AND instr(lower(department), lower(?)) > 0`
		args = append(args, f.Department)
	}
	if f.Type != "" {
		q += ` AND instr(lower(type), lower(?)) > 0`
		args = append(args, f.Type)
	}
	q += ` ORDER BY upload_timestamp DESC`

	return s.queryRecords(ctx, q, args...)
}

func (s *Store) LatestByScenario(ctx context.Context, scenario string) ([]*domain.FinancialRecord, error) {
	// MAX over zero rows yields NULL.
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(upload_timestamp) FROM financial_records WHERE scenario = ?`,
		scenario).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("query latest upload: %w", err)
	}
	if !latest.Valid {
		return nil, fmt.Errorf("scenario %q: %w", scenario, store.ErrNotFound)
	}

	return s.queryRecords(ctx,
		`SELECT id, type, account, department, year, month, amount, scenario, version, upload_timestamp
		 FROM financial_records WHERE scenario = ? AND upload_timestamp = ?`,
		scenario, latest.String)
}

func (s *Store) queryRecords(ctx context.Context, q string, args ...any) ([]*domain.FinancialRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []*domain.FinancialRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (*domain.FinancialRecord, error) {
	var r domain.FinancialRecord
	var amount, ts string
	if err := rows.Scan(&r.ID, &r.Type, &r.Account, &r.Department, &r.Year, &r.Month,
		&amount, &r.Scenario, &r.Version, &ts); err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	var err error
	if r.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if r.UploadTimestamp, err = time.Parse(timeLayout, ts); err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	return &r, nil
}

func (s *Store) AddChangeHistory(ctx context.Context, entry *domain.ChangeHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO change_history (id, record_id, action, user_name, timestamp) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.RecordID, string(entry.Action), entry.UserName,
		entry.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert change history: %w", err)
	}
	return nil
}

func (s *Store) ChangeHistoryByRecord(ctx context.Context, recordID string) ([]*domain.ChangeHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, action, user_name, timestamp
		 FROM change_history WHERE record_id = ? ORDER BY timestamp DESC`,
		recordID)
	if err != nil {
		return nil, fmt.Errorf("query change history: %w", err)
	}
	defer rows.Close()

	var out []*domain.ChangeHistoryEntry
	for rows.Next() {
		var e domain.ChangeHistoryEntry
		var action, ts string
		if err := rows.Scan(&e.ID, &e.RecordID, &action, &e.UserName, &ts); err != nil {
			return nil, fmt.Errorf("scan change history: %w", err)
		}
		e.Action = domain.Action(action)
		if e.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) AddFXRates(ctx context.Context, rates []*domain.FXRate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rates {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO fx_rates (from_currency, to_currency, period, rate) VALUES (?, ?, ?, ?)`,
			r.FromCurrency, r.ToCurrency, r.Period, r.Rate.String())
		if err != nil {
			return fmt.Errorf("insert fx rate: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fx rates: %w", err)
	}
	return nil
}

func (s *Store) GetFXRate(ctx context.Context, from, to, period string) (*domain.FXRate, error) {
	var rate string
	err := s.db.QueryRowContext(ctx,
		`SELECT rate FROM fx_rates WHERE from_currency = ? AND to_currency = ? AND period = ?`,
		from, to, period).Scan(&rate)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("fx rate %s/%s %s: %w", from, to, period, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query fx rate: %w", err)
	}
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	return &domain.FXRate{FromCurrency: from, ToCurrency: to, Period: period, Rate: d}, nil
}

func (s *Store) AddAccountMaps(ctx context.Context, maps []*domain.AccountMap) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, m := range maps {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO account_maps (account_code, account_name) VALUES (?, ?)`,
			m.AccountCode, m.AccountName)
		if err != nil {
			return fmt.Errorf("insert account map: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit account maps: %w", err)
	}
	return nil
}

func (s *Store) GetAccountMap(ctx context.Context, code string) (*domain.AccountMap, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_name FROM account_maps WHERE account_code = ?`, code).Scan(&name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account map %q: %w", code, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query account map: %w", err)
	}
	return &domain.AccountMap{AccountCode: code, AccountName: name}, nil
}

func (s *Store) Scenarios(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT scenario FROM financial_records WHERE scenario != '' ORDER BY scenario`)
}

func (s *Store) Accounts(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT account FROM financial_records WHERE account != '' ORDER BY account`)
}

func (s *Store) Departments(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT department FROM financial_records WHERE department != '' ORDER BY department`)
}

func (s *Store) distinct(ctx context.Context, q string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query distinct: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
