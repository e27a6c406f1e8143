// Package firestore implements the RecordStore on Cloud Firestore, one
// collection per entity kind. Amounts and rates are stored as strings to
// keep decimal values exact.
package firestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store"
)

const (
	recordsCollection     = "fpa-records"
	historyCollection     = "fpa-change-history"
	fxRatesCollection     = "fpa-fx-rates"
	accountMapsCollection = "fpa-account-maps"
)

type Store struct {
	fs *firestore.Client
}

var _ store.RecordStore = (*Store)(nil)

// New connects to the Firestore database of the given project using
// application default credentials.
func New(ctx context.Context, projectID string) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Store{fs: client}, nil
}

func (s *Store) Close() error {
	return s.fs.Close()
}

// recordDoc is the Firestore shape of a financial record.
type recordDoc struct {
	ID              string    `firestore:"id"`
	Type            string    `firestore:"type"`
	Account         string    `firestore:"account"`
	Department      string    `firestore:"department"`
	Year            int       `firestore:"year"`
	Month           int       `firestore:"month"`
	Amount          string    `firestore:"amount"`
	Scenario        string    `firestore:"scenario"`
	Version         string    `firestore:"version"`
	UploadTimestamp time.Time `firestore:"uploadTimestamp"`
}

type historyDoc struct {
	ID        string    `firestore:"id"`
	RecordID  string    `firestore:"recordId"`
	Action    string    `firestore:"action"`
	UserName  string    `firestore:"userName"`
	Timestamp time.Time `firestore:"timestamp"`
}

type fxRateDoc struct {
	FromCurrency string `firestore:"fromCurrency"`
	ToCurrency   string `firestore:"toCurrency"`
	Rate         string `firestore:"rate"`
	Period       string `firestore:"period"`
}

type accountMapDoc struct {
	AccountCode string `firestore:"accountCode"`
	AccountName string `firestore:"accountName"`
}

func toRecordDoc(r *domain.FinancialRecord) *recordDoc {
	return &recordDoc{
		ID:              r.ID,
		Type:            r.Type,
		Account:         r.Account,
		Department:      r.Department,
		Year:            r.Year,
		Month:           r.Month,
		Amount:          r.Amount.String(),
		Scenario:        r.Scenario,
		Version:         r.Version,
		UploadTimestamp: r.UploadTimestamp,
	}
}

func (d *recordDoc) toDomain() (*domain.FinancialRecord, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", d.Amount, err)
	}
	return &domain.FinancialRecord{
		ID:              d.ID,
		Type:            d.Type,
		Account:         d.Account,
		Department:      d.Department,
		Year:            d.Year,
		Month:           d.Month,
		Amount:          amount,
		Scenario:        d.Scenario,
		Version:         d.Version,
		UploadTimestamp: d.UploadTimestamp,
	}, nil
}

func (s *Store) AddRecords(ctx context.Context, records []*domain.FinancialRecord) error {
	bw := s.fs.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		ref := s.fs.Collection(recordsCollection).Doc(r.ID)
		job, err := bw.Create(ref, toRecordDoc(r))
		if err != nil {
			return fmt.Errorf("enqueue record %s: %w", r.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("write record %s: %w", records[i].ID, err)
		}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, f store.RecordFilter) ([]*domain.FinancialRecord, error) {
	q := s.fs.Collection(recordsCollection).Query
	if f.Scenario != "" {
		q = q.Where("scenario", "==", f.Scenario)
	}
	if f.Version != "" {
		q = q.Where("version", "==", f.Version)
	}
	if f.Period != nil {
		q = q.Where("year", "==", f.Period.Year).Where("month", "==", f.Period.Month)
	}

	records, err := s.collectRecords(ctx, q)
	if err != nil {
		return nil, err
	}

	// Substring filters have no Firestore operator; applied client-side.
	var out []*domain.FinancialRecord
	for _, r := range records {
		if f.Account != "" && !containsFold(r.Account, f.Account) {
			continue
		}
		if f.Department != "" && !containsFold(r.Department, f.Department) {
			continue
		}
		if f.Type != "" && !containsFold(r.Type, f.Type) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadTimestamp.After(out[j].UploadTimestamp)
	})
	return out, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (s *Store) LatestByScenario(ctx context.Context, scenario string) ([]*domain.FinancialRecord, error) {
	records, err := s.collectRecords(ctx,
		s.fs.Collection(recordsCollection).Query.Where("scenario", "==", scenario))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("scenario %q: %w", scenario, store.ErrNotFound)
	}

	latest := records[0].UploadTimestamp
	for _, r := range records[1:] {
		if r.UploadTimestamp.After(latest) {
			latest = r.UploadTimestamp
		}
	}
	var out []*domain.FinancialRecord
	for _, r := range records {
		if r.UploadTimestamp.Equal(latest) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) collectRecords(ctx context.Context, q firestore.Query) ([]*domain.FinancialRecord, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.FinancialRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate records: %w", err)
		}
		var d recordDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("parse record: %w", err)
		}
		r, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) AddChangeHistory(ctx context.Context, entry *domain.ChangeHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := s.fs.Collection(historyCollection).Doc(entry.ID).Set(ctx, &historyDoc{
		ID:        entry.ID,
		RecordID:  entry.RecordID,
		Action:    string(entry.Action),
		UserName:  entry.UserName,
		Timestamp: entry.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("create change history entry: %w", err)
	}
	return nil
}

func (s *Store) ChangeHistoryByRecord(ctx context.Context, recordID string) ([]*domain.ChangeHistoryEntry, error) {
	iter := s.fs.Collection(historyCollection).
		Where("recordId", "==", recordID).
		OrderBy("timestamp", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var out []*domain.ChangeHistoryEntry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate change history for record %s: %w", recordID, err)
		}
		var d historyDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("parse change history entry: %w", err)
		}
		out = append(out, &domain.ChangeHistoryEntry{
			ID:        d.ID,
			RecordID:  d.RecordID,
			Action:    domain.Action(d.Action),
			UserName:  d.UserName,
			Timestamp: d.Timestamp,
		})
	}
	return out, nil
}

func fxRateKey(from, to, period string) string {
	return fmt.Sprintf("%s_%s_%s", from, to, period)
}

func (s *Store) AddFXRates(ctx context.Context, rates []*domain.FXRate) error {
	bw := s.fs.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for _, r := range rates {
		ref := s.fs.Collection(fxRatesCollection).Doc(fxRateKey(r.FromCurrency, r.ToCurrency, r.Period))
		doc := &fxRateDoc{
			FromCurrency: r.FromCurrency,
			ToCurrency:   r.ToCurrency,
			Rate:         r.Rate.String(),
			Period:       r.Period,
		}
		job, err := bw.Set(ref, doc)
		if err != nil {
			return fmt.Errorf("enqueue fx rate: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("write fx rate: %w", err)
		}
	}
	return nil
}

func (s *Store) GetFXRate(ctx context.Context, from, to, period string) (*domain.FXRate, error) {
	snap, err := s.fs.Collection(fxRatesCollection).Doc(fxRateKey(from, to, period)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("fx rate %s/%s %s: %w", from, to, period, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get fx rate: %w", err)
	}
	var d fxRateDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("parse fx rate: %w", err)
	}
	rate, err := decimal.NewFromString(d.Rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", d.Rate, err)
	}
	return &domain.FXRate{FromCurrency: d.FromCurrency, ToCurrency: d.ToCurrency, Rate: rate, Period: d.Period}, nil
}

func (s *Store) AddAccountMaps(ctx context.Context, maps []*domain.AccountMap) error {
	bw := s.fs.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for _, m := range maps {
		ref := s.fs.Collection(accountMapsCollection).Doc(m.AccountCode)
		job, err := bw.Set(ref, &accountMapDoc{AccountCode: m.AccountCode, AccountName: m.AccountName})
		if err != nil {
			return fmt.Errorf("enqueue account map: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("write account map: %w", err)
		}
	}
	return nil
}

func (s *Store) GetAccountMap(ctx context.Context, code string) (*domain.AccountMap, error) {
	snap, err := s.fs.Collection(accountMapsCollection).Doc(code).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("account map %q: %w", code, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account map: %w", err)
	}
	var d accountMapDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("parse account map: %w", err)
	}
	return &domain.AccountMap{AccountCode: d.AccountCode, AccountName: d.AccountName}, nil
}

func (s *Store) Scenarios(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, func(d *recordDoc) string { return d.Scenario })
}

func (s *Store) Accounts(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, func(d *recordDoc) string { return d.Account })
}

func (s *Store) Departments(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, func(d *recordDoc) string { return d.Department })
}

// distinct scans the records collection; Firestore has no DISTINCT operator.
func (s *Store) distinct(ctx context.Context, key func(*recordDoc) string) ([]string, error) {
	iter := s.fs.Collection(recordsCollection).Documents(ctx)
	defer iter.Stop()

	seen := make(map[string]struct{})
	var out []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate records: %w", err)
		}
		var d recordDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("parse record: %w", err)
		}
		k := key(&d)
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
	return out, nil
}
