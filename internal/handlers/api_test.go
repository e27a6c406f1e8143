package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/ingest"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/lookup"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/middleware"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/report"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/scenario"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store/memory"
)

func newTestAPI(t *testing.T) (*API, *memory.Store) {
	t.Helper()
	s := memory.New()
	resolver := lookup.NewResolver(s, "EUR", "USD")
	api := NewAPI(s, ingest.NewPipeline(s, resolver), scenario.NewCloner(s), report.NewEngine(s))
	return api, s
}

func seedRecords(t *testing.T, s *memory.Store, scenarioName string, n int) []*domain.FinancialRecord {
	t.Helper()
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]*domain.FinancialRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, &domain.FinancialRecord{
			Type:            "Budget",
			Account:         "Revenue",
			Department:      "Sales",
			Year:            2025,
			Month:           i + 1,
			Amount:          decimal.NewFromInt(int64(100 * (i + 1))),
			Scenario:        scenarioName,
			Version:         "v1",
			UploadTimestamp: ts,
		})
	}
	require.NoError(t, s.AddRecords(context.Background(), records))
	return records
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func multipartUpload(t *testing.T, csvBody string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "upload.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csvBody))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/finance/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	api, s := newTestAPI(t)

	csvBody := "type,account,department,year,month,amount\nActual,Revenue,Sales,2025,3,1000\n"
	req := multipartUpload(t, csvBody, map[string]string{"scenario": "Budget2025", "version": "v1"})
	w := httptest.NewRecorder()
	api.Upload(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeJSON[ingest.Result](t, w)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "Budget2025", res.Scenario)

	scenarios, err := s.Scenarios(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Budget2025"}, scenarios)
}

func TestUploadDefaults(t *testing.T) {
	api, s := newTestAPI(t)

	csvBody := "type,account,year,month,amount\nActual,Revenue,2025,3,10\n"
	w := httptest.NewRecorder()
	api.Upload(w, multipartUpload(t, csvBody, nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeJSON[ingest.Result](t, w)
	assert.Equal(t, "Default", res.Scenario)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}-\d{6}$`, res.Version)

	scenarios, err := s.Scenarios(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Default"}, scenarios)
}

func TestUploadBadCSV(t *testing.T) {
	api, _ := newTestAPI(t)

	w := httptest.NewRecorder()
	api.Upload(w, multipartUpload(t, "not,a,valid\nheader", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadMissingFile(t *testing.T) {
	api, _ := newTestAPI(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("scenario", "X"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/finance/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	api.Upload(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClone(t *testing.T) {
	api, s := newTestAPI(t)
	seedRecords(t, s, "Budget2025", 2)

	body := `{"baseScenario":"Budget2025","newScenario":"Forecast","adjustments":[{"account":"Revenue","factor":"1.1"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/scenarios/clone", strings.NewReader(body))
	w := httptest.NewRecorder()
	api.Clone(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeJSON[map[string]string](t, w)
	assert.Equal(t, "Forecast", res["newScenario"])
	assert.Contains(t, res["message"], "2 records")
}

func TestCloneErrors(t *testing.T) {
	api, s := newTestAPI(t)
	seedRecords(t, s, "Budget2025", 1)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"missing new scenario", `{"baseScenario":"Budget2025"}`, http.StatusBadRequest},
		{"unknown base", `{"baseScenario":"nope","newScenario":"X"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/scenarios/clone", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			api.Clone(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRecordsFilter(t *testing.T) {
	api, s := newTestAPI(t)
	seedRecords(t, s, "Budget2025", 3)

	req := httptest.NewRequest(http.MethodGet, "/api/records?scenario=Budget2025&account=rev", nil)
	w := httptest.NewRecorder()
	api.Records(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	got := decodeJSON[[]*domain.FinancialRecord](t, w)
	assert.Len(t, got, 3)
}

func TestRecordsEmptyIsArray(t *testing.T) {
	api, _ := newTestAPI(t)

	w := httptest.NewRecorder()
	api.Records(w, httptest.NewRequest(http.MethodGet, "/api/records", nil))
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestRecordAudit(t *testing.T) {
	api, s := newTestAPI(t)
	records := seedRecords(t, s, "Budget2025", 1)
	require.NoError(t, s.AddChangeHistory(context.Background(), &domain.ChangeHistoryEntry{
		RecordID: records[0].ID, Action: domain.ActionImported, UserName: "alice", Timestamp: time.Now(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/records/"+records[0].ID+"/audit", nil)
	req.SetPathValue("id", records[0].ID)
	w := httptest.NewRecorder()
	api.RecordAudit(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	got := decodeJSON[[]*domain.ChangeHistoryEntry](t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].UserName)
}

func TestReportEndpoints(t *testing.T) {
	api, s := newTestAPI(t)
	seedRecords(t, s, "Budget2025", 2)
	seedRecords(t, s, "Forecast", 2)

	t.Run("summary", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.Summary(w, httptest.NewRequest(http.MethodGet, "/api/reports/summary?scenario=Budget2025", nil))
		require.Equal(t, http.StatusOK, w.Code)
		rows := decodeJSON[[]report.SummaryRow](t, w)
		require.Len(t, rows, 1)
		assert.Equal(t, "Revenue", rows[0].Account)
	})

	t.Run("summary missing scenario", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.Summary(w, httptest.NewRequest(http.MethodGet, "/api/reports/summary", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("summary bad bound", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.Summary(w, httptest.NewRequest(http.MethodGet, "/api/reports/summary?scenario=Budget2025&from=banana", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("monthly", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.Monthly(w, httptest.NewRequest(http.MethodGet, "/api/reports/monthly?scenario=Budget2025", nil))
		require.Equal(t, http.StatusOK, w.Code)
		rows := decodeJSON[[]report.MonthlyRow](t, w)
		assert.Len(t, rows, 2)
	})

	t.Run("drilldown", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.Drilldown(w, httptest.NewRequest(http.MethodGet,
			"/api/reports/drilldown?scenario=Budget2025&account=Revenue&period=2025-01", nil))
		require.Equal(t, http.StatusOK, w.Code)
		rows := decodeJSON[[]*domain.FinancialRecord](t, w)
		assert.Len(t, rows, 1)
	})

	t.Run("compare", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.Compare(w, httptest.NewRequest(http.MethodGet, "/api/reports/compare?base=Budget2025&target=Forecast", nil))
		require.Equal(t, http.StatusOK, w.Code)
		rows := decodeJSON[[]report.ComparisonRow](t, w)
		assert.Len(t, rows, 1)
	})

	t.Run("compare missing base", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.Compare(w, httptest.NewRequest(http.MethodGet, "/api/reports/compare?base=nope&target=Forecast", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("latest", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.Latest(w, httptest.NewRequest(http.MethodGet, "/api/reports/latest?scenario=Budget2025", nil))
		require.Equal(t, http.StatusOK, w.Code)
		rows := decodeJSON[[]*domain.FinancialRecord](t, w)
		assert.Len(t, rows, 2)
	})

	t.Run("latest unknown scenario", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.Latest(w, httptest.NewRequest(http.MethodGet, "/api/reports/latest?scenario=nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLookupEndpoints(t *testing.T) {
	api, _ := newTestAPI(t)

	t.Run("post and get fx rate", func(t *testing.T) {
		body := `[{"fromCurrency":"EUR","toCurrency":"USD","rate":"1.08","period":"2025-03"}]`
		w := httptest.NewRecorder()
		api.AddFXRates(w, httptest.NewRequest(http.MethodPost, "/api/lookup/fx-rates", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = httptest.NewRecorder()
		api.GetFXRate(w, httptest.NewRequest(http.MethodGet, "/api/lookup/fx-rates?from=EUR&to=USD&period=2025-03", nil))
		require.Equal(t, http.StatusOK, w.Code)
		rate := decodeJSON[domain.FXRate](t, w)
		assert.True(t, rate.Rate.Equal(decimal.RequireFromString("1.08")))
	})

	t.Run("fx rate not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.GetFXRate(w, httptest.NewRequest(http.MethodGet, "/api/lookup/fx-rates?from=GBP&to=USD&period=2025-03", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("incomplete fx rate rejected", func(t *testing.T) {
		body := `[{"fromCurrency":"EUR"}]`
		w := httptest.NewRecorder()
		api.AddFXRates(w, httptest.NewRequest(http.MethodPost, "/api/lookup/fx-rates", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("post and get account map", func(t *testing.T) {
		body := `[{"accountCode":"4000","accountName":"Revenue"}]`
		w := httptest.NewRecorder()
		api.AddAccountMaps(w, httptest.NewRequest(http.MethodPost, "/api/lookup/account-maps", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = httptest.NewRecorder()
		api.GetAccountMap(w, httptest.NewRequest(http.MethodGet, "/api/lookup/account-maps?code=4000", nil))
		require.Equal(t, http.StatusOK, w.Code)
		m := decodeJSON[domain.AccountMap](t, w)
		assert.Equal(t, "Revenue", m.AccountName)
	})

	t.Run("account map not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.GetAccountMap(w, httptest.NewRequest(http.MethodGet, "/api/lookup/account-maps?code=9999", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUploadRecordsUserName(t *testing.T) {
	api, s := newTestAPI(t)

	csvBody := "type,account,year,month,amount\nActual,Revenue,2025,3,10\n"
	req := multipartUpload(t, csvBody, map[string]string{"scenario": "S", "version": "v1"})
	handler := middleware.UserName(http.HandlerFunc(api.Upload))
	req.Header.Set("X-User-Name", "alice")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ctx := context.Background()
	records, err := s.LatestByScenario(ctx, "S")
	require.NoError(t, err)
	require.Len(t, records, 1)

	history, err := s.ChangeHistoryByRecord(ctx, records[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "alice", history[0].UserName)
}

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
