// Package handlers implements the HTTP API over the ingest, scenario and
// report engines.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/ingest"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/middleware"
	csvparser "github.com/rumor-ml/commons.systems/fpaserve/internal/parsers/csv"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/report"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/scenario"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store"
)

const maxUploadBytes = 32 << 20

// API bundles the engines behind the HTTP surface.
type API struct {
	store    store.RecordStore
	pipeline *ingest.Pipeline
	cloner   *scenario.Cloner
	reports  *report.Engine
	parser   *csvparser.Parser
}

func NewAPI(s store.RecordStore, p *ingest.Pipeline, c *scenario.Cloner, r *report.Engine) *API {
	return &API{store: s, pipeline: p, cloner: c, reports: r, parser: csvparser.NewParser()}
}

// HealthCheck handles GET /health.
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Upload handles POST /api/finance/upload. The CSV goes in the multipart
// "file" field; scenario and version come from form values, defaulting to
// "Default" and a timestamp-derived version tag.
func (a *API) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, &domain.ValidationError{Field: "body", Message: "expected multipart form"})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, &domain.ValidationError{Field: "file", Message: "file field is required"})
		return
	}
	defer file.Close()

	rows, err := a.parser.Parse(file)
	if err != nil {
		writeError(w, r, &domain.ValidationError{Field: "file", Message: err.Error()})
		return
	}

	scenarioName := r.FormValue("scenario")
	if scenarioName == "" {
		scenarioName = "Default"
	}
	version := r.FormValue("version")
	if version == "" {
		version = a.pipeline.DefaultVersion()
	}
	userName, _ := middleware.GetUserName(r.Context())

	result, err := a.pipeline.ProcessUpload(r.Context(), rows, scenarioName, version, userName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Clone handles POST /api/scenarios/clone.
func (a *API) Clone(w http.ResponseWriter, r *http.Request) {
	var req scenario.CloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &domain.ValidationError{Field: "body", Message: "invalid json"})
		return
	}

	result, err := a.cloner.Clone(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"newScenario": result.NewScenario,
		"version":     result.Version,
		"message":     fmt.Sprintf("cloned %d records", result.Count),
	})
}

// Records handles GET /api/records with optional scenario, account, type and
// department filters.
func (a *API) Records(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := a.store.Query(r.Context(), store.RecordFilter{
		Scenario:   q.Get("scenario"),
		Account:    q.Get("account"),
		Department: q.Get("department"),
		Type:       q.Get("type"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(records))
}

// RecordAudit handles GET /api/records/{id}/audit.
func (a *API) RecordAudit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, r, &domain.ValidationError{Field: "id", Message: "record id is required"})
		return
	}
	entries, err := a.store.ChangeHistoryByRecord(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(entries))
}

// Scenarios handles GET /api/scenarios.
func (a *API) Scenarios(w http.ResponseWriter, r *http.Request) {
	names, err := a.store.Scenarios(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(names))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes: validation errors
// are the caller's fault, missing keys are 404, everything else is a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// emptyIfNil keeps list endpoints returning [] instead of null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
