package handlers

import (
	"net/http"
	"net/url"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/report"
)

// reportFilter builds the shared summary/monthly filter from query params.
// The from/to bounds are "YYYY-MM" and inclusive; a malformed bound is a 400,
// unlike the drilldown period which is dropped silently.
func reportFilter(q url.Values) (report.Filter, error) {
	f := report.Filter{
		Scenario:   q.Get("scenario"),
		Account:    q.Get("account"),
		Department: q.Get("department"),
	}
	if v := q.Get("from"); v != "" {
		p, ok := domain.ParsePeriod(v)
		if !ok {
			return f, &domain.ValidationError{Field: "from", Message: "expected YYYY-MM"}
		}
		f.From = &p
	}
	if v := q.Get("to"); v != "" {
		p, ok := domain.ParsePeriod(v)
		if !ok {
			return f, &domain.ValidationError{Field: "to", Message: "expected YYYY-MM"}
		}
		f.To = &p
	}
	return f, nil
}

// Summary handles GET /api/reports/summary?scenario=&account=&department=&from=&to=.
func (a *API) Summary(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := a.reports.Summary(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(rows))
}

// Monthly handles GET /api/reports/monthly with the same filter params as Summary.
func (a *API) Monthly(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := a.reports.Monthly(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(rows))
}

// Drilldown handles GET /api/reports/drilldown?scenario=&account=&period=&department=.
func (a *API) Drilldown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := a.reports.Drilldown(r.Context(),
		q.Get("scenario"), q.Get("account"), q.Get("period"), q.Get("department"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(records))
}

// Compare handles GET /api/reports/compare?base=&target=&period=&includeDepartment=.
func (a *API) Compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeDepartment := q.Get("includeDepartment") == "true"
	rows, err := a.reports.Compare(r.Context(),
		q.Get("base"), q.Get("target"), q.Get("period"), includeDepartment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(rows))
}

// Latest handles GET /api/reports/latest?scenario=, returning the records of
// the scenario's most recent upload.
func (a *API) Latest(w http.ResponseWriter, r *http.Request) {
	scenarioName := r.URL.Query().Get("scenario")
	if scenarioName == "" {
		writeError(w, r, &domain.ValidationError{Field: "scenario", Message: "scenario is required"})
		return
	}
	records, err := a.store.LatestByScenario(r.Context(), scenarioName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(records))
}
