package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
)

// Accounts handles GET /api/lookup/accounts.
func (a *API) Accounts(w http.ResponseWriter, r *http.Request) {
	names, err := a.store.Accounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(names))
}

// Departments handles GET /api/lookup/departments.
func (a *API) Departments(w http.ResponseWriter, r *http.Request) {
	names, err := a.store.Departments(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(names))
}

// AddFXRates handles POST /api/lookup/fx-rates with a JSON array of rates.
func (a *API) AddFXRates(w http.ResponseWriter, r *http.Request) {
	var rates []*domain.FXRate
	if err := json.NewDecoder(r.Body).Decode(&rates); err != nil {
		writeError(w, r, &domain.ValidationError{Field: "body", Message: "invalid json"})
		return
	}
	for _, rate := range rates {
		if rate.FromCurrency == "" || rate.ToCurrency == "" || rate.Period == "" {
			writeError(w, r, &domain.ValidationError{Field: "body", Message: "fromCurrency, toCurrency and period are required"})
			return
		}
	}
	if err := a.store.AddFXRates(r.Context(), rates); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(rates)})
}

// GetFXRate handles GET /api/lookup/fx-rates?from=&to=&period=.
func (a *API) GetFXRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rate, err := a.store.GetFXRate(r.Context(), q.Get("from"), q.Get("to"), q.Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

// AddAccountMaps handles POST /api/lookup/account-maps with a JSON array.
func (a *API) AddAccountMaps(w http.ResponseWriter, r *http.Request) {
	var maps []*domain.AccountMap
	if err := json.NewDecoder(r.Body).Decode(&maps); err != nil {
		writeError(w, r, &domain.ValidationError{Field: "body", Message: "invalid json"})
		return
	}
	for _, m := range maps {
		if m.AccountCode == "" || m.AccountName == "" {
			writeError(w, r, &domain.ValidationError{Field: "body", Message: "accountCode and accountName are required"})
			return
		}
	}
	if err := a.store.AddAccountMaps(r.Context(), maps); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(maps)})
}

// GetAccountMap handles GET /api/lookup/account-maps?code=.
func (a *API) GetAccountMap(w http.ResponseWriter, r *http.Request) {
	m, err := a.store.GetAccountMap(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
