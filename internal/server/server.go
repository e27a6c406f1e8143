// Package server wires the HTTP routes and owns the store backend.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/config"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/handlers"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/ingest"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/lookup"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/middleware"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/report"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/scenario"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store"
	fsstore "github.com/rumor-ml/commons.systems/fpaserve/internal/store/firestore"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store/memory"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store/sqlite"
)

type Server struct {
	store store.RecordStore
	mux   *http.ServeMux
	log   zerolog.Logger
}

// New builds the configured store backend and wires every route.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Server, error) {
	st, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{store: st, mux: http.NewServeMux(), log: log}

	resolver := lookup.NewResolver(st, cfg.FX.FromCurrency, cfg.FX.ToCurrency)
	api := handlers.NewAPI(st,
		ingest.NewPipeline(st, resolver),
		scenario.NewCloner(st),
		report.NewEngine(st),
	)
	s.setupRoutes(api)
	return s, nil
}

func newStore(ctx context.Context, cfg *config.Config) (store.RecordStore, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite:
		return sqlite.New(cfg.Store.SQLitePath)
	case config.StoreFirestore:
		return fsstore.New(ctx, cfg.Store.FirestoreProject)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func (s *Server) setupRoutes(api *handlers.API) {
	s.mux.HandleFunc("GET /health", handlers.HealthCheck)

	s.mux.HandleFunc("POST /api/finance/upload", api.Upload)
	s.mux.HandleFunc("POST /api/scenarios/clone", api.Clone)
	s.mux.HandleFunc("GET /api/scenarios", api.Scenarios)

	s.mux.HandleFunc("GET /api/records", api.Records)
	s.mux.HandleFunc("GET /api/records/{id}/audit", api.RecordAudit)

	s.mux.HandleFunc("GET /api/reports/summary", api.Summary)
	s.mux.HandleFunc("GET /api/reports/monthly", api.Monthly)
	s.mux.HandleFunc("GET /api/reports/drilldown", api.Drilldown)
	s.mux.HandleFunc("GET /api/reports/compare", api.Compare)
	s.mux.HandleFunc("GET /api/reports/latest", api.Latest)

	s.mux.HandleFunc("GET /api/lookup/accounts", api.Accounts)
	s.mux.HandleFunc("GET /api/lookup/departments", api.Departments)
	s.mux.HandleFunc("POST /api/lookup/fx-rates", api.AddFXRates)
	s.mux.HandleFunc("GET /api/lookup/fx-rates", api.GetFXRate)
	s.mux.HandleFunc("POST /api/lookup/account-maps", api.AddAccountMaps)
	s.mux.HandleFunc("GET /api/lookup/account-maps", api.GetAccountMap)
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	h := middleware.UserName(s.mux)
	h = middleware.RequestLogger(s.log, h)
	return middleware.CORS(h)
}

// Close releases the store backend when it holds resources.
func (s *Server) Close() error {
	if closer, ok := s.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
