// Package server exposes the ledger over HTTP.
//
// Callers identify themselves with the X-Caller-Identity header. The
// asset-transfer protocol delivers inbound transfers to POST /api/receiver
// under the asset's own identity; a non-2xx answer tells it to reject the
// transfer.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/ledger"
	"go.uber.org/zap"
)

// CallerHeader carries the identity of the party making a request.
const CallerHeader = "X-Caller-Identity"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the ledger HTTP API server.
type Server struct {
	ledger  *ledger.Ledger
	db      Pinger
	router  chi.Router
	logger  *zap.Logger
	version string
	started time.Time
}

// New creates a Server. db may be nil when there is nothing to ping.
func New(l *ledger.Ledger, db Pinger, version string, logger *zap.Logger) *Server {
	s := &Server{
		ledger:  l,
		db:      db,
		logger:  logger.With(zap.String("component", "http")),
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(requireCaller)

			// inbound asset transfers, delivered by the asset itself
			r.Post("/receiver", s.handleReceive)

			r.Post("/accounts", s.handleCreateAccount)
			r.Get("/accounts", s.handleListAccounts)
			r.Route("/accounts/{accountID}", func(r chi.Router) {
				r.Get("/owner", s.handleIsOwner)
				r.Post("/disable", s.handleDisable)
				r.Get("/deposits", s.handleListDeposits)
				r.Get("/valuation", s.handleValuation)
				r.Post("/withdraw", s.handleWithdraw)
			})

			r.Get("/operator", s.handleIsOperator)
			r.Get("/collections/{assetID}", s.handleCollectable)
			r.Post("/collections/{assetID}/collect", s.handleCollect)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			dbOK = false
			s.logger.Warn("health check ping failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
