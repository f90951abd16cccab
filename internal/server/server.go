package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/engine"
	"TradeSentinel/internal/model"
)

const (
	defaultTradesLimit   = 50
	defaultActivityLimit = 20
)

// Engine is the read-only engine surface the API exposes.
type Engine interface {
	Status() engine.Status
	Portfolio() model.Portfolio
	Trades(limit int) []model.Trade
	RiskStatistics() model.RiskStatistics
	Positions() []model.Position
	LastSnapshots() map[string]*model.Snapshot
	Activity() *engine.ActivityLog
}

// Controller starts and stops the periodic schedule.
type Controller interface {
	Start() error
	Stop()
	Running() bool
}

// Server is the status HTTP API.
type Server struct {
	router *mux.Router
	server *http.Server
	engine Engine
	ctrl   Controller
}

// envelope is the response shape of every API endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// New builds the server. ctrl and metrics may be nil.
func New(addr string, eng Engine, ctrl Controller, metrics http.Handler) *Server {
	s := &Server{
		router: mux.NewRouter(),
		engine: eng,
		ctrl:   ctrl,
	}
	s.setupRoutes(metrics)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes(metrics http.Handler) {
	s.router.Use(requestIDMiddleware)
	s.router.Use(requestLoggingMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	api.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	api.HandleFunc("/risk", s.handleRisk).Methods(http.MethodGet)
	api.HandleFunc("/activity", s.handleActivity).Methods(http.MethodGet)
	api.HandleFunc("/market-data", s.handleMarketData).Methods(http.MethodGet)
	api.HandleFunc("/bot/control", s.handleControl).Methods(http.MethodPost)

	if metrics != nil {
		s.router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("status API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status API: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down status API")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.engine.Status()
	if s.ctrl != nil {
		st.Running = s.ctrl.Running()
	}
	writeData(w, st)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	st := s.engine.Status()
	pnl := st.Portfolio.TotalValueUSD - st.InitialUSD
	pct := 0.0
	if st.InitialUSD > 0 {
		pct = pnl / st.InitialUSD * 100
	}
	writeData(w, map[string]interface{}{
		"portfolio":           st.Portfolio,
		"initial_usd_balance": st.InitialUSD,
		"profit_loss":         pnl,
		"profit_loss_pct":     pct,
		"trade_statistics":    st.TradeStatistics,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultTradesLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeData(w, s.engine.Trades(limit))
}

func (s *Server) handleRisk(w http.ResponseWriter, _ *http.Request) {
	writeData(w, map[string]interface{}{
		"statistics":     s.engine.RiskStatistics(),
		"open_positions": s.engine.Positions(),
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultActivityLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeData(w, s.engine.Activity().Recent(limit))
}

func (s *Server) handleMarketData(w http.ResponseWriter, _ *http.Request) {
	writeData(w, s.engine.LastSnapshots())
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if s.ctrl == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not available")
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Action {
	case "start":
		if err := s.ctrl.Start(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case "stop":
		s.ctrl.Stop()
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}
	log.Info().Str("action", req.Action).Msg("bot control")
	writeData(w, map[string]interface{}{"is_running": s.ctrl.Running()})
}

func limitParam(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return n, nil
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

type ctxKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		id, _ := r.Context().Value(ctxKey{}).(string)
		log.Debug().Str("request_id", id).Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).Dur("took", time.Since(start)).Msg("http request")
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
