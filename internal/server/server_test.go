package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSentinel/internal/advisor"
	"TradeSentinel/internal/collector"
	"TradeSentinel/internal/engine"
	"TradeSentinel/internal/metrics"
	"TradeSentinel/internal/portfolio"
	"TradeSentinel/internal/risk"
)

type fakeController struct {
	running  bool
	startErr error
}

func (c *fakeController) Start() error {
	if c.startErr != nil {
		return c.startErr
	}
	c.running = true
	return nil
}
func (c *fakeController) Stop()         { c.running = false }
func (c *fakeController) Running() bool { return c.running }

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T) (*Server, *fakeController) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	col := collector.NewCollector(collector.NewMockFetcher(100), collector.NewMemoryCache(), 100, time.Minute)
	eng := engine.New(
		engine.Config{Pairs: []string{"BTC/USD", "ETH/USD"}, TradeFraction: 0.1},
		col, advisor.TechnicalProvider{},
		risk.NewManager(risk.Config{StopLossFraction: 0.3, TakeProfitFraction: 10, MaxDailyTrades: 500, MaxPositionFraction: 0.1}),
		portfolio.NewLedger(10000, portfolio.SymbolsOf([]string{"BTC/USD", "ETH/USD"})),
		engine.WithObserver(m),
	)
	_, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	ctrl := &fakeController{}
	return New(":0", eng, ctrl, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})), ctrl
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestReadEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{
		"/api/health", "/api/status", "/api/portfolio", "/api/trades",
		"/api/risk", "/api/activity?limit=5", "/api/market-data",
	} {
		t.Run(path, func(t *testing.T) {
			rec, resp := do(t, s, http.MethodGet, path, "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, resp.Success)
			assert.NotEmpty(t, resp.Data)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestStatusPayload(t *testing.T) {
	s, _ := newTestServer(t)
	_, resp := do(t, s, http.MethodGet, "/api/status", "")

	var st engine.Status
	require.NoError(t, json.Unmarshal(resp.Data, &st))
	assert.Equal(t, "technical", st.Provider)
	assert.Equal(t, []string{"BTC/USD", "ETH/USD"}, st.Pairs)
	assert.Equal(t, 1, st.Cycles)
	assert.Contains(t, st.LastMarketData, "BTC/USD")
}

func TestActivityLimit(t *testing.T) {
	s, _ := newTestServer(t)
	_, resp := do(t, s, http.MethodGet, "/api/activity?limit=1", "")

	var entries []engine.Activity
	require.NoError(t, json.Unmarshal(resp.Data, &entries))
	assert.Len(t, entries, 1)

	rec, resp := do(t, s, http.MethodGet, "/api/trades?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "limit")
}

func TestBotControl(t *testing.T) {
	s, ctrl := newTestServer(t)

	rec, resp := do(t, s, http.MethodPost, "/api/bot/control", `{"action":"start"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"is_running":true}`, string(resp.Data))
	assert.True(t, ctrl.running)

	_, resp = do(t, s, http.MethodPost, "/api/bot/control", `{"action":"stop"}`)
	assert.JSONEq(t, `{"is_running":false}`, string(resp.Data))

	rec, resp = do(t, s, http.MethodPost, "/api/bot/control", `{"action":"dance"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error, "unknown action")

	rec, _ = do(t, s, http.MethodPost, "/api/bot/control", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ctrl.startErr = errors.New("boom")
	rec, resp = do(t, s, http.MethodPost, "/api/bot/control", `{"action":"start"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", resp.Error)

	rec, _ = do(t, s, http.MethodGet, "/api/bot/control", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsAndNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec, _ := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tradesentinel_cycles_total 1")

	rec, resp := do(t, s, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
}
