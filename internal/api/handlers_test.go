package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/internal/ingestion"
	"github.com/jeovahfialho/b3-pregao/internal/options"
	"github.com/jeovahfialho/b3-pregao/internal/service"
	"github.com/jeovahfialho/b3-pregao/internal/storage/filestore"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
)

type stubPrices struct {
	err error
}

func (s stubPrices) History(_ context.Context, ticker string) (*options.PriceSeries, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &options.PriceSeries{Ticker: ticker, Points: []options.ChartPoint{{Time: "2025-09-12 10:05:00"}}}, nil
}

type testEnv struct {
	store  *filestore.Store
	merged string
	deps   Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	store := filestore.New(filepath.Join(root, "Histórico B3"))
	require.NoError(t, store.WriteTable(domain.FileCode("PR250102").DayTableName(), domain.DayTable{
		{TradeDate: "2025-01-02", Ticker: "PETR4", LastPrice: "37.50", MinPrice: "36.9", MaxPrice: "37.8", TradeQty: "100"},
		{TradeDate: "2025-01-02", Ticker: "XYZW3", TradeQty: "50"},
	}))
	require.NoError(t, store.WriteTable(domain.FileCode("PR250103").DayTableName(), domain.DayTable{
		{TradeDate: "2025-01-03", Ticker: "PETR4", LastPrice: "38.00", MinPrice: "37.2", MaxPrice: "38.4", TradeQty: "300"},
	}))

	merger := service.NewMergeService(store, filestore.WriteCSV)
	merged := filepath.Join(root, "interested_merged_deals.csv")

	return &testEnv{
		store:  store,
		merged: merged,
		deps: Deps{
			Store:        store,
			Merger:       merger,
			Stats:        service.NewAnalysisService(merger),
			Prices:       stubPrices{},
			Tickers:      domain.MustCompileTickerPattern("PETR.*", "VALE.*"),
			MergedOutput: merged,
		},
	}
}

func (e *testEnv) app() *Handler {
	return NewHandler(e.deps)
}

func do(t *testing.T, h *Handler, req *http.Request) (int, map[string]interface{}) {
	t.Helper()

	app := NewApp(h, RouteConfig{AdminUser: "admin", AdminPassword: "segredo"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(body) > 0 && body[0] == '{' {
		require.NoError(t, json.Unmarshal(body, &decoded))
	}
	return resp.StatusCode, decoded
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	status, body := do(t, env.app(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadinessCheck(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Checks = map[string]HealthChecker{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}

	status, body := do(t, env.app(), httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "not_ready", body["status"])

	env.deps.Checks = nil
	status, body = do(t, env.app(), httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

func TestListDays(t *testing.T) {
	env := newTestEnv(t)
	status, body := do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/days", nil))

	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])
	days := body["days"].([]interface{})
	assert.Equal(t, "PR250102", days[0].(map[string]interface{})["code"])
}

func TestGetDay(t *testing.T) {
	env := newTestEnv(t)

	status, body := do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/days/pr250102", nil))
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])

	status, _ = do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/days/PR250110", nil))
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/days/ontem", nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["request_id"])
}

func TestGetMerged(t *testing.T) {
	env := newTestEnv(t)

	status, body := do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/merged", nil))
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])
	assert.Equal(t, []interface{}{"PETR.*", "VALE.*"}, body["tickers"])

	status, body = do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/merged?tickers=XYZ.*", nil))
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, _ = do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/merged?tickers=(", nil))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetTickerStats(t *testing.T) {
	env := newTestEnv(t)

	status, body := do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/ticker/petr4/stats", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "PETR4", body["ticker"])
	assert.EqualValues(t, 2, body["days_traded"])
	assert.Equal(t, "38", body["last_price"])

	status, _ = do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/ticker/VALE3/stats", nil))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetTickerHistory_WithoutDatabase(t *testing.T) {
	env := newTestEnv(t)
	status, _ := do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/ticker/PETR4/history", nil))
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestGetOptionPrices(t *testing.T) {
	env := newTestEnv(t)

	status, body := do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/options/IBOVV139/prices", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "IBOVV139", body["ticker"])

	env.deps.Prices = stubPrices{err: ingestion.ErrUnexpectedStatus}
	status, _ = do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/options/IBOVV139/prices", nil))
	assert.Equal(t, http.StatusBadGateway, status)

	env.deps.Prices = nil
	status, _ = do(t, env.app(), httptest.NewRequest(http.MethodGet, "/api/v1/options/IBOVV139/prices", nil))
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestRunMerge(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/merge", nil)
	status, _ := do(t, env.app(), req)
	assert.Equal(t, http.StatusUnauthorized, status)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/merge", nil)
	req.SetBasicAuth("admin", "segredo")
	status, body := do(t, env.app(), req)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["rows"])
	assert.FileExists(t, env.merged)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/merge", strings.NewReader(`{"tickers":["BOVA11.*"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("admin", "segredo")
	status, _ = do(t, env.app(), req)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdminDisabledWithoutPassword(t *testing.T) {
	env := newTestEnv(t)

	app := NewApp(env.app(), RouteConfig{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.SetBasicAuth("admin", "")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetSystemStats(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.SetBasicAuth("admin", "segredo")
	status, body := do(t, env.app(), req)
	require.Equal(t, http.StatusOK, status)

	pipeline := body["pipeline"].(map[string]interface{})
	assert.EqualValues(t, 2, pipeline["day_tables"])
	assert.Equal(t, "PR250103", pipeline["last_code"])
	assert.Nil(t, body["database"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t)
	app := NewApp(env.app(), RouteConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestRequestIDIsGenerated(t *testing.T) {
	env := newTestEnv(t)
	app := NewApp(env.app(), RouteConfig{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestHandlerLogsCarryRequestID(t *testing.T) {
	prev := logger.Log
	t.Cleanup(func() { logger.Log = prev })

	core, logs := observer.New(zapcore.ErrorLevel)
	logger.Log = zap.New(core)

	env := newTestEnv(t)
	env.deps.Prices = stubPrices{err: errors.New("tempo esgotado")}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/options/IBOVV139/prices", nil)
	req.Header.Set("X-Request-ID", "req-777")
	status, body := do(t, env.app(), req)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "req-777", body["request_id"])

	entries := logs.FilterMessage("erro ao buscar preços da opção").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-777", entries[0].ContextMap()["request_id"])
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t)

	disabled := NewApp(env.app(), RouteConfig{})
	resp, err := disabled.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	enabled := NewApp(env.app(), RouteConfig{Metrics: true})
	resp, err = enabled.Test(httptest.NewRequest(http.MethodGet, "/api/v1/merged", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = enabled.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `b3_http_requests_total{method="GET",route="/api/v1/merged",status_code="200"}`)
}
