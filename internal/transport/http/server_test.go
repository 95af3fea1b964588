package tradehttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"kabutrade/internal/gateway/kabus"
	"kabutrade/internal/gateway/notifier"
	"kabutrade/internal/ledger"
	"kabutrade/internal/logger"
	"kabutrade/internal/runner"
)

func stubBroker(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Token": "tok"})
	})
	mux.HandleFunc("GET /board/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Symbol":"1579","SymbolName":"NF Nikkei Lvrg","CurrentPrice":634.5,"ChangePreviousClose":2.5}`))
	})
	mux.HandleFunc("GET /positions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"ID":"ORD001","Symbol":"1579","Side":"2","CumQty":100,"State":5,"RecvTime":"2026-02-26T09:01:00+09:00",
			 "Details":[{"SeqNum":5,"Price":630.0,"Qty":100,"ExecutionID":"E1"}]},
			{"ID":"ORD002","Symbol":"1579","Side":"1","CumQty":100,"State":5,"RecvTime":"2026-02-26T09:45:00+09:00",
			 "Details":[{"SeqNum":5,"Price":641.0,"Qty":100,"ExecutionID":"E2"}]}
		]`))
	})
	mux.HandleFunc("GET /wallet/cash", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"StockAccountWallet":1000000.0}`))
	})
	mux.HandleFunc("GET /wallet/margin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MarginAccountWallet":3000000.0}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, apiPassword string) *Server {
	t.Helper()
	broker, err := kabus.NewClient(stubBroker(t).URL, apiPassword, "order-pass")
	require.NoError(t, err)

	store, err := ledger.Open(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rnr := runner.New(broker, store, notifier.Null{}, runner.Options{
		Symbol:   "1579",
		Exchange: 1,
		Quantity: 100,
	})

	srv, err := NewServer(ServerConfig{
		Addr:      ":0",
		Runner:    rnr,
		Store:     store,
		Broker:    broker,
		LogRing:   logger.NewRing(100),
		Watchlist: []string{"1579"},
		Exchange:  1,
	})
	require.NoError(t, err)
	return srv
}

func do(srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, "api-pass")
	w := do(srv, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "ok").Bool())
}

func TestStatusIdle(t *testing.T) {
	srv := newTestServer(t, "api-pass")
	w := do(srv, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.False(t, gjson.Get(body, "state.running").Bool())
	assert.Equal(t, "1579", gjson.Get(body, "state.symbol").String())
	assert.True(t, gjson.Get(body, "configured").Bool())
}

func TestStartRefusedWithoutCredentials(t *testing.T) {
	srv := newTestServer(t, "")
	w := do(srv, http.MethodPost, "/api/start", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "ok").Bool())
}

func TestScheduleLifecycle(t *testing.T) {
	srv := newTestServer(t, "api-pass")

	w := do(srv, http.MethodPost, "/api/schedule", map[string]string{"time": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(srv, http.MethodPost, "/api/schedule", map[string]string{"time": "23:59"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "23:59", gjson.Get(w.Body.String(), "target").String())

	w = do(srv, http.MethodGet, "/api/status", nil)
	assert.Equal(t, "23:59", gjson.Get(w.Body.String(), "scheduled_start").String())

	w = do(srv, http.MethodDelete, "/api/schedule", nil)
	assert.True(t, gjson.Get(w.Body.String(), "cancelled").Bool())
	w = do(srv, http.MethodDelete, "/api/schedule", nil)
	assert.False(t, gjson.Get(w.Body.String(), "cancelled").Bool())
}

func TestUpdateConfigEndpoint(t *testing.T) {
	srv := newTestServer(t, "api-pass")
	w := do(srv, http.MethodPost, "/api/config", map[string]any{"symbol": "7203", "quantity": 300})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7203", gjson.Get(w.Body.String(), "symbol").String())
	assert.Equal(t, int64(300), gjson.Get(w.Body.String(), "quantity").Int())
}

func TestForceCloseEndpointNoPositions(t *testing.T) {
	srv := newTestServer(t, "api-pass")
	w := do(srv, http.MethodPost, "/api/force_close", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "ok").Bool())
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "closed").Int())
}

func TestLedgerEndpointsEmpty(t *testing.T) {
	srv := newTestServer(t, "api-pass")
	for _, path := range []string{
		"/api/trades", "/api/orders", "/api/daily_pl",
		"/api/pl_timeline", "/api/trade_summary", "/api/margin_daily",
	} {
		w := do(srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, "path %s", path)
	}
}

func TestImportTradesIdempotent(t *testing.T) {
	srv := newTestServer(t, "api-pass")

	w := do(srv, http.MethodPost, "/api/import_trades", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "imported").Int())

	// the buy at 630 closed by the sell at 641 nets +1100
	w = do(srv, http.MethodGet, "/api/trade_summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1100.0, gjson.Get(w.Body.String(), "total_realized_pl").Float())

	w = do(srv, http.MethodPost, "/api/import_trades", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "imported").Int())
}

func TestBoardAndIndices(t *testing.T) {
	srv := newTestServer(t, "api-pass")

	w := do(srv, http.MethodGet, "/api/board/1579", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 634.5, gjson.Get(w.Body.String(), "current_price").Float())

	w = do(srv, http.MethodGet, "/api/watchlist", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1579", gjson.Get(w.Body.String(), "0.code").String())
	assert.Equal(t, 634.5, gjson.Get(w.Body.String(), "0.current_price").Float())
}

func TestLogsServedFromRing(t *testing.T) {
	ring := logger.NewRing(10)
	ring.Write([]byte("line one\nline two\n"))

	srv, err := NewServer(ServerConfig{
		Addr:    ":0",
		Runner:  mustRunner(t),
		Store:   mustStore(t),
		Broker:  mustBroker(t),
		LogRing: ring,
	})
	require.NoError(t, err)

	w := do(srv, http.MethodGet, "/api/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := gjson.Get(w.Body.String(), "logs").Array()
	require.Len(t, logs, 2)
	assert.Equal(t, "line one", logs[0].String())
}

func mustBroker(t *testing.T) *kabus.Client {
	t.Helper()
	c, err := kabus.NewClient("http://localhost:18080/kabusapi", "a", "b")
	require.NoError(t, err)
	return c
}

func mustStore(t *testing.T) *ledger.Store {
	t.Helper()
	s, err := ledger.Open(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustRunner(t *testing.T) *runner.Runner {
	t.Helper()
	return runner.New(mustBroker(t), mustStore(t), notifier.Null{}, runner.Options{Symbol: "1579", Quantity: 100})
}
