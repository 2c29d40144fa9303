package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obscura-markets/darkpool/params"
	"github.com/obscura-markets/darkpool/pkg/client"
	"github.com/obscura-markets/darkpool/pkg/keys"
	"github.com/obscura-markets/darkpool/pkg/ledger"
	"github.com/obscura-markets/darkpool/pkg/util"
)

type apiEnv struct {
	srv    *httptest.Server
	market string
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	store, err := ledger.NewMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := params.Default()
	led, err := ledger.New(store, cfg.Program, util.NewManualClock(time.Unix(1_800_000_000, 0)), nil)
	require.NoError(t, err)

	wallet, err := keys.Generate()
	require.NoError(t, err)
	c, err := client.New(cfg, led, wallet, nil)
	require.NoError(t, err)

	s := NewServer(c, led)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &apiEnv{srv: srv, market: c.Identity().String()}
}

func (e *apiEnv) post(t *testing.T, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func (e *apiEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestHealth(t *testing.T) {
	e := newAPIEnv(t)
	resp, body := e.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestOrderLifecycleOverREST(t *testing.T) {
	e := newAPIEnv(t)

	resp, body := e.post(t, "/api/v1/orderbooks", InitOrderbookRequest{Market: e.market})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// Re-initialization conflicts.
	resp, body = e.post(t, "/api/v1/orderbooks", InitOrderbookRequest{Market: e.market})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "orderbook_already_initialized", errResp.Error)

	// Place.
	resp, body = e.post(t, "/api/v1/orders", map[string]interface{}{
		"market": e.market, "orderId": 1001, "side": "buy", "amount": 50, "price": 20,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var placed TxResponse
	require.NoError(t, json.Unmarshal(body, &placed))
	assert.Equal(t, "confirmed", placed.Status)
	assert.NotEmpty(t, placed.Order)

	// Bad side is a validation failure, not a conflict.
	resp, body = e.post(t, "/api/v1/orders", map[string]interface{}{
		"market": e.market, "orderId": 1002, "side": "hold", "amount": 1, "price": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "validation_failed", errResp.Error)

	// Delegate.
	resp, body = e.post(t, "/api/v1/orders/1001/delegate", DelegateRequest{
		ValidUntil: time.Now().Unix() + 3600, CommitFreqMs: 1000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// Read back.
	resp, body = e.get(t, "/api/v1/orders/1001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view OrderView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "delegated", view.Status)
	assert.Equal(t, uint64(50), view.Remaining)
	assert.Equal(t, placed.Order, view.Address)

	// Cancel and verify terminal state.
	resp, body = e.post(t, "/api/v1/orders/1001/cancel", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	resp, body = e.get(t, "/api/v1/orders/1001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "cancelled", view.Status)

	// Raw account lookup of the order PDA.
	resp, body = e.get(t, "/api/v1/accounts/"+placed.Order)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var acc AccountView
	require.NoError(t, json.Unmarshal(body, &acc))
	assert.Equal(t, placed.Order, acc.Address)
}

func TestMarketPauseOverREST(t *testing.T) {
	e := newAPIEnv(t)

	resp, _ := e.post(t, "/api/v1/orderbooks", InitOrderbookRequest{Market: e.market})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = e.post(t, fmt.Sprintf("/api/v1/orderbooks/%s/pause", e.market), struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := e.post(t, "/api/v1/orders", map[string]interface{}{
		"market": e.market, "orderId": 1, "side": "buy", "amount": 5, "price": 5,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "market_paused", errResp.Error)

	resp, body = e.get(t, "/api/v1/orderbooks/"+e.market)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ob OrderbookView
	require.NoError(t, json.Unmarshal(body, &ob))
	assert.True(t, ob.Paused)

	resp, _ = e.post(t, fmt.Sprintf("/api/v1/orderbooks/%s/resume", e.market), struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownLookupsReturn404(t *testing.T) {
	e := newAPIEnv(t)

	resp, _ := e.get(t, "/api/v1/orderbooks/"+e.market)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.get(t, "/api/v1/trades/42")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
