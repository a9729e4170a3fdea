package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"futures-ai-dashboard-go/internal/ledger"
	"futures-ai-dashboard-go/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProvider serves canned candles per symbol.
type fakeProvider struct {
	candles map[string][]models.Candle
	tickers []models.Ticker
	err     error
}

func (f *fakeProvider) Klines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	candles, ok := f.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	if limit < len(candles) {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func (f *fakeProvider) Tickers(ctx context.Context) ([]models.Ticker, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tickers, nil
}

// fakeAdvisor returns a fixed analysis.
type fakeAdvisor struct {
	analysis *models.Analysis
	err      error
}

func (f *fakeAdvisor) Analyze(ctx context.Context, symbol string, technicals models.Technicals, candles []models.Candle) (*models.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func testConfig() *models.Config {
	return &models.Config{
		Symbol:           "DOGEUSDT",
		Interval:         "1h",
		KlineLimit:       100,
		InitialBalance:   10000,
		MaxLeverage:      20,
		MaxTickerPrice:   1.0,
		TickerRefreshSec: 10,
		ListenAddr:       ":0",
	}
}

func candleSeries(closes ...float64) []models.Candle {
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{Time: int64(i) * 3600000, Close: c, Volume: 100}
	}
	return candles
}

func newTestServer(t *testing.T, provider *fakeProvider, adv *fakeAdvisor) (*Server, *httptest.Server) {
	t.Helper()
	if adv == nil {
		adv = &fakeAdvisor{analysis: &models.Analysis{Signal: models.SignalNeutral}}
	}
	book := ledger.NewLedger(nil, 10000, 20, zap.NewNop().Sugar())
	s := NewServer(testConfig(), provider, adv, book, zap.NewNop().Sugar())
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHandleHealth(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{}, nil)

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestHandleTechnicals(t *testing.T) {
	provider := &fakeProvider{candles: map[string][]models.Candle{
		"DOGEUSDT": candleSeries(0.20, 0.25),
	}}
	_, ts := newTestServer(t, provider, nil)

	resp, err := http.Get(ts.URL + "/api/v1/technicals?symbol=DOGEUSDT")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tech := decodeBody[models.Technicals](t, resp)
	assert.Equal(t, 0.25, tech.CurrentPrice)
	assert.InDelta(t, 25.0, tech.PriceChangePercent, 1e-9)
	assert.Equal(t, 50.0, tech.RSI) // short series: neutral fallback
}

func TestHandleTechnicalsProviderDown(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{err: errors.New("binance unreachable")}, nil)

	resp, err := http.Get(ts.URL + "/api/v1/technicals")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestOpenAndClosePosition(t *testing.T) {
	provider := &fakeProvider{candles: map[string][]models.Candle{
		"DOGEUSDT": candleSeries(0.95, 1.00),
	}}
	s, ts := newTestServer(t, provider, nil)

	resp := postJSON(t, ts.URL+"/api/v1/account/open", map[string]any{
		"symbol": "DOGEUSDT", "side": "LONG", "margin": 100, "leverage": 10,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	position := decodeBody[models.Position](t, resp)

	// Entry price is the latest close of the requested symbol.
	assert.Equal(t, 1.00, position.EntryPrice)
	assert.Equal(t, 1000.0, position.Size)
	assert.Equal(t, 9900.0, s.book.Account().Balance)

	// Price moves to 1.05 before the close.
	provider.candles["DOGEUSDT"] = candleSeries(1.00, 1.05)

	resp = postJSON(t, ts.URL+"/api/v1/account/close", map[string]string{"id": position.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	trade := decodeBody[models.TradeHistory](t, resp)

	assert.InDelta(t, 50.0, trade.PnL, 1e-9)
	assert.InDelta(t, 10050.0, s.book.Account().Balance, 1e-9)
}

func TestOpenPositionValidationError(t *testing.T) {
	provider := &fakeProvider{candles: map[string][]models.Candle{
		"DOGEUSDT": candleSeries(0.95, 1.00),
	}}
	s, ts := newTestServer(t, provider, nil)

	resp := postJSON(t, ts.URL+"/api/v1/account/open", map[string]any{
		"symbol": "DOGEUSDT", "side": "LONG", "margin": 50000, "leverage": 10,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, 10000.0, s.book.Account().Balance)
}

func TestClosePositionUnknownID(t *testing.T) {
	provider := &fakeProvider{candles: map[string][]models.Candle{
		"DOGEUSDT": candleSeries(0.95, 1.00),
	}}
	_, ts := newTestServer(t, provider, nil)

	resp := postJSON(t, ts.URL+"/api/v1/account/close", map[string]string{"id": "ghost"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestCloseSettlesAgainstOwnSymbol: a position on another symbol than the
// configured one settles at its own symbol's price.
func TestCloseSettlesAgainstOwnSymbol(t *testing.T) {
	provider := &fakeProvider{candles: map[string][]models.Candle{
		"DOGEUSDT": candleSeries(0.95, 1.00),
		"XRPUSDT":  candleSeries(0.58, 0.60),
	}}
	s, ts := newTestServer(t, provider, nil)

	resp := postJSON(t, ts.URL+"/api/v1/account/open", map[string]any{
		"symbol": "XRPUSDT", "side": "SHORT", "margin": 200, "leverage": 5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	position := decodeBody[models.Position](t, resp)
	assert.Equal(t, 0.60, position.EntryPrice)

	provider.candles["XRPUSDT"] = candleSeries(0.60, 0.54)

	resp = postJSON(t, ts.URL+"/api/v1/account/close", map[string]string{"id": position.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	trade := decodeBody[models.TradeHistory](t, resp)

	assert.Equal(t, 0.54, trade.ExitPrice)
	assert.InDelta(t, (0.60-0.54)*position.Size, trade.PnL, 1e-9)
	assert.InDelta(t, 10000.0+trade.PnL, s.book.Account().Balance, 1e-9)
}

func TestHandleReset(t *testing.T) {
	provider := &fakeProvider{candles: map[string][]models.Candle{
		"DOGEUSDT": candleSeries(0.95, 1.00),
	}}
	s, ts := newTestServer(t, provider, nil)

	resp := postJSON(t, ts.URL+"/api/v1/account/open", map[string]any{
		"side": "LONG", "margin": 100, "leverage": 10,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/v1/account/reset", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	account := decodeBody[models.DemoAccount](t, resp)

	assert.Equal(t, 10000.0, account.Balance)
	assert.Empty(t, account.Positions)
	assert.Empty(t, account.History)
	assert.Equal(t, 10000.0, s.book.Account().Balance)
}

func TestHandleAnalyze(t *testing.T) {
	provider := &fakeProvider{candles: map[string][]models.Candle{
		"DOGEUSDT": candleSeries(0.95, 1.00),
	}}
	adv := &fakeAdvisor{analysis: &models.Analysis{
		Signal:     models.SignalBuy,
		Confidence: 70,
		Reasoning:  "trend up",
	}}
	_, ts := newTestServer(t, provider, adv)

	resp := postJSON(t, ts.URL+"/api/v1/analyze", map[string]string{"symbol": "DOGEUSDT"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	analysis := decodeBody[models.Analysis](t, resp)
	assert.Equal(t, models.SignalBuy, analysis.Signal)
}

func TestHandleAnalyzeAdvisorDown(t *testing.T) {
	provider := &fakeProvider{candles: map[string][]models.Candle{
		"DOGEUSDT": candleSeries(0.95, 1.00),
	}}
	adv := &fakeAdvisor{err: errors.New("model overloaded")}
	_, ts := newTestServer(t, provider, adv)

	resp := postJSON(t, ts.URL+"/api/v1/analyze", map[string]string{"symbol": "DOGEUSDT"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHandleTickersServesLatest(t *testing.T) {
	s, ts := newTestServer(t, &fakeProvider{}, nil)

	// Before any refresh the list is empty, not an error.
	resp, err := http.Get(ts.URL + "/api/v1/tickers")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]models.Ticker](t, resp))

	s.hub.Publish([]models.Ticker{{Symbol: "DOGEUSDT", LastPrice: 0.25, Volume: 5e8}})

	resp, err = http.Get(ts.URL + "/api/v1/tickers")
	require.NoError(t, err)
	tickers := decodeBody[[]models.Ticker](t, resp)
	require.Len(t, tickers, 1)
	assert.Equal(t, "DOGEUSDT", tickers[0].Symbol)
}

func TestTickerStream(t *testing.T) {
	s, ts := newTestServer(t, &fakeProvider{}, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/tickers"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The handshake can return before the handler registers the client.
	require.Eventually(t, func() bool {
		s.hub.mu.RLock()
		defer s.hub.mu.RUnlock()
		return len(s.hub.clients) == 1
	}, time.Second, 10*time.Millisecond)

	s.hub.Publish([]models.Ticker{{Symbol: "SHIBUSDT", LastPrice: 0.00002}})

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var tickers []models.Ticker
	require.NoError(t, json.Unmarshal(data, &tickers))
	require.Len(t, tickers, 1)
	assert.Equal(t, "SHIBUSDT", tickers[0].Symbol)
}
