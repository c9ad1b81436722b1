package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radlabs/rampd/pkg/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*BinanceClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.ExchangeConfig{
		BaseURL:      srv.URL,
		APIKey:       "test-key",
		APISecret:    "test-secret",
		Symbol:       "USDCUSDT",
		Timeout:      5,
		RecvWindowMs: 10000,
	}
	return NewBinanceClient(cfg, zerolog.Nop()), srv
}

func TestSpotQuote(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "USDCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"USDCUSDT","price":"1.00010000"}`))
	})
	mux.HandleFunc("/api/v3/ticker/bookTicker", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"USDCUSDT","bidPrice":"1.00000000","bidQty":"100","askPrice":"1.00020000","askQty":"100"}`))
	})

	client, _ := newTestClient(t, mux)

	q, err := client.SpotQuote(context.Background(), decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	assert.Equal(t, "10.00", q.USD)
	assert.Equal(t, "USDCUSDT", q.Symbol)
	assert.Equal(t, "spot-testnet", q.Venue)
	assert.Equal(t, "1.000100", q.Price.Mid)
	assert.Equal(t, "2.00", q.Price.SpreadBps)
	// 10 / 1.0001 = 9.999000...
	assert.Equal(t, "9.999000", q.ExpectedUSDC.AtLast)
}

func TestMarketBuy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"USDCUSDT","price":"1.0"}`))
	})
	mux.HandleFunc("/api/v3/order", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))

		q := r.URL.Query()
		assert.Equal(t, "USDCUSDT", q.Get("symbol"))
		assert.Equal(t, "BUY", q.Get("side"))
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "10.00", q.Get("quoteOrderQty"))
		assert.NotEmpty(t, q.Get("timestamp"))
		assert.NotEmpty(t, q.Get("signature"))

		w.Write([]byte(`{
			"symbol":"USDCUSDT","orderId":12345,"clientOrderId":"abc",
			"transactTime":1724800000123,"executedQty":"9.87000000",
			"cummulativeQuoteQty":"10.00000000","status":"FILLED",
			"side":"BUY","type":"MARKET",
			"fills":[{"price":"1.013","qty":"9.87","commission":"0","commissionAsset":"USDC"}]
		}`))
	})

	client, _ := newTestClient(t, mux)

	order, err := client.MarketBuy(context.Background(), "10.00")
	require.NoError(t, err)

	assert.Equal(t, int64(12345), order.OrderID)
	assert.Equal(t, "9.87000000", order.ExecutedQty)
	assert.Equal(t, "10.00000000", order.CumQuoteQty)
	require.Len(t, order.Fills, 1)
	assert.Equal(t, "9.87", order.Fills[0].Qty)
}

func TestMarketBuyVenueError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"USDCUSDT","price":"1.0"}`))
	})
	mux.HandleFunc("/api/v3/order", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	})

	client, _ := newTestClient(t, mux)

	_, err := client.MarketBuy(context.Background(), "10.00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
}

func TestTradingSymbolFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		// Only BUSDUSDT exists on this fake venue.
		if r.URL.Query().Get("symbol") == "BUSDUSDT" {
			w.Write([]byte(`{"symbol":"BUSDUSDT","price":"1.0"}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewBinanceClient(&config.ExchangeConfig{BaseURL: srv.URL, Timeout: 5}, zerolog.Nop())

	symbol, err := client.TradingSymbol(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BUSDUSDT", symbol)

	// Cached on the second call.
	symbol, err = client.TradingSymbol(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BUSDUSDT", symbol)
}
