package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/radlabs/rampd/internal/domain"
	"github.com/radlabs/rampd/pkg/config"
)

// stablePairCandidates are probed in order when no symbol override is
// configured. The last two are non-stable fallbacks that at least prove the
// trading path on a bare testnet.
var stablePairCandidates = []string{
	"USDCUSDT", "BUSDUSDT", "FDUSDUSDT", "USDTBUSD", "TUSDUSDT",
	"BTCUSDT", "ETHUSDT",
}

// BinanceClient talks to the Binance spot testnet: public ticker endpoints
// for quotes and HMAC-signed order placement for the actual conversion.
type BinanceClient struct {
	baseURL    string
	cfg        *config.ExchangeConfig
	httpClient *http.Client
	logger     zerolog.Logger

	symbolMu sync.Mutex
	symbol   string
}

func NewBinanceClient(cfg *config.ExchangeConfig, logger zerolog.Logger) *BinanceClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	base = strings.TrimSuffix(base, "/api") // avoid /api/api/...

	return &BinanceClient{
		baseURL: base,
		cfg:     cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		logger: logger.With().Str("component", "binance_client").Logger(),
	}
}

// TradingSymbol resolves and caches the tradable stable pair: configured
// override first, then the candidate list.
func (c *BinanceClient) TradingSymbol(ctx context.Context) (string, error) {
	c.symbolMu.Lock()
	defer c.symbolMu.Unlock()

	if c.symbol != "" {
		return c.symbol, nil
	}

	if s := strings.ToUpper(strings.TrimSpace(c.cfg.Symbol)); s != "" {
		if c.symbolExists(ctx, s) {
			c.symbol = s
			return s, nil
		}
		return "", fmt.Errorf("%w: configured symbol %s not available on %s", domain.ErrUpstreamExchange, s, c.baseURL)
	}

	for _, s := range stablePairCandidates {
		if c.symbolExists(ctx, s) {
			c.logger.Info().Str("symbol", s).Msg("Selected trading symbol")
			c.symbol = s
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: no suitable pair available on %s", domain.ErrUpstreamExchange, c.baseURL)
}

func (c *BinanceClient) symbolExists(ctx context.Context, symbol string) bool {
	_, err := c.publicGet(ctx, "/api/v3/ticker/price", url.Values{"symbol": {symbol}}, 0)
	if err != nil {
		c.logger.Debug().Err(err).Str("symbol", symbol).Msg("Symbol probe failed")
	}
	return err == nil
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type bookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

// SpotQuote snapshots last/bid/ask for the chosen pair and derives the base
// quantity usd would buy at last, mid and ask. For pairs like USDCUSDT the
// price is quote per 1 base, so base = usd / price.
func (c *BinanceClient) SpotQuote(ctx context.Context, usd decimal.Decimal) (*domain.SpotQuote, error) {
	symbol, err := c.TradingSymbol(ctx)
	if err != nil {
		return nil, err
	}

	lastRaw, err := c.publicGet(ctx, "/api/v3/ticker/price", url.Values{"symbol": {symbol}}, 0)
	if err != nil {
		return nil, err
	}
	var tp tickerPrice
	if err := json.Unmarshal(lastRaw, &tp); err != nil {
		return nil, fmt.Errorf("%w: parse ticker: %v", domain.ErrUpstreamExchange, err)
	}

	bookRaw, err := c.publicGet(ctx, "/api/v3/ticker/bookTicker", url.Values{"symbol": {symbol}}, 0)
	if err != nil {
		return nil, err
	}
	var bt bookTicker
	if err := json.Unmarshal(bookRaw, &bt); err != nil {
		return nil, fmt.Errorf("%w: parse book ticker: %v", domain.ErrUpstreamExchange, err)
	}

	last, err := decimal.NewFromString(tp.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: bad last price %q", domain.ErrUpstreamExchange, tp.Price)
	}
	bid, err := decimal.NewFromString(bt.BidPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: bad bid price %q", domain.ErrUpstreamExchange, bt.BidPrice)
	}
	ask, err := decimal.NewFromString(bt.AskPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ask price %q", domain.ErrUpstreamExchange, bt.AskPrice)
	}
	if last.IsZero() || bid.IsZero() || ask.IsZero() {
		return nil, fmt.Errorf("%w: zero price in book for %s", domain.ErrUpstreamExchange, symbol)
	}

	two := decimal.NewFromInt(2)
	mid := bid.Add(ask).Div(two)
	spreadBps := ask.Sub(bid).Div(mid).Mul(decimal.NewFromInt(10000))

	return &domain.SpotQuote{
		USD:    usd.StringFixed(2),
		Symbol: symbol,
		Venue:  "spot-testnet",
		Price: domain.QuotePrices{
			Last:      last.StringFixed(6),
			Bid:       bid.StringFixed(6),
			Ask:       ask.StringFixed(6),
			Mid:       mid.StringFixed(6),
			SpreadBps: spreadBps.StringFixed(2),
		},
		ExpectedUSDC: domain.ExpectedUSDC{
			AtLast: usd.Div(last).StringFixed(6),
			AtMid:  usd.Div(mid).StringFixed(6),
			AtAsk:  usd.Div(ask).StringFixed(6),
		},
		Timestamp: time.Now().Unix(),
	}, nil
}

// MarketBuy spends quoteAmount of the quote asset (USDT) on a MARKET order
// and returns the venue's fill record verbatim.
func (c *BinanceClient) MarketBuy(ctx context.Context, quoteAmount string) (*domain.ExchangeOrder, error) {
	symbol, err := c.TradingSymbol(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", "BUY")
	params.Set("type", "MARKET")
	params.Set("quoteOrderQty", quoteAmount)

	body, err := c.signedRequest(ctx, "POST", "/api/v3/order", params)
	if err != nil {
		return nil, err
	}

	var order domain.ExchangeOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("%w: parse order response: %v", domain.ErrUpstreamExchange, err)
	}

	c.logger.Info().
		Str("symbol", order.Symbol).
		Int64("order_id", order.OrderID).
		Str("status", order.Status).
		Str("executed_qty", order.ExecutedQty).
		Str("quote_spent", order.CumQuoteQty).
		Msg("Market buy placed")
	return &order, nil
}

func (c *BinanceClient) publicGet(ctx context.Context, path string, params url.Values, attempt int) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "rampd/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if shouldRetry(err) && attempt < c.cfg.MaxRetries {
			backoff := calculateBackoff(attempt, c.cfg.RetryBackoffBase)
			c.logger.Info().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).
				Msg("Request failed, retrying after backoff")
			time.Sleep(backoff)
			return c.publicGet(ctx, path, params, attempt+1)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamExchange, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if shouldRetryStatusCode(resp.StatusCode) && attempt < c.cfg.MaxRetries {
			backoff := calculateBackoff(attempt, c.cfg.RetryBackoffBase)
			c.logger.Warn().Int("status_code", resp.StatusCode).Int("attempt", attempt+1).Dur("backoff", backoff).
				Msg("Received non-200 status, retrying after backoff")
			time.Sleep(backoff)
			return c.publicGet(ctx, path, params, attempt+1)
		}
		return nil, apiError("GET "+path, resp.StatusCode, body)
	}

	return body, nil
}

func (c *BinanceClient) signedRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: missing exchange API credentials", domain.ErrUpstreamExchange)
	}

	params.Set("timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))
	params.Set("recvWindow", fmt.Sprintf("%d", c.cfg.RecvWindowMs))

	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(query))
	query += "&signature=" + hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request failed: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "rampd/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamExchange, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(method+" "+path, resp.StatusCode, body)
	}

	return body, nil
}

func apiError(label string, status int, body []byte) error {
	var venueErr struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &venueErr); err == nil && venueErr.Msg != "" {
		return fmt.Errorf("%w: %s -> %d: %s (code %d)", domain.ErrUpstreamExchange, label, status, venueErr.Msg, venueErr.Code)
	}
	return fmt.Errorf("%w: %s -> %d: %s", domain.ErrUpstreamExchange, label, status, string(body))
}

func shouldRetry(err error) bool {
	if err, ok := err.(interface{ Timeout() bool }); ok && err.Timeout() {
		return true
	}
	if err, ok := err.(interface{ Temporary() bool }); ok && err.Temporary() {
		return true
	}
	return false
}

func shouldRetryStatusCode(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

func calculateBackoff(attempt, base int) time.Duration {
	if base <= 0 {
		base = 2
	}
	backoff := time.Duration(1<<attempt) * time.Duration(base) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
