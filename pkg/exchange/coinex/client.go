package coinex

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"futures-trader/pkg/cache"
	"futures-trader/pkg/exchange"
)

const (
	defaultBaseURL = "https://api.coinex.com/v2"

	// tickerTTL bounds how stale a cached last price may be before a
	// fresh venue round trip is made.
	tickerTTL = 2 * time.Second
)

// Config holds CoinEx API credentials.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string // override for testing
}

// Client implements exchange.Gateway against the CoinEx v2 futures API.
type Client struct {
	cfg      Config
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	timeSync *exchange.TimeSync
	prices   *cache.PriceCache
}

// NewClient creates a CoinEx futures client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		cfg:     cfg,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		prices:  cache.NewPriceCache(),
	}
	c.timeSync = exchange.NewTimeSync(c.fetchServerTime)
	return c
}

// StartTimeSync begins periodic clock alignment with the venue.
func (c *Client) StartTimeSync(ctx context.Context) {
	c.timeSync.Start(ctx)
}

// envelope is the common CoinEx v2 response wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) fetchServerTime(ctx context.Context) (int64, error) {
	var data struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := c.doPublic(ctx, "/time", nil, &data); err != nil {
		return 0, err
	}
	return data.Timestamp, nil
}

func (c *Client) doPublic(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out, false)
}

func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	return c.do(ctx, method, path, params, body, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, out any, signed bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	requestPath := path
	if len(params) > 0 {
		requestPath = path + "?" + params.Encode()
	}

	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyBytes = b
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		timestamp := strconv.FormatInt(c.timeSync.Now(), 10)
		req.Header.Set("X-COINEX-KEY", c.cfg.APIKey)
		req.Header.Set("X-COINEX-TIMESTAMP", timestamp)
		req.Header.Set("X-COINEX-SIGN", c.sign(method, requestPath, string(bodyBytes), timestamp))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("coinex error %d: %s", env.Code, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// sign computes the CoinEx v2 request signature:
// lowercase hex HMAC-SHA256 over method + request_path + body + timestamp.
func (c *Client) sign(method, requestPath, body, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(method + requestPath + body + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

type marketInfo struct {
	Market    string `json:"market"`
	BaseCcy   string `json:"base_ccy"`
	QuoteCcy  string `json:"quote_ccy"`
	MinAmount string `json:"min_amount"`
}

// LoadMarkets returns the futures contract list keyed by market id.
func (c *Client) LoadMarkets(ctx context.Context) (map[string]exchange.Market, error) {
	var data []marketInfo
	if err := c.doPublic(ctx, "/futures/market", nil, &data); err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}
	markets := make(map[string]exchange.Market, len(data))
	for _, m := range data {
		markets[m.Market] = exchange.Market{
			ID:        m.Market,
			Base:      m.BaseCcy,
			Quote:     m.QuoteCcy,
			MinAmount: parseFloat(m.MinAmount),
		}
	}
	return markets, nil
}

type tickerInfo struct {
	Market string `json:"market"`
	Last   string `json:"last"`
}

// FetchTicker returns the last traded price for a market. Prices are
// served from a short-lived cache to absorb bursts of lookups.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	if last, ok := c.prices.GetFresh(symbol, tickerTTL); ok {
		return exchange.Ticker{Symbol: symbol, Last: last}, nil
	}

	params := url.Values{}
	params.Set("market", symbol)

	var data []tickerInfo
	if err := c.doPublic(ctx, "/futures/ticker", params, &data); err != nil {
		return exchange.Ticker{}, fmt.Errorf("fetch ticker %s: %w", symbol, err)
	}
	if len(data) == 0 {
		return exchange.Ticker{}, fmt.Errorf("fetch ticker %s: no data", symbol)
	}
	last := parseFloat(data[0].Last)
	c.prices.Set(symbol, last)
	return exchange.Ticker{Symbol: data[0].Market, Last: last}, nil
}

type positionInfo struct {
	Market        string `json:"market"`
	Side          string `json:"side"`
	OpenInterest  string `json:"open_interest"`
	AvgEntryPrice string `json:"avg_entry_price"`
	MarkPrice     string `json:"mark_price"`
	UnrealizedPnL string `json:"unrealized_pnl"`
	Leverage      string `json:"leverage"`
}

// FetchPositions returns all open futures positions.
func (c *Client) FetchPositions(ctx context.Context) ([]exchange.Position, error) {
	params := url.Values{}
	params.Set("market_type", "FUTURES")
	params.Set("page", "1")
	params.Set("limit", "100")

	var data []positionInfo
	if err := c.doSigned(ctx, http.MethodGet, "/futures/pending-position", params, nil, &data); err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	positions := make([]exchange.Position, 0, len(data))
	for _, p := range data {
		leverage, _ := strconv.Atoi(p.Leverage)
		positions = append(positions, exchange.Position{
			Symbol:        p.Market,
			Side:          strings.ToLower(p.Side),
			Contracts:     parseFloat(p.OpenInterest),
			EntryPrice:    parseFloat(p.AvgEntryPrice),
			MarkPrice:     parseFloat(p.MarkPrice),
			UnrealizedPnL: parseFloat(p.UnrealizedPnL),
			Leverage:      leverage,
		})
	}
	return positions, nil
}

type orderInfo struct {
	OrderID      int64  `json:"order_id"`
	Market       string `json:"market"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	FilledAmount string `json:"filled_amount"`
	Status       string `json:"status"`
}

// CreateOrder submits an order. Reduce-only requests go through the
// dedicated close-position endpoint; CoinEx has no reduce-only flag on
// the plain order endpoint.
func (c *Client) CreateOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	if req.ReduceOnly {
		return c.closePosition(ctx, req)
	}

	body := map[string]any{
		"market":      req.Symbol,
		"market_type": "FUTURES",
		"side":        string(req.Side),
		"type":        string(req.Type),
		"amount":      formatFloat(req.Qty),
	}
	if req.Type == exchange.OrderTypeLimit {
		body["price"] = formatFloat(req.Price)
		if req.PostOnly {
			// CoinEx expresses post-only as a maker-only time in force.
			body["time_in_force"] = "PO"
		}
	}
	if req.ClientID != "" {
		body["client_id"] = req.ClientID
	}

	var data orderInfo
	if err := c.doSigned(ctx, http.MethodPost, "/futures/order", nil, body, &data); err != nil {
		return exchange.OrderResult{}, err
	}
	return exchange.OrderResult{
		ExchangeOrderID: strconv.FormatInt(data.OrderID, 10),
		Symbol:          data.Market,
		Status:          data.Status,
		Price:           parseFloat(data.Price),
	}, nil
}

func (c *Client) closePosition(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	body := map[string]any{
		"market":      req.Symbol,
		"market_type": "FUTURES",
		"type":        "market",
		"amount":      formatFloat(req.Qty),
	}
	var data orderInfo
	if err := c.doSigned(ctx, http.MethodPost, "/futures/close-position", nil, body, &data); err != nil {
		return exchange.OrderResult{}, err
	}
	return exchange.OrderResult{
		ExchangeOrderID: strconv.FormatInt(data.OrderID, 10),
		Symbol:          data.Market,
		Status:          data.Status,
		Price:           parseFloat(data.Price),
	}, nil
}

// FetchOrder looks up an order by id, checking open orders first and
// falling back to finished orders.
func (c *Client) FetchOrder(ctx context.Context, symbol, orderID string) (exchange.Order, error) {
	params := url.Values{}
	params.Set("market", symbol)
	params.Set("order_id", orderID)

	var data orderInfo
	if err := c.doSigned(ctx, http.MethodGet, "/futures/order-status", params, nil, &data); err != nil {
		return exchange.Order{}, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	return toOrder(data), nil
}

// FetchOpenOrders returns pending orders, optionally filtered by market.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	params := url.Values{}
	params.Set("market_type", "FUTURES")
	params.Set("page", "1")
	params.Set("limit", "100")
	if symbol != "" {
		params.Set("market", symbol)
	}

	var data []orderInfo
	if err := c.doSigned(ctx, http.MethodGet, "/futures/pending-order", params, nil, &data); err != nil {
		return nil, fmt.Errorf("fetch open orders: %w", err)
	}
	orders := make([]exchange.Order, 0, len(data))
	for _, o := range data {
		orders = append(orders, toOrder(o))
	}
	return orders, nil
}

// CancelOrder cancels a pending order.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order id %q: %w", orderID, err)
	}
	body := map[string]any{
		"market":      symbol,
		"market_type": "FUTURES",
		"order_id":    id,
	}
	if err := c.doSigned(ctx, http.MethodPost, "/futures/cancel-order", nil, body, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// SetLeverage adjusts leverage keeping the current margin mode (isolated).
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return c.SetMarginMode(ctx, symbol, exchange.MarginIsolated, leverage)
}

// SetMarginMode adjusts margin mode; CoinEx requires leverage in the
// same call.
func (c *Client) SetMarginMode(ctx context.Context, symbol string, mode exchange.MarginMode, leverage int) error {
	body := map[string]any{
		"market":      symbol,
		"market_type": "FUTURES",
		"margin_mode": string(mode),
		"leverage":    leverage,
	}
	if err := c.doSigned(ctx, http.MethodPost, "/futures/adjust-position-leverage", nil, body, nil); err != nil {
		return fmt.Errorf("adjust leverage %s: %w", symbol, err)
	}
	return nil
}

func toOrder(o orderInfo) exchange.Order {
	return exchange.Order{
		ID:     strconv.FormatInt(o.OrderID, 10),
		Symbol: o.Market,
		Side:   exchange.Side(strings.ToLower(o.Side)),
		Status: strings.ToLower(o.Status),
		Price:  parseFloat(o.Price),
		Qty:    parseFloat(o.Amount),
		Filled: parseFloat(o.FilledAmount),
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
