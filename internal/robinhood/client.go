package robinhood

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gridtrader/internal/core"
	"gridtrader/internal/grid"
)

const (
	ordersPath     = "/api/v1/crypto/trading/orders/"
	accountsPath   = "/api/v1/crypto/trading/accounts/"
	bestBidAskPath = "/api/v1/crypto/marketdata/best_bid_ask/"
	estimatedPath  = "/api/v1/crypto/marketdata/estimated_price/"

	timeInForceGTC = "gtc"
)

// Client is the signed REST transport plus the Order Gateway and Market Data
// Reader on top of it. Idempotent GETs get bounded retry with doubling
// backoff; order placement is always a single attempt.
type Client struct {
	baseURL       string
	signer        *Signer
	httpClient    *http.Client
	retryAttempts int
	retryBackoff  time.Duration
}

type Options struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

func NewClient(signer *Signer, opts Options) (*Client, error) {
	if signer == nil {
		return nil, errors.New("signer required")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("base URL required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := opts.RetryAttempts
	if attempts < 1 {
		attempts = 3
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		signer:        signer,
		httpClient:    &http.Client{Timeout: timeout},
		retryAttempts: attempts,
		retryBackoff:  backoff,
	}, nil
}

// PlaceOrder submits a new order. The input order carries side, type, symbol
// and either a limit price with quote amount / asset quantity, or a market
// asset quantity. Prices are truncated to 2 places and quantities to 8 before
// hitting the wire. A fresh client_order_id is generated unless the caller
// supplies one.
func (c *Client) PlaceOrder(ctx context.Context, ord core.Order) (core.Order, error) {
	clientID := ord.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	req := orderRequest{
		ClientOrderID: clientID,
		Side:          string(ord.Side),
		Type:          string(ord.Type),
		Symbol:        ord.Symbol,
	}
	switch ord.Type {
	case core.Limit:
		cfg := &limitOrderConfig{
			LimitPrice:  grid.RoundPrice(ord.LimitPrice).String(),
			TimeInForce: timeInForceGTC,
		}
		if ord.QuoteAmount.Cmp(decimal.Zero) > 0 {
			cfg.QuoteAmount = grid.RoundPrice(ord.QuoteAmount).String()
		} else {
			cfg.AssetQuantity = grid.RoundQty(ord.AssetQty).String()
		}
		req.LimitOrderConfig = cfg
	case core.Market:
		req.MarketOrderConfig = &marketOrderConfig{
			AssetQuantity: grid.RoundQty(ord.AssetQty).String(),
		}
	default:
		return core.Order{}, fmt.Errorf("unsupported order type %q", ord.Type)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return core.Order{}, err
	}
	data, _, err := c.do(ctx, http.MethodPost, ordersPath, body)
	if err != nil {
		return core.Order{}, err
	}
	var resp orderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return core.Order{}, fmt.Errorf("parse order response: %w", err)
	}
	if resp.ID == "" {
		return core.Order{}, fmt.Errorf("order response missing id")
	}
	return resp.toCore(), nil
}

// CancelOrder requests cancellation. The API answers a plain-text
// acknowledgement; the text is returned for logging.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (string, error) {
	if orderID == "" {
		return "", errors.New("order id required")
	}
	path := ordersPath + orderID + "/cancel/"
	data, contentType, err := c.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return "", err
	}
	msg := strings.TrimSpace(string(data))
	if strings.HasPrefix(contentType, "application/json") {
		var parsed map[string]string
		if err := json.Unmarshal(data, &parsed); err == nil {
			if v, ok := parsed["error"]; ok {
				return "", fmt.Errorf("cancel rejected: %s", v)
			}
		}
	}
	return msg, nil
}

// GetOrder returns the current state of one order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (core.Order, error) {
	if orderID == "" {
		return core.Order{}, errors.New("order id required")
	}
	data, _, err := c.do(ctx, http.MethodGet, ordersPath+orderID+"/", nil)
	if err != nil {
		return core.Order{}, err
	}
	var resp orderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return core.Order{}, fmt.Errorf("parse order response: %w", err)
	}
	return resp.toCore(), nil
}

// Orders returns every order on the account, following pagination until the
// next link is absent. Page order is preserved.
func (c *Client) Orders(ctx context.Context) ([]core.Order, error) {
	return c.listOrders(ctx, url.Values{})
}

// OpenOrders returns the resting orders, following cursor pagination.
func (c *Client) OpenOrders(ctx context.Context) ([]core.Order, error) {
	query := url.Values{}
	query.Set("state", string(core.OrderOpen))
	return c.listOrders(ctx, query)
}

func (c *Client) listOrders(ctx context.Context, query url.Values) ([]core.Order, error) {
	path := ordersPath
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	orders := make([]core.Order, 0, 32)
	for path != "" {
		data, _, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		var page ordersPage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("parse orders page: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}
		for _, r := range page.Results {
			orders = append(orders, r.toCore())
		}
		switch {
		case page.Next != "":
			next, err := url.Parse(page.Next)
			if err != nil {
				return nil, fmt.Errorf("parse next page url: %w", err)
			}
			path = next.RequestURI()
		case page.Cursor != "":
			q := url.Values{}
			for k, v := range query {
				q[k] = v
			}
			q.Set("cursor", page.Cursor)
			path = ordersPath + "?" + q.Encode()
		default:
			path = ""
		}
	}
	return orders, nil
}

// GetBestBidAsk fetches the spread-inclusive quote for a symbol.
func (c *Client) GetBestBidAsk(ctx context.Context, symbol string) (BestBidAsk, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	data, _, err := c.do(ctx, http.MethodGet, bestBidAskPath+"?"+query.Encode(), nil)
	if err != nil {
		return BestBidAsk{}, err
	}
	var page bestBidAskPage
	if err := json.Unmarshal(data, &page); err != nil {
		return BestBidAsk{}, fmt.Errorf("parse best bid/ask: %w", err)
	}
	if len(page.Results) == 0 {
		return BestBidAsk{}, fmt.Errorf("best bid/ask for %s: %w", symbol, core.ErrPriceUnavailable)
	}
	r := page.Results[0]
	ask, err := decimal.NewFromString(r.AskInclusiveOfBuySpread)
	if err != nil {
		return BestBidAsk{}, fmt.Errorf("ask_inclusive_of_buy_spread %q: %w", r.AskInclusiveOfBuySpread, core.ErrPriceUnavailable)
	}
	bid, _ := decimal.NewFromString(r.BidInclusiveOfSellSpread)
	return BestBidAsk{Symbol: r.Symbol, Bid: bid, Ask: ask}, nil
}

// CurrentPrice derives the reference price: the spread-inclusive ask.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	quote, err := c.GetBestBidAsk(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return quote.Ask, nil
}

// EstimatedPrice returns the exchange's execution price estimate for a
// hypothetical order.
func (c *Client) EstimatedPrice(ctx context.Context, symbol string, side core.Side, quantity decimal.Decimal) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("side", string(side))
	query.Set("quantity", quantity.String())
	data, _, err := c.do(ctx, http.MethodGet, estimatedPath+"?"+query.Encode(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	var page struct {
		Results []struct {
			Price string `json:"price"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return decimal.Zero, fmt.Errorf("parse estimated price: %w", err)
	}
	if len(page.Results) == 0 {
		return decimal.Zero, fmt.Errorf("estimated price for %s: %w", symbol, core.ErrPriceUnavailable)
	}
	price, err := decimal.NewFromString(page.Results[0].Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("estimated price %q: %w", page.Results[0].Price, core.ErrPriceUnavailable)
	}
	return price, nil
}

// Account returns the trading account summary.
func (c *Client) Account(ctx context.Context) (Account, error) {
	data, _, err := c.do(ctx, http.MethodGet, accountsPath, nil)
	if err != nil {
		return Account{}, err
	}
	var resp accountResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Account{}, fmt.Errorf("parse account: %w", err)
	}
	power, _ := decimal.NewFromString(resp.BuyingPower)
	return Account{
		AccountNumber: resp.AccountNumber,
		Status:        resp.Status,
		BuyingPower:   power,
	}, nil
}

// do issues one signed request. GETs are retried on transport errors and 5xx
// responses; everything else is single-shot. Each attempt is signed fresh so
// the timestamp stays current.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, string, error) {
	attempts := 1
	if method == http.MethodGet {
		attempts = c.retryAttempts
	}
	backoff := c.retryBackoff
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, "", ctx.Err()
			}
			backoff *= 2
		}
		data, contentType, retryable, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			return data, contentType, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, "", lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte) ([]byte, string, bool, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, "", false, err
	}
	for k, v := range c.signer.Headers(method, path, string(body)) {
		req.Header.Set(k, v)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", true, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", true, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, "", resp.StatusCode >= 500, classifyHTTPError(resp.StatusCode, data)
	}
	return data, resp.Header.Get("Content-Type"), false, nil
}
