package robinhood

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gridtrader/internal/core"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	signer, err := NewSigner("test-key", testKey())
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	client, err := NewClient(signer, Options{
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestOrdersFollowsNextPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" || r.Header.Get("x-signature") == "" {
			t.Errorf("request missing auth headers: %v", r.Header)
		}
		switch {
		case r.URL.RawQuery == "":
			fmt.Fprintf(w, `{"results":[{"id":"a","side":"buy","type":"limit","state":"filled","symbol":"BTC-USD"}],"next":%q}`,
				srv.URL+"/api/v1/crypto/trading/orders/?cursor=p2")
		case r.URL.Query().Get("cursor") == "p2":
			io.WriteString(w, `{"results":[{"id":"b","side":"sell","type":"limit","state":"open","symbol":"BTC-USD"}]}`)
		default:
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	orders, err := client.Orders(context.Background())
	if err != nil {
		t.Fatalf("Orders() error = %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("Orders() count = %d, want 2", len(orders))
	}
	if orders[0].ID != "a" || orders[1].ID != "b" {
		t.Fatalf("Orders() should preserve page order, got %s then %s", orders[0].ID, orders[1].ID)
	}
}

func TestOpenOrdersFollowsCursorPagination(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.RawQuery)
		if r.URL.Query().Get("state") != "open" {
			t.Errorf("state filter missing: %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("cursor") == "" {
			io.WriteString(w, `{"results":[{"id":"x","side":"buy","type":"limit","state":"open"}],"cursor":"c1"}`)
			return
		}
		io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	orders, err := client.OpenOrders(context.Background())
	if err != nil {
		t.Fatalf("OpenOrders() error = %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "x" {
		t.Fatalf("OpenOrders() = %+v", orders)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 page fetches, got %d (%v)", len(calls), calls)
	}
}

func TestPlaceLimitBuyBody(t *testing.T) {
	var got orderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		io.WriteString(w, `{"id":"ord-1","client_order_id":"cid","side":"buy","type":"limit","state":"open","symbol":"BTC-USD","limit_order_config":{"limit_price":"48500","quote_amount":"5","time_in_force":"gtc"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	placed, err := client.PlaceOrder(context.Background(), core.Order{
		Side:        core.Buy,
		Type:        core.Limit,
		Symbol:      "BTC-USD",
		LimitPrice:  decimal.RequireFromString("48500.999"),
		QuoteAmount: decimal.RequireFromString("5"),
	})
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if placed.ID != "ord-1" {
		t.Fatalf("placed.ID = %q", placed.ID)
	}
	if got.ClientOrderID == "" {
		t.Fatalf("client_order_id must be generated")
	}
	if got.LimitOrderConfig == nil {
		t.Fatalf("limit_order_config missing")
	}
	if got.LimitOrderConfig.LimitPrice != "48500.99" {
		t.Fatalf("limit_price = %q, want truncated 48500.99", got.LimitOrderConfig.LimitPrice)
	}
	if got.LimitOrderConfig.QuoteAmount != "5" {
		t.Fatalf("quote_amount = %q, want 5", got.LimitOrderConfig.QuoteAmount)
	}
	if got.LimitOrderConfig.TimeInForce != "gtc" {
		t.Fatalf("time_in_force = %q, want gtc", got.LimitOrderConfig.TimeInForce)
	}
	if got.LimitOrderConfig.AssetQuantity != "" {
		t.Fatalf("buy with quote_amount must not set asset_quantity")
	}
}

func TestPlaceLimitSellTruncatesQuantity(t *testing.T) {
	var got orderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		io.WriteString(w, `{"id":"ord-2","side":"sell","type":"limit","state":"open"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.PlaceOrder(context.Background(), core.Order{
		Side:       core.Sell,
		Type:       core.Limit,
		Symbol:     "BTC-USD",
		LimitPrice: decimal.RequireFromString("51000"),
		AssetQty:   decimal.RequireFromString("0.123456789"),
	})
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if got.LimitOrderConfig.AssetQuantity != "0.12345678" {
		t.Fatalf("asset_quantity = %q, want 0.12345678", got.LimitOrderConfig.AssetQuantity)
	}
}

func TestGetRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"results":[{"symbol":"BTC-USD","ask_inclusive_of_buy_spread":"50000.12","bid_inclusive_of_sell_spread":"49990.55"}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	price, err := client.CurrentPrice(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("CurrentPrice() error = %v", err)
	}
	if price.Cmp(decimal.RequireFromString("50000.12")) != 0 {
		t.Fatalf("CurrentPrice() = %s, want 50000.12", price)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestPlaceOrderDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.PlaceOrder(context.Background(), core.Order{
		Side: core.Buy, Type: core.Market, Symbol: "BTC-USD",
		AssetQty: decimal.RequireFromString("0.001"),
	})
	if err == nil {
		t.Fatalf("PlaceOrder() should fail")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("placement must be single-attempt, got %d calls", calls)
	}
}

func TestUnauthorizedClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"invalid signature"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.GetOrder(context.Background(), "abc")
	if err == nil {
		t.Fatalf("GetOrder() should fail")
	}
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("error should match core.ErrUnauthorized, got %v", err)
	}
	apiErr, ok := AsAPIError(err)
	if !ok || apiErr.Status != http.StatusUnauthorized || apiErr.Detail != "invalid signature" {
		t.Fatalf("AsAPIError() = %+v, %v", apiErr, ok)
	}
}

func TestCurrentPriceMissingFieldIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.CurrentPrice(context.Background(), "BTC-USD")
	if !errors.Is(err, core.ErrPriceUnavailable) {
		t.Fatalf("error should match core.ErrPriceUnavailable, got %v", err)
	}
}

func TestAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/crypto/trading/accounts/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `{"account_number":"ACC123","status":"active","buying_power":"1042.50","buying_power_currency":"USD"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	acct, err := client.Account(context.Background())
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if acct.AccountNumber != "ACC123" || acct.Status != "active" {
		t.Fatalf("Account() = %+v", acct)
	}
	if acct.BuyingPower.Cmp(decimal.RequireFromString("1042.50")) != 0 {
		t.Fatalf("buying_power = %s, want 1042.50", acct.BuyingPower)
	}
}

func TestEstimatedPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "BTC-USD" || q.Get("side") != "sell" || q.Get("quantity") != "0.001" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		io.WriteString(w, `{"results":[{"price":"49987.10"}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	price, err := client.EstimatedPrice(context.Background(), "BTC-USD", core.Sell, decimal.RequireFromString("0.001"))
	if err != nil {
		t.Fatalf("EstimatedPrice() error = %v", err)
	}
	if price.Cmp(decimal.RequireFromString("49987.10")) != 0 {
		t.Fatalf("EstimatedPrice() = %s, want 49987.10", price)
	}
}

func TestCancelOrderPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/crypto/trading/orders/ord-9/cancel/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "Cancel request submitted for order ord-9")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	msg, err := client.CancelOrder(context.Background(), "ord-9")
	if err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	if msg != "Cancel request submitted for order ord-9" {
		t.Fatalf("CancelOrder() msg = %q", msg)
	}
}
