package profit

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"gridtrader/internal/core"
	"gridtrader/internal/ledger"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func rec(price, qty, id string) ledger.Record {
	return ledger.Record{Price: d(price), Quantity: d(qty), OrderID: id}
}

func TestRealizedGains(t *testing.T) {
	buys := []ledger.Record{rec("45000", "0.01", "b1"), rec("46000", "0.01", "b2")}
	sells := []ledger.Record{rec("50000", "0.01", "s1")}
	got := RealizedGains(buys, sells)
	// 50000*0.01 - (45000*0.01 + 46000*0.01) = 500 - 910 = -410
	if got.Cmp(d("-410")) != 0 {
		t.Fatalf("RealizedGains() = %s, want -410", got)
	}
}

func TestRealizedGainsExactDecimal(t *testing.T) {
	// 10,000 dust trades must sum without floating-point drift.
	buys := make([]ledger.Record, 0, 10000)
	for i := 0; i < 10000; i++ {
		buys = append(buys, rec("1", "0.00000001", "b"))
	}
	got := RealizedGains(buys, nil)
	if got.Cmp(d("-0.0001")) != 0 {
		t.Fatalf("RealizedGains() = %s, want -0.0001 exactly", got)
	}
}

func TestUnrealizedGainsFIFOMatching(t *testing.T) {
	buys := []ledger.Record{rec("45000", "0.01", "b1"), rec("46000", "0.01", "b2")}
	sells := []ledger.Record{rec("50000", "0.015", "s1")}
	current := d("47000")
	// Matched: (50000-45000)*0.01 + (50000-46000)*0.005 = 50 + 20 = 70.
	// Remaining 0.005 @ 46000 marked to 47000: +5. Total 75.
	got := UnrealizedGains(buys, sells, current)
	if got.Cmp(d("75")) != 0 {
		t.Fatalf("UnrealizedGains() = %s, want 75", got)
	}
}

func TestUnrealizedGainsSellSpansManyBuys(t *testing.T) {
	buys := []ledger.Record{
		rec("100", "1", "b1"),
		rec("110", "1", "b2"),
		rec("120", "1", "b3"),
	}
	sells := []ledger.Record{rec("130", "2.5", "s1")}
	// (130-100)*1 + (130-110)*1 + (130-120)*0.5 = 30+20+5 = 55
	// leftover 0.5 @ 120 marked to 125: +2.5 → 57.5
	got := UnrealizedGains(buys, sells, d("125"))
	if got.Cmp(d("57.5")) != 0 {
		t.Fatalf("UnrealizedGains() = %s, want 57.5", got)
	}
}

func TestUnrealizedGainsNoSells(t *testing.T) {
	buys := []ledger.Record{rec("45000", "0.01", "b1")}
	got := UnrealizedGains(buys, nil, d("46000"))
	if got.Cmp(d("10")) != 0 {
		t.Fatalf("UnrealizedGains() = %s, want 10", got)
	}
}

type fakeLister struct {
	orders []core.Order
	err    error
}

func (f *fakeLister) Orders(ctx context.Context) ([]core.Order, error) {
	return f.orders, f.err
}

func filledBuy(id, price, quote string) core.Order {
	return core.Order{
		ID: id, Side: core.Buy, Type: core.Limit, State: core.OrderFilled,
		LimitPrice: d(price), QuoteAmount: d(quote),
	}
}

func TestSyncFillsAppendsAndDedupes(t *testing.T) {
	led, err := ledger.New(t.TempDir())
	if err != nil {
		t.Fatalf("ledger.New() error = %v", err)
	}
	lister := &fakeLister{orders: []core.Order{
		filledBuy("b1", "48500", "5"),
		{ID: "s1", Side: core.Sell, Type: core.Limit, State: core.OrderFilled,
			LimitPrice: d("51000"), AssetQty: d("0.0001")},
		{ID: "o1", Side: core.Buy, Type: core.Limit, State: core.OrderOpen,
			LimitPrice: d("47000"), QuoteAmount: d("5")},
	}}

	if err := SyncFills(context.Background(), lister, led); err != nil {
		t.Fatalf("SyncFills() error = %v", err)
	}
	// Running the sync twice must not duplicate records.
	if err := SyncFills(context.Background(), lister, led); err != nil {
		t.Fatalf("SyncFills() second run error = %v", err)
	}

	buys, err := led.Load(ledger.BuyFilled)
	if err != nil {
		t.Fatalf("Load(BuyFilled) error = %v", err)
	}
	if len(buys) != 1 {
		t.Fatalf("BuyFilled count = %d, want 1 (dedup by order_id)", len(buys))
	}
	if buys[0].OrderID != "b1" {
		t.Fatalf("BuyFilled order_id = %q", buys[0].OrderID)
	}
	// quantity derives from quote_amount / limit_price
	wantQty := d("5").Div(d("48500"))
	if buys[0].Quantity.Cmp(wantQty) != 0 {
		t.Fatalf("BuyFilled quantity = %s, want %s", buys[0].Quantity, wantQty)
	}
	if buys[0].QuoteAmount == nil || buys[0].QuoteAmount.Cmp(d("5")) != 0 {
		t.Fatalf("BuyFilled quote_amount = %+v, want 5", buys[0].QuoteAmount)
	}

	sells, err := led.Load(ledger.SellFilled)
	if err != nil {
		t.Fatalf("Load(SellFilled) error = %v", err)
	}
	if len(sells) != 1 || sells[0].OrderID != "s1" {
		t.Fatalf("SellFilled = %+v, want one record s1", sells)
	}
}

func TestSyncFillsSkipsZeroPrice(t *testing.T) {
	led, err := ledger.New(t.TempDir())
	if err != nil {
		t.Fatalf("ledger.New() error = %v", err)
	}
	lister := &fakeLister{orders: []core.Order{
		{ID: "bad", Side: core.Buy, State: core.OrderFilled, QuoteAmount: d("5")},
	}}
	if err := SyncFills(context.Background(), lister, led); err != nil {
		t.Fatalf("SyncFills() error = %v", err)
	}
	buys, err := led.Load(ledger.BuyFilled)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(buys) != 0 {
		t.Fatalf("zero-price order must be skipped, got %+v", buys)
	}
}
