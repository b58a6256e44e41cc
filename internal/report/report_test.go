package report

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"gridtrader/internal/core"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sample() []core.Order {
	return []core.Order{
		{ID: "b1", Symbol: "BTC-USD", Side: core.Buy, Type: core.Limit, State: core.OrderOpen,
			LimitPrice: d("48500"), QuoteAmount: d("5")},
		{ID: "b2", Symbol: "BTC-USD", Side: core.Buy, Type: core.Limit, State: core.OrderFilled,
			LimitPrice: d("49000"), QuoteAmount: d("5")},
		{ID: "s1", Symbol: "BTC-USD", Side: core.Sell, Type: core.Limit, State: core.OrderOpen,
			LimitPrice: d("51000"), AssetQty: d("0.0001")},
		{ID: "c1", Symbol: "BTC-USD", Side: core.Buy, Type: core.Limit, State: core.OrderCanceled,
			LimitPrice: d("47000"), QuoteAmount: d("5")},
	}
}

func TestFilter(t *testing.T) {
	got := Filter(sample(), core.Buy, core.OrderFilled)
	if len(got) != 1 || got[0].ID != "b2" {
		t.Fatalf("Filter() = %+v, want only b2", got)
	}
}

func TestCountBuckets(t *testing.T) {
	c := Count(sample())
	if c.OpenBuy != 1 || c.OpenSell != 1 || c.FilledBuy != 1 || c.FilledSell != 0 {
		t.Fatalf("Count() = %+v", c)
	}
}

func TestRenderSkipsCanceledAndShowsSummary(t *testing.T) {
	var sb strings.Builder
	Render(&sb, sample())
	out := sb.String()

	if strings.Contains(out, "c1") {
		t.Fatalf("canceled order must not render:\n%s", out)
	}
	// Buys show quote amount, sells show asset quantity.
	if !strings.Contains(out, "Order ID: b1") || !strings.Contains(out, "Asset Value: 5") {
		t.Fatalf("buy rendering wrong:\n%s", out)
	}
	if !strings.Contains(out, "Asset Value: 0.0001") {
		t.Fatalf("sell rendering wrong:\n%s", out)
	}
	if !strings.Contains(out, "Total Open Buy Orders: 1") ||
		!strings.Contains(out, "Total Filled Buy Orders: 1") {
		t.Fatalf("summary wrong:\n%s", out)
	}
}
