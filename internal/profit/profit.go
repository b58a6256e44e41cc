package profit

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"gridtrader/internal/core"
	"gridtrader/internal/ledger"
)

// OrderLister is the slice of the Order Gateway the reconciler needs.
type OrderLister interface {
	Orders(ctx context.Context) ([]core.Order, error)
}

// RealizedGains is sell proceeds minus buy cost over the filled ledgers,
// in exact decimal arithmetic.
func RealizedGains(buys, sells []ledger.Record) decimal.Decimal {
	cost := decimal.Zero
	for _, buy := range buys {
		cost = cost.Add(buy.Price.Mul(buy.Quantity))
	}
	proceeds := decimal.Zero
	for _, sell := range sells {
		proceeds = proceeds.Add(sell.Price.Mul(sell.Quantity))
	}
	return proceeds.Sub(cost)
}

// UnrealizedGains matches sells against buys oldest-buy-first and marks the
// remaining buy inventory to the current price. A sell may consume quantity
// from several buys; a buy may be split across several sells. Buys are
// consumed strictly in ledger order.
func UnrealizedGains(buys, sells []ledger.Record, currentPrice decimal.Decimal) decimal.Decimal {
	remaining := make([]decimal.Decimal, len(buys))
	for i, buy := range buys {
		remaining[i] = buy.Quantity
	}

	gain := decimal.Zero
	next := 0
	for _, sell := range sells {
		unmatched := sell.Quantity
		for unmatched.Cmp(decimal.Zero) > 0 && next < len(buys) {
			if remaining[next].Cmp(decimal.Zero) <= 0 {
				next++
				continue
			}
			take := remaining[next]
			if unmatched.Cmp(take) < 0 {
				take = unmatched
			}
			gain = gain.Add(sell.Price.Sub(buys[next].Price).Mul(take))
			remaining[next] = remaining[next].Sub(take)
			unmatched = unmatched.Sub(take)
		}
	}

	// Unmatched inventory marked to market.
	for i, buy := range buys {
		if remaining[i].Cmp(decimal.Zero) <= 0 {
			continue
		}
		gain = gain.Add(currentPrice.Sub(buy.Price).Mul(remaining[i]))
	}
	return gain
}

// SyncFills reconciles the filled ledgers against the exchange: every order
// in state filled that is not yet recorded gets appended, deduplicated by
// order id. This is how placement-time records get corroborated by real
// fills.
func SyncFills(ctx context.Context, lister OrderLister, led *ledger.Ledger) error {
	orders, err := lister.Orders(ctx)
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}
	buySeen, err := led.OrderIDs(ledger.BuyFilled)
	if err != nil {
		return err
	}
	sellSeen, err := led.OrderIDs(ledger.SellFilled)
	if err != nil {
		return err
	}
	for _, ord := range orders {
		if ord.State != core.OrderFilled {
			continue
		}
		rec, ok := fillRecord(ord)
		if !ok {
			log.Printf("level=WARN event=sync_fill_skipped order_id=%q reason=%q", ord.ID, "zero_price")
			continue
		}
		switch ord.Side {
		case core.Buy:
			if _, dup := buySeen[ord.ID]; dup {
				continue
			}
			if err := led.Append(ledger.BuyFilled, rec); err != nil {
				return err
			}
			buySeen[ord.ID] = struct{}{}
		case core.Sell:
			if _, dup := sellSeen[ord.ID]; dup {
				continue
			}
			if err := led.Append(ledger.SellFilled, rec); err != nil {
				return err
			}
			sellSeen[ord.ID] = struct{}{}
		}
	}
	return nil
}

// fillRecord derives the ledger record for a filled order. Buys are placed by
// quote amount, so their quantity is quote_amount / limit_price; sells carry
// the asset quantity directly.
func fillRecord(ord core.Order) (ledger.Record, bool) {
	if ord.LimitPrice.Cmp(decimal.Zero) <= 0 {
		return ledger.Record{}, false
	}
	rec := ledger.Record{
		Timestamp: ord.CreatedAt,
		Price:     ord.LimitPrice,
		OrderID:   ord.ID,
	}
	if ord.Side == core.Buy && ord.QuoteAmount.Cmp(decimal.Zero) > 0 {
		quote := ord.QuoteAmount
		rec.QuoteAmount = &quote
		rec.Quantity = ord.QuoteAmount.Div(ord.LimitPrice)
	} else {
		rec.Quantity = ord.AssetQty
	}
	if rec.Quantity.Cmp(decimal.Zero) <= 0 {
		return ledger.Record{}, false
	}
	return rec, true
}
