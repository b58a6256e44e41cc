// Package report formats order listings for the CLI tools.
package report

import (
	"fmt"
	"io"
	"time"

	"gridtrader/internal/core"
)

// Filter returns the orders matching both side and state, preserving order.
func Filter(orders []core.Order, side core.Side, state core.OrderState) []core.Order {
	var out []core.Order
	for _, ord := range orders {
		if ord.Side == side && ord.State == state {
			out = append(out, ord)
		}
	}
	return out
}

// Counts tallies orders into the four buckets the summary footer prints.
// Filled orders count as filled; anything else except canceled counts as
// open.
type Counts struct {
	OpenBuy    int
	OpenSell   int
	FilledBuy  int
	FilledSell int
}

func Count(orders []core.Order) Counts {
	var c Counts
	for _, ord := range orders {
		switch {
		case ord.State == core.OrderFilled && ord.Side == core.Buy:
			c.FilledBuy++
		case ord.State == core.OrderFilled:
			c.FilledSell++
		case ord.State == core.OrderCanceled:
		case ord.Side == core.Buy:
			c.OpenBuy++
		default:
			c.OpenSell++
		}
	}
	return c
}

// Render prints every non-canceled order followed by the bucket summary.
// Buys show their quote amount, sells their asset quantity.
func Render(w io.Writer, orders []core.Order) {
	counts := Count(orders)

	for _, ord := range orders {
		if ord.State == core.OrderCanceled {
			continue
		}
		assetValue := ord.AssetQty.String()
		if ord.Side == core.Buy {
			assetValue = ord.QuoteAmount.String()
		}
		fmt.Fprintf(w, "Order ID: %s\n", ord.ID)
		fmt.Fprintf(w, "Symbol: %s\n", ord.Symbol)
		fmt.Fprintf(w, "Side: %s\n", ord.Side)
		fmt.Fprintf(w, "Type: %s\n", ord.Type)
		fmt.Fprintf(w, "State: %s\n", ord.State)
		fmt.Fprintf(w, "Created At: %s\n", formatTime(ord.CreatedAt))
		fmt.Fprintf(w, "Updated At: %s\n", formatTime(ord.UpdatedAt))
		fmt.Fprintf(w, "Asset Value: %s\n", assetValue)
		fmt.Fprintf(w, "Limit Price: $%s\n", ord.LimitPrice)
		fmt.Fprintln(w, "----------------------------------------")
	}

	fmt.Fprintf(w, "Total Open Buy Orders: %d\n", counts.OpenBuy)
	fmt.Fprintf(w, "Total Open Sell Orders: %d\n", counts.OpenSell)
	fmt.Fprintf(w, "Total Filled Buy Orders: %d\n", counts.FilledBuy)
	fmt.Fprintf(w, "Total Filled Sell Orders: %d\n", counts.FilledSell)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format(time.RFC3339)
}
