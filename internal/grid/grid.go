package grid

import (
	"errors"

	"github.com/shopspring/decimal"
)

const (
	// PricePlaces is the USD price precision accepted by the exchange.
	PricePlaces = 2
	// QtyPlaces is the asset quantity precision accepted by the exchange.
	QtyPlaces = 8
)

// Levels returns every candidate buy price in the half-open interval
// [current − window, current), starting at the lower bound and stepping by
// size, ascending. The lower bound is inclusive and the current price is
// exclusive so the ladder always rests below the market.
func Levels(current, size, window decimal.Decimal) ([]decimal.Decimal, error) {
	if size.Cmp(decimal.Zero) <= 0 {
		return nil, errors.New("grid size must be > 0")
	}
	if window.Cmp(decimal.Zero) <= 0 {
		return nil, errors.New("price window must be > 0")
	}
	if current.Cmp(window) <= 0 {
		return nil, errors.New("current price must exceed the window")
	}
	levels := make([]decimal.Decimal, 0, 8)
	for price := current.Sub(window); price.Cmp(current) < 0; price = price.Add(size) {
		levels = append(levels, price)
	}
	return levels, nil
}

// ReflectPrice mirrors a buy price across the current market price: the sell
// target sits as far above the market as the buy sits below it.
func ReflectPrice(buy, current decimal.Decimal) decimal.Decimal {
	return buy.Add(current.Sub(buy).Mul(decimal.NewFromInt(2)))
}

// RoundPrice truncates a USD price to 2 decimal places. Truncation, not
// rounding to nearest, so an order never exceeds the configured notional.
func RoundPrice(price decimal.Decimal) decimal.Decimal {
	return price.RoundDown(PricePlaces)
}

// RoundQty truncates an asset quantity to 8 decimal places.
func RoundQty(qty decimal.Decimal) decimal.Decimal {
	return qty.RoundDown(QtyPlaces)
}

// QtyForNotional converts a USD notional at a limit price into a truncated
// asset quantity.
func QtyForNotional(notional, price decimal.Decimal) decimal.Decimal {
	if price.Cmp(decimal.Zero) <= 0 {
		return decimal.Zero
	}
	return RoundQty(notional.Div(price))
}
