package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

type OrderType string

type OrderState string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

const (
	Limit  OrderType = "limit"
	Market OrderType = "market"
)

const (
	OrderOpen     OrderState = "open"
	OrderFilled   OrderState = "filled"
	OrderCanceled OrderState = "canceled"
	OrderRejected OrderState = "rejected"
	OrderFailed   OrderState = "failed"
)

// Order is the exchange's view of an order. The engine never mutates one
// directly; it requests creation or cancellation and observes state changes
// by polling.
type Order struct {
	ID          string
	ClientID    string
	Symbol      string
	Side        Side
	Type        OrderType
	State       OrderState
	LimitPrice  decimal.Decimal
	AssetQty    decimal.Decimal
	QuoteAmount decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Terminal reports whether the order can no longer fill.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderFilled, OrderCanceled, OrderRejected, OrderFailed:
		return true
	}
	return false
}
