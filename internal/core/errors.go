package core

import "errors"

var (
	// ErrUnauthorized indicates the exchange rejected the request signature or key.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrOrderNotFound indicates the order does not exist on the exchange.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderRejected indicates the order was rejected by the exchange.
	ErrOrderRejected = errors.New("order rejected")
	// ErrDuplicateOrder indicates the client order id has already been accepted before.
	ErrDuplicateOrder = errors.New("duplicate order")
	// ErrPriceUnavailable indicates the best bid/ask response carried no usable price.
	ErrPriceUnavailable = errors.New("price unavailable")
)
