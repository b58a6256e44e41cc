package strategy

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"gridtrader/internal/alert"
	"gridtrader/internal/core"
	"gridtrader/internal/grid"
	"gridtrader/internal/ledger"
	"gridtrader/internal/metrics"
	"gridtrader/internal/safety"
)

// OrderGateway is the slice of the exchange client the engine needs to place
// and track orders.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, order core.Order) (core.Order, error)
	GetOrder(ctx context.Context, orderID string) (core.Order, error)
	OpenOrders(ctx context.Context) ([]core.Order, error)
}

// MarketData supplies the reference price for ladder generation.
type MarketData interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// trackedBuy is a placed buy the engine is still polling for a fill.
type trackedBuy struct {
	orderID string
	price   decimal.Decimal
	qty     decimal.Decimal
}

// Engine maintains a ladder of resting buy orders below the market and
// converts each confirmed buy fill into a reflected sell order. All durable
// state lives in the ledger; the in-memory view is rebuilt from it plus a
// live open-orders query, so a restart resumes where the previous run left
// off.
type Engine struct {
	Symbol          string
	GridSize        decimal.Decimal
	USDPositionSize decimal.Decimal
	Window          decimal.Decimal
	PollInterval    time.Duration

	gateway OrderGateway
	market  MarketData
	ledger  *ledger.Ledger
	breaker *safety.Breaker
	alerter alert.Alerter

	tracked map[string]trackedBuy
	// terminal holds order ids that reached canceled/rejected/failed this
	// session; the ledger has no compensating record for those, so without
	// this set the same dead order would be re-polled every cycle.
	terminal map[string]struct{}
	loaded   bool
}

func NewEngine(symbol string, gridSize, usdPositionSize, window decimal.Decimal, pollInterval time.Duration, gateway OrderGateway, market MarketData, led *ledger.Ledger) *Engine {
	return &Engine{
		Symbol:          symbol,
		GridSize:        gridSize,
		USDPositionSize: usdPositionSize,
		Window:          window,
		PollInterval:    pollInterval,
		gateway:         gateway,
		market:          market,
		ledger:          led,
		tracked:         make(map[string]trackedBuy),
		terminal:        make(map[string]struct{}),
	}
}

func (e *Engine) SetBreaker(b *safety.Breaker) { e.breaker = b }
func (e *Engine) SetAlerter(a alert.Alerter)   { e.alerter = a }

// loadTracked rebuilds the polling set from the ledger: every placed buy
// without a matching filled record is still in flight.
func (e *Engine) loadTracked() error {
	placed, err := e.ledger.Load(ledger.BuyPlaced)
	if err != nil {
		return err
	}
	filled, err := e.ledger.OrderIDs(ledger.BuyFilled)
	if err != nil {
		return err
	}
	for _, rec := range placed {
		if _, done := filled[rec.OrderID]; done {
			continue
		}
		if _, dead := e.terminal[rec.OrderID]; dead {
			continue
		}
		e.tracked[rec.OrderID] = trackedBuy{orderID: rec.OrderID, price: rec.Price, qty: rec.Quantity}
	}
	e.loaded = true
	log.Printf("level=INFO event=tracked_buys_loaded symbol=%q count=%d", e.Symbol, len(e.tracked))
	return nil
}

// Run drives the polling loop until ctx is canceled. Cycle errors are logged
// and the loop continues; only ctx cancellation or a tripped circuit breaker
// stops it.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTimer(0)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := e.Cycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, safety.ErrCircuitOpen) {
				e.alertImportant("engine_halted", map[string]string{"err": err.Error()})
				return err
			}
			log.Printf("level=ERROR event=cycle_failed symbol=%q err=%q", e.Symbol, err.Error())
		}
		ticker.Reset(e.PollInterval)
	}
}

// Cycle runs one iteration: fetch the reference price, top up the buy
// ladder, then poll tracked buys and emit reflected sells for fills.
// A price fetch failure skips the whole cycle; placement and polling
// errors abort the remainder of the cycle but leave already-written
// ledger state intact.
func (e *Engine) Cycle(ctx context.Context) error {
	if !e.loaded {
		if err := e.loadTracked(); err != nil {
			return err
		}
	}

	price, err := e.market.CurrentPrice(ctx, e.Symbol)
	if err != nil {
		metrics.IncCycleError("price")
		log.Printf("level=WARN event=price_unavailable symbol=%q err=%q", e.Symbol, err.Error())
		return nil
	}
	// Gauges are float64; the lossy conversion is fine for observability.
	priceF, _ := price.Float64()
	metrics.SetLastPrice(priceF)

	if err := e.placeLadder(ctx, price); err != nil {
		metrics.IncCycleError("place")
		return err
	}
	if err := e.pollFills(ctx, price); err != nil {
		metrics.IncCycleError("poll")
		return err
	}

	metrics.IncCycle()
	metrics.SetTrackedBuys(len(e.tracked))
	return nil
}

// placeLadder places a buy at every ladder level not already occupied by a
// resting or in-flight buy.
func (e *Engine) placeLadder(ctx context.Context, price decimal.Decimal) error {
	levels, err := grid.Levels(price, e.GridSize, e.Window)
	if err != nil {
		return err
	}

	occupied, err := e.occupiedLevels(ctx)
	if err != nil {
		return err
	}

	for _, level := range levels {
		key := grid.RoundPrice(level).String()
		if _, taken := occupied[key]; taken {
			continue
		}
		if err := e.placeBuy(ctx, level); err != nil {
			return err
		}
		occupied[key] = struct{}{}
	}
	return nil
}

// occupiedLevels merges live open buy orders with in-flight tracked buys,
// keyed by rounded limit price. The union guards both windows: an order the
// exchange already shows as open, and one we placed last cycle that the
// open-orders listing has not caught up with yet.
func (e *Engine) occupiedLevels(ctx context.Context) (map[string]struct{}, error) {
	open, err := e.gateway.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	occupied := make(map[string]struct{}, len(open)+len(e.tracked))
	for _, ord := range open {
		if ord.Side != core.Buy {
			continue
		}
		occupied[grid.RoundPrice(ord.LimitPrice).String()] = struct{}{}
	}
	for _, buy := range e.tracked {
		occupied[grid.RoundPrice(buy.price).String()] = struct{}{}
	}
	return occupied, nil
}

func (e *Engine) placeBuy(ctx context.Context, level decimal.Decimal) error {
	limitPrice := grid.RoundPrice(level)
	qty := grid.QtyForNotional(e.USDPositionSize, limitPrice)
	if qty.Cmp(decimal.Zero) <= 0 {
		log.Printf("level=WARN event=buy_skipped symbol=%q price=%s reason=%q", e.Symbol, limitPrice, "zero_quantity")
		return nil
	}

	placed, err := e.gateway.PlaceOrder(ctx, core.Order{
		Symbol:      e.Symbol,
		Side:        core.Buy,
		Type:        core.Limit,
		LimitPrice:  limitPrice,
		QuoteAmount: e.USDPositionSize,
	})
	if trip := e.breaker.RecordPlace(err); trip != nil {
		return trip
	}
	if err != nil {
		log.Printf("level=ERROR event=buy_place_failed symbol=%q price=%s err=%q", e.Symbol, limitPrice, err.Error())
		e.alertImportant("order_place_failed", map[string]string{
			"side":  string(core.Buy),
			"price": limitPrice.String(),
			"err":   err.Error(),
		})
		return err
	}

	quote := e.USDPositionSize
	if err := e.ledger.Append(ledger.BuyPlaced, ledger.Record{
		Price:       limitPrice,
		Quantity:    qty,
		OrderID:     placed.ID,
		QuoteAmount: &quote,
	}); err != nil {
		// The order is live but unrecorded; surface loudly instead of
		// silently losing the fill-tracking entry.
		e.alertImportant("ledger_append_failed", map[string]string{
			"kind":     string(ledger.BuyPlaced),
			"order_id": placed.ID,
			"err":      err.Error(),
		})
		return err
	}

	e.tracked[placed.ID] = trackedBuy{orderID: placed.ID, price: limitPrice, qty: qty}
	metrics.IncOrderPlaced(string(core.Buy))
	log.Printf("level=INFO event=buy_placed symbol=%q order_id=%q price=%s quote_amount=%s qty=%s",
		e.Symbol, placed.ID, limitPrice, e.USDPositionSize, qty)
	return nil
}

// pollFills checks each tracked buy and, on a confirmed fill, places the
// reflected sell and records both sides in the ledger. The filled record is
// written last so a crash between the two appends re-emits the sell rather
// than losing it.
func (e *Engine) pollFills(ctx context.Context, price decimal.Decimal) error {
	for id, buy := range e.tracked {
		ord, err := e.gateway.GetOrder(ctx, id)
		if err != nil {
			if errors.Is(err, core.ErrOrderNotFound) {
				log.Printf("level=WARN event=tracked_buy_missing symbol=%q order_id=%q", e.Symbol, id)
				e.terminal[id] = struct{}{}
				delete(e.tracked, id)
				continue
			}
			return err
		}

		switch ord.State {
		case core.OrderFilled:
			placed, err := e.emitSell(ctx, buy, price)
			if err != nil {
				return err
			}
			if !placed {
				// Sell deferred; the buy stays tracked so the
				// reflection is re-attempted next cycle.
				continue
			}
			metrics.IncFillObserved(string(core.Buy))
			delete(e.tracked, id)
		case core.OrderCanceled, core.OrderRejected, core.OrderFailed:
			log.Printf("level=INFO event=tracked_buy_closed symbol=%q order_id=%q state=%q", e.Symbol, id, ord.State)
			e.terminal[id] = struct{}{}
			delete(e.tracked, id)
		}
	}
	return nil
}

// emitSell places the reflected sell for a filled buy and records both
// ledger sides. It reports whether a sell was actually placed: a deferral
// (market at or below the buy's cost) returns false with no error, and the
// caller must keep the buy tracked.
func (e *Engine) emitSell(ctx context.Context, buy trackedBuy, price decimal.Decimal) (bool, error) {
	sellPrice := grid.RoundPrice(grid.ReflectPrice(buy.price, price))
	if sellPrice.Cmp(buy.price) <= 0 {
		// Market dropped below the buy since placement; reflecting would
		// sell at or under cost. Hold the inventory and keep polling.
		log.Printf("level=WARN event=sell_deferred symbol=%q buy_order_id=%q buy_price=%s current=%s",
			e.Symbol, buy.orderID, buy.price, price)
		return false, nil
	}

	placed, err := e.gateway.PlaceOrder(ctx, core.Order{
		Symbol:     e.Symbol,
		Side:       core.Sell,
		Type:       core.Limit,
		LimitPrice: sellPrice,
		AssetQty:   buy.qty,
	})
	if trip := e.breaker.RecordPlace(err); trip != nil {
		return false, trip
	}
	if err != nil {
		log.Printf("level=ERROR event=sell_place_failed symbol=%q buy_order_id=%q price=%s err=%q",
			e.Symbol, buy.orderID, sellPrice, err.Error())
		e.alertImportant("order_place_failed", map[string]string{
			"side":         string(core.Sell),
			"buy_order_id": buy.orderID,
			"price":        sellPrice.String(),
			"err":          err.Error(),
		})
		return false, err
	}

	if err := e.ledger.Append(ledger.SellPlaced, ledger.Record{
		Price:    sellPrice,
		Quantity: buy.qty,
		OrderID:  placed.ID,
	}); err != nil {
		e.alertImportant("ledger_append_failed", map[string]string{
			"kind":     string(ledger.SellPlaced),
			"order_id": placed.ID,
			"err":      err.Error(),
		})
		return false, err
	}
	if err := e.ledger.Append(ledger.BuyFilled, ledger.Record{
		Price:    buy.price,
		Quantity: buy.qty,
		OrderID:  buy.orderID,
	}); err != nil {
		return false, err
	}

	metrics.IncOrderPlaced(string(core.Sell))
	log.Printf("level=INFO event=sell_placed symbol=%q order_id=%q buy_order_id=%q price=%s qty=%s",
		e.Symbol, placed.ID, buy.orderID, sellPrice, buy.qty)
	e.alertImportant("buy_filled_sell_placed", map[string]string{
		"buy_order_id":  buy.orderID,
		"sell_order_id": placed.ID,
		"buy_price":     buy.price.String(),
		"sell_price":    sellPrice.String(),
		"qty":           buy.qty.String(),
	})
	return true, nil
}

// TrackedCount reports how many buys are being polled for fills.
func (e *Engine) TrackedCount() int {
	return len(e.tracked)
}

func (e *Engine) alertImportant(event string, fields map[string]string) {
	if e.alerter == nil {
		return
	}
	e.alerter.Important(event, fields)
}
