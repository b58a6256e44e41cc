// Package metrics registers the Prometheus instruments the trading loop
// updates, served at /metrics in Prometheus text exposition format.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridtrader_orders_placed_total",
			Help: "Limit orders placed, by side",
		},
		[]string{"side"},
	)

	fillsObserved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridtrader_fills_observed_total",
			Help: "Order fills observed by the polling loop, by side",
		},
		[]string{"side"},
	)

	cycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridtrader_cycle_errors_total",
			Help: "Trading cycle errors, by stage (price|place|poll)",
		},
		[]string{"stage"},
	)

	cyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridtrader_cycles_total",
			Help: "Trading cycles completed",
		},
	)

	lastPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridtrader_last_price_usd",
			Help: "Last observed ask price in USD",
		},
	)

	trackedBuys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridtrader_tracked_buys",
			Help: "Buy orders currently tracked for fill polling",
		},
	)
)

func init() {
	prometheus.MustRegister(ordersPlaced, fillsObserved, cycleErrors, cyclesTotal, lastPrice, trackedBuys)
}

func IncOrderPlaced(side string)  { ordersPlaced.WithLabelValues(side).Inc() }
func IncFillObserved(side string) { fillsObserved.WithLabelValues(side).Inc() }
func IncCycleError(stage string)  { cycleErrors.WithLabelValues(stage).Inc() }
func IncCycle()                   { cyclesTotal.Inc() }
func SetLastPrice(v float64)      { lastPrice.Set(v) }
func SetTrackedBuys(n int)        { trackedBuys.Set(float64(n)) }
