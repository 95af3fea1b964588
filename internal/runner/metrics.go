package runner

import "github.com/prometheus/client_golang/prometheus"

var (
	metricLoopIterations    = prometheus.NewCounter(prometheus.CounterOpts{Name: "trader_loop_iterations_total", Help: "Trading loop iterations executed"})
	metricPriceFetchFailed  = prometheus.NewCounter(prometheus.CounterOpts{Name: "trader_price_fetch_failures_total", Help: "Board price fetches that failed"})
	metricOrdersAttempted   = prometheus.NewCounter(prometheus.CounterOpts{Name: "trader_orders_attempted_total", Help: "Closing orders handed to the broker"})
	metricOrdersPlaced      = prometheus.NewCounter(prometheus.CounterOpts{Name: "trader_orders_placed_total", Help: "Closing orders the broker accepted"})
	metricOrdersFailed      = prometheus.NewCounter(prometheus.CounterOpts{Name: "trader_orders_failed_total", Help: "Closing orders the broker rejected or that errored"})
	metricLedgerWriteFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "trader_ledger_write_failures_total", Help: "Ledger writes that failed and were swallowed"})
)

func init() {
	prometheus.MustRegister(
		metricLoopIterations, metricPriceFetchFailed,
		metricOrdersAttempted, metricOrdersPlaced, metricOrdersFailed,
		metricLedgerWriteFailed,
	)
}
