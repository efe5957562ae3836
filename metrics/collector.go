package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the matching engine exposes.
var (
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds the lobengine metrics. Labels are kept to symbol (and,
// where useful, side/type/reason) to bound series cardinality.
type Collector struct {
	OrdersTotal    *prometheus.CounterVec
	OrdersActive   *prometheus.GaugeVec
	OrderLatency   *prometheus.HistogramVec
	OrdersRejected *prometheus.CounterVec

	MatchingLatency *prometheus.HistogramVec
	OrderbookDepth  *prometheus.GaugeVec
	SpreadBps       *prometheus.GaugeVec

	TradesTotal *prometheus.CounterVec
	TradeVolume *prometheus.CounterVec

	StopsTriggeredTotal *prometheus.CounterVec
	StopsParked         *prometheus.GaugeVec
}

// GetCollector returns the process-wide singleton collector.
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = newCollector()
	})
	return collector
}

func newCollector() *Collector {
	c := &Collector{}

	c.OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lobengine",
			Subsystem: "orders",
			Name:      "total",
			Help:      "Total number of orders submitted",
		},
		[]string{"symbol", "side", "type"},
	)

	c.OrdersActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lobengine",
			Subsystem: "orders",
			Name:      "active",
			Help:      "Number of resting or parked orders",
		},
		[]string{"symbol", "side"},
	)

	c.OrderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lobengine",
			Subsystem: "orders",
			Name:      "latency_us",
			Help:      "Order processing latency in microseconds",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"symbol", "type"},
	)

	c.OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lobengine",
			Subsystem: "orders",
			Name:      "rejected_total",
			Help:      "Total number of orders rejected before resting, by reason",
		},
		[]string{"symbol", "reason"},
	)

	c.MatchingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lobengine",
			Subsystem: "matching",
			Name:      "latency_us",
			Help:      "Matching walk latency in microseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"symbol"},
	)

	c.OrderbookDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lobengine",
			Subsystem: "orderbook",
			Name:      "depth",
			Help:      "Number of occupied price levels",
		},
		[]string{"symbol", "side"},
	)

	c.SpreadBps = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lobengine",
			Subsystem: "orderbook",
			Name:      "spread_bps",
			Help:      "Best bid/ask spread in basis points",
		},
		[]string{"symbol"},
	)

	c.TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lobengine",
			Subsystem: "trades",
			Name:      "total",
			Help:      "Total number of trades executed",
		},
		[]string{"symbol"},
	)

	c.TradeVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lobengine",
			Subsystem: "trades",
			Name:      "volume",
			Help:      "Total traded quantity",
		},
		[]string{"symbol"},
	)

	c.StopsTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lobengine",
			Subsystem: "stops",
			Name:      "triggered_total",
			Help:      "Total number of conditional orders triggered",
		},
		[]string{"symbol", "side"},
	)

	c.StopsParked = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lobengine",
			Subsystem: "stops",
			Name:      "parked",
			Help:      "Number of conditional orders currently parked",
		},
		[]string{"symbol", "side"},
	)

	c.registerAll()
	return c
}

func (c *Collector) registerAll() {
	prometheus.MustRegister(c.OrdersTotal)
	prometheus.MustRegister(c.OrdersActive)
	prometheus.MustRegister(c.OrderLatency)
	prometheus.MustRegister(c.OrdersRejected)

	prometheus.MustRegister(c.MatchingLatency)
	prometheus.MustRegister(c.OrderbookDepth)
	prometheus.MustRegister(c.SpreadBps)

	prometheus.MustRegister(c.TradesTotal)
	prometheus.MustRegister(c.TradeVolume)

	prometheus.MustRegister(c.StopsTriggeredTotal)
	prometheus.MustRegister(c.StopsParked)
}

// ============ Recording Helpers ============

// RecordOrder records an order submission.
func (c *Collector) RecordOrder(symbol, side, orderType string) {
	c.OrdersTotal.WithLabelValues(symbol, side, orderType).Inc()
}

// RecordOrderLatency records order processing latency.
func (c *Collector) RecordOrderLatency(symbol, orderType string, latencyUs float64) {
	c.OrderLatency.WithLabelValues(symbol, orderType).Observe(latencyUs)
}

// RecordOrderRejected records a pre-rest rejection (FOK infeasible, expired GTD, bad order).
func (c *Collector) RecordOrderRejected(symbol, reason string) {
	c.OrdersRejected.WithLabelValues(symbol, reason).Inc()
}

// RecordTrade records a trade fill.
func (c *Collector) RecordTrade(symbol string, volume float64) {
	c.TradesTotal.WithLabelValues(symbol).Inc()
	c.TradeVolume.WithLabelValues(symbol).Add(volume)
}

// RecordMatchingLatency records the latency of one matching walk.
func (c *Collector) RecordMatchingLatency(symbol string, latencyUs float64) {
	c.MatchingLatency.WithLabelValues(symbol).Observe(latencyUs)
}

// RecordStopTriggered records a conditional order firing.
func (c *Collector) RecordStopTriggered(symbol, side string) {
	c.StopsTriggeredTotal.WithLabelValues(symbol, side).Inc()
}

// SetDepth publishes the current number of occupied levels on one side.
func (c *Collector) SetDepth(symbol, side string, depth int) {
	c.OrderbookDepth.WithLabelValues(symbol, side).Set(float64(depth))
}

// SetSpread publishes the current bid/ask spread in basis points.
func (c *Collector) SetSpread(symbol string, bps float64) {
	c.SpreadBps.WithLabelValues(symbol).Set(bps)
}

// SetOrdersActive publishes the current number of live (resting or parked)
// orders on one side.
func (c *Collector) SetOrdersActive(symbol, side string, count int) {
	c.OrdersActive.WithLabelValues(symbol, side).Set(float64(count))
}

// SetStopsParked publishes the current number of parked conditional orders.
func (c *Collector) SetStopsParked(symbol, side string, count int) {
	c.StopsParked.WithLabelValues(symbol, side).Set(float64(count))
}

// ============ HTTP Handler ============

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for measuring latency.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ElapsedUs returns the elapsed time in microseconds.
func (t *Timer) ElapsedUs() float64 {
	return float64(time.Since(t.start).Nanoseconds()) / 1000.0
}
