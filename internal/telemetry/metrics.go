package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds every Prometheus series the engine exports.
type Metrics struct {
	registry *prometheus.Registry

	BarsReceived  prometheus.Counter
	DuplicateBars prometheus.Counter
	SignalsTotal  *prometheus.CounterVec

	RiskRejections *prometheus.CounterVec
	OrdersTotal    *prometheus.CounterVec

	RealizedPnL   prometheus.Gauge
	OpenPositions prometheus.Gauge
}

// NewMetrics builds a registry with all engine metrics registered.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		BarsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reversion_bars_received_total",
			Help: "Bars consumed from the transport queue",
		}),
		DuplicateBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reversion_duplicate_bars_total",
			Help: "Redelivered bars dropped by the idempotency filter",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reversion_signals_total",
			Help: "Trade signals emitted by the strategy evaluator",
		}, []string{"side"}),

		RiskRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reversion_risk_rejections_total",
			Help: "Orders rejected by each risk gate",
		}, []string{"gate"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reversion_orders_total",
			Help: "Order lifecycle outcomes",
		}, []string{"result"}),

		RealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reversion_realized_pnl",
			Help: "Realized PnL for the current trading day",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reversion_open_positions",
			Help: "Number of open positions in the ledger",
		}),
	}

	m.registry.MustRegister(
		m.BarsReceived, m.DuplicateBars, m.SignalsTotal,
		m.RiskRejections, m.OrdersTotal,
		m.RealizedPnL, m.OpenPositions,
	)
	return m
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GaugeValue reads the current value of a registered gauge by name; used by
// the snapshot endpoint. Returns false for unknown names.
func (m *Metrics) GaugeValue(name string) (float64, bool) {
	families, err := m.registry.Gather()
	if err != nil {
		return 0, false
	}
	for _, family := range families {
		if family.GetName() != name || family.GetType() != dto.MetricType_GAUGE {
			continue
		}
		for _, metric := range family.GetMetric() {
			return metric.GetGauge().GetValue(), true
		}
	}
	return 0, false
}
