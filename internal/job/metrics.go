package job

import (
	"time"

	"revenue-balance/internal/core"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the balance job metrics. A nil *Metrics records nothing.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	OrdersTotal        *prometheus.CounterVec
	SummaryTotals      *prometheus.GaugeVec
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics constructs the metrics and registers them with reg. A nil reg skips
// registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revbal_runs_total",
				Help: "Total balance job runs by status",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "revbal_run_duration_seconds",
			Help:    "Balance job run duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revbal_orders_total",
				Help: "Orders processed by stage and result",
			},
			[]string{"stage", "result"},
		),
		SummaryTotals: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "revbal_summary_totals",
				Help: "Latest summary totals by bucket",
			},
			[]string{"bucket"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revbal_notifications_total",
				Help: "Stage failure notifications by delivery result",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.RunsTotal,
			m.RunDuration,
			m.OrdersTotal,
			m.SummaryTotals,
			m.NotificationsTotal,
		)
	}
	return m
}

func (m *Metrics) observeRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}

func (m *Metrics) order(stage, result string) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(stage, result).Inc()
}

func (m *Metrics) summary(t core.SummaryTotals) {
	if m == nil {
		return
	}
	m.SummaryTotals.WithLabelValues("deferred").Set(t.Deferred.InexactFloat64())
	m.SummaryTotals.WithLabelValues("unearned").Set(t.Unearned.InexactFloat64())
	m.SummaryTotals.WithLabelValues("unbilled").Set(t.Unbilled.InexactFloat64())
	m.SummaryTotals.WithLabelValues("balance").Set(t.Balance.InexactFloat64())
}

func (m *Metrics) notification(result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(result).Inc()
}
