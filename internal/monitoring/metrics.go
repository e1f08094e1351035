package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CyclesTotal        prometheus.Counter
	ChecksTotal        *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
	VersionsDetected   *prometheus.CounterVec
	AssetsTotal        *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	CheckDuration      *prometheus.HistogramVec
}

// NewMetrics registers the metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CyclesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "monitor_cycles_total",
			Help: "The total number of completed poll cycles",
		}),
		ChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_target_checks_total",
			Help: "Target checks by outcome",
		}, []string{"host", "outcome"}), // outcome: new, unchanged, failed
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"stage", "kind"}),
		VersionsDetected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_versions_detected_total",
			Help: "New asset bundle versions detected",
		}, []string{"host"}),
		AssetsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_assets_archived_total",
			Help: "Asset downloads by status",
		}, []string{"status"}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_notifications_total",
			Help: "Notifications by status",
		}, []string{"status"}),
		CheckDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "monitor_check_duration_seconds",
			Help:    "Duration of a single target check",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"host"}),
	}
}

func (m *Metrics) IncCycles() {
	m.CyclesTotal.Inc()
}

func (m *Metrics) IncChecks(host, outcome string) {
	m.ChecksTotal.WithLabelValues(host, outcome).Inc()
}

func (m *Metrics) IncErrors(stage, kind string) {
	m.ErrorsTotal.WithLabelValues(stage, kind).Inc()
}

func (m *Metrics) IncVersionsDetected(host string) {
	m.VersionsDetected.WithLabelValues(host).Inc()
}

func (m *Metrics) IncAssets(status string) {
	m.AssetsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncNotifications(status string) {
	m.NotificationsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveCheck(host string, seconds float64) {
	m.CheckDuration.WithLabelValues(host).Observe(seconds)
}
