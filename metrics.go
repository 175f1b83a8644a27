package fanout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by pools. Series are labelled by pool id.
// A nil *Metrics records nothing.
type Metrics struct {
	ItemsSent      *prometheus.CounterVec
	ItemsProcessed *prometheus.CounterVec
	WorkerFailures *prometheus.CounterVec
	WorkersActive  *prometheus.GaugeVec
	QueueDepth     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ItemsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_items_sent_total",
				Help: "Total number of items accepted by a pool",
			},
			[]string{"pool"},
		),
		ItemsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_items_processed_total",
				Help: "Total number of items forwarded by workers to their private stage",
			},
			[]string{"pool"},
		),
		WorkerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_worker_failures_total",
				Help: "Total number of workers terminated by a failure",
			},
			[]string{"pool", "phase"},
		),
		WorkersActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fanout_workers_active",
				Help: "Number of running workers",
			},
			[]string{"pool"},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fanout_queue_depth",
				Help: "Number of entries waiting in the shared queue",
			},
			[]string{"pool"},
		),
	}
}

func (m *Metrics) sent(pool string, depth int) {
	if m == nil {
		return
	}
	m.ItemsSent.WithLabelValues(pool).Inc()
	m.QueueDepth.WithLabelValues(pool).Set(float64(depth))
}

func (m *Metrics) processed(pool string, depth int) {
	if m == nil {
		return
	}
	m.ItemsProcessed.WithLabelValues(pool).Inc()
	m.QueueDepth.WithLabelValues(pool).Set(float64(depth))
}

func (m *Metrics) failed(pool string, phase Phase) {
	if m == nil {
		return
	}
	m.WorkerFailures.WithLabelValues(pool, string(phase)).Inc()
}

func (m *Metrics) workerStarted(pool string) {
	if m == nil {
		return
	}
	m.WorkersActive.WithLabelValues(pool).Inc()
}

func (m *Metrics) workerStopped(pool string) {
	if m == nil {
		return
	}
	m.WorkersActive.WithLabelValues(pool).Dec()
}
