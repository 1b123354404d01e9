package optimizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments grid searches. A nil *Metrics records nothing.
type Metrics struct {
	pointsTotal    *prometheus.CounterVec
	pointDuration  prometheus.Histogram
	searchDuration *prometheus.HistogramVec
	bestScore      *prometheus.GaugeVec
	inFlight       prometheus.Gauge
}

// NewMetrics registers the optimizer metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		pointsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clmm",
			Subsystem: "optimizer",
			Name:      "grid_points_total",
			Help:      "Grid points evaluated, by outcome",
		}, []string{"outcome"}),
		pointDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clmm",
			Subsystem: "optimizer",
			Name:      "grid_point_duration_seconds",
			Help:      "Wall time of one grid point simulation",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		searchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clmm",
			Subsystem: "optimizer",
			Name:      "search_duration_seconds",
			Help:      "Wall time of a full grid search",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"objective"}),
		bestScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "clmm",
			Subsystem: "optimizer",
			Name:      "best_score",
			Help:      "Score of the best grid point of the last search",
		}, []string{"objective"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "clmm",
			Subsystem: "optimizer",
			Name:      "grid_points_in_flight",
			Help:      "Grid points currently being simulated",
		}),
	}
}

func (m *Metrics) pointStarted() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) pointFinished(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.pointsTotal.WithLabelValues(outcome).Inc()
	m.pointDuration.Observe(seconds)
}

func (m *Metrics) searchFinished(objective ObjectiveKind, seconds float64, best *Evaluation) {
	if m == nil {
		return
	}
	m.searchDuration.WithLabelValues(string(objective)).Observe(seconds)
	if best != nil && best.Defined {
		m.bestScore.WithLabelValues(string(objective)).Set(best.Score.InexactFloat64())
	}
}
