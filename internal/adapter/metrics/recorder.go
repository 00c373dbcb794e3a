package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/goods-issue/internal/core/domain"
)

const namespace = "goods_issue"

// Recorder exports reconciliation outcomes as Prometheus series.
type Recorder struct {
	lines        *prometheus.CounterVec
	shortfall    *prometheus.CounterVec
	belowMinimum *prometheus.CounterVec
	failures     *prometheus.CounterVec
	retries      prometheus.Counter
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Requirement lines handled, by outcome.",
		}, []string{"material", "direction", "outcome"}),
		shortfall: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shortfall_units_total",
			Help:      "Units issued beyond the quantity on hand.",
		}, []string{"material"}),
		belowMinimum: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "below_minimum_total",
			Help:      "Stock records left under their minimum after an issue.",
		}, []string{"material"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Material passes rolled back.",
		}, []string{"material", "direction"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Orders retried after a stock version conflict.",
		}),
	}
	reg.MustRegister(r.lines, r.shortfall, r.belowMinimum, r.failures, r.retries)
	return r
}

func (r *Recorder) ObserveSummary(s domain.Summary) {
	material, direction := string(s.Material), string(s.Direction)
	r.lines.WithLabelValues(material, direction, "processed").Add(float64(s.Processed))
	r.lines.WithLabelValues(material, direction, "skipped").Add(float64(s.Skipped))
	r.lines.WithLabelValues(material, direction, "error").Add(float64(len(s.Errors)))

	for _, sf := range s.Shortfalls {
		r.shortfall.WithLabelValues(material).Add(float64(sf.Missing))
	}
	r.belowMinimum.WithLabelValues(material).Add(float64(len(s.BelowMinimum)))
}

func (r *Recorder) ObserveFailure(material domain.Material, direction domain.Direction) {
	r.failures.WithLabelValues(string(material), string(direction)).Inc()
}

func (r *Recorder) ObserveConflictRetry() {
	r.retries.Inc()
}
