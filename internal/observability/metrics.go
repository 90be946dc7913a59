package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report experiment activity.
type Metrics struct {
	completions   *prometheus.CounterVec
	tokens        *prometheus.CounterVec
	unitDuration  *prometheus.HistogramVec
	unitFailures  *prometheus.CounterVec
	scoreOutcomes *prometheus.CounterVec
	unitsActive   prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the package-level metrics instance registered
// with the global Prometheus registry. The collectors are created only
// once to avoid duplicate registration panics when runners are
// instantiated multiple times.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided
// registerer. Supply a fresh registry when unique metric names are
// required (for example in tests). Registration errors other than
// AlreadyRegistered panic, surfacing configuration bugs early.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	completions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cbtlab",
			Subsystem: "llm",
			Name:      "completions_total",
			Help:      "Total completion requests per model and status.",
		},
		[]string{"model", "status"},
	)
	tokens := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cbtlab",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total tokens used per model and direction.",
		},
		[]string{"model", "direction"},
	)
	unitDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cbtlab",
			Subsystem: "experiment",
			Name:      "unit_duration_seconds",
			Help:      "Duration of one (model, task) unit per condition.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"condition", "status"},
	)
	unitFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cbtlab",
			Subsystem: "experiment",
			Name:      "unit_failures_total",
			Help:      "Units that failed and were dropped from the document.",
		},
		[]string{"reason"},
	)
	scoreOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cbtlab",
			Subsystem: "judge",
			Name:      "score_outcomes_total",
			Help:      "Score records per judge and parse outcome.",
		},
		[]string{"judge", "outcome"},
	)
	unitsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cbtlab",
			Subsystem: "experiment",
			Name:      "units_active",
			Help:      "Units currently being executed.",
		},
	)

	collectors := []prometheus.Collector{completions, tokens, unitDuration, unitFailures, scoreOutcomes, unitsActive}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch target := collector.(type) {
				case *prometheus.HistogramVec:
					unitDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case *prometheus.CounterVec:
					switch target { //nolint:exhaustive
					case completions:
						completions = already.ExistingCollector.(*prometheus.CounterVec)
					case tokens:
						tokens = already.ExistingCollector.(*prometheus.CounterVec)
					case unitFailures:
						unitFailures = already.ExistingCollector.(*prometheus.CounterVec)
					case scoreOutcomes:
						scoreOutcomes = already.ExistingCollector.(*prometheus.CounterVec)
					}
				case prometheus.Gauge:
					unitsActive = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		completions:   completions,
		tokens:        tokens,
		unitDuration:  unitDuration,
		unitFailures:  unitFailures,
		scoreOutcomes: scoreOutcomes,
		unitsActive:   unitsActive,
	}
}

// IncCompletion records one completion request outcome.
func (m *Metrics) IncCompletion(model, status string) {
	if m == nil || m.completions == nil {
		return
	}
	m.completions.WithLabelValues(model, status).Inc()
}

// AddTokens records token usage for one completion.
func (m *Metrics) AddTokens(model string, promptTokens, completionTokens int) {
	if m == nil || m.tokens == nil {
		return
	}
	m.tokens.WithLabelValues(model, "input").Add(float64(promptTokens))
	m.tokens.WithLabelValues(model, "output").Add(float64(completionTokens))
}

// ObserveUnitDuration records the time one unit spent in a condition.
func (m *Metrics) ObserveUnitDuration(condition, status string, duration time.Duration) {
	if m == nil || m.unitDuration == nil {
		return
	}
	m.unitDuration.WithLabelValues(condition, status).Observe(duration.Seconds())
}

// IncUnitFailure counts a dropped unit.
func (m *Metrics) IncUnitFailure(reason string) {
	if m == nil || m.unitFailures == nil {
		return
	}
	m.unitFailures.WithLabelValues(reason).Inc()
}

// IncScoreOutcome counts one score record's parse outcome.
func (m *Metrics) IncScoreOutcome(judge, outcome string) {
	if m == nil || m.scoreOutcomes == nil {
		return
	}
	m.scoreOutcomes.WithLabelValues(judge, outcome).Inc()
}

// IncActiveUnits marks a unit as started.
func (m *Metrics) IncActiveUnits() {
	if m == nil || m.unitsActive == nil {
		return
	}
	m.unitsActive.Inc()
}

// DecActiveUnits marks a unit as finished.
func (m *Metrics) DecActiveUnits() {
	if m == nil || m.unitsActive == nil {
		return
	}
	m.unitsActive.Dec()
}
