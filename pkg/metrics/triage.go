package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TriageMetrics records per-turn outcomes of the triage engine.
// All methods are safe on a nil receiver.
type TriageMetrics struct {
	Intents                 *prometheus.CounterVec
	Emergencies             prometheus.Counter
	InsufficientInformation prometheus.Counter
	ClassifierFallbacks     *prometheus.CounterVec
	TopScore                prometheus.Histogram
	ActiveSessions          prometheus.Gauge
}

func newTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	t := &TriageMetrics{
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Processed turns by classified intent",
		}, []string{"intent"}),
		Emergencies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emergencies_total",
			Help:      "Turns answered with the urgent-care directive",
		}),
		InsufficientInformation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_information_total",
			Help:      "Symptom turns where no condition cleared the threshold",
		}),
		ClassifierFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_fallbacks_total",
			Help:      "External classifier calls that fell back to rules",
		}, []string{"reason"}),
		TopScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_top_score",
			Help:      "Similarity of the best ranked condition",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Conversation contexts currently held in memory",
		}),
	}
	reg.MustRegister(t.Intents, t.Emergencies, t.InsufficientInformation,
		t.ClassifierFallbacks, t.TopScore, t.ActiveSessions)
	return t
}

// ObserveTurn records the outcome of one processed message.
func (t *TriageMetrics) ObserveTurn(intent string, urgent, insufficient bool, topScore float64, hasMatches bool) {
	if t == nil {
		return
	}
	t.Intents.WithLabelValues(intent).Inc()
	if urgent {
		t.Emergencies.Inc()
	}
	if insufficient {
		t.InsufficientInformation.Inc()
	}
	if hasMatches {
		t.TopScore.Observe(topScore)
	}
}

// ObserveClassifierFallback counts an external classifier result that was discarded.
func (t *TriageMetrics) ObserveClassifierFallback(reason string) {
	if t == nil {
		return
	}
	t.ClassifierFallbacks.WithLabelValues(reason).Inc()
}

// SetActiveSessions publishes the current size of the conversation store.
func (t *TriageMetrics) SetActiveSessions(n int) {
	if t == nil {
		return
	}
	t.ActiveSessions.Set(float64(n))
}
