package inference

import "github.com/prometheus/client_golang/prometheus"

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lensd",
			Subsystem: "inference",
			Name:      "generations_total",
			Help:      "Generations by outcome (completed, failed, canceled)",
		},
		[]string{"kind", "outcome"},
	)

	tokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lensd",
			Subsystem: "inference",
			Name:      "tokens_generated_total",
			Help:      "Total response tokens generated",
		},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lensd",
			Subsystem: "inference",
			Name:      "generation_duration_seconds",
			Help:      "Duration of completed generations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	commitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lensd",
			Subsystem: "inference",
			Name:      "commits_total",
			Help:      "Grace-period commit decisions (ok, skipped, discarded, error)",
		},
		[]string{"result"},
	)

	modelSwitchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lensd",
			Subsystem: "inference",
			Name:      "model_switches_total",
			Help:      "Model switch results (applied, superseded, error)",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(generationsTotal, tokensTotal, generationDuration, commitsTotal, modelSwitchesTotal)
}
