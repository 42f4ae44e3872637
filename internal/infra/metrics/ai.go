package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	enqueue(
		aiTokensIn,
		aiCallsLatencyMs,
		aiFailures,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"provider", "model", "success"},
	)

	aiFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_failures_total",
			Help: "Failed generation attempts per provider/model.",
		},
		[]string{"provider", "model"},
	)
)

// ObserveGeneration records one generation attempt. tokensIn may be 0
// when counting was unavailable.
func ObserveGeneration(provider, model string, tokensIn, latencyMs int, success bool) {
	aiTokensIn.WithLabelValues(provider, model).Add(float64(tokensIn))
	aiCallsLatencyMs.WithLabelValues(provider, model, strconv.FormatBool(success)).
		Observe(float64(latencyMs))
	if !success {
		aiFailures.WithLabelValues(provider, model).Inc()
	}
}
