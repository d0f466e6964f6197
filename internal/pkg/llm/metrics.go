package llm

import (
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talelingo_llm_requests_total",
		Help: "Total number of model calls by provider and status.",
	}, []string{"provider", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "talelingo_llm_request_duration_seconds",
		Help:    "Duration of model calls.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 180, 300},
	}, []string{"provider"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talelingo_llm_tokens_total",
		Help: "Tokens reported by the provider.",
	}, []string{"provider", "kind"})
)

func observeRequest(provider string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	requestsTotal.WithLabelValues(provider, status).Inc()
	requestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

func observeUsage(provider string, msg *schema.Message) {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return
	}
	usage := msg.ResponseMeta.Usage
	tokensTotal.WithLabelValues(provider, "prompt").Add(float64(usage.PromptTokens))
	tokensTotal.WithLabelValues(provider, "completion").Add(float64(usage.CompletionTokens))
}
