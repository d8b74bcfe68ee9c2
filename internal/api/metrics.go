package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the token paths.
type Metrics struct {
	TokensIssued       *prometheus.CounterVec
	TokenVerifications *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

// NewMetrics registers the instruments on the given registerer. Tests pass
// their own registry so servers can be constructed repeatedly.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TokensIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_tokens_issued_total",
				Help: "Tokens minted at /oauth/token, by outcome",
			},
			[]string{"outcome"}, // issued, invalid_request, invalid_client
		),

		TokenVerifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_token_verifications_total",
				Help: "Token verifications, by authorizer and result",
			},
			[]string{"authorizer", "result"}, // result: ok or a reason enum
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

func (m *Metrics) recordIssued(outcome string) {
	m.TokensIssued.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordVerification(authorizer, result string) {
	m.TokenVerifications.WithLabelValues(authorizer, result).Inc()
}
