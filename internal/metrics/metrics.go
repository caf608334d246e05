package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ChatRequests   *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	GuardRejects   prometheus.Counter
	PlanFallbacks  prometheus.Counter
	PersistFailure prometheus.Counter
	HTTPRequests   *prometheus.CounterVec
	Panics         prometheus.Counter
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			ChatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seoinsight",
				Name:      "chat_requests_total",
				Help:      "Chat questions answered, by provider and outcome",
			}, []string{"provider", "outcome"}),
			StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "seoinsight",
				Name:      "pipeline_stage_seconds",
				Help:      "Time spent in each pipeline stage",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			}, []string{"stage"}),
			GuardRejects: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "seoinsight",
				Name:      "sql_guard_rejections_total",
				Help:      "Generated statements rejected by the SQL guard",
			}),
			PlanFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "seoinsight",
				Name:      "plan_parse_fallbacks_total",
				Help:      "Model replies that could not be parsed into a plan",
			}),
			PersistFailure: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "seoinsight",
				Name:      "conversation_persist_failures_total",
				Help:      "Conversation log writes that failed",
			}),
			HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seoinsight",
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			}, []string{"method", "route", "status"}),
			Panics: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "seoinsight",
				Name:      "http_panics_recovered_total",
				Help:      "Handler panics turned into 500 responses",
			}),
		}
		prometheus.MustRegister(
			global.ChatRequests,
			global.StageDuration,
			global.GuardRejects,
			global.PlanFallbacks,
			global.PersistFailure,
			global.HTTPRequests,
			global.Panics,
		)
	})
	return global
}
