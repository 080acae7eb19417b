package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// QuestionInteractions counts recorded views and skips.
	QuestionInteractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "question_interactions_total",
			Help: "Question interactions applied to the counters, by action",
		},
		[]string{"action"},
	)

	// InteractionAuditFailures counts audit records that could not be stored.
	InteractionAuditFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "question_interaction_audit_failures_total",
			Help: "Interaction audit records dropped after a storage error",
		},
	)

	// ReviewChanges counts review submissions and deletions.
	ReviewChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "category_review_changes_total",
			Help: "Category reviews added or removed",
		},
		[]string{"op"},
	)

	// AnalyticsReports counts analytics reads by scope and skip-rate query mode.
	AnalyticsReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_reports_total",
			Help: "Analytics reports served",
		},
		[]string{"scope", "skip_rate_query"},
	)
)

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
