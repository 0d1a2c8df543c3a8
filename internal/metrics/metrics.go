package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "negotiation_http_request_duration_seconds",
		Help:    "HTTP request latency by method, path and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	DomainEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "negotiation_domain_events_published_total",
		Help: "Domain events published to kafka by type.",
	}, []string{"type"})

	RealtimeEventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "negotiation_realtime_events_delivered_total",
		Help: "Realtime events delivered to joined connections.",
	})

	RealtimeSubscribersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "negotiation_realtime_subscribers_dropped_total",
		Help: "Subscribers dropped for not keeping up with their room queue.",
	})
)

// Middleware records request latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
