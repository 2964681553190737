package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StoreLatency records message store operation latency.
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_store_latency_seconds",
			Help:    "Message store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// DeliveryEmits counts per-connection emits by event and result.
	DeliveryEmits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivery_emits_total",
			Help: "Live events emitted to connections",
		},
		[]string{"event", "result"},
	)

	// DirectoryLookups counts profile lookups by result.
	DirectoryLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_directory_lookups_total",
			Help: "Profile directory lookups",
		},
		[]string{"result"},
	)

	// PushPublished counts push notifications by result.
	PushPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_push_published_total",
			Help: "Push notifications handed to the notifier",
		},
		[]string{"result"},
	)

	// BusDropped counts events dropped because a subscriber fell behind.
	BusDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_bus_dropped_total",
			Help: "Bus events dropped on full subscriber buffers",
		},
		[]string{"kind"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// Presence is the view of the connection registry exported as gauges.
type Presence interface {
	Len() int
	Identities() int
}

var (
	presenceMu  sync.RWMutex
	presenceSrc Presence
)

func init() {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "relay_connections_active",
		Help: "Live connections currently registered",
	}, func() float64 {
		if p := currentPresence(); p != nil {
			return float64(p.Len())
		}
		return 0
	})
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "relay_identities_online",
		Help: "Identities with at least one live connection",
	}, func() float64 {
		if p := currentPresence(); p != nil {
			return float64(p.Identities())
		}
		return 0
	})
}

// ObservePresence points the connection gauges at p.
func ObservePresence(p Presence) {
	presenceMu.Lock()
	presenceSrc = p
	presenceMu.Unlock()
}

func currentPresence() Presence {
	presenceMu.RLock()
	defer presenceMu.RUnlock()
	return presenceSrc
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records HTTP request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		httpRequests.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
