package proxyserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Requests     *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	ReplyLatency prometheus.Histogram
	ReplyErrors  prometheus.Counter
	Pending      prometheus.Gauge
	Sessions     prometheus.Counter
	Swept        prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aisam_proxy_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "aisam_proxy_request_duration_seconds",
				Help: "HTTP request duration in seconds",
			},
			[]string{"method", "endpoint"},
		),
		ReplyLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "aisam_proxy_reply_seconds",
				Help:    "Time to produce an assistant reply",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 9),
			},
		),
		ReplyErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "aisam_proxy_reply_errors_total",
				Help: "Assistant replies that failed",
			},
		),
		Pending: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "aisam_proxy_pending_replies",
				Help: "Replies currently being produced",
			},
		),
		Sessions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "aisam_proxy_sessions_started_total",
				Help: "Tokens handed out",
			},
		),
		Swept: f.NewCounter(
			prometheus.CounterOpts{
				Name: "aisam_proxy_sessions_swept_total",
				Help: "Idle sessions removed",
			},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// middleware records request counts and durations per route template.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		m.Requests.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		m.Duration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}
