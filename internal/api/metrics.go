package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seantiz/agentflow/internal/model"
)

const unmatched = "unmatched"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentflow_http_requests_total",
			Help: "HTTP requests by route, framework and status class.",
		},
		[]string{"method", "route", "framework", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentflow_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: []float64{.005, .025, .1, .5, 1, 5, 15, 60},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentflow_http_requests_in_flight",
			Help: "HTTP requests currently being served, including open event streams.",
		},
	)

	eventStreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentflow_event_streams_active",
			Help: "Open step event streams.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpRequestsInFlight, eventStreamsActive)
}

// instrument logs every request and records it in the HTTP metrics. Routes
// are labelled by chi pattern and frameworks only when registered, so label
// cardinality stays bounded.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		ft := s.frameworkLabel(r)

		httpRequestsTotal.WithLabelValues(r.Method, route, string(ft), statusClass(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"framework", string(ft),
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// frameworkLabel returns the request's framework if it is registered.
func (s *Server) frameworkLabel(r *http.Request) model.FrameworkType {
	ft := frameworkParam(r)
	if ft == "" {
		return ""
	}
	for _, known := range s.service.GetSupportedFrameworks() {
		if known == ft {
			return ft
		}
	}
	return unmatched
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

// routePattern extracts the matched chi route pattern, falling back to "unmatched".
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatched
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
