package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-billing-api/internal/billing"
)

// MetricsService encapsulates Prometheus instrumentation for the billing
// service.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	chargeDuration  *prometheus.HistogramVec
	chargeTotal     *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	chargeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_charge_duration_seconds",
		Help:    "Duration of charge attempts from dispatch to resolution",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	chargeTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_charges_total",
		Help: "Total charge attempts by outcome",
	}, []string{"outcome"})

	registry.MustRegister(requestDuration, requestTotal, chargeDuration, chargeTotal)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		chargeDuration:  chargeDuration,
		chargeTotal:     chargeTotal,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one handled HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// ObserveCharge records the outcome of one charge attempt.
func (s *MetricsService) ObserveCharge(status billing.ChargeStatus, duration time.Duration) {
	labels := prometheus.Labels{"outcome": string(status)}
	s.chargeDuration.With(labels).Observe(duration.Seconds())
	s.chargeTotal.With(labels).Inc()
}
