package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ethioshop"

// Metrics holds the application counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ordersCreated   prometheus.Counter
	ordersRejected  *prometheus.CounterVec
	ordersExpired   prometheus.Counter
	paymentsStarted *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "created_total",
			Help: "Orders committed by the coordinator.",
		}),
		ordersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "rejected_total",
			Help: "Order creations rejected, by reason.",
		}, []string{"reason"}),
		ordersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "expired_total",
			Help: "Pending orders cancelled by the expiry sweeper.",
		}),
		paymentsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payments", Name: "initiated_total",
			Help: "Payment initiations, by provider and result.",
		}, []string{"provider", "result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payments", Name: "webhook_events_total",
			Help: "Inbound webhook deliveries, by provider and result.",
		}, []string{"provider", "result"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payments", Name: "reconciliations_total",
			Help: "Payment state changes applied, by source and final status.",
		}, []string{"source", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ordersCreated, m.ordersRejected, m.ordersExpired,
			m.paymentsStarted, m.webhookEvents, m.reconciliations,
			m.httpRequests, m.httpDuration,
		)
	}
	return m
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) OrderRejected(reason string) {
	if m == nil {
		return
	}
	m.ordersRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) OrdersExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ordersExpired.Add(float64(n))
}

func (m *Metrics) PaymentInitiated(provider, result string) {
	if m == nil {
		return
	}
	m.paymentsStarted.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) WebhookEvent(provider, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) Reconciled(source, status string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(source, status).Inc()
}

func (m *Metrics) HTTPRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}
