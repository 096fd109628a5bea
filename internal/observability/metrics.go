package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "cycles_total", Help: "Dispatch cycles run, by request kind"},
		[]string{"kind"},
	)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "notifications_total", Help: "Push notifications handed to the gateway"},
		[]string{"kind"},
	)
	DeliveryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "delivery_failures_total", Help: "Push deliveries that failed or had no token"},
		[]string{"kind"},
	)
	NoCapacityTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "no_capacity_total", Help: "Requests ended terminally with no partner"},
		[]string{"kind", "reason"},
	)
	PartnersSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "partners_swept_total", Help: "Stale partner/user records forced offline by the watchdog"},
	)
	WebhookFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "webhook_failures_total", Help: "Partner-onboarded webhook deliveries that failed"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
