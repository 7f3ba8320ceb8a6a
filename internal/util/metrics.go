package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrderStatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Total number of order status transitions",
	}, []string{"from", "to"})

	OrderTransitionsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Total number of rejected order status transitions",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	OrdersRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_refunded_total",
		Help: "Total number of refunded orders",
	})

	RefundAmountCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refund_amount_cents_total",
		Help: "Total refunded amount in cents",
	})

	RefundFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_failures_total",
		Help: "Total number of failed refund attempts",
	}, []string{"reason"})

	DiscountCodesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discount_codes_created_total",
		Help: "Total number of discount codes created",
	})

	ReferralCreditsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referral_credits_applied_total",
		Help: "Total number of successful credit applications",
	})

	ReferralCreditsInsufficientTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referral_credits_insufficient_total",
		Help: "Total number of credit applications rejected for insufficient balance",
	})

	ShippingLabelsPurchasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipping_labels_purchased_total",
		Help: "Total number of shipping labels purchased",
	}, []string{"carrier"})

	ShippingRateRequestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shipping_rate_request_latency_seconds",
		Help:    "Latency of carrier rate requests",
		Buckets: prometheus.DefBuckets,
	})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total number of transactional emails sent",
	}, []string{"kind"})

	EmailSendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "email_send_failures_total",
		Help: "Total number of failed email sends",
	})

	PaymentProviderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_provider_latency_seconds",
		Help:    "Latency of payment provider calls",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	RateLimitedRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Total number of requests rejected by the rate limiter",
	})
)
