package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsInitiatedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bundles",
			Name:      "payments_initiated_total",
			Help:      "Total number of payment initiation attempts.",
		},
		[]string{"outcome"}, // accepted, rejected, gateway_failed
	)

	callbacksProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bundles",
			Name:      "payment_callbacks_processed_total",
			Help:      "Total number of provider callbacks processed.",
		},
		[]string{"result"}, // completed, failed, duplicate, unmatched
	)

	gatewaySubmitDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bundles",
			Name:      "gateway_submit_duration_seconds",
			Help:      "Duration of outbound STK push submissions.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)
