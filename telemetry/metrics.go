package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StkPushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stk_pushes_total",
		Help: "STK push requests by outcome",
	}, []string{"outcome"})

	CallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stk_callbacks_total",
		Help: "Result callbacks received from the gateway",
	})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stk_gateway_latency_seconds",
		Help:    "Round-trip latency of outbound Daraja calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"call"})
)
