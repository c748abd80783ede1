package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrdersCreated counts stops created, by venue.
var OrdersCreated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "trailex_orders_created_total",
		Help: "Total number of trailing stops created",
	},
	[]string{"venue"},
)

// OrdersCancelled counts stops cancelled before execution, by venue.
var OrdersCancelled = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "trailex_orders_cancelled_total",
		Help: "Total number of trailing stops cancelled",
	},
	[]string{"venue"},
)

// TriggersFired counts trigger evaluations that decided to fire.
var TriggersFired = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "trailex_triggers_fired_total",
		Help: "Total number of trailing stops whose trigger fired",
	},
	[]string{"venue"},
)

// ExecutionsSucceeded counts settled executions, by venue.
var ExecutionsSucceeded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "trailex_executions_succeeded_total",
		Help: "Total number of stop executions that settled",
	},
	[]string{"venue"},
)

// ExecutionsFailed counts isolated settlement failures, by venue and reason.
var ExecutionsFailed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "trailex_executions_failed_total",
		Help: "Total number of stop executions that failed and were left for retry",
	},
	[]string{"venue", "reason"},
)

// BatchDuration records the latency of one batch-processor pass.
var BatchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "trailex_batch_pass_duration_seconds",
		Help:    "Latency in seconds of one price-update batch pass",
		Buckets: prometheus.DefBuckets,
	},
)

// ActiveOrders tracks pool membership per venue.
var ActiveOrders = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "trailex_active_orders",
		Help: "Number of orders currently in each venue pool",
	},
	[]string{"venue"},
)

func init() {
	prometheus.MustRegister(OrdersCreated, OrdersCancelled, TriggersFired)
	prometheus.MustRegister(ExecutionsSucceeded, ExecutionsFailed)
	prometheus.MustRegister(BatchDuration, ActiveOrders)
}
