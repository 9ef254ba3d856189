package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workOrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cmms_work_orders_created_total",
		Help: "Work orders created, by priority.",
	}, []string{"priority"})

	workOrdersCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmms_work_orders_completed_total",
		Help: "Work orders completed.",
	})

	workOrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmms_work_orders_cancelled_total",
		Help: "Work orders cancelled.",
	})

	partsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmms_parts_consumed_total",
		Help: "Part units consumed on work orders.",
	})

	chatRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmms_chat_requests_total",
		Help: "Chat assistant requests.",
	})

	chatFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmms_chat_fallbacks_total",
		Help: "Chat requests answered with the canned fallback reply.",
	})
)
