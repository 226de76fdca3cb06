// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type prometheusMetrics struct {
	tickElapsedTime prometheus.Histogram
	actionsDrained  prometheus.Counter
	queueOccupancy  prometheus.GaugeVec
	matchesFormed   prometheus.CounterVec
	requeueResults  prometheus.CounterVec
}

func setupPrometheusMetrics(registry *prometheus.Registry) prometheusMetrics {
	factory := promauto.With(registry)

	//nolint:promlinter
	tickElapsedTime := factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ab_qmm_dispatcher_tick_elapsed_time_ms",
			Help:    "A histogram of dispatcher tick elapsed time in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		})
	actionsDrained := factory.NewCounter(
		prometheus.CounterOpts{
			Name: "ab_qmm_actions_drained_total",
			Help: "Number of actions drained from the mailbox",
		})
	queueOccupancy := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ab_qmm_queue_occupancy",
			Help: "Current number of members waiting per queue",
		}, []string{"queue"})
	matchesFormed := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_qmm_matches_formed_total",
			Help: "Number of matches formed per queue",
		}, []string{"queue"})
	requeueResults := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_qmm_requeue_results_total",
			Help: "Number of cooldown requeue attempts per queue and result",
		}, []string{"queue", "succeeded"})

	return prometheusMetrics{
		tickElapsedTime: tickElapsedTime,
		actionsDrained:  actionsDrained,
		queueOccupancy:  *queueOccupancy,
		matchesFormed:   *matchesFormed,
		requeueResults:  *requeueResults,
	}
}

func (metrics prometheusMetrics) ObserveTickElapsedTimeMs(elapsedTime time.Duration) {
	metrics.tickElapsedTime.Observe(float64(elapsedTime.Milliseconds()))
}

func (metrics prometheusMetrics) AddActionsDrained(count int) {
	metrics.actionsDrained.Add(float64(count))
}

func (metrics prometheusMetrics) SetQueueOccupancy(queueName string, size int) {
	metrics.queueOccupancy.With(prometheus.Labels{"queue": queueName}).Set(float64(size))
}

func (metrics prometheusMetrics) AddMatchFormed(queueName string) {
	metrics.matchesFormed.With(prometheus.Labels{"queue": queueName}).Add(1)
}

func (metrics prometheusMetrics) AddRequeueResult(queueName string, succeeded bool) {
	metrics.requeueResults.With(prometheus.Labels{"queue": queueName, "succeeded": strconv.FormatBool(succeeded)}).Add(1)
}
