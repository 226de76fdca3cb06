// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type QueueMetrics interface {
	ObserveTickElapsedTimeMs(elapsedTime time.Duration)
	AddActionsDrained(count int)
	SetQueueOccupancy(queueName string, size int)
	AddMatchFormed(queueName string)
	AddRequeueResult(queueName string, succeeded bool)
}

func NewMetrics(registry *prometheus.Registry) QueueMetrics {
	return setupPrometheusMetrics(registry)
}

// NewNopMetrics returns a QueueMetrics that records nothing, for tests and
// callers that don't run a registry.
func NewNopMetrics() QueueMetrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) ObserveTickElapsedTimeMs(time.Duration)  {}
func (nopMetrics) AddActionsDrained(int)                   {}
func (nopMetrics) SetQueueOccupancy(string, int)           {}
func (nopMetrics) AddMatchFormed(string)                   {}
func (nopMetrics) AddRequeueResult(string, bool)           {}
