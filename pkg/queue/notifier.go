// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package queue

import (
	"github.com/AccelByte/extend-queue-matchmaker/pkg/models"
)

// Notifier receives the outbound events of the engine. Implementations must
// not block: notification latency must never stall action processing, so the
// buffered implementation drops on overflow rather than waiting.
type Notifier interface {
	QueueStatusChanged(ev models.QueueStatusChanged)
	MatchFormed(ev models.MatchFormed)
	RequeueAttempted(ev models.RequeueAttempted)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) QueueStatusChanged(models.QueueStatusChanged) {}
func (NopNotifier) MatchFormed(models.MatchFormed)               {}
func (NopNotifier) RequeueAttempted(models.RequeueAttempted)     {}

// BufferedNotifier posts events to a channel consumed by the notification/UI
// layer. Sends never block; events beyond the buffer are dropped and counted.
type BufferedNotifier struct {
	events  chan interface{}
	dropped int
}

func NewBufferedNotifier(buffer int) *BufferedNotifier {
	if buffer <= 0 {
		buffer = 256
	}
	return &BufferedNotifier{events: make(chan interface{}, buffer)}
}

// Events is the consumer side. Exactly one consumer should range over it.
func (n *BufferedNotifier) Events() <-chan interface{} {
	return n.events
}

func (n *BufferedNotifier) publish(ev interface{}) {
	select {
	case n.events <- ev:
	default:
		n.dropped++
	}
}

func (n *BufferedNotifier) QueueStatusChanged(ev models.QueueStatusChanged) { n.publish(ev) }
func (n *BufferedNotifier) MatchFormed(ev models.MatchFormed)               { n.publish(ev) }
func (n *BufferedNotifier) RequeueAttempted(ev models.RequeueAttempted)     { n.publish(ev) }
