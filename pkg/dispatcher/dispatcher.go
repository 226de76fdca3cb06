// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package dispatcher runs the single-writer loop of the engine. Exactly one
// dispatcher goroutine ever mutates queue, membership, match or cooldown
// state; everything else only submits actions to the mailbox. Ticks never
// overlap: one loop runs them sequentially, and a slow tick simply absorbs
// the ticker signals it missed.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/config"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/mailbox"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/models"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/queue"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/waitlist"
)

// maxConsecutiveFailures is how many failed ticks in a row the dispatcher
// tolerates before treating the store as permanently unreachable and halting.
const maxConsecutiveFailures = 5

type Dispatcher struct {
	provider config.Provider
	box      *mailbox.Mailbox
	manager  *queue.Manager
	waitlist *waitlist.Scheduler
	notifier queue.Notifier
	metrics  metrics.QueueMetrics

	now      func() time.Time
	failures int
}

func New(provider config.Provider, box *mailbox.Mailbox, manager *queue.Manager, scheduler *waitlist.Scheduler, notifier queue.Notifier, queueMetrics metrics.QueueMetrics) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		box:      box,
		manager:  manager,
		waitlist: scheduler,
		notifier: notifier,
		metrics:  queueMetrics,
		now:      time.Now,
	}
}

// SetClock replaces the wall clock. Tests use it to advance time past
// cooldown windows deterministically.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Run ticks until the context is cancelled or the store is declared
// unreachable. The returned error is the liveness failure to surface.
func (d *Dispatcher) Run(ctx context.Context) error {
	interval := d.provider.Snapshot().TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.RunOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// RunOnce performs one tick: snapshot config, drain the mailbox, apply each
// action fully before the next, then expire cooldowns. A store failure
// requeues the unprocessed tail of the drain for the next tick.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	started := time.Now()
	scope := envelope.NewRootScope(ctx, "Dispatcher.Tick", "")
	defer scope.Finish()
	defer func() {
		d.metrics.ObserveTickElapsedTimeMs(time.Since(started))
	}()

	cfg := d.provider.Snapshot()

	drained := d.box.DrainAll()
	d.metrics.AddActionsDrained(len(drained))

	for i, action := range drained {
		if err := d.apply(scope, action, cfg); err != nil {
			// keep ordering: the failed action and everything behind it go
			// back to the front of the mailbox
			d.box.Requeue(drained[i:])
			return d.recordFailure(scope, err)
		}
	}

	if err := d.waitlist.Tick(scope, d.now()); err != nil {
		// unprocessed entries stay in the store and are retried next tick
		return d.recordFailure(scope, err)
	}

	d.failures = 0
	return nil
}

func (d *Dispatcher) recordFailure(scope *envelope.Scope, err error) error {
	d.failures++
	scope.Log.WithError(err).Warnf("tick failed (%d consecutive)", d.failures)
	if d.failures >= maxConsecutiveFailures {
		return fmt.Errorf("record store unreachable after %d consecutive failed ticks: %w", d.failures, err)
	}
	return nil
}

func (d *Dispatcher) apply(scope *envelope.Scope, action models.Action, cfg config.Config) error {
	switch action.Type {
	case models.ActionJoin:
		results, err := d.manager.Join(scope, action.PlayerID, action.QueueIDs, d.now(), cfg)
		if err != nil {
			return err
		}
		logRejections(scope, action.PlayerID, results)
		return nil

	case models.ActionLeave:
		return d.manager.Leave(scope, action.PlayerID, action.QueueIDs)

	case models.ActionMatchFinished:
		err := d.waitlist.MatchFinished(scope, action.MatchID, action.Outcome, d.now(), cfg)
		if isRejection(err) {
			// intent refers to a missing match or carries a bad outcome;
			// retrying cannot help, so absorb it here
			scope.Log.WithError(err).Warnf("dropping match finished intent for %s", action.MatchID)
			return nil
		}
		return err

	case models.ActionRequeue:
		results, err := d.manager.Join(scope, action.PlayerID, action.QueueIDs, d.now(), cfg)
		if err != nil {
			return err
		}
		for _, result := range results {
			d.metrics.AddRequeueResult(result.QueueName, result.Succeeded())
			d.notifier.RequeueAttempted(models.RequeueAttempted{
				PlayerID:  action.PlayerID,
				QueueID:   result.QueueID,
				Succeeded: result.Succeeded(),
			})
		}
		return nil

	default:
		scope.Log.Warnf("dropping action with unknown type %q", action.Type)
		return nil
	}
}

func isRejection(err error) bool {
	return errors.Is(err, models.ErrInvalidOutcome) || errors.Is(err, models.ErrMatchNotFound)
}

func logRejections(scope *envelope.Scope, playerID string, results []queue.JoinResult) {
	for _, result := range results {
		if result.Status == queue.JoinStatusRejected {
			scope.Log.Infof("join rejected player: %s queue: %s code: %d", playerID, result.QueueID, models.RejectionCode(result.Reason))
		}
	}
}
