// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package waitlist holds finished-match participants under cooldown and
// resubmits them into queues once the cooldown elapses. It is the sole writer
// of cooldown entries; requeues travel back through the action mailbox so the
// membership manager stays the only join path.
package waitlist

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	pie "github.com/elliotchance/pie/v2"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/config"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/mailbox"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/models"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/store"
)

type Scheduler struct {
	store store.RecordStore
	box   *mailbox.Mailbox
	rng   *rand.Rand
}

// NewScheduler builds the scheduler. The rand source drives the re-entry
// shuffle and is injected so tests can fix the seed.
func NewScheduler(recordStore store.RecordStore, box *mailbox.Mailbox, rng *rand.Rand) *Scheduler {
	return &Scheduler{store: recordStore, box: box, rng: rng}
}

// MatchFinished transitions the match to finished and places every
// participant under cooldown, remembering the queues they should re-enter:
// the match's source queue plus any queue sharing its cooldown group.
// A repeated finish for the same match is absorbed silently.
func (s *Scheduler) MatchFinished(rootScope *envelope.Scope, matchID string, outcome models.MatchOutcome, now time.Time, cfg config.Config) error {
	scope := rootScope.NewChildScope("Scheduler.MatchFinished")
	defer scope.Finish()

	if !outcome.Valid() {
		return models.ErrInvalidOutcome
	}

	// The finish transition and the cooldown batch are one failure unit. Were
	// the transition to commit alone, the retry of a partly-failed batch would
	// land on the duplicate-finish branch below and the participants would
	// never enter the cooldown pool.
	expiresAt := now.Add(cfg.CooldownDuration())
	err := s.store.Atomic(scope.Ctx, func(tx store.RecordStore) error {
		match, err := tx.FinishMatch(scope.Ctx, matchID, outcome, now)
		if err != nil {
			return err
		}

		targetQueues, err := s.cooldownTargets(scope, tx, match.QueueID)
		if err != nil {
			return err
		}

		for _, playerID := range match.Participants() {
			_, err := tx.InsertCooldown(scope.Ctx, models.CooldownEntry{
				PlayerID:  playerID,
				MatchID:   match.ID,
				QueueIDs:  targetQueues,
				ExpiresAt: expiresAt,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, models.ErrMatchAlreadyDone) {
		scope.Log.Infof("match %s already finished, ignoring duplicate result", matchID)
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return models.ErrMatchNotFound
	}
	if err != nil {
		return err
	}

	scope.Log.Infof("match %s finished outcome: %s participants on cooldown until %s", matchID, outcome, expiresAt.Format(time.RFC3339))
	return nil
}

// Tick requeues every expired cooldown entry. Entries are grouped by their
// target queues and shuffled within each group so re-entry order is not
// biased by finish order; back-to-back matches from one queue would otherwise
// keep reforming the same rosters.
func (s *Scheduler) Tick(rootScope *envelope.Scope, now time.Time) error {
	scope := rootScope.NewChildScope("Scheduler.Tick")
	defer scope.Finish()

	due, err := s.store.DueCooldowns(scope.Ctx, now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	groups := make(map[string][]models.CooldownEntry)
	for _, entry := range due {
		key := strings.Join(entry.QueueIDs, ",")
		groups[key] = append(groups[key], entry)
	}

	processed := make([]string, 0, len(due))
	for _, group := range groups {
		s.rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})

		for _, entry := range group {
			// No target queues left (all deleted since the match formed):
			// nothing to re-enter, the entry is spent.
			if len(entry.QueueIDs) == 0 {
				scope.Log.Infof("dropping cooldown entry for %s, its target queues no longer exist", entry.PlayerID)
				processed = append(processed, entry.ID)
				continue
			}

			// A player already back in a match is dropped, not retried.
			active, err := s.store.ActiveMatchForPlayer(scope.Ctx, entry.PlayerID)
			if err != nil {
				return err
			}
			if active == nil {
				s.box.Submit(models.NewRequeueAction(entry.PlayerID, entry.QueueIDs))
			} else {
				scope.Log.Infof("dropping cooldown entry for %s, already in match %s", entry.PlayerID, active.ID)
			}
			processed = append(processed, entry.ID)
		}
	}

	// Deleting after submission keeps at-least-once delivery: if the delete
	// fails the entries are resubmitted next tick, and joins are idempotent.
	if err := s.store.DeleteCooldowns(scope.Ctx, processed); err != nil {
		return err
	}

	scope.Log.Infof("requeued %d cooldown entries", len(processed))
	return nil
}

// cooldownTargets resolves the queues a participant re-enters: the source
// queue, widened to its cooldown group when one is configured.
func (s *Scheduler) cooldownTargets(scope *envelope.Scope, recordStore store.RecordStore, sourceQueueID string) ([]string, error) {
	sourceQueue, err := recordStore.GetQueue(scope.Ctx, sourceQueueID)
	if errors.Is(err, store.ErrNotFound) {
		// queue deleted after the match formed; requeue into nothing
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sourceQueue.CooldownGroup == "" {
		return []string{sourceQueue.ID}, nil
	}

	queues, err := recordStore.ListQueues(scope.Ctx)
	if err != nil {
		return nil, err
	}
	group := pie.Filter(queues, func(q models.Queue) bool {
		return q.CooldownGroup == sourceQueue.CooldownGroup
	})
	group = pie.SortUsing(group, func(a, b models.Queue) bool {
		return a.Ordinal < b.Ordinal
	})
	return pie.Map(group, func(q models.Queue) string { return q.ID }), nil
}
