// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package queue owns the authoritative mutation logic for queue membership:
// joins, leaves, full-queue detection and the pop that turns a full queue into
// a match. All mutating methods are invoked from the dispatcher context only.
package queue

import (
	"errors"
	"time"

	pie "github.com/elliotchance/pie/v2"
	gocache "github.com/patrickmn/go-cache"
	"gopkg.in/typ.v4/slices"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/balance"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/config"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/models"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/rating"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/store"
)

// JoinStatus classifies the per-queue result of a join intent.
type JoinStatus string

const (
	JoinStatusJoined        JoinStatus = "joined"
	JoinStatusAlreadyMember JoinStatus = "alreadyMember"
	JoinStatusRejected      JoinStatus = "rejected"
)

// JoinResult is the typed per-queue outcome returned to the caller layer.
// Reason is set only for rejections.
type JoinResult struct {
	QueueID   string
	QueueName string
	Status    JoinStatus
	Reason    error
	// MatchID is set when this join filled the queue and popped it.
	MatchID string
}

// Succeeded reports whether the player ended up waiting in (or matched from)
// the queue. A duplicate join counts as success: the intent is satisfied.
func (r JoinResult) Succeeded() bool {
	return r.Status != JoinStatusRejected
}

type Manager struct {
	store       store.RecordStore
	source      rating.Source
	strategy    balance.Strategy
	notifier    Notifier
	metrics     metrics.QueueMetrics
	statusCache *gocache.Cache
}

func NewManager(recordStore store.RecordStore, source rating.Source, strategy balance.Strategy, notifier Notifier, queueMetrics metrics.QueueMetrics) *Manager {
	return &Manager{
		store:       recordStore,
		source:      source,
		strategy:    strategy,
		notifier:    notifier,
		metrics:     queueMetrics,
		statusCache: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

// Join applies a join intent for every target queue. Empty queueIDs expands
// to all unlocked, non-isolated queues ordered by ordinal. A non-nil error is
// a store failure and means the intent should be retried; per-queue
// rejections are reported in the results, not as errors.
func (m *Manager) Join(rootScope *envelope.Scope, playerID string, queueIDs []string, joinedAt time.Time, cfg config.Config) ([]JoinResult, error) {
	scope := rootScope.NewChildScope("Manager.Join")
	defer scope.Finish()

	queueIDs, err := m.expandDefaultQueues(scope, queueIDs)
	if err != nil {
		return nil, err
	}

	// A player may wait in many queues at once but never while in a match.
	active, err := m.store.ActiveMatchForPlayer(scope.Ctx, playerID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		results := make([]JoinResult, 0, len(queueIDs))
		for _, queueID := range queueIDs {
			results = append(results, JoinResult{QueueID: queueID, Status: JoinStatusRejected, Reason: models.ErrPlayerInActiveMatch})
		}
		return results, nil
	}

	results := make([]JoinResult, 0, len(queueIDs))
	for _, queueID := range queueIDs {
		result, err := m.joinOne(scope, playerID, queueID, joinedAt)
		if err != nil {
			return nil, err
		}
		results = append(results, result)

		// A pop may have claimed this player for a match; further joins in
		// the same intent must observe the exclusivity invariant.
		if result.MatchID != "" {
			for _, remaining := range queueIDs[len(results):] {
				results = append(results, JoinResult{QueueID: remaining, Status: JoinStatusRejected, Reason: models.ErrPlayerInActiveMatch})
			}
			break
		}
	}
	return results, nil
}

func (m *Manager) joinOne(scope *envelope.Scope, playerID, queueID string, joinedAt time.Time) (JoinResult, error) {
	q, err := m.store.GetQueue(scope.Ctx, queueID)
	if errors.Is(err, store.ErrNotFound) {
		return JoinResult{QueueID: queueID, Status: JoinStatusRejected, Reason: models.ErrQueueNotFound}, nil
	}
	if err != nil {
		return JoinResult{}, err
	}
	if q.Locked {
		return JoinResult{QueueID: queueID, QueueName: q.Name, Status: JoinStatusRejected, Reason: models.ErrQueueLocked}, nil
	}

	_, err = m.store.InsertMembership(scope.Ctx, models.QueueMembership{
		QueueID:  queueID,
		PlayerID: playerID,
		JoinedAt: joinedAt,
	})
	if errors.Is(err, store.ErrDuplicateMembership) {
		// idempotent re-submission, already satisfied
		return JoinResult{QueueID: queueID, QueueName: q.Name, Status: JoinStatusAlreadyMember}, nil
	}
	if err != nil {
		return JoinResult{}, err
	}

	// Full detection always re-reads committed store state, never a cached count.
	members, err := m.store.ListMemberships(scope.Ctx, queueID)
	if err != nil {
		return JoinResult{}, err
	}
	m.emitStatus(scope, q, members)

	result := JoinResult{QueueID: queueID, QueueName: q.Name, Status: JoinStatusJoined}
	// Over target counts as full too: an admin may shrink TargetSize under
	// the current occupancy and the queue must still pop.
	if len(members) >= q.TargetSize {
		match, err := m.popQueue(scope, q, members)
		if err != nil {
			return JoinResult{}, err
		}
		// With an over-full queue the pop takes the longest-waiting players,
		// which may not include the one who just joined.
		if match.HasParticipant(playerID) {
			result.MatchID = match.ID
		}
	}
	return result, nil
}

// popQueue forms a match from a full queue and clears every participant from
// every queue they were waiting in, as one atomic unit.
func (m *Manager) popQueue(rootScope *envelope.Scope, q models.Queue, members []models.QueueMembership) (models.Match, error) {
	scope := rootScope.NewChildScope("Manager.popQueue")
	defer scope.Finish()
	scope.SetAttributes(envelope.QueueNameTag, q.Name)

	members = pie.SortUsing(members, func(a, b models.QueueMembership) bool {
		return a.JoinedAt.Before(b.JoinedAt)
	})
	if len(members) > q.TargetSize {
		// longest-waiting players go first, the rest keep waiting
		members = members[:q.TargetSize]
	}
	players := pie.Map(members, func(member models.QueueMembership) string {
		return member.PlayerID
	})

	split, err := m.strategy.Split(scope, players, m.source)
	if err != nil {
		return models.Match{}, err
	}

	// Collect the sibling queues participants were waiting in, for the
	// status events after the clear.
	affected := make(map[string]struct{})
	for _, playerID := range players {
		memberships, err := m.store.ListMembershipsByPlayer(scope.Ctx, playerID)
		if err != nil {
			return models.Match{}, err
		}
		for _, membership := range memberships {
			if membership.QueueID != q.ID {
				affected[membership.QueueID] = struct{}{}
			}
		}
	}

	var match models.Match
	err = m.store.Atomic(scope.Ctx, func(tx store.RecordStore) error {
		match, err = tx.CreateMatch(scope.Ctx, models.Match{
			QueueID:          q.ID,
			Roster0:          split.Roster0,
			Roster1:          split.Roster1,
			PredictedWinProb: split.WinProb,
			Status:           models.MatchStatusActive,
			CreatedAt:        time.Now(),
		})
		if err != nil {
			return err
		}
		for _, playerID := range players {
			if err := tx.DeleteMembershipsByPlayer(scope.Ctx, playerID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// a failed clear fails the whole pop, no match event is emitted
		return models.Match{}, err
	}

	scope.SetAttributes(envelope.MatchRostersTag, append(append([]string{}, split.Roster0...), split.Roster1...))
	scope.Log.Infof("match formed id: %s queue: %s winProb: %.4f", match.ID, q.Name, split.WinProb)

	m.metrics.AddMatchFormed(q.Name)
	m.notifier.MatchFormed(models.MatchFormed{
		MatchID:                 match.ID,
		QueueID:                 q.ID,
		Roster0:                 match.Roster0,
		Roster1:                 match.Roster1,
		PredictedWinProbRoster0: match.PredictedWinProb,
	})

	// Re-read rather than assume empty: an over-full pop leaves members behind.
	if err := m.refreshStatus(scope, q.ID); err != nil {
		return models.Match{}, err
	}
	for queueID := range affected {
		if err := m.refreshStatus(scope, queueID); err != nil {
			return models.Match{}, err
		}
	}
	return match, nil
}

// Leave deletes the player's memberships in the target queues. Idempotent:
// leaving a queue the player is not in is a no-op.
func (m *Manager) Leave(rootScope *envelope.Scope, playerID string, queueIDs []string) error {
	scope := rootScope.NewChildScope("Manager.Leave")
	defer scope.Finish()

	queueIDs, err := m.expandDefaultQueues(scope, queueIDs)
	if err != nil {
		return err
	}

	for _, queueID := range queueIDs {
		if err := m.store.DeleteMembership(scope.Ctx, queueID, playerID); err != nil {
			return err
		}
		if err := m.refreshStatus(scope, queueID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return nil
}

// CreateQueue registers a new queue. The configured name prefix is applied to
// the display name at creation time.
func (m *Manager) CreateQueue(rootScope *envelope.Scope, q models.Queue, cfg config.Config) (models.Queue, error) {
	scope := rootScope.NewChildScope("Manager.CreateQueue")
	defer scope.Finish()

	if err := q.Validate(); err != nil {
		return models.Queue{}, err
	}
	if cfg.QueueNamePrefix != "" {
		q.Name = cfg.QueueNamePrefix + q.Name
	}
	created, err := m.store.CreateQueue(scope.Ctx, q)
	if err != nil {
		return models.Queue{}, err
	}
	scope.Log.Infof("queue created id: %s name: %s target size: %d", created.ID, created.Name, created.TargetSize)
	return created, nil
}

func (m *Manager) UpdateQueue(rootScope *envelope.Scope, q models.Queue) error {
	scope := rootScope.NewChildScope("Manager.UpdateQueue")
	defer scope.Finish()

	if err := q.Validate(); err != nil {
		return err
	}
	err := m.store.UpdateQueue(scope.Ctx, q)
	if errors.Is(err, store.ErrNotFound) {
		return models.ErrQueueNotFound
	}
	if err != nil {
		return err
	}
	m.statusCache.Delete(q.ID)

	// Shrinking TargetSize can make the queue pop-ready with no further join
	// arriving, so full detection runs here as well.
	members, err := m.store.ListMemberships(scope.Ctx, q.ID)
	if err != nil {
		return err
	}
	if len(members) >= q.TargetSize {
		if _, err := m.popQueue(scope, q, members); err != nil {
			return err
		}
	}
	return nil
}

// DeleteQueue removes a queue. Rejected while a match sourced from it is
// still active.
func (m *Manager) DeleteQueue(rootScope *envelope.Scope, queueID string) error {
	scope := rootScope.NewChildScope("Manager.DeleteQueue")
	defer scope.Finish()

	hasActive, err := m.store.HasActiveMatchForQueue(scope.Ctx, queueID)
	if err != nil {
		return err
	}
	if hasActive {
		return models.ErrQueueHasActiveMatch
	}

	members, err := m.store.ListMemberships(scope.Ctx, queueID)
	if err != nil {
		return err
	}
	for _, member := range members {
		if err := m.store.DeleteMembership(scope.Ctx, queueID, member.PlayerID); err != nil {
			return err
		}
	}

	err = m.store.DeleteQueue(scope.Ctx, queueID)
	if errors.Is(err, store.ErrNotFound) {
		return models.ErrQueueNotFound
	}
	if err != nil {
		return err
	}
	m.statusCache.Delete(queueID)
	return nil
}

// Status is the read path for non-dispatcher contexts. Snapshots are cached
// briefly so status displays don't hammer the store.
func (m *Manager) Status(rootScope *envelope.Scope, queueID string, cfg config.Config) (models.QueueStatusChanged, error) {
	scope := rootScope.NewChildScope("Manager.Status")
	defer scope.Finish()

	if cached, ok := m.statusCache.Get(queueID); ok {
		return cached.(models.QueueStatusChanged), nil
	}

	q, err := m.store.GetQueue(scope.Ctx, queueID)
	if errors.Is(err, store.ErrNotFound) {
		return models.QueueStatusChanged{}, models.ErrQueueNotFound
	}
	if err != nil {
		return models.QueueStatusChanged{}, err
	}
	members, err := m.store.ListMemberships(scope.Ctx, queueID)
	if err != nil {
		return models.QueueStatusChanged{}, err
	}

	status := buildStatus(q, members)
	m.statusCache.Set(queueID, status, cfg.StatusCacheTTL())
	return status, nil
}

// expandDefaultQueues resolves the empty-queueIDs shorthand against fresh
// store state: every unlocked, non-isolated queue, by ordinal.
func (m *Manager) expandDefaultQueues(scope *envelope.Scope, queueIDs []string) ([]string, error) {
	if len(queueIDs) > 0 {
		return queueIDs, nil
	}

	queues, err := m.store.ListQueues(scope.Ctx)
	if err != nil {
		return nil, err
	}
	queues = slices.Filter(queues, func(q models.Queue) bool {
		return !q.Locked && !q.Isolated
	})
	queues = pie.SortUsing(queues, func(a, b models.Queue) bool {
		return a.Ordinal < b.Ordinal
	})
	return pie.Map(queues, func(q models.Queue) string { return q.ID }), nil
}

func buildStatus(q models.Queue, members []models.QueueMembership) models.QueueStatusChanged {
	members = pie.SortUsing(members, func(a, b models.QueueMembership) bool {
		return a.JoinedAt.Before(b.JoinedAt)
	})
	return models.QueueStatusChanged{
		QueueID:     q.ID,
		QueueName:   q.Name,
		CurrentSize: len(members),
		TargetSize:  q.TargetSize,
		MemberNames: pie.Map(members, func(member models.QueueMembership) string { return member.PlayerID }),
	}
}

func (m *Manager) emitStatus(scope *envelope.Scope, q models.Queue, members []models.QueueMembership) {
	status := buildStatus(q, members)
	m.statusCache.Delete(q.ID)
	m.metrics.SetQueueOccupancy(q.Name, status.CurrentSize)
	m.notifier.QueueStatusChanged(status)
}

func (m *Manager) refreshStatus(scope *envelope.Scope, queueID string) error {
	q, err := m.store.GetQueue(scope.Ctx, queueID)
	if err != nil {
		return err
	}
	members, err := m.store.ListMemberships(scope.Ctx, queueID)
	if err != nil {
		return err
	}
	m.emitStatus(scope, q, members)
	return nil
}
