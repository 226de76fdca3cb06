// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package memstore is the in-process implementation of store.RecordStore.
// Writes serialize on one mutex; reads take a shared lock so status readers
// never contend with each other. Records are deep-copied on the way out so
// callers cannot alias dispatcher-owned state.
package memstore

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/mitchellh/copystructure"
	"github.com/oklog/ulid/v2"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/models"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/store"
)

type Store struct {
	mu sync.RWMutex

	queues      map[string]models.Queue
	memberships map[string]models.QueueMembership
	memberIndex map[string]string // queueID + "/" + playerID -> membership id
	matches     map[string]models.Match
	cooldowns   map[string]models.CooldownEntry

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

func New() *Store {
	return &Store{
		queues:      make(map[string]models.Queue),
		memberships: make(map[string]models.QueueMembership),
		memberIndex: make(map[string]string),
		matches:     make(map[string]models.Match),
		cooldowns:   make(map[string]models.CooldownEntry),
		entropy:     ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (s *Store) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func memberKey(queueID, playerID string) string {
	return queueID + "/" + playerID
}

func deepCopy[T any](v T) T {
	copied, err := copystructure.Copy(v)
	if err != nil {
		// only reachable for unsupported kinds, which our records never hold
		return v
	}
	return copied.(T)
}

// --- queues ---

func (s *Store) CreateQueue(_ context.Context, q models.Queue) (models.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createQueueLocked(q)
}

func (s *Store) createQueueLocked(q models.Queue) (models.Queue, error) {
	if q.ID == "" {
		q.ID = s.newID()
	}
	s.queues[q.ID] = q
	return deepCopy(q), nil
}

func (s *Store) UpdateQueue(_ context.Context, q models.Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateQueueLocked(q)
}

func (s *Store) updateQueueLocked(q models.Queue) error {
	if _, ok := s.queues[q.ID]; !ok {
		return store.ErrNotFound
	}
	s.queues[q.ID] = q
	return nil
}

func (s *Store) DeleteQueue(_ context.Context, queueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteQueueLocked(queueID)
}

func (s *Store) deleteQueueLocked(queueID string) error {
	if _, ok := s.queues[queueID]; !ok {
		return store.ErrNotFound
	}
	delete(s.queues, queueID)
	return nil
}

func (s *Store) GetQueue(_ context.Context, queueID string) (models.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getQueueLocked(queueID)
}

func (s *Store) getQueueLocked(queueID string) (models.Queue, error) {
	q, ok := s.queues[queueID]
	if !ok {
		return models.Queue{}, store.ErrNotFound
	}
	return deepCopy(q), nil
}

func (s *Store) ListQueues(_ context.Context) ([]models.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listQueuesLocked()
}

func (s *Store) listQueuesLocked() ([]models.Queue, error) {
	queues := make([]models.Queue, 0, len(s.queues))
	for _, q := range s.queues {
		queues = append(queues, deepCopy(q))
	}
	return queues, nil
}

// --- memberships ---

func (s *Store) InsertMembership(_ context.Context, m models.QueueMembership) (models.QueueMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertMembershipLocked(m)
}

func (s *Store) insertMembershipLocked(m models.QueueMembership) (models.QueueMembership, error) {
	key := memberKey(m.QueueID, m.PlayerID)
	if _, ok := s.memberIndex[key]; ok {
		return models.QueueMembership{}, store.ErrDuplicateMembership
	}
	if m.ID == "" {
		m.ID = s.newID()
	}
	s.memberships[m.ID] = m
	s.memberIndex[key] = m.ID
	return deepCopy(m), nil
}

func (s *Store) ListMemberships(_ context.Context, queueID string) ([]models.QueueMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listMembershipsLocked(queueID)
}

func (s *Store) listMembershipsLocked(queueID string) ([]models.QueueMembership, error) {
	members := make([]models.QueueMembership, 0)
	for _, m := range s.memberships {
		if m.QueueID == queueID {
			members = append(members, deepCopy(m))
		}
	}
	return members, nil
}

func (s *Store) ListMembershipsByPlayer(_ context.Context, playerID string) ([]models.QueueMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listMembershipsByPlayerLocked(playerID)
}

func (s *Store) listMembershipsByPlayerLocked(playerID string) ([]models.QueueMembership, error) {
	members := make([]models.QueueMembership, 0)
	for _, m := range s.memberships {
		if m.PlayerID == playerID {
			members = append(members, deepCopy(m))
		}
	}
	return members, nil
}

func (s *Store) DeleteMembership(_ context.Context, queueID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteMembershipLocked(queueID, playerID)
}

func (s *Store) deleteMembershipLocked(queueID, playerID string) error {
	key := memberKey(queueID, playerID)
	id, ok := s.memberIndex[key]
	if !ok {
		return nil
	}
	delete(s.memberships, id)
	delete(s.memberIndex, key)
	return nil
}

func (s *Store) DeleteMembershipsByPlayer(_ context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteMembershipsByPlayerLocked(playerID)
}

func (s *Store) deleteMembershipsByPlayerLocked(playerID string) error {
	for id, m := range s.memberships {
		if m.PlayerID == playerID {
			delete(s.memberships, id)
			delete(s.memberIndex, memberKey(m.QueueID, m.PlayerID))
		}
	}
	return nil
}

// --- matches ---

func (s *Store) CreateMatch(_ context.Context, m models.Match) (models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createMatchLocked(m)
}

func (s *Store) createMatchLocked(m models.Match) (models.Match, error) {
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.Status == "" {
		m.Status = models.MatchStatusActive
	}
	s.matches[m.ID] = deepCopy(m)
	return deepCopy(m), nil
}

func (s *Store) GetMatch(_ context.Context, matchID string) (models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getMatchLocked(matchID)
}

func (s *Store) getMatchLocked(matchID string) (models.Match, error) {
	m, ok := s.matches[matchID]
	if !ok {
		return models.Match{}, store.ErrNotFound
	}
	return deepCopy(m), nil
}

func (s *Store) FinishMatch(_ context.Context, matchID string, outcome models.MatchOutcome, finishedAt time.Time) (models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishMatchLocked(matchID, outcome, finishedAt)
}

func (s *Store) finishMatchLocked(matchID string, outcome models.MatchOutcome, finishedAt time.Time) (models.Match, error) {
	m, ok := s.matches[matchID]
	if !ok {
		return models.Match{}, store.ErrNotFound
	}
	if m.Status == models.MatchStatusFinished {
		return models.Match{}, models.ErrMatchAlreadyDone
	}
	m.Status = models.MatchStatusFinished
	m.Outcome = outcome
	m.FinishedAt = finishedAt
	s.matches[matchID] = m
	return deepCopy(m), nil
}

func (s *Store) ActiveMatchForPlayer(_ context.Context, playerID string) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeMatchForPlayerLocked(playerID)
}

func (s *Store) activeMatchForPlayerLocked(playerID string) (*models.Match, error) {
	for _, m := range s.matches {
		if m.Status == models.MatchStatusActive && m.HasParticipant(playerID) {
			copied := deepCopy(m)
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *Store) HasActiveMatchForQueue(_ context.Context, queueID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasActiveMatchForQueueLocked(queueID)
}

func (s *Store) hasActiveMatchForQueueLocked(queueID string) (bool, error) {
	for _, m := range s.matches {
		if m.Status == models.MatchStatusActive && m.QueueID == queueID {
			return true, nil
		}
	}
	return false, nil
}

// --- cooldowns ---

func (s *Store) InsertCooldown(_ context.Context, e models.CooldownEntry) (models.CooldownEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCooldownLocked(e)
}

func (s *Store) insertCooldownLocked(e models.CooldownEntry) (models.CooldownEntry, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	s.cooldowns[e.ID] = deepCopy(e)
	return deepCopy(e), nil
}

func (s *Store) DueCooldowns(_ context.Context, now time.Time) ([]models.CooldownEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dueCooldownsLocked(now)
}

func (s *Store) dueCooldownsLocked(now time.Time) ([]models.CooldownEntry, error) {
	due := make([]models.CooldownEntry, 0)
	for _, e := range s.cooldowns {
		if !e.ExpiresAt.After(now) {
			due = append(due, deepCopy(e))
		}
	}
	return due, nil
}

func (s *Store) DeleteCooldowns(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteCooldownsLocked(ids)
}

func (s *Store) deleteCooldownsLocked(ids []string) error {
	for _, id := range ids {
		delete(s.cooldowns, id)
	}
	return nil
}

// --- atomic unit ---

// Atomic takes the write lock for the whole unit and restores a snapshot of
// every table if fn fails, so a failed pop leaves no partial match behind.
func (s *Store) Atomic(_ context.Context, fn func(tx store.RecordStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	if err := fn(&txStore{s: s}); err != nil {
		s.restoreLocked(snap)
		return err
	}
	return nil
}

type tables struct {
	queues      map[string]models.Queue
	memberships map[string]models.QueueMembership
	memberIndex map[string]string
	matches     map[string]models.Match
	cooldowns   map[string]models.CooldownEntry
}

func (s *Store) snapshotLocked() tables {
	return tables{
		queues:      deepCopy(s.queues),
		memberships: deepCopy(s.memberships),
		memberIndex: deepCopy(s.memberIndex),
		matches:     deepCopy(s.matches),
		cooldowns:   deepCopy(s.cooldowns),
	}
}

func (s *Store) restoreLocked(snap tables) {
	s.queues = snap.queues
	s.memberships = snap.memberships
	s.memberIndex = snap.memberIndex
	s.matches = snap.matches
	s.cooldowns = snap.cooldowns
}

// txStore reuses the parent's locked method set while the parent holds the
// write lock for the duration of the atomic unit.
type txStore struct {
	s *Store
}

func (t *txStore) CreateQueue(_ context.Context, q models.Queue) (models.Queue, error) {
	return t.s.createQueueLocked(q)
}

func (t *txStore) UpdateQueue(_ context.Context, q models.Queue) error {
	return t.s.updateQueueLocked(q)
}

func (t *txStore) DeleteQueue(_ context.Context, queueID string) error {
	return t.s.deleteQueueLocked(queueID)
}

func (t *txStore) GetQueue(_ context.Context, queueID string) (models.Queue, error) {
	return t.s.getQueueLocked(queueID)
}

func (t *txStore) ListQueues(_ context.Context) ([]models.Queue, error) {
	return t.s.listQueuesLocked()
}

func (t *txStore) InsertMembership(_ context.Context, m models.QueueMembership) (models.QueueMembership, error) {
	return t.s.insertMembershipLocked(m)
}

func (t *txStore) ListMemberships(_ context.Context, queueID string) ([]models.QueueMembership, error) {
	return t.s.listMembershipsLocked(queueID)
}

func (t *txStore) ListMembershipsByPlayer(_ context.Context, playerID string) ([]models.QueueMembership, error) {
	return t.s.listMembershipsByPlayerLocked(playerID)
}

func (t *txStore) DeleteMembership(_ context.Context, queueID, playerID string) error {
	return t.s.deleteMembershipLocked(queueID, playerID)
}

func (t *txStore) DeleteMembershipsByPlayer(_ context.Context, playerID string) error {
	return t.s.deleteMembershipsByPlayerLocked(playerID)
}

func (t *txStore) CreateMatch(_ context.Context, m models.Match) (models.Match, error) {
	return t.s.createMatchLocked(m)
}

func (t *txStore) GetMatch(_ context.Context, matchID string) (models.Match, error) {
	return t.s.getMatchLocked(matchID)
}

func (t *txStore) FinishMatch(_ context.Context, matchID string, outcome models.MatchOutcome, finishedAt time.Time) (models.Match, error) {
	return t.s.finishMatchLocked(matchID, outcome, finishedAt)
}

func (t *txStore) ActiveMatchForPlayer(_ context.Context, playerID string) (*models.Match, error) {
	return t.s.activeMatchForPlayerLocked(playerID)
}

func (t *txStore) HasActiveMatchForQueue(_ context.Context, queueID string) (bool, error) {
	return t.s.hasActiveMatchForQueueLocked(queueID)
}

func (t *txStore) InsertCooldown(_ context.Context, e models.CooldownEntry) (models.CooldownEntry, error) {
	return t.s.insertCooldownLocked(e)
}

func (t *txStore) DueCooldowns(_ context.Context, now time.Time) ([]models.CooldownEntry, error) {
	return t.s.dueCooldownsLocked(now)
}

func (t *txStore) DeleteCooldowns(_ context.Context, ids []string) error {
	return t.s.deleteCooldownsLocked(ids)
}

func (t *txStore) Atomic(_ context.Context, fn func(tx store.RecordStore) error) error {
	return fn(t)
}
