// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package redisstore implements store.RecordStore on redis, for deployments
// where status readers run out of process. All writes still come from the one
// dispatcher context, so the adapter needs no cross-writer isolation. Atomic
// buffers the unit's writes into one transaction pipeline executed on
// success, so a failed unit commits nothing.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/models"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/store"
)

const (
	keyQueues         = "qmm:queues"
	keyQueuePrefix    = "qmm:queue:"
	keyMembersPrefix  = "qmm:members:"
	keyPlayerQPrefix  = "qmm:playerqueues:"
	keyMatchPrefix    = "qmm:match:"
	keyActiveMatches  = "qmm:active_matches"
	keyActivePlayers  = "qmm:active_players"
	keyCooldowns      = "qmm:cooldowns"
	keyCooldownExpiry = "qmm:cooldown_expiry"
)

type Store struct {
	client  redis.UniversalClient
	entropy *ulid.MonotonicEntropy
}

func New(client redis.UniversalClient) *Store {
	return &Store{
		client:  client,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

func marshal(v interface{}) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

// Write helpers shared by the direct path (own pipeline, executed per call)
// and the Atomic path (unit-wide pipeline, executed once on success).

func writeQueue(ctx context.Context, db redis.Cmdable, q models.Queue) {
	db.Set(ctx, keyQueuePrefix+q.ID, marshal(q), 0)
	db.SAdd(ctx, keyQueues, q.ID)
}

func removeQueue(ctx context.Context, db redis.Cmdable, queueID string) {
	db.SRem(ctx, keyQueues, queueID)
	db.Del(ctx, keyQueuePrefix+queueID)
}

func writeMembership(ctx context.Context, db redis.Cmdable, m models.QueueMembership) {
	db.HSet(ctx, keyMembersPrefix+m.QueueID, m.PlayerID, marshal(m))
	db.SAdd(ctx, keyPlayerQPrefix+m.PlayerID, m.QueueID)
}

func removeMembership(ctx context.Context, db redis.Cmdable, queueID, playerID string) {
	db.HDel(ctx, keyMembersPrefix+queueID, playerID)
	db.SRem(ctx, keyPlayerQPrefix+playerID, queueID)
}

func removeAllMemberships(ctx context.Context, db redis.Cmdable, playerID string, queueIDs []string) {
	for _, queueID := range queueIDs {
		db.HDel(ctx, keyMembersPrefix+queueID, playerID)
	}
	db.Del(ctx, keyPlayerQPrefix+playerID)
}

func writeActiveMatch(ctx context.Context, db redis.Cmdable, m models.Match) {
	db.Set(ctx, keyMatchPrefix+m.ID, marshal(m), 0)
	db.SAdd(ctx, keyActiveMatches, m.ID)
	for _, playerID := range m.Participants() {
		db.HSet(ctx, keyActivePlayers, playerID, m.ID)
	}
}

func writeFinishedMatch(ctx context.Context, db redis.Cmdable, m models.Match) {
	db.Set(ctx, keyMatchPrefix+m.ID, marshal(m), 0)
	db.SRem(ctx, keyActiveMatches, m.ID)
	for _, playerID := range m.Participants() {
		db.HDel(ctx, keyActivePlayers, playerID)
	}
}

func writeCooldown(ctx context.Context, db redis.Cmdable, e models.CooldownEntry) {
	db.HSet(ctx, keyCooldowns, e.ID, marshal(e))
	db.ZAdd(ctx, keyCooldownExpiry, redis.Z{Score: float64(e.ExpiresAt.UnixMilli()), Member: e.ID})
}

func removeCooldowns(ctx context.Context, db redis.Cmdable, ids []string) {
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	db.HDel(ctx, keyCooldowns, ids...)
	db.ZRem(ctx, keyCooldownExpiry, members...)
}

// --- queues ---

func (s *Store) CreateQueue(ctx context.Context, q models.Queue) (models.Queue, error) {
	if q.ID == "" {
		q.ID = s.newID()
	}
	pipe := s.client.TxPipeline()
	writeQueue(ctx, pipe, q)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Queue{}, wrapErr(err)
	}
	return q, nil
}

func (s *Store) UpdateQueue(ctx context.Context, q models.Queue) error {
	exists, err := s.client.Exists(ctx, keyQueuePrefix+q.ID).Result()
	if err != nil {
		return wrapErr(err)
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	pipe := s.client.TxPipeline()
	writeQueue(ctx, pipe, q)
	_, err = pipe.Exec(ctx)
	return wrapErr(err)
}

func (s *Store) DeleteQueue(ctx context.Context, queueID string) error {
	removed, err := s.client.SRem(ctx, keyQueues, queueID).Result()
	if err != nil {
		return wrapErr(err)
	}
	if removed == 0 {
		return store.ErrNotFound
	}
	return wrapErr(s.client.Del(ctx, keyQueuePrefix+queueID).Err())
}

func (s *Store) GetQueue(ctx context.Context, queueID string) (models.Queue, error) {
	raw, err := s.client.Get(ctx, keyQueuePrefix+queueID).Result()
	if err != nil {
		return models.Queue{}, wrapErr(err)
	}
	var q models.Queue
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return models.Queue{}, err
	}
	return q, nil
}

func (s *Store) ListQueues(ctx context.Context) ([]models.Queue, error) {
	ids, err := s.client.SMembers(ctx, keyQueues).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	queues := make([]models.Queue, 0, len(ids))
	for _, id := range ids {
		q, err := s.GetQueue(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		queues = append(queues, q)
	}
	return queues, nil
}

// --- memberships ---

func (s *Store) InsertMembership(ctx context.Context, m models.QueueMembership) (models.QueueMembership, error) {
	if m.ID == "" {
		m.ID = s.newID()
	}
	inserted, err := s.client.HSetNX(ctx, keyMembersPrefix+m.QueueID, m.PlayerID, marshal(m)).Result()
	if err != nil {
		return models.QueueMembership{}, wrapErr(err)
	}
	if !inserted {
		return models.QueueMembership{}, store.ErrDuplicateMembership
	}
	if err := s.client.SAdd(ctx, keyPlayerQPrefix+m.PlayerID, m.QueueID).Err(); err != nil {
		return models.QueueMembership{}, wrapErr(err)
	}
	return m, nil
}

func (s *Store) ListMemberships(ctx context.Context, queueID string) ([]models.QueueMembership, error) {
	raw, err := s.client.HGetAll(ctx, keyMembersPrefix+queueID).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	members := make([]models.QueueMembership, 0, len(raw))
	for _, v := range raw {
		var m models.QueueMembership
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

func (s *Store) ListMembershipsByPlayer(ctx context.Context, playerID string) ([]models.QueueMembership, error) {
	queueIDs, err := s.client.SMembers(ctx, keyPlayerQPrefix+playerID).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	members := make([]models.QueueMembership, 0, len(queueIDs))
	for _, queueID := range queueIDs {
		raw, err := s.client.HGet(ctx, keyMembersPrefix+queueID, playerID).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, wrapErr(err)
		}
		var m models.QueueMembership
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

func (s *Store) DeleteMembership(ctx context.Context, queueID, playerID string) error {
	pipe := s.client.TxPipeline()
	removeMembership(ctx, pipe, queueID, playerID)
	_, err := pipe.Exec(ctx)
	return wrapErr(err)
}

func (s *Store) DeleteMembershipsByPlayer(ctx context.Context, playerID string) error {
	queueIDs, err := s.client.SMembers(ctx, keyPlayerQPrefix+playerID).Result()
	if err != nil {
		return wrapErr(err)
	}
	pipe := s.client.TxPipeline()
	removeAllMemberships(ctx, pipe, playerID, queueIDs)
	_, err = pipe.Exec(ctx)
	return wrapErr(err)
}

// --- matches ---

func (s *Store) CreateMatch(ctx context.Context, m models.Match) (models.Match, error) {
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.Status == "" {
		m.Status = models.MatchStatusActive
	}
	pipe := s.client.TxPipeline()
	writeActiveMatch(ctx, pipe, m)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Match{}, wrapErr(err)
	}
	return m, nil
}

func (s *Store) GetMatch(ctx context.Context, matchID string) (models.Match, error) {
	raw, err := s.client.Get(ctx, keyMatchPrefix+matchID).Result()
	if err != nil {
		return models.Match{}, wrapErr(err)
	}
	var m models.Match
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return models.Match{}, err
	}
	return m, nil
}

func (s *Store) FinishMatch(ctx context.Context, matchID string, outcome models.MatchOutcome, finishedAt time.Time) (models.Match, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, err
	}
	if m.Status == models.MatchStatusFinished {
		return models.Match{}, models.ErrMatchAlreadyDone
	}
	m.Status = models.MatchStatusFinished
	m.Outcome = outcome
	m.FinishedAt = finishedAt

	pipe := s.client.TxPipeline()
	writeFinishedMatch(ctx, pipe, m)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Match{}, wrapErr(err)
	}
	return m, nil
}

func (s *Store) ActiveMatchForPlayer(ctx context.Context, playerID string) (*models.Match, error) {
	matchID, err := s.client.HGet(ctx, keyActivePlayers, playerID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(err)
	}
	m, err := s.GetMatch(ctx, matchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) HasActiveMatchForQueue(ctx context.Context, queueID string) (bool, error) {
	ids, err := s.client.SMembers(ctx, keyActiveMatches).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	for _, id := range ids {
		m, err := s.GetMatch(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if m.QueueID == queueID {
			return true, nil
		}
	}
	return false, nil
}

// --- cooldowns ---

func (s *Store) InsertCooldown(ctx context.Context, e models.CooldownEntry) (models.CooldownEntry, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	pipe := s.client.TxPipeline()
	writeCooldown(ctx, pipe, e)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.CooldownEntry{}, wrapErr(err)
	}
	return e, nil
}

func (s *Store) DueCooldowns(ctx context.Context, now time.Time) ([]models.CooldownEntry, error) {
	ids, err := s.client.ZRangeByScore(ctx, keyCooldownExpiry, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	due := make([]models.CooldownEntry, 0, len(ids))
	for _, id := range ids {
		raw, err := s.client.HGet(ctx, keyCooldowns, id).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, wrapErr(err)
		}
		var e models.CooldownEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, err
		}
		due = append(due, e)
	}
	return due, nil
}

func (s *Store) DeleteCooldowns(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	removeCooldowns(ctx, pipe, ids)
	_, err := pipe.Exec(ctx)
	return wrapErr(err)
}

// --- atomic unit ---

// Atomic buffers every write of fn into one transaction pipeline and executes
// it only when fn succeeds, so a failed unit leaves nothing behind. Reads
// inside the unit observe pre-unit state; the engine's units follow a
// read-then-write discipline and never read their own writes.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.RecordStore) error) error {
	pipe := s.client.TxPipeline()
	if err := fn(&txStore{s: s, pipe: pipe}); err != nil {
		return err
	}
	_, err := pipe.Exec(ctx)
	return wrapErr(err)
}

// txStore queues writes on the unit's pipeline and serves reads (including
// the existence and duplicate checks of conditional writes) from the live
// store, which the single-writer model keeps consistent for the unit's
// duration.
type txStore struct {
	s    *Store
	pipe redis.Pipeliner
}

func (t *txStore) CreateQueue(ctx context.Context, q models.Queue) (models.Queue, error) {
	if q.ID == "" {
		q.ID = t.s.newID()
	}
	writeQueue(ctx, t.pipe, q)
	return q, nil
}

func (t *txStore) UpdateQueue(ctx context.Context, q models.Queue) error {
	exists, err := t.s.client.Exists(ctx, keyQueuePrefix+q.ID).Result()
	if err != nil {
		return wrapErr(err)
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	writeQueue(ctx, t.pipe, q)
	return nil
}

func (t *txStore) DeleteQueue(ctx context.Context, queueID string) error {
	isMember, err := t.s.client.SIsMember(ctx, keyQueues, queueID).Result()
	if err != nil {
		return wrapErr(err)
	}
	if !isMember {
		return store.ErrNotFound
	}
	removeQueue(ctx, t.pipe, queueID)
	return nil
}

func (t *txStore) GetQueue(ctx context.Context, queueID string) (models.Queue, error) {
	return t.s.GetQueue(ctx, queueID)
}

func (t *txStore) ListQueues(ctx context.Context) ([]models.Queue, error) {
	return t.s.ListQueues(ctx)
}

func (t *txStore) InsertMembership(ctx context.Context, m models.QueueMembership) (models.QueueMembership, error) {
	exists, err := t.s.client.HExists(ctx, keyMembersPrefix+m.QueueID, m.PlayerID).Result()
	if err != nil {
		return models.QueueMembership{}, wrapErr(err)
	}
	if exists {
		return models.QueueMembership{}, store.ErrDuplicateMembership
	}
	if m.ID == "" {
		m.ID = t.s.newID()
	}
	writeMembership(ctx, t.pipe, m)
	return m, nil
}

func (t *txStore) ListMemberships(ctx context.Context, queueID string) ([]models.QueueMembership, error) {
	return t.s.ListMemberships(ctx, queueID)
}

func (t *txStore) ListMembershipsByPlayer(ctx context.Context, playerID string) ([]models.QueueMembership, error) {
	return t.s.ListMembershipsByPlayer(ctx, playerID)
}

func (t *txStore) DeleteMembership(ctx context.Context, queueID, playerID string) error {
	removeMembership(ctx, t.pipe, queueID, playerID)
	return nil
}

func (t *txStore) DeleteMembershipsByPlayer(ctx context.Context, playerID string) error {
	queueIDs, err := t.s.client.SMembers(ctx, keyPlayerQPrefix+playerID).Result()
	if err != nil {
		return wrapErr(err)
	}
	removeAllMemberships(ctx, t.pipe, playerID, queueIDs)
	return nil
}

func (t *txStore) CreateMatch(ctx context.Context, m models.Match) (models.Match, error) {
	if m.ID == "" {
		m.ID = t.s.newID()
	}
	if m.Status == "" {
		m.Status = models.MatchStatusActive
	}
	writeActiveMatch(ctx, t.pipe, m)
	return m, nil
}

func (t *txStore) GetMatch(ctx context.Context, matchID string) (models.Match, error) {
	return t.s.GetMatch(ctx, matchID)
}

func (t *txStore) FinishMatch(ctx context.Context, matchID string, outcome models.MatchOutcome, finishedAt time.Time) (models.Match, error) {
	m, err := t.s.GetMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, err
	}
	if m.Status == models.MatchStatusFinished {
		return models.Match{}, models.ErrMatchAlreadyDone
	}
	m.Status = models.MatchStatusFinished
	m.Outcome = outcome
	m.FinishedAt = finishedAt
	writeFinishedMatch(ctx, t.pipe, m)
	return m, nil
}

func (t *txStore) ActiveMatchForPlayer(ctx context.Context, playerID string) (*models.Match, error) {
	return t.s.ActiveMatchForPlayer(ctx, playerID)
}

func (t *txStore) HasActiveMatchForQueue(ctx context.Context, queueID string) (bool, error) {
	return t.s.HasActiveMatchForQueue(ctx, queueID)
}

func (t *txStore) InsertCooldown(ctx context.Context, e models.CooldownEntry) (models.CooldownEntry, error) {
	if e.ID == "" {
		e.ID = t.s.newID()
	}
	writeCooldown(ctx, t.pipe, e)
	return e, nil
}

func (t *txStore) DueCooldowns(ctx context.Context, now time.Time) ([]models.CooldownEntry, error) {
	return t.s.DueCooldowns(ctx, now)
}

func (t *txStore) DeleteCooldowns(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	removeCooldowns(ctx, t.pipe, ids)
	return nil
}

func (t *txStore) Atomic(ctx context.Context, fn func(tx store.RecordStore) error) error {
	return fn(t)
}
