// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/models"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/store"
)

func TestQueueCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateQueue(ctx, models.Queue{Name: "duos", TargetSize: 4})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := s.GetQueue(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "duos", got.Name)

	got.Locked = true
	require.NoError(t, s.UpdateQueue(ctx, got))
	got, err = s.GetQueue(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Locked)

	queues, err := s.ListQueues(ctx)
	require.NoError(t, err)
	assert.Len(t, queues, 1)

	require.NoError(t, s.DeleteQueue(ctx, created.ID))
	_, err = s.GetQueue(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateMissingQueue(t *testing.T) {
	s := New()

	err := s.UpdateQueue(context.Background(), models.Queue{ID: "nope"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInsertMembershipEnforcesUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.InsertMembership(ctx, models.QueueMembership{QueueID: "q1", PlayerID: "alice", JoinedAt: time.Now()})
	require.NoError(t, err)

	_, err = s.InsertMembership(ctx, models.QueueMembership{QueueID: "q1", PlayerID: "alice", JoinedAt: time.Now()})
	assert.ErrorIs(t, err, store.ErrDuplicateMembership)

	// same player, different queue is allowed
	_, err = s.InsertMembership(ctx, models.QueueMembership{QueueID: "q2", PlayerID: "alice", JoinedAt: time.Now()})
	require.NoError(t, err)

	members, err := s.ListMemberships(ctx, "q1")
	require.NoError(t, err)
	assert.Len(t, members, 1)

	byPlayer, err := s.ListMembershipsByPlayer(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, byPlayer, 2)
}

func TestDeleteMembershipIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.DeleteMembership(ctx, "q1", "ghost"))

	_, err := s.InsertMembership(ctx, models.QueueMembership{QueueID: "q1", PlayerID: "alice", JoinedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.DeleteMembership(ctx, "q1", "alice"))
	require.NoError(t, s.DeleteMembership(ctx, "q1", "alice"))

	// uniqueness index must be released by the delete
	_, err = s.InsertMembership(ctx, models.QueueMembership{QueueID: "q1", PlayerID: "alice", JoinedAt: time.Now()})
	require.NoError(t, err)
}

func TestDeleteMembershipsByPlayerClearsAllQueues(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, queueID := range []string{"q1", "q2", "q3"} {
		_, err := s.InsertMembership(ctx, models.QueueMembership{QueueID: queueID, PlayerID: "alice", JoinedAt: time.Now()})
		require.NoError(t, err)
	}
	_, err := s.InsertMembership(ctx, models.QueueMembership{QueueID: "q1", PlayerID: "bob", JoinedAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, s.DeleteMembershipsByPlayer(ctx, "alice"))

	byPlayer, err := s.ListMembershipsByPlayer(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, byPlayer)

	members, err := s.ListMemberships(ctx, "q1")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestFinishMatchTransitionsExactlyOnce(t *testing.T) {
	s := New()
	ctx := context.Background()

	match, err := s.CreateMatch(ctx, models.Match{
		QueueID: "q1",
		Roster0: []string{"alice"},
		Roster1: []string{"bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusActive, match.Status)

	finished, err := s.FinishMatch(ctx, match.ID, models.OutcomeRoster0Win, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusFinished, finished.Status)
	assert.Equal(t, models.OutcomeRoster0Win, finished.Outcome)

	_, err = s.FinishMatch(ctx, match.ID, models.OutcomeTie, time.Now())
	assert.ErrorIs(t, err, models.ErrMatchAlreadyDone)
}

func TestActiveMatchForPlayer(t *testing.T) {
	s := New()
	ctx := context.Background()

	match, err := s.CreateMatch(ctx, models.Match{QueueID: "q1", Roster0: []string{"alice"}, Roster1: []string{"bob"}})
	require.NoError(t, err)

	active, err := s.ActiveMatchForPlayer(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, match.ID, active.ID)

	hasActive, err := s.HasActiveMatchForQueue(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, hasActive)

	_, err = s.FinishMatch(ctx, match.ID, models.OutcomeTie, time.Now())
	require.NoError(t, err)

	active, err = s.ActiveMatchForPlayer(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestDueCooldownsFiltersByExpiry(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	early, err := s.InsertCooldown(ctx, models.CooldownEntry{PlayerID: "alice", MatchID: "m1", QueueIDs: []string{"q1"}, ExpiresAt: now.Add(-time.Second)})
	require.NoError(t, err)
	_, err = s.InsertCooldown(ctx, models.CooldownEntry{PlayerID: "bob", MatchID: "m1", QueueIDs: []string{"q1"}, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)

	due, err := s.DueCooldowns(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "alice", due[0].PlayerID)

	require.NoError(t, s.DeleteCooldowns(ctx, []string{early.ID}))
	due, err = s.DueCooldowns(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestAtomicRollsBackOnFailure(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.InsertMembership(ctx, models.QueueMembership{QueueID: "q1", PlayerID: "alice", JoinedAt: time.Now()})
	require.NoError(t, err)

	failure := errors.New("boom")
	err = s.Atomic(ctx, func(tx store.RecordStore) error {
		if _, err := tx.CreateMatch(ctx, models.Match{QueueID: "q1", Roster0: []string{"alice"}, Roster1: []string{"bob"}}); err != nil {
			return err
		}
		if err := tx.DeleteMembershipsByPlayer(ctx, "alice"); err != nil {
			return err
		}
		return failure
	})
	assert.ErrorIs(t, err, failure)

	// no partial match, membership untouched
	active, err := s.ActiveMatchForPlayer(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, active)
	members, err := s.ListMemberships(ctx, "q1")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestAtomicCommitsOnSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.InsertMembership(ctx, models.QueueMembership{QueueID: "q1", PlayerID: "alice", JoinedAt: time.Now()})
	require.NoError(t, err)

	err = s.Atomic(ctx, func(tx store.RecordStore) error {
		if _, err := tx.CreateMatch(ctx, models.Match{QueueID: "q1", Roster0: []string{"alice"}, Roster1: []string{"bob"}}); err != nil {
			return err
		}
		return tx.DeleteMembershipsByPlayer(ctx, "alice")
	})
	require.NoError(t, err)

	active, err := s.ActiveMatchForPlayer(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, active)
	members, err := s.ListMemberships(ctx, "q1")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestRecordsAreCopiedOnReturn(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateMatch(ctx, models.Match{QueueID: "q1", Roster0: []string{"alice"}, Roster1: []string{"bob"}})
	require.NoError(t, err)

	created.Roster0[0] = "mallory"

	got, err := s.GetMatch(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, got.Roster0)
}
