// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package store defines the transactional record storage the engine runs on.
// The store only needs to tolerate a single writer: every mutation is issued
// from the dispatcher context. Reads may come from any goroutine.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/models"
)

var (
	// ErrDuplicateMembership signals the (queueID, playerID) uniqueness
	// constraint. Callers treat it as "already satisfied", not as a failure.
	ErrDuplicateMembership = errors.New("membership already exists for queue and player")

	// ErrNotFound is returned when a record id does not resolve.
	ErrNotFound = errors.New("record not found")

	// ErrUnavailable wraps storage backend connectivity failures.
	ErrUnavailable = errors.New("record store unavailable")
)

// RecordStore is the persistence boundary for queues, memberships, matches
// and cooldown entries.
type RecordStore interface {
	CreateQueue(ctx context.Context, q models.Queue) (models.Queue, error)
	UpdateQueue(ctx context.Context, q models.Queue) error
	DeleteQueue(ctx context.Context, queueID string) error
	GetQueue(ctx context.Context, queueID string) (models.Queue, error)
	ListQueues(ctx context.Context) ([]models.Queue, error)

	// InsertMembership returns ErrDuplicateMembership when the player is
	// already a member of the queue.
	InsertMembership(ctx context.Context, m models.QueueMembership) (models.QueueMembership, error)
	ListMemberships(ctx context.Context, queueID string) ([]models.QueueMembership, error)
	ListMembershipsByPlayer(ctx context.Context, playerID string) ([]models.QueueMembership, error)
	// DeleteMembership is idempotent: deleting an absent row is not an error.
	DeleteMembership(ctx context.Context, queueID, playerID string) error
	DeleteMembershipsByPlayer(ctx context.Context, playerID string) error

	CreateMatch(ctx context.Context, m models.Match) (models.Match, error)
	GetMatch(ctx context.Context, matchID string) (models.Match, error)
	// FinishMatch transitions a match to finished exactly once. A second call
	// returns models.ErrMatchAlreadyDone.
	FinishMatch(ctx context.Context, matchID string, outcome models.MatchOutcome, finishedAt time.Time) (models.Match, error)
	// ActiveMatchForPlayer returns nil when the player has no active match.
	ActiveMatchForPlayer(ctx context.Context, playerID string) (*models.Match, error)
	HasActiveMatchForQueue(ctx context.Context, queueID string) (bool, error)

	InsertCooldown(ctx context.Context, e models.CooldownEntry) (models.CooldownEntry, error)
	DueCooldowns(ctx context.Context, now time.Time) ([]models.CooldownEntry, error)
	DeleteCooldowns(ctx context.Context, ids []string) error

	// Atomic runs fn as one failure unit: either every write in fn commits or
	// the whole unit is reported failed. Match formation relies on this to
	// never commit a match without its membership clearing.
	Atomic(ctx context.Context, fn func(tx RecordStore) error) error
}
