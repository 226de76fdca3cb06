// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package models holds the persisted records and wire structures of the
// queue matchmaking engine: queues, memberships, matches, cooldown entries,
// the action intents consumed by the dispatcher, and the outbound events.
package models

import (
	"time"
)

// Match lifecycle states.
const (
	MatchStatusActive   = "active"
	MatchStatusFinished = "finished"
)

// MatchOutcome is the reported result of a finished match.
type MatchOutcome string

const (
	OutcomeRoster0Win MatchOutcome = "roster0Win"
	OutcomeRoster1Win MatchOutcome = "roster1Win"
	OutcomeTie        MatchOutcome = "tie"
)

// Valid reports whether the outcome is one of the three known values.
func (o MatchOutcome) Valid() bool {
	switch o {
	case OutcomeRoster0Win, OutcomeRoster1Win, OutcomeTie:
		return true
	}
	return false
}

// Queue is a named waiting pool. When its membership reaches TargetSize the
// engine forms a match from it and clears it.
type Queue struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	TargetSize    int    `json:"target_size"`
	Ordinal       int    `json:"ordinal"`
	Locked        bool   `json:"locked"`
	Isolated      bool   `json:"isolated"`
	CooldownGroup string `json:"cooldown_group,omitempty"`
}

// Validate checks the queue invariants: positive, even target size.
func (q Queue) Validate() error {
	if q.TargetSize <= 0 {
		return ErrInvalidTargetSize
	}
	if q.TargetSize%2 != 0 {
		return ErrInvalidTargetSize
	}
	return nil
}

// QueueMembership records one player waiting in one queue.
// The (QueueID, PlayerID) pair is unique per store constraint.
type QueueMembership struct {
	ID       string    `json:"id"`
	QueueID  string    `json:"queue_id"`
	PlayerID string    `json:"player_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Match is the pair of rosters formed from a popped queue.
type Match struct {
	ID               string       `json:"id"`
	QueueID          string       `json:"queue_id"`
	Roster0          []string     `json:"roster0"`
	Roster1          []string     `json:"roster1"`
	PredictedWinProb float64      `json:"predicted_win_prob"`
	Status           string       `json:"status"`
	Outcome          MatchOutcome `json:"outcome,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	FinishedAt       time.Time    `json:"finished_at,omitempty"`
}

// Participants returns every player in either roster.
func (m Match) Participants() []string {
	participants := make([]string, 0, len(m.Roster0)+len(m.Roster1))
	participants = append(participants, m.Roster0...)
	participants = append(participants, m.Roster1...)
	return participants
}

// HasParticipant reports whether playerID is in either roster.
func (m Match) HasParticipant(playerID string) bool {
	for _, p := range m.Participants() {
		if p == playerID {
			return true
		}
	}
	return false
}

// CooldownEntry holds one finished-match participant until their cooldown
// expires and a requeue intent is submitted on their behalf.
type CooldownEntry struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"player_id"`
	MatchID   string    `json:"match_id"`
	QueueIDs  []string  `json:"queue_ids"`
	ExpiresAt time.Time `json:"expires_at"`
}
