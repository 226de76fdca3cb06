// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package balance splits a full queue's players into two rosters whose
// predicted outcome is as close to even as the strategy can find.
package balance

import (
	"errors"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/rating"
)

var (
	ErrOddPlayerCount = errors.New("player count must be even to split into rosters")
	ErrNoPlayers      = errors.New("no players to split")
)

// Split is the outcome of one balancing run.
type Split struct {
	Roster0 []string
	Roster1 []string
	// WinProb is the predicted probability that Roster0 wins.
	WinProb float64
}

// Strategy finds a balanced half-split of players. Implementations must
// terminate on a bounded budget; callers pick the strategy, the membership
// manager never cares which one runs.
type Strategy interface {
	Split(scope *envelope.Scope, players []string, source rating.Source) (Split, error)
}

func fairness(winProb float64) float64 {
	if winProb > 0.5 {
		return winProb - 0.5
	}
	return 0.5 - winProb
}
