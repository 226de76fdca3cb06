// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package balance

import (
	"errors"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/rating"
)

// DefaultSplitLimit caps how many half-splits the exhaustive strategy will
// enumerate before refusing the input.
const DefaultSplitLimit = 10000

var ErrTooManySplits = errors.New("player count exceeds exhaustive split limit")

// ExhaustiveStrategy enumerates every distinct half-split and returns the
// fairest one. Only usable for small queues; larger queues belong to
// RandomizedStrategy.
type ExhaustiveStrategy struct {
	limit int
}

// NewExhaustiveStrategy builds the strategy. limit <= 0 selects DefaultSplitLimit.
func NewExhaustiveStrategy(limit int) *ExhaustiveStrategy {
	if limit <= 0 {
		limit = DefaultSplitLimit
	}
	return &ExhaustiveStrategy{limit: limit}
}

func (e *ExhaustiveStrategy) Split(rootScope *envelope.Scope, players []string, source rating.Source) (Split, error) {
	scope := rootScope.NewChildScope("ExhaustiveStrategy.Split")
	defer scope.Finish()

	if len(players) == 0 {
		return Split{}, ErrNoPlayers
	}
	if len(players)%2 != 0 {
		return Split{}, ErrOddPlayerCount
	}

	n := len(players)
	half := n / 2
	if n == 2 {
		roster0 := players[:1]
		roster1 := players[1:]
		return Split{Roster0: roster0, Roster1: roster1, WinProb: source.WinProbability(roster0, roster1)}, nil
	}
	if combin.Binomial(n, half) > e.limit {
		return Split{}, ErrTooManySplits
	}

	// Pin players[0] into roster0 so mirrored splits are not enumerated twice.
	gen := combin.NewCombinationGenerator(n-1, half-1)
	indices := make([]int, half-1)

	var best Split
	first := true
	for gen.Next() {
		gen.Combination(indices)

		inRoster0 := make(map[int]bool, half)
		inRoster0[0] = true
		for _, idx := range indices {
			inRoster0[idx+1] = true
		}

		roster0 := make([]string, 0, half)
		roster1 := make([]string, 0, half)
		for i, playerID := range players {
			if inRoster0[i] {
				roster0 = append(roster0, playerID)
			} else {
				roster1 = append(roster1, playerID)
			}
		}

		winProb := source.WinProbability(roster0, roster1)
		if first || fairness(winProb) < fairness(best.WinProb) {
			best = Split{Roster0: roster0, Roster1: roster1, WinProb: winProb}
			first = false
		}
	}

	scope.Log.Infof("[balance] exhaustive split done winProb: %.4f", best.WinProb)
	return best, nil
}
