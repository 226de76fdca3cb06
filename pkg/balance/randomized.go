// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package balance

import (
	"math/rand"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/rating"
)

// DefaultTrialCount bounds the randomized search. Exhaustive enumeration of
// half-splits grows combinatorially with the queue size, so the search trades
// optimality for a fixed latency budget.
const DefaultTrialCount = 500

// RandomizedStrategy samples shuffled half-splits and keeps the one whose
// predicted win probability lands closest to 0.5. The first trial is the
// fallback, so the strategy always returns a valid split.
type RandomizedStrategy struct {
	trials int
	rng    *rand.Rand
}

// NewRandomizedStrategy builds the default strategy. trials <= 0 selects
// DefaultTrialCount. The rand source is injected so tests can fix the seed.
func NewRandomizedStrategy(trials int, rng *rand.Rand) *RandomizedStrategy {
	if trials <= 0 {
		trials = DefaultTrialCount
	}
	return &RandomizedStrategy{trials: trials, rng: rng}
}

func (r *RandomizedStrategy) Split(rootScope *envelope.Scope, players []string, source rating.Source) (Split, error) {
	scope := rootScope.NewChildScope("RandomizedStrategy.Split")
	defer scope.Finish()

	if len(players) == 0 {
		return Split{}, ErrNoPlayers
	}
	if len(players)%2 != 0 {
		return Split{}, ErrOddPlayerCount
	}

	candidates := make([]string, len(players))
	copy(candidates, players)
	half := len(candidates) / 2

	var best Split
	for trial := 0; trial < r.trials; trial++ {
		r.rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})

		roster0 := append([]string(nil), candidates[:half]...)
		roster1 := append([]string(nil), candidates[half:]...)
		winProb := source.WinProbability(roster0, roster1)

		if trial == 0 || fairness(winProb) < fairness(best.WinProb) {
			best = Split{Roster0: roster0, Roster1: roster1, WinProb: winProb}
		}
	}

	scope.Log.Infof("[balance] randomized split done trials: %d winProb: %.4f", r.trials, best.WinProb)
	return best, nil
}
