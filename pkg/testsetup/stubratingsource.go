// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"github.com/AccelByte/extend-queue-matchmaker/pkg/rating"
)

// StubRatingSource is a deterministic rating.Source for tests. Win
// probability is the share of roster0's total skill, so fixtures can dial in
// exact values without gaussian math.
type StubRatingSource struct {
	Skills map[string]float64
}

func (s StubRatingSource) Estimate(playerID string) rating.Estimate {
	return rating.Estimate{Mu: s.skill(playerID), Sigma: 0}
}

func (s StubRatingSource) WinProbability(roster0, roster1 []string) float64 {
	var total0, total1 float64
	for _, playerID := range roster0 {
		total0 += s.skill(playerID)
	}
	for _, playerID := range roster1 {
		total1 += s.skill(playerID)
	}
	if total0+total1 == 0 {
		return 0.5
	}
	return total0 / (total0 + total1)
}

func (s StubRatingSource) skill(playerID string) float64 {
	if skill, ok := s.Skills[playerID]; ok {
		return skill
	}
	return rating.DefaultMu
}
