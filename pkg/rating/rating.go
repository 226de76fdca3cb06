// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package rating abstracts the skill model behind match formation. The engine
// only needs "how fair is this split"; the mathematics stay pluggable.
package rating

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Default skill parameters for players without a stored estimate.
const (
	DefaultMu    = 25.0
	DefaultSigma = DefaultMu / 3.0

	// performanceBeta widens the predicted performance variance beyond the
	// skill uncertainty alone, so thin rating gaps don't predict certainty.
	performanceBeta = DefaultSigma / 2.0
)

// Estimate is a gaussian skill estimate.
type Estimate struct {
	Mu    float64
	Sigma float64
}

// Source provides skill estimates and a pairwise win-probability over rosters.
type Source interface {
	Estimate(playerID string) Estimate
	// WinProbability returns the predicted probability that roster0 beats roster1.
	WinProbability(roster0, roster1 []string) float64
}

// GaussianSource predicts outcomes from per-player gaussian estimates, using
// the normal CDF over the roster skill difference.
type GaussianSource struct {
	estimates map[string]Estimate
}

func NewGaussianSource(estimates map[string]Estimate) *GaussianSource {
	if estimates == nil {
		estimates = make(map[string]Estimate)
	}
	return &GaussianSource{estimates: estimates}
}

func (g *GaussianSource) Estimate(playerID string) Estimate {
	if est, ok := g.estimates[playerID]; ok {
		return est
	}
	return Estimate{Mu: DefaultMu, Sigma: DefaultSigma}
}

func (g *GaussianSource) WinProbability(roster0, roster1 []string) float64 {
	var muDelta, variance float64
	for _, playerID := range roster0 {
		est := g.Estimate(playerID)
		muDelta += est.Mu
		variance += est.Sigma*est.Sigma + performanceBeta*performanceBeta
	}
	for _, playerID := range roster1 {
		est := g.Estimate(playerID)
		muDelta -= est.Mu
		variance += est.Sigma*est.Sigma + performanceBeta*performanceBeta
	}

	if variance <= 0 {
		if muDelta > 0 {
			return 1.0
		}
		if muDelta < 0 {
			return 0.0
		}
		return 0.5
	}

	dist := distuv.Normal{Mu: 0, Sigma: math.Sqrt(variance)}
	return dist.CDF(muDelta)
}
