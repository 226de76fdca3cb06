// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWinProbabilityEvenRosters(t *testing.T) {
	source := NewGaussianSource(nil)

	prob := source.WinProbability([]string{"a", "b"}, []string{"c", "d"})
	assert.InDelta(t, 0.5, prob, 1e-9)
}

func TestWinProbabilityFavorsStrongerRoster(t *testing.T) {
	source := NewGaussianSource(map[string]Estimate{
		"strong1": {Mu: 40, Sigma: 2},
		"strong2": {Mu: 40, Sigma: 2},
		"weak1":   {Mu: 10, Sigma: 2},
		"weak2":   {Mu: 10, Sigma: 2},
	})

	prob := source.WinProbability([]string{"strong1", "strong2"}, []string{"weak1", "weak2"})
	assert.Greater(t, prob, 0.9)
}

func TestWinProbabilityIsSymmetric(t *testing.T) {
	source := NewGaussianSource(map[string]Estimate{
		"a": {Mu: 30, Sigma: 5},
		"b": {Mu: 20, Sigma: 3},
	})

	forward := source.WinProbability([]string{"a"}, []string{"b"})
	backward := source.WinProbability([]string{"b"}, []string{"a"})
	assert.InDelta(t, 1.0, forward+backward, 1e-9)
}

func TestEstimateDefaultsForUnknownPlayer(t *testing.T) {
	source := NewGaussianSource(nil)

	est := source.Estimate("nobody")
	assert.Equal(t, DefaultMu, est.Mu)
	assert.Equal(t, DefaultSigma, est.Sigma)
}
