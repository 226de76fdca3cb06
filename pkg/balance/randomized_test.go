// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package balance

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/testsetup"
)

func TestRandomizedSplitDeterministicUnderFixedSeed(t *testing.T) {
	scope := testsetup.NewTestScope()
	source := testsetup.StubRatingSource{Skills: map[string]float64{
		"a": 10, "b": 15, "c": 20, "d": 25,
	}}
	players := []string{"a", "b", "c", "d"}

	first, err := NewRandomizedStrategy(50, rand.New(rand.NewSource(42))).Split(scope, players, source)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := NewRandomizedStrategy(50, rand.New(rand.NewSource(42))).Split(scope, players, source)
		require.NoError(t, err)
		assert.Equal(t, first.Roster0, again.Roster0)
		assert.Equal(t, first.Roster1, again.Roster1)
		assert.Equal(t, first.WinProb, again.WinProb)
	}
}

func TestRandomizedSplitFindsFairestPairing(t *testing.T) {
	scope := testsetup.NewTestScope()
	// {10,20} vs {10,20} is the only split predicting exactly 0.5
	source := testsetup.StubRatingSource{Skills: map[string]float64{
		"a": 10, "b": 10, "c": 20, "d": 20,
	}}

	split, err := NewRandomizedStrategy(DefaultTrialCount, rand.New(rand.NewSource(1))).Split(scope, []string{"a", "b", "c", "d"}, source)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, split.WinProb, 1e-9)
	assert.Len(t, split.Roster0, 2)
	assert.Len(t, split.Roster1, 2)
}

func TestRandomizedSplitDegenerateOneVersusOne(t *testing.T) {
	scope := testsetup.NewTestScope()
	source := testsetup.StubRatingSource{Skills: map[string]float64{"a": 10, "b": 30}}

	split, err := NewRandomizedStrategy(10, rand.New(rand.NewSource(7))).Split(scope, []string{"a", "b"}, source)
	require.NoError(t, err)

	assert.Len(t, split.Roster0, 1)
	assert.Len(t, split.Roster1, 1)
	assert.NotEqual(t, split.Roster0[0], split.Roster1[0])
}

func TestRandomizedSplitRejectsBadInput(t *testing.T) {
	scope := testsetup.NewTestScope()
	strategy := NewRandomizedStrategy(10, rand.New(rand.NewSource(1)))
	source := testsetup.StubRatingSource{}

	_, err := strategy.Split(scope, nil, source)
	assert.ErrorIs(t, err, ErrNoPlayers)

	_, err = strategy.Split(scope, []string{"a", "b", "c"}, source)
	assert.ErrorIs(t, err, ErrOddPlayerCount)
}
