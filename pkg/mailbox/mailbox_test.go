// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package mailbox

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/models"
)

func TestSubmitPreservesFIFOOrder(t *testing.T) {
	box := New()
	for i := 0; i < 10; i++ {
		box.Submit(models.NewJoinAction(fmt.Sprintf("player-%d", i), nil))
	}

	drained := box.DrainAll()
	require.Len(t, drained, 10)
	for i, action := range drained {
		assert.Equal(t, fmt.Sprintf("player-%d", i), action.PlayerID)
	}
}

func TestDrainAllEmptiesMailbox(t *testing.T) {
	box := New()
	box.Submit(models.NewLeaveAction("alice", nil))

	assert.Len(t, box.DrainAll(), 1)
	assert.Empty(t, box.DrainAll())
	assert.Equal(t, 0, box.Len())
}

func TestRequeuePutsActionsAtFront(t *testing.T) {
	box := New()
	box.Submit(models.NewJoinAction("alice", nil))
	drained := box.DrainAll()

	box.Submit(models.NewJoinAction("bob", nil))
	box.Requeue(drained)

	actions := box.DrainAll()
	require.Len(t, actions, 2)
	assert.Equal(t, "alice", actions[0].PlayerID)
	assert.Equal(t, "bob", actions[1].PlayerID)
}

func TestConcurrentProducersAllDelivered(t *testing.T) {
	box := New()
	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				box.Submit(models.NewJoinAction(fmt.Sprintf("p%d-%d", p, i), nil))
			}
		}(p)
	}
	wg.Wait()

	drained := box.DrainAll()
	require.Len(t, drained, producers*perProducer)

	// per-producer order is preserved even without a total order
	lastSeen := make(map[string]int)
	for _, action := range drained {
		var producer, seq int
		_, err := fmt.Sscanf(action.PlayerID, "p%d-%d", &producer, &seq)
		require.NoError(t, err)
		key := fmt.Sprintf("p%d", producer)
		if prev, ok := lastSeen[key]; ok {
			assert.Greater(t, seq, prev)
		}
		lastSeen[key] = seq
	}
}
