// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package mailbox is the ordered intent queue bridging concurrent producers
// to the single dispatcher. Submit never blocks and never fails; DrainAll is
// called only from the dispatcher context.
package mailbox

import (
	"sync"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/models"
)

type Mailbox struct {
	mu      sync.Mutex
	actions []models.Action
}

func New() *Mailbox {
	return &Mailbox{}
}

// Submit enqueues an action. Safe from any goroutine; per-producer submission
// order is preserved, no total order across producers is promised.
func (m *Mailbox) Submit(action models.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
}

// DrainAll removes and returns all currently queued actions in FIFO order.
func (m *Mailbox) DrainAll() []models.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	drained := m.actions
	m.actions = nil
	return drained
}

// Requeue puts actions back at the front, ahead of anything submitted since
// the drain. The dispatcher uses it when a store failure interrupts a tick.
func (m *Mailbox) Requeue(actions []models.Action) {
	if len(actions) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(append([]models.Action(nil), actions...), m.actions...)
}

// Len reports the number of queued actions.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actions)
}
