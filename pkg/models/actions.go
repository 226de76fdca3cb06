// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

// ActionType tags an Action intent.
type ActionType string

const (
	ActionJoin          ActionType = "join"
	ActionLeave         ActionType = "leave"
	ActionMatchFinished ActionType = "matchFinished"
	ActionRequeue       ActionType = "requeue"
)

// Action is an immutable intent submitted to the mailbox by any concurrent
// caller and consumed exactly once by the dispatcher. Empty QueueIDs on join
// and leave means "all unlocked, non-isolated queues".
type Action struct {
	Type     ActionType
	PlayerID string
	QueueIDs []string
	MatchID  string
	Outcome  MatchOutcome
}

func NewJoinAction(playerID string, queueIDs []string) Action {
	return Action{Type: ActionJoin, PlayerID: playerID, QueueIDs: queueIDs}
}

func NewLeaveAction(playerID string, queueIDs []string) Action {
	return Action{Type: ActionLeave, PlayerID: playerID, QueueIDs: queueIDs}
}

func NewMatchFinishedAction(matchID string, outcome MatchOutcome) Action {
	return Action{Type: ActionMatchFinished, MatchID: matchID, Outcome: outcome}
}

// NewRequeueAction is a join resubmitted by the waitlist scheduler after a
// cooldown expired. It goes through the same join path but its per-queue
// results are reported as RequeueAttempted events.
func NewRequeueAction(playerID string, queueIDs []string) Action {
	return Action{Type: ActionRequeue, PlayerID: playerID, QueueIDs: queueIDs}
}
