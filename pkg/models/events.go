// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

// QueueStatusChanged is emitted after any join, leave or pop that affects a
// queue's membership.
type QueueStatusChanged struct {
	QueueID     string   `json:"queue_id"`
	QueueName   string   `json:"queue_name"`
	CurrentSize int      `json:"current_size"`
	TargetSize  int      `json:"target_size"`
	MemberNames []string `json:"member_names"`
}

// MatchFormed is emitted once per popped queue, after the match and the
// membership clearing have committed together.
type MatchFormed struct {
	MatchID                 string   `json:"match_id"`
	QueueID                 string   `json:"queue_id"`
	Roster0                 []string `json:"roster0"`
	Roster1                 []string `json:"roster1"`
	PredictedWinProbRoster0 float64  `json:"predicted_win_prob_roster0"`
}

// RequeueAttempted is emitted for each queue a cooldown-expired player was
// resubmitted to, whether or not the join succeeded.
type RequeueAttempted struct {
	PlayerID  string `json:"player_id"`
	QueueID   string `json:"queue_id"`
	Succeeded bool   `json:"succeeded"`
}
