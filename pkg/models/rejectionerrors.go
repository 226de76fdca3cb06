// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"errors"
)

// Typed rejections returned to the caller layer for display. The engine never
// formats user-facing messages itself.
var (
	ErrQueueLocked         = errors.New("queue is locked and rejects new joins")
	ErrQueueNotFound       = errors.New("queue does not exist")
	ErrPlayerInActiveMatch = errors.New("player is already in an active match")
	ErrQueueHasActiveMatch = errors.New("queue has an active match sourced from it")
	ErrInvalidTargetSize   = errors.New("queue target size must be positive and even")
	ErrInvalidOutcome      = errors.New("match outcome is not a known value")
	ErrMatchNotFound       = errors.New("match does not exist")
	ErrMatchAlreadyDone    = errors.New("match already finished")
)

var rejectionCodeMap = map[error]int{
	ErrQueueLocked:         520101,
	ErrQueueNotFound:       520102,
	ErrPlayerInActiveMatch: 520103,
	ErrQueueHasActiveMatch: 520104,
	ErrInvalidTargetSize:   520105,
	ErrInvalidOutcome:      520106,
	ErrMatchNotFound:       520107,
	ErrMatchAlreadyDone:    520108,
}

// RejectionCode returns a code for the error.
// It returns 20002 if the error is not registered in the map.
func RejectionCode(err error) int {
	for rejection, code := range rejectionCodeMap {
		if errors.Is(err, rejection) {
			return code
		}
	}
	return 20002
}
