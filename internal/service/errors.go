package service

import (
	"errors"
	"fmt"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/store"
)

// lookup translates a store miss into the domain's NotFound.
func lookup(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

func postStateError(current domain.PostStatus, expected ...domain.PostStatus) error {
	names := make([]string, len(expected))
	for i, s := range expected {
		names[i] = string(s)
	}
	return &domain.StateError{Err: domain.ErrInvalidPostState, Current: string(current), Expected: names}
}

func challengeStateError(current domain.ChallengeStatus, expected ...domain.ChallengeStatus) error {
	names := make([]string, len(expected))
	for i, s := range expected {
		names[i] = string(s)
	}
	return &domain.StateError{Err: domain.ErrInvalidChallengeState, Current: string(current), Expected: names}
}
