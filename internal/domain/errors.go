package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrBelowMinimumStake         = errors.New("amount below minimum stake")
	ErrInvalidPostState          = errors.New("operation not valid for post status")
	ErrInvalidChallengeState     = errors.New("operation not valid for challenge status")
	ErrSelfAction                = errors.New("account cannot act on its own post")
	ErrDuplicateChallenge        = errors.New("challenger already has an active challenge on this post")
	ErrDuplicateVote             = errors.New("account already voted on this challenge")
	ErrDuplicateVerdict          = errors.New("automated verdict already submitted")
	ErrAlreadyResolved           = errors.New("challenge already resolved")
	ErrNotFound                  = errors.New("not found")
	ErrExternalLedgerUnavailable = errors.New("external ledger unavailable")
	ErrAccountInactive           = errors.New("account is deactivated")
	ErrInvalidAmount             = errors.New("amount must be positive")
	ErrReasonRequired            = errors.New("reason is required")
	ErrContentRequired           = errors.New("content is required")
	ErrInvalidConfidence         = errors.New("confidence must be between 0 and 100")
	ErrVotingOpen                = errors.New("voting window still open")
	ErrVotingClosed              = errors.New("voting window closed")
	ErrAddressInUse              = errors.New("external address already registered")
	ErrNoExternalAddress         = errors.New("account has no external address")
)

// AmountError carries the numbers a caller needs to correct a rejected
// amount: the required threshold and the actual value that fell short.
type AmountError struct {
	Err      error
	Required decimal.Decimal
	Actual   decimal.Decimal
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("%s: required %s, have %s", e.Err, e.Required.String(), e.Actual.String())
}

func (e *AmountError) Unwrap() error {
	return e.Err
}

// StateError reports a status mismatch on a post or challenge.
type StateError struct {
	Err      error
	Current  string
	Expected []string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: status is %s, expected one of %v", e.Err, e.Current, e.Expected)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// IsRejection reports whether err is a validation outcome rather than an
// infrastructure failure. Rejections are never retried.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrInsufficientBalance, ErrBelowMinimumStake, ErrInvalidPostState,
		ErrInvalidChallengeState, ErrSelfAction, ErrDuplicateChallenge,
		ErrDuplicateVote, ErrDuplicateVerdict, ErrAlreadyResolved, ErrNotFound,
		ErrAccountInactive, ErrInvalidAmount, ErrReasonRequired,
		ErrContentRequired, ErrInvalidConfidence, ErrVotingOpen,
		ErrVotingClosed, ErrAddressInUse, ErrNoExternalAddress,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
