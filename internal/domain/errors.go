package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrInvalidSession       = errors.New("invalid or expired session")
	ErrUserMismatch         = errors.New("transaction identity does not match session")
	ErrDuplicateTransaction = errors.New("transaction hash already recorded")
	ErrNoClaimableRewards   = errors.New("no claimable rewards")
	ErrLockActive           = errors.New("first-claim lock period active")
	ErrAmountExceedsLimit   = errors.New("claim amount exceeds contract limit")
	ErrSignerUnavailable    = errors.New("claim signer not configured")
	ErrContractUnreachable  = errors.New("reward contract unreachable")
	ErrConfigurationMissing = errors.New("program settings missing")
	ErrRateLimited          = errors.New("rate limited")
	ErrLockHeld             = errors.New("lock already held")
)
