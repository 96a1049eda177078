package credit

import "errors"

var (
	errNilState            = errors.New("credit engine: state not configured")
	ErrInvalidAmount       = errors.New("credit engine: amount must be positive")
	ErrProfileNotFound     = errors.New("credit engine: profile not registered")
	ErrAlreadyRegistered   = errors.New("credit engine: profile already registered")
	ErrCapacityExceeded    = errors.New("credit engine: draw would exceed borrowing capacity")
	ErrGlobalLimitExceeded = errors.New("credit engine: global credit ceiling exceeded")
	ErrInsufficientDebt    = errors.New("credit engine: amount exceeds outstanding draw")
	ErrInvalidBoost        = errors.New("credit engine: boost factor must be positive")
)
