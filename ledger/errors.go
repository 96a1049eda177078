package ledger

import "errors"

var (
	errNilState             = errors.New("position ledger: state not configured")
	ErrInvalidAmount        = errors.New("position ledger: amount must be positive")
	ErrInsufficientBalance  = errors.New("position ledger: amount exceeds deposited balance")
	ErrInsufficientBorrowed = errors.New("position ledger: amount exceeds outstanding debt")
	ErrCapacityExceeded     = errors.New("position ledger: debt would exceed borrowing power")
	ErrStableOnly           = errors.New("position ledger: operation restricted to stable assets")
	ErrAdapterCall          = errors.New("position ledger: market adapter call failed")
	ErrInsufficientFees     = errors.New("position ledger: amount exceeds collected fees")
	errNoPayer              = errors.New("position ledger: payer not configured")
)
