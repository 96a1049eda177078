package credit

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Profile is the behavioral credit record for one participant. Created once at
// registration and never destroyed.
type Profile struct {
	User common.Address
	// Score stays within [baseline/2, maxScore].
	Score uint64
	// DebtUsed is the participant's outstanding draw against the shared
	// credit pool plus collateralized borrows, in wei.
	DebtUsed *big.Int
	// LastUpdateStep is the step of the most recent score mutation.
	LastUpdateStep uint64
	// LastPositiveStep is refreshed only by repay events and drives the
	// inactivity dampening of step sizes.
	LastPositiveStep uint64
	// Boost multiplies borrowing capacity. Defaults to 1; always positive.
	Boost uint64
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	if p.DebtUsed != nil {
		clone.DebtUsed = new(big.Int).Set(p.DebtUsed)
	}
	return &clone
}

// PoolState aggregates credit usage across all profiles.
type PoolState struct {
	// TotalCreditUsed is the global sum of Profile.DebtUsed.
	TotalCreditUsed *big.Int
	// GlobalCeiling caps TotalCreditUsed. Zero means uncapped.
	GlobalCeiling *big.Int
}

// Params groups the governance-controlled scoring knobs.
type Params struct {
	// Baseline is the score assigned at registration. The floor is
	// Baseline/2.
	Baseline uint64
	// MaxScore caps the score.
	MaxScore uint64
	// BorrowStep is subtracted on each borrow event before dampening.
	BorrowStep uint64
	// RepayStep is added on each repay event before dampening.
	RepayStep uint64
	// DecayThresholdSteps is the inactivity window after which step sizes
	// shrink. Zero disables dampening.
	DecayThresholdSteps uint64
	// MultiplierBps converts score points into capacity units.
	MultiplierBps uint64
	// CapacityUnit is the wei value of one capacity unit, aligning capacity
	// with pooled-credit amounts.
	CapacityUnit *big.Int
}

// Floor returns the lowest admissible score.
func (p Params) Floor() uint64 {
	return p.Baseline / 2
}
