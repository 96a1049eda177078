package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Position records one participant's standing in a single underlying asset.
// Positions are created lazily on first interaction and never deleted; zeroed
// amounts persist as a record.
type Position struct {
	// User is the participant owning the position.
	User common.Address
	// Token is the underlying asset identifier.
	Token common.Address
	// Deposited is the amount supplied into the facility, in the asset's
	// smallest denomination.
	Deposited *big.Int
	// Borrowed is the outstanding debt including accrued interest. Non-zero
	// only for stable assets.
	Borrowed *big.Int
	// LastAccrualStep is the step at which interest was last folded into
	// Borrowed. Zero marks a position that has never been accrued; the step
	// counter itself starts at one.
	LastAccrualStep uint64
}

// Clone returns a deep copy so callers cannot mutate ledger-owned state.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{User: p.User, Token: p.Token, LastAccrualStep: p.LastAccrualStep}
	if p.Deposited != nil {
		clone.Deposited = new(big.Int).Set(p.Deposited)
	}
	if p.Borrowed != nil {
		clone.Borrowed = new(big.Int).Set(p.Borrowed)
	}
	return clone
}

// FeeAccrual tracks the protocol-fee slice retained from repayments, per
// asset, until an admin withdraws it.
type FeeAccrual struct {
	Token common.Address
	// CollectedWei is the retained fee balance in the asset's smallest
	// denomination.
	CollectedWei *big.Int
}
