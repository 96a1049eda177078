package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Paracosm-Labs/mintdeals-ledger/registry"
)

// accrue folds interest owed since the last touched step into the position's
// borrowed amount. On first touch the position is only timestamped. Elapsed
// steps are bridged in a single linear update rather than compounded per
// step; infrequent calls therefore understate true compounding, which is an
// accepted trade-off.
//
// The function mutates pos in memory only; callers persist. Calling twice at
// the same step is a no-op the second time.
func (e *Engine) accrue(pos *Position, asset *registry.Asset) error {
	if pos == nil || asset == nil || !asset.Stable {
		return nil
	}
	if pos.LastAccrualStep == 0 {
		pos.LastAccrualStep = e.step
		return nil
	}
	if e.step <= pos.LastAccrualStep {
		return nil
	}
	elapsed := e.step - pos.LastAccrualStep
	pos.LastAccrualStep = e.step
	if pos.Borrowed == nil || pos.Borrowed.Sign() == 0 {
		return nil
	}
	rate, err := asset.Adapter.BorrowRatePerStep()
	if err != nil {
		return fmt.Errorf("%w: borrowRatePerStep: %v", ErrAdapterCall, err)
	}
	// The ledger charges a configurable spread over the underlying market
	// rate.
	adjusted := inflateRate(rate, e.rateDeltaBps)
	interest := simpleInterest(pos.Borrowed, adjusted, elapsed)
	if interest.Sign() > 0 {
		pos.Borrowed = new(big.Int).Add(pos.Borrowed, interest)
	}
	return nil
}

// accrueUserDebt refreshes every stable position the user holds so that debt
// comparisons run against post-accrual figures. Untouched assets are skipped;
// positions are persisted as they accrue since accrued interest is real even
// when the surrounding operation later fails.
func (e *Engine) accrueUserDebt(user common.Address) error {
	for _, asset := range e.assets.Assets() {
		if !asset.Stable {
			continue
		}
		pos, err := e.state.GetPosition(user, asset.Token)
		if err != nil {
			return err
		}
		if pos == nil {
			continue
		}
		before := pos.LastAccrualStep
		if err := e.accrue(pos, asset); err != nil {
			return err
		}
		if pos.LastAccrualStep != before {
			if err := e.state.PutPosition(pos); err != nil {
				return err
			}
		}
	}
	return nil
}
