package ledger

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Paracosm-Labs/mintdeals-ledger/collateral"
	ledgercommon "github.com/Paracosm-Labs/mintdeals-ledger/common"
	"github.com/Paracosm-Labs/mintdeals-ledger/core/types"
	"github.com/Paracosm-Labs/mintdeals-ledger/credit"
	"github.com/Paracosm-Labs/mintdeals-ledger/registry"
)

const moduleName = "ledger"

const (
	eventDeposit      = "ledger.deposit"
	eventWithdraw     = "ledger.withdraw"
	eventBorrow       = "ledger.borrow"
	eventRepay        = "ledger.repay"
	eventFeesWithdraw = "ledger.fees.withdrawn"
)

type engineState interface {
	GetPosition(user, token common.Address) (*Position, error)
	PutPosition(pos *Position) error
	GetFeeAccrual(token common.Address) (*FeeAccrual, error)
	PutFeeAccrual(fees *FeeAccrual) error
	AppendEvent(evt *types.Event)
}

// Payer moves asset balances out of the service wallet, e.g. when an admin
// drains collected fees.
type Payer interface {
	Transfer(token, to common.Address, amount *big.Int) error
}

// Engine is the per-user, per-asset position ledger. Deposits and withdrawals
// apply to any registered asset; borrowing and repayment are restricted to
// stable assets and run through the collateral and credit engines before any
// state commits.
type Engine struct {
	state      engineState
	assets     *registry.Registry
	collateral *collateral.Engine
	credit     *credit.Engine
	payer      Payer
	pauses     ledgercommon.PauseView
	auth       ledgercommon.Authorizer
	latch      ledgercommon.Latch

	step         uint64
	rateDeltaBps uint64
	repayFeeBps  uint64
}

// NewEngine constructs a position ledger over the registry and the gating
// engines.
func NewEngine(assets *registry.Registry, collateralEngine *collateral.Engine, creditEngine *credit.Engine) *Engine {
	return &Engine{assets: assets, collateral: collateralEngine, credit: creditEngine}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses installs the administrative pause switch.
func (e *Engine) SetPauses(p ledgercommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetAuthorizer installs the role capability gating fee withdrawals.
func (e *Engine) SetAuthorizer(a ledgercommon.Authorizer) {
	if e == nil {
		return
	}
	e.auth = a
}

// SetPayer wires the outbound transfer capability used by fee withdrawals.
func (e *Engine) SetPayer(p Payer) {
	if e == nil {
		return
	}
	e.payer = p
}

// SetStep advances the ledger's view of the external step counter. Steps only
// move forward; a lower value is ignored.
func (e *Engine) SetStep(step uint64) {
	if e == nil || step <= e.step {
		return
	}
	e.step = step
}

// Step reports the ledger's current step.
func (e *Engine) Step() uint64 {
	if e == nil {
		return 0
	}
	return e.step
}

// SetRateDelta configures the basis-point spread charged over the market's
// per-step borrow rate during accrual.
func (e *Engine) SetRateDelta(bps uint64) {
	if e == nil {
		return
	}
	e.rateDeltaBps = bps
}

// SetRepayFee configures the basis-point slice of every repayment retained as
// protocol revenue.
func (e *Engine) SetRepayFee(bps uint64) {
	if e == nil {
		return
	}
	e.repayFeeBps = bps
}

// Deposit supplies amount into the facility on behalf of user. The external
// transfer into the service wallet has already happened by the time this is
// called; only the adapter supply leg can still fail.
func (e *Engine) Deposit(user, token common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := ledgercommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.latch.Enter(); err != nil {
		return err
	}
	defer e.latch.Exit()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	asset, err := e.assets.Resolve(token)
	if err != nil {
		return err
	}
	pos, err := e.ensurePosition(user, token)
	if err != nil {
		return err
	}
	if err := e.accrue(pos, asset); err != nil {
		return err
	}
	if err := asset.Adapter.Supply(amount); err != nil {
		return fmt.Errorf("%w: supply: %v", ErrAdapterCall, err)
	}
	pos.Deposited = new(big.Int).Add(pos.Deposited, amount)
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	e.emit(eventDeposit, user, token, amount, nil)
	return nil
}

// Withdraw redeems amount of the user's deposit, refusing any withdrawal that
// would leave outstanding debt above the recomputed borrowing power. The
// capacity check runs against the simulated post-withdrawal deposit before
// anything is committed, so no transient under-collateralized state is ever
// visible.
func (e *Engine) Withdraw(user, token common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := ledgercommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.latch.Enter(); err != nil {
		return err
	}
	defer e.latch.Exit()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	asset, err := e.assets.Resolve(token)
	if err != nil {
		return err
	}
	if err := e.accrueUserDebt(user); err != nil {
		return err
	}
	pos, err := e.ensurePosition(user, token)
	if err != nil {
		return err
	}
	if pos.Deposited.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	remaining := new(big.Int).Sub(pos.Deposited, amount)
	power, err := e.collateral.BorrowingPowerWith(user, token, remaining)
	if err != nil {
		return err
	}
	debt, err := e.collateral.TotalStablecoinDebt(user)
	if err != nil {
		return err
	}
	if debt.Cmp(power) > 0 {
		return ErrCapacityExceeded
	}
	if err := asset.Adapter.RedeemUnderlying(amount); err != nil {
		return fmt.Errorf("%w: redeemUnderlying: %v", ErrAdapterCall, err)
	}
	pos.Deposited = remaining
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	e.emit(eventWithdraw, user, token, amount, nil)
	return nil
}

// Borrow draws amount of a stable asset against the user's collateral. The
// collateral ceiling, the global credit ceiling and the credit profile are all
// validated before the adapter borrow leg; the position and score commit only
// after the adapter reports success.
func (e *Engine) Borrow(user, token common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := ledgercommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.latch.Enter(); err != nil {
		return err
	}
	defer e.latch.Exit()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	asset, err := e.assets.Resolve(token)
	if err != nil {
		return err
	}
	if !asset.Stable {
		return ErrStableOnly
	}
	if err := e.accrueUserDebt(user); err != nil {
		return err
	}
	pos, err := e.ensurePosition(user, token)
	if err != nil {
		return err
	}
	if err := e.accrue(pos, asset); err != nil {
		return err
	}
	power, err := e.collateral.TotalBorrowingPower(user)
	if err != nil {
		return err
	}
	debt, err := e.collateral.TotalStablecoinDebt(user)
	if err != nil {
		return err
	}
	projected := new(big.Int).Add(debt, amount)
	if projected.Cmp(power) > 0 {
		return ErrCapacityExceeded
	}
	if err := e.credit.EnsureBorrowAllowed(user, amount); err != nil {
		return err
	}
	if err := asset.Adapter.Borrow(amount); err != nil {
		return fmt.Errorf("%w: borrow: %v", ErrAdapterCall, err)
	}
	pos.Borrowed = new(big.Int).Add(pos.Borrowed, amount)
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.credit.RecordBorrow(user, amount); err != nil {
		return err
	}
	e.emit(eventBorrow, user, token, amount, nil)
	return nil
}

// Repay settles part of the user's stable debt. A basis-point fee slice is
// retained as protocol revenue while the remainder is forwarded to the
// adapter; the recorded debt and the global counter still decrease by the full
// repayment amount.
func (e *Engine) Repay(user, token common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := ledgercommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.latch.Enter(); err != nil {
		return err
	}
	defer e.latch.Exit()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	asset, err := e.assets.Resolve(token)
	if err != nil {
		return err
	}
	if !asset.Stable {
		return ErrStableOnly
	}
	if err := e.credit.EnsureActive(); err != nil {
		return err
	}
	pos, err := e.ensurePosition(user, token)
	if err != nil {
		return err
	}
	if err := e.accrue(pos, asset); err != nil {
		return err
	}
	if amount.Cmp(pos.Borrowed) > 0 {
		return ErrInsufficientBorrowed
	}
	fee := applyBps(amount, e.repayFeeBps)
	net := new(big.Int).Sub(amount, fee)
	if net.Sign() > 0 {
		if err := asset.Adapter.RepayBorrow(net); err != nil {
			return fmt.Errorf("%w: repayBorrow: %v", ErrAdapterCall, err)
		}
	}
	pos.Borrowed = new(big.Int).Sub(pos.Borrowed, amount)
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if fee.Sign() > 0 {
		fees, err := e.ensureFeeAccrual(token)
		if err != nil {
			return err
		}
		fees.CollectedWei = new(big.Int).Add(fees.CollectedWei, fee)
		if err := e.state.PutFeeAccrual(fees); err != nil {
			return err
		}
	}
	if err := e.credit.RecordRepay(user, amount); err != nil {
		return err
	}
	e.emit(eventRepay, user, token, amount, map[string]string{"fee": fee.String()})
	return nil
}

// WithdrawProtocolFees drains up to the collected repay-fee balance for token
// to the recipient.
func (e *Engine) WithdrawProtocolFees(caller, token, to common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := ledgercommon.RequireRole(e.auth, caller, ledgercommon.RoleAdmin); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if e.payer == nil {
		return errNoPayer
	}
	fees, err := e.ensureFeeAccrual(token)
	if err != nil {
		return err
	}
	if fees.CollectedWei.Cmp(amount) < 0 {
		return ErrInsufficientFees
	}
	if err := e.payer.Transfer(token, to, amount); err != nil {
		return fmt.Errorf("%w: transfer: %v", ErrAdapterCall, err)
	}
	fees.CollectedWei = new(big.Int).Sub(fees.CollectedWei, amount)
	if err := e.state.PutFeeAccrual(fees); err != nil {
		return err
	}
	e.emit(eventFeesWithdraw, to, token, amount, nil)
	return nil
}

// Position returns a copy of the stored position, or an empty one when the
// user never interacted with the asset.
func (e *Engine) Position(user, token common.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.assets.Resolve(token); err != nil {
		return nil, err
	}
	pos, err := e.state.GetPosition(user, token)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return &Position{User: user, Token: token, Deposited: big.NewInt(0), Borrowed: big.NewInt(0)}, nil
	}
	return pos.Clone(), nil
}

// CollectedFees reports the retained repay-fee balance for token.
func (e *Engine) CollectedFees(token common.Address) (*big.Int, error) {
	fees, err := e.ensureFeeAccrual(token)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(fees.CollectedWei), nil
}

func (e *Engine) ensurePosition(user, token common.Address) (*Position, error) {
	pos, err := e.state.GetPosition(user, token)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{User: user, Token: token}
	}
	if pos.Deposited == nil {
		pos.Deposited = big.NewInt(0)
	}
	if pos.Borrowed == nil {
		pos.Borrowed = big.NewInt(0)
	}
	return pos, nil
}

func (e *Engine) ensureFeeAccrual(token common.Address) (*FeeAccrual, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	fees, err := e.state.GetFeeAccrual(token)
	if err != nil {
		return nil, err
	}
	if fees == nil {
		fees = &FeeAccrual{Token: token}
	}
	if fees.CollectedWei == nil {
		fees.CollectedWei = big.NewInt(0)
	}
	return fees, nil
}

func (e *Engine) emit(eventType string, user, token common.Address, amount *big.Int, extra map[string]string) {
	if e == nil || e.state == nil {
		return
	}
	attrs := map[string]string{
		"user":  user.Hex(),
		"token": token.Hex(),
		"step":  strconv.FormatUint(e.step, 10),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	for k, v := range extra {
		attrs[k] = v
	}
	e.state.AppendEvent(&types.Event{Type: eventType, Attributes: attrs})
}
