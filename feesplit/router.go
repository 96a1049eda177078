package feesplit

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	ledgercommon "github.com/Paracosm-Labs/mintdeals-ledger/common"
	"github.com/Paracosm-Labs/mintdeals-ledger/core/types"
	"github.com/Paracosm-Labs/mintdeals-ledger/market"
)

const moduleName = "feesplit"

const (
	eventRouted        = "feesplit.inflow.routed"
	eventSwept         = "feesplit.pool.swept"
	eventFeesWithdrawn = "feesplit.fees.withdrawn"
)

var (
	errNilState          = errors.New("fee split router: state not configured")
	ErrInvalidAmount     = errors.New("fee split router: amount must be positive")
	ErrInsufficientFees  = errors.New("fee split router: amount exceeds collected fees")
	errNoFacility        = errors.New("fee split router: facility not configured")
	errNoPayer           = errors.New("fee split router: payer not configured")
	errNoVenue           = errors.New("fee split router: conversion venue not configured")
	errVenueLegMismatch  = errors.New("fee split router: venue returned wrong leg count")
	ErrInvalidSplit      = errors.New("fee split router: split percent must be within [0,100]")
	ErrInvalidCommission = errors.New("fee split router: commission percent must be within [0,100]")
)

type routerState interface {
	GetManagerPool(token common.Address) (*big.Int, error)
	PutManagerPool(token common.Address, amount *big.Int) error
	GetCollectedCommission(token common.Address) (*big.Int, error)
	PutCollectedCommission(token common.Address, amount *big.Int) error
	AppendEvent(evt *types.Event)
}

// Facility is the deposit-on-behalf entry point of the position ledger.
type Facility interface {
	Deposit(user, token common.Address, amount *big.Int) error
}

// Payer moves asset balances out of the service wallet to external
// recipients.
type Payer interface {
	Transfer(token, to common.Address, amount *big.Int) error
}

// SweepConfig shapes the threshold-gated forwarding of accumulated manager
// pools.
type SweepConfig struct {
	// Threshold is the minimum accumulated balance, in wei, before a sweep
	// forwards anything.
	Threshold *big.Int
	// ConvertPath, when it has at least two hops, routes the swept balance
	// through the conversion venue; the final hop's proceeds are supplied to
	// the facility. An empty path supplies the pool asset directly.
	ConvertPath []common.Address
	// DeadlineSecs bounds how long a venue swap may stay pending.
	DeadlineSecs uint64
}

// Router accumulates club inflows and splits them between the credit facility
// and the shared-pool manager balance.
type Router struct {
	state    routerState
	facility Facility
	payer    Payer
	venue    market.SwapVenue
	pauses   ledgercommon.PauseView
	auth     ledgercommon.Authorizer
	latch    ledgercommon.Latch
	now      func() int64

	// poolHolder is the account credited when swept funds enter the facility.
	poolHolder common.Address
	// splitPct is the facility share of every inflow, in percent.
	splitPct uint64
	// commissionPct is deducted from the manager-bound share when an inflow
	// bypasses the facility, in percent.
	commissionPct uint64
	sweep         SweepConfig
}

// NewRouter constructs a fee split router. splitPct and commissionPct are
// whole percents.
func NewRouter(poolHolder common.Address, splitPct, commissionPct uint64) (*Router, error) {
	if splitPct > 100 {
		return nil, ErrInvalidSplit
	}
	if commissionPct > 100 {
		return nil, ErrInvalidCommission
	}
	return &Router{
		poolHolder:    poolHolder,
		splitPct:      splitPct,
		commissionPct: commissionPct,
		now:           func() int64 { return time.Now().Unix() },
	}, nil
}

// SetState wires the router to the external persistence layer.
func (r *Router) SetState(state routerState) { r.state = state }

// SetFacility wires the position-ledger deposit entry point.
func (r *Router) SetFacility(f Facility) {
	if r == nil {
		return
	}
	r.facility = f
}

// SetPayer wires the outbound transfer capability.
func (r *Router) SetPayer(p Payer) {
	if r == nil {
		return
	}
	r.payer = p
}

// SetVenue wires the external conversion venue used by sweeps.
func (r *Router) SetVenue(v market.SwapVenue) {
	if r == nil {
		return
	}
	r.venue = v
}

// SetPauses installs the administrative pause switch.
func (r *Router) SetPauses(p ledgercommon.PauseView) {
	if r == nil {
		return
	}
	r.pauses = p
}

// SetAuthorizer installs the role capability gating fee withdrawals.
func (r *Router) SetAuthorizer(a ledgercommon.Authorizer) {
	if r == nil {
		return
	}
	r.auth = a
}

// SetSplit replaces the routing percentages, validated like NewRouter.
func (r *Router) SetSplit(splitPct, commissionPct uint64) error {
	if r == nil {
		return errNilState
	}
	if splitPct > 100 {
		return ErrInvalidSplit
	}
	if commissionPct > 100 {
		return ErrInvalidCommission
	}
	r.splitPct = splitPct
	r.commissionPct = commissionPct
	return nil
}

// SetSweepConfig replaces the sweep policy.
func (r *Router) SetSweepConfig(cfg SweepConfig) {
	if r == nil {
		return
	}
	r.sweep = cfg
	if r.sweep.Threshold != nil {
		r.sweep.Threshold = new(big.Int).Set(cfg.Threshold)
	}
}

// SetNowFunc overrides the wall clock used for venue deadlines.
func (r *Router) SetNowFunc(now func() int64) {
	if r == nil || now == nil {
		return
	}
	r.now = now
}

// RouteInflow splits a gross inflow between the facility and the manager
// pool. With toFacility the facility share is deposited on behalf of the
// recipient and the manager share accumulates untouched. Without it, the
// facility share (and only that share) is paid out to the recipient's wallet
// while a commission is deducted from the manager-bound share into collected
// fees.
func (r *Router) RouteInflow(token common.Address, gross *big.Int, recipient common.Address, toFacility bool) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := ledgercommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if err := r.latch.Enter(); err != nil {
		return err
	}
	defer r.latch.Exit()
	if gross == nil || gross.Sign() <= 0 {
		return ErrInvalidAmount
	}

	facilityShare := percentOf(gross, r.splitPct)
	managerShare := new(big.Int).Sub(gross, facilityShare)

	pool, err := r.loadPool(token)
	if err != nil {
		return err
	}

	commission := big.NewInt(0)
	if toFacility {
		if r.facility == nil {
			return errNoFacility
		}
		if facilityShare.Sign() > 0 {
			if err := r.facility.Deposit(recipient, token, facilityShare); err != nil {
				return err
			}
		}
		pool.Add(pool, managerShare)
	} else {
		if r.payer == nil {
			return errNoPayer
		}
		if facilityShare.Sign() > 0 {
			if err := r.payer.Transfer(token, recipient, facilityShare); err != nil {
				return err
			}
		}
		commission = percentOf(managerShare, r.commissionPct)
		if commission.Sign() > 0 {
			collected, err := r.loadCommission(token)
			if err != nil {
				return err
			}
			collected.Add(collected, commission)
			if err := r.state.PutCollectedCommission(token, collected); err != nil {
				return err
			}
		}
		pool.Add(pool, new(big.Int).Sub(managerShare, commission))
	}

	if err := r.state.PutManagerPool(token, pool); err != nil {
		return err
	}
	r.emit(eventRouted, map[string]string{
		"token":      token.Hex(),
		"recipient":  recipient.Hex(),
		"gross":      gross.String(),
		"facility":   facilityShare.String(),
		"manager":    new(big.Int).Sub(managerShare, commission).String(),
		"commission": commission.String(),
		"toFacility": strconv.FormatBool(toFacility),
	})
	return nil
}

// Sweep forwards the accumulated manager pool for token into the facility on
// behalf of the pool holder, converting through the venue when a path is
// configured. Below the threshold it is a no-op returning zero, not a
// failure. The swept amount (pre-conversion) is returned.
func (r *Router) Sweep(token common.Address, minAmountOut *big.Int) (*big.Int, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := ledgercommon.Guard(r.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := r.latch.Enter(); err != nil {
		return nil, err
	}
	defer r.latch.Exit()
	if r.facility == nil {
		return nil, errNoFacility
	}

	pool, err := r.loadPool(token)
	if err != nil {
		return nil, err
	}
	threshold := r.sweep.Threshold
	if threshold != nil && threshold.Sign() > 0 && pool.Cmp(threshold) < 0 {
		return big.NewInt(0), nil
	}
	if pool.Sign() == 0 {
		return big.NewInt(0), nil
	}

	swept := new(big.Int).Set(pool)
	supplied := swept
	suppliedToken := token

	if len(r.sweep.ConvertPath) >= 2 {
		if r.venue == nil {
			return nil, errNoVenue
		}
		deadline := uint64(r.now()) + r.sweep.DeadlineSecs
		amounts, err := r.venue.Swap(r.sweep.ConvertPath, swept, minAmountOut, r.poolHolder, deadline)
		if err != nil {
			return nil, err
		}
		if len(amounts) != len(r.sweep.ConvertPath) {
			return nil, errVenueLegMismatch
		}
		supplied = amounts[len(amounts)-1]
		suppliedToken = r.sweep.ConvertPath[len(r.sweep.ConvertPath)-1]
	}

	if err := r.facility.Deposit(r.poolHolder, suppliedToken, supplied); err != nil {
		return nil, err
	}
	if err := r.state.PutManagerPool(token, big.NewInt(0)); err != nil {
		return nil, err
	}
	r.emit(eventSwept, map[string]string{
		"token":    token.Hex(),
		"swept":    swept.String(),
		"supplied": supplied.String(),
		"into":     suppliedToken.Hex(),
	})
	return swept, nil
}

// WithdrawCollectedFees drains up to the accumulated commission balance for
// token to the recipient.
func (r *Router) WithdrawCollectedFees(caller, token, to common.Address, amount *big.Int) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := ledgercommon.RequireRole(r.auth, caller, ledgercommon.RoleAdmin); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if r.payer == nil {
		return errNoPayer
	}
	collected, err := r.loadCommission(token)
	if err != nil {
		return err
	}
	if collected.Cmp(amount) < 0 {
		return ErrInsufficientFees
	}
	if err := r.payer.Transfer(token, to, amount); err != nil {
		return fmt.Errorf("fee split router: transfer: %w", err)
	}
	collected.Sub(collected, amount)
	if err := r.state.PutCollectedCommission(token, collected); err != nil {
		return err
	}
	r.emit(eventFeesWithdrawn, map[string]string{
		"token":  token.Hex(),
		"to":     to.Hex(),
		"amount": amount.String(),
	})
	return nil
}

// ManagerPool reports the accumulated manager balance for token.
func (r *Router) ManagerPool(token common.Address) (*big.Int, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	return r.loadPool(token)
}

// CollectedFees reports the accumulated commission balance for token.
func (r *Router) CollectedFees(token common.Address) (*big.Int, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	return r.loadCommission(token)
}

func (r *Router) loadPool(token common.Address) (*big.Int, error) {
	pool, err := r.state.GetManagerPool(token)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(pool), nil
}

func (r *Router) loadCommission(token common.Address) (*big.Int, error) {
	collected, err := r.state.GetCollectedCommission(token)
	if err != nil {
		return nil, err
	}
	if collected == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(collected), nil
}

func percentOf(amount *big.Int, pct uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || pct == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(pct))
	return out.Quo(out, big.NewInt(100))
}

func (r *Router) emit(eventType string, attrs map[string]string) {
	if r == nil || r.state == nil {
		return
	}
	r.state.AppendEvent(&types.Event{Type: eventType, Attributes: attrs})
}
