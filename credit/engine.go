package credit

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	ledgercommon "github.com/Paracosm-Labs/mintdeals-ledger/common"
	"github.com/Paracosm-Labs/mintdeals-ledger/core/types"
)

const moduleName = "credit"

const (
	eventRegistered     = "credit.profile.registered"
	eventScoreDecreased = "credit.score.decreased"
	eventScoreIncreased = "credit.score.increased"
	eventScoreOverride  = "credit.score.override"
)

type engineState interface {
	GetProfile(user common.Address) (*Profile, error)
	PutProfile(profile *Profile) error
	GetCreditPool() (*PoolState, error)
	PutCreditPool(pool *PoolState) error
	AppendEvent(evt *types.Event)
}

// Engine drives the per-user credit score state machine and the shared-pool
// accounting derived from it.
type Engine struct {
	state  engineState
	params Params
	step   uint64
	pauses ledgercommon.PauseView
	auth   ledgercommon.Authorizer
}

// NewEngine constructs a credit engine with the supplied scoring parameters.
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
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

// SetAuthorizer installs the role capability gating admin overrides.
func (e *Engine) SetAuthorizer(a ledgercommon.Authorizer) {
	if e == nil {
		return
	}
	e.auth = a
}

// SetStep advances the engine's view of the external step counter. Steps only
// move forward; a lower value is ignored.
func (e *Engine) SetStep(step uint64) {
	if e == nil || step <= e.step {
		return
	}
	e.step = step
}

// Step reports the engine's current step.
func (e *Engine) Step() uint64 {
	if e == nil {
		return 0
	}
	return e.step
}

// EnsureActive reports the module pause state so callers sequencing external
// transfers can fail before any leg executes.
func (e *Engine) EnsureActive() error {
	if e == nil {
		return nil
	}
	return ledgercommon.Guard(e.pauses, moduleName)
}

// RegisterUser creates the profile at baseline score. Repeated registration
// fails; profiles are never destroyed.
func (e *Engine) RegisterUser(user common.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := ledgercommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	existing, err := e.state.GetProfile(user)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyRegistered
	}
	profile := &Profile{
		User:             user,
		Score:            e.params.Baseline,
		DebtUsed:         big.NewInt(0),
		LastUpdateStep:   e.step,
		LastPositiveStep: e.step,
		Boost:            1,
	}
	if err := e.state.PutProfile(profile); err != nil {
		return err
	}
	e.emit(eventRegistered, user, map[string]string{
		"score": strconv.FormatUint(profile.Score, 10),
	})
	return nil
}

// GetCreditInfo reports the score, outstanding draw and current capacity.
func (e *Engine) GetCreditInfo(user common.Address) (uint64, *big.Int, *big.Int, error) {
	profile, err := e.requireProfile(user)
	if err != nil {
		return 0, nil, nil, err
	}
	return profile.Score, new(big.Int).Set(profile.DebtUsed), e.capacity(profile), nil
}

// BorrowingCapacity derives the score-based ceiling on pooled-credit debt.
// This ceiling is independent of, and in addition to, the collateral-based
// ceiling enforced by the collateral engine.
func (e *Engine) BorrowingCapacity(user common.Address) (*big.Int, error) {
	profile, err := e.requireProfile(user)
	if err != nil {
		return nil, err
	}
	return e.capacity(profile), nil
}

// EnsureBorrowAllowed performs the read-only validation the position ledger
// runs before committing a collateralized borrow: the profile must exist and
// the global ceiling must leave headroom for amount.
func (e *Engine) EnsureBorrowAllowed(user common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := ledgercommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, err := e.requireProfile(user); err != nil {
		return err
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	return checkCeiling(pool, amount)
}

// RecordBorrow moves the score down by the dampened borrow step and books the
// amount against the user's and the pool's credit usage. Callers must have
// validated the amount against their own ceiling first.
func (e *Engine) RecordBorrow(user common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := ledgercommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	profile, err := e.requireProfile(user)
	if err != nil {
		return err
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if err := checkCeiling(pool, amount); err != nil {
		return err
	}

	step := e.dampenedStep(e.params.BorrowStep, profile)
	before := profile.Score
	floor := e.params.Floor()
	if profile.Score > floor+step {
		profile.Score -= step
	} else {
		profile.Score = floor
	}
	profile.DebtUsed = new(big.Int).Add(profile.DebtUsed, amount)
	profile.LastUpdateStep = e.step

	pool.TotalCreditUsed = new(big.Int).Add(pool.TotalCreditUsed, amount)

	if err := e.state.PutProfile(profile); err != nil {
		return err
	}
	if err := e.state.PutCreditPool(pool); err != nil {
		return err
	}
	e.emit(eventScoreDecreased, user, map[string]string{
		"before": strconv.FormatUint(before, 10),
		"after":  strconv.FormatUint(profile.Score, 10),
		"amount": amount.String(),
	})
	return nil
}

// RecordRepay moves the score up by the dampened repay step, refreshes the
// positive-event marker and releases credit usage. Usage decreases are floored
// at zero so collateralized repayments can exceed the recorded draw.
func (e *Engine) RecordRepay(user common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := ledgercommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	profile, err := e.requireProfile(user)
	if err != nil {
		return err
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}

	step := e.dampenedStep(e.params.RepayStep, profile)
	before := profile.Score
	if profile.Score+step < e.params.MaxScore {
		profile.Score += step
	} else {
		profile.Score = e.params.MaxScore
	}

	released := new(big.Int).Set(amount)
	if released.Cmp(profile.DebtUsed) > 0 {
		released.Set(profile.DebtUsed)
	}
	profile.DebtUsed = new(big.Int).Sub(profile.DebtUsed, released)
	profile.LastUpdateStep = e.step
	profile.LastPositiveStep = e.step

	pool.TotalCreditUsed = new(big.Int).Sub(pool.TotalCreditUsed, released)
	if pool.TotalCreditUsed.Sign() < 0 {
		pool.TotalCreditUsed = big.NewInt(0)
	}

	if err := e.state.PutProfile(profile); err != nil {
		return err
	}
	if err := e.state.PutCreditPool(pool); err != nil {
		return err
	}
	e.emit(eventScoreIncreased, user, map[string]string{
		"before": strconv.FormatUint(before, 10),
		"after":  strconv.FormatUint(profile.Score, 10),
		"amount": amount.String(),
	})
	return nil
}

// Draw books a shared-pool borrow gated by the score-derived capacity on top
// of the global ceiling.
func (e *Engine) Draw(user common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	profile, err := e.requireProfile(user)
	if err != nil {
		return err
	}
	projected := new(big.Int).Add(profile.DebtUsed, amount)
	if projected.Cmp(e.capacity(profile)) > 0 {
		return ErrCapacityExceeded
	}
	return e.RecordBorrow(user, amount)
}

// Settle repays a shared-pool draw. Unlike RecordRepay it rejects amounts
// exceeding the recorded draw.
func (e *Engine) Settle(user common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	profile, err := e.requireProfile(user)
	if err != nil {
		return err
	}
	if amount.Cmp(profile.DebtUsed) > 0 {
		return ErrInsufficientDebt
	}
	return e.RecordRepay(user, amount)
}

// AdminAdjust applies a signed score delta and a replacement boost factor in
// one atomic update, validated with the same cap and floor as organic
// transitions.
func (e *Engine) AdminAdjust(caller, user common.Address, delta int64, boost uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := ledgercommon.RequireRole(e.auth, caller, ledgercommon.RoleAdmin); err != nil {
		return err
	}
	if boost == 0 {
		return ErrInvalidBoost
	}
	profile, err := e.requireProfile(user)
	if err != nil {
		return err
	}
	before := profile.Score
	floor := e.params.Floor()
	if delta >= 0 {
		increment := uint64(delta)
		if profile.Score+increment < e.params.MaxScore {
			profile.Score += increment
		} else {
			profile.Score = e.params.MaxScore
		}
	} else {
		decrement := uint64(-delta)
		if profile.Score > floor+decrement {
			profile.Score -= decrement
		} else {
			profile.Score = floor
		}
	}
	profile.Boost = boost
	profile.LastUpdateStep = e.step
	if err := e.state.PutProfile(profile); err != nil {
		return err
	}
	e.emit(eventScoreOverride, user, map[string]string{
		"before": strconv.FormatUint(before, 10),
		"after":  strconv.FormatUint(profile.Score, 10),
		"boost":  strconv.FormatUint(boost, 10),
	})
	return nil
}

// SetGlobalCeiling replaces the pool-wide credit ceiling.
func (e *Engine) SetGlobalCeiling(caller common.Address, ceiling *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := ledgercommon.RequireRole(e.auth, caller, ledgercommon.RoleAdmin); err != nil {
		return err
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if ceiling == nil {
		pool.GlobalCeiling = big.NewInt(0)
	} else {
		pool.GlobalCeiling = new(big.Int).Set(ceiling)
	}
	return e.state.PutCreditPool(pool)
}

// PoolAccounting reports the global usage counters.
func (e *Engine) PoolAccounting() (*PoolState, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	return &PoolState{
		TotalCreditUsed: new(big.Int).Set(pool.TotalCreditUsed),
		GlobalCeiling:   new(big.Int).Set(pool.GlobalCeiling),
	}, nil
}

// dampenedStep shrinks the step magnitude for inactive users. The dampening is
// symmetric: it slows both score gains and score losses.
func (e *Engine) dampenedStep(step uint64, profile *Profile) uint64 {
	threshold := e.params.DecayThresholdSteps
	if threshold == 0 || profile == nil {
		return step
	}
	var elapsed uint64
	if e.step > profile.LastPositiveStep {
		elapsed = e.step - profile.LastPositiveStep
	}
	switch {
	case elapsed*3 <= threshold*4:
		return step
	case elapsed <= threshold*2:
		return step / 2
	default:
		return step / 4
	}
}

func (e *Engine) capacity(profile *Profile) *big.Int {
	if profile == nil {
		return big.NewInt(0)
	}
	boost := profile.Boost
	if boost == 0 {
		boost = 1
	}
	points := new(big.Int).SetUint64(profile.Score)
	points.Mul(points, new(big.Int).SetUint64(e.params.MultiplierBps))
	points.Mul(points, new(big.Int).SetUint64(boost))
	points.Quo(points, big.NewInt(10_000))
	if e.params.CapacityUnit != nil && e.params.CapacityUnit.Sign() > 0 {
		points.Mul(points, e.params.CapacityUnit)
	}
	return points
}

func (e *Engine) requireProfile(user common.Address) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	profile, err := e.state.GetProfile(user)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	if profile.DebtUsed == nil {
		profile.DebtUsed = big.NewInt(0)
	}
	if profile.Boost == 0 {
		profile.Boost = 1
	}
	return profile, nil
}

func (e *Engine) loadPool() (*PoolState, error) {
	pool, err := e.state.GetCreditPool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &PoolState{}
	}
	if pool.TotalCreditUsed == nil {
		pool.TotalCreditUsed = big.NewInt(0)
	}
	if pool.GlobalCeiling == nil {
		pool.GlobalCeiling = big.NewInt(0)
	}
	return pool, nil
}

func checkCeiling(pool *PoolState, amount *big.Int) error {
	if pool == nil || pool.GlobalCeiling == nil || pool.GlobalCeiling.Sign() == 0 {
		return nil
	}
	projected := new(big.Int).Add(pool.TotalCreditUsed, amount)
	if projected.Cmp(pool.GlobalCeiling) > 0 {
		return ErrGlobalLimitExceeded
	}
	return nil
}

func (e *Engine) emit(eventType string, user common.Address, attrs map[string]string) {
	if e == nil || e.state == nil {
		return
	}
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrs["user"] = user.Hex()
	attrs["step"] = strconv.FormatUint(e.step, 10)
	e.state.AppendEvent(&types.Event{Type: eventType, Attributes: attrs})
}
