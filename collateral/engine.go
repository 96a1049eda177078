package collateral

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Paracosm-Labs/mintdeals-ledger/registry"
)

var (
	errNilPositions = errors.New("collateral engine: position source not configured")
	errNilRegistry  = errors.New("collateral engine: asset registry not configured")
	// ErrInvalidOraclePrice mirrors the oracle failure policy: a non-positive
	// price fails the valuation instead of valuing the asset at zero.
	ErrInvalidOraclePrice = errors.New("collateral engine: invalid oracle price")
	ErrNotCollateralAsset = errors.New("collateral engine: stable assets are valued directly, not via oracle")
)

var pow10 = func() []*big.Int {
	out := make([]*big.Int, 19)
	for i := range out {
		out[i] = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(i)), nil)
	}
	return out
}()

const valuationDecimals = 18

// PositionSource exposes the stored per-user per-asset amounts the engine
// values. Implemented by the state manager.
type PositionSource interface {
	LedgerPosition(user, token common.Address) (deposited, borrowed *big.Int, err error)
}

// Params holds the admin-configurable collateralization percentages, both in
// (0,100].
type Params struct {
	StableFactorPct    uint64
	NonStableFactorPct uint64
}

// Engine computes collateral-derived borrowing power and outstanding
// stablecoin debt across every registered asset.
type Engine struct {
	assets    *registry.Registry
	positions PositionSource
	params    Params
}

// NewEngine constructs a collateral engine over the registry.
func NewEngine(assets *registry.Registry, params Params) *Engine {
	return &Engine{assets: assets, params: params}
}

// SetPositions wires the engine to the position store.
func (e *Engine) SetPositions(src PositionSource) {
	if e == nil {
		return
	}
	e.positions = src
}

// SetParams replaces the collateral factors.
func (e *Engine) SetParams(params Params) {
	if e == nil {
		return
	}
	e.params = params
}

// TotalBorrowingPower sums the discounted value of every deposit the user
// holds: stable deposits at StableFactorPct, non-stable deposits at
// NonStableFactorPct of their oracle valuation.
func (e *Engine) TotalBorrowingPower(user common.Address) (*big.Int, error) {
	return e.borrowingPower(user, nil, nil)
}

// BorrowingPowerWith recomputes the power as if the user's deposit in token
// were adjustedDeposit. The position ledger uses this for the check-then-commit
// withdrawal gate without ever exposing a transient decrement.
func (e *Engine) BorrowingPowerWith(user, token common.Address, adjustedDeposit *big.Int) (*big.Int, error) {
	return e.borrowingPower(user, &token, adjustedDeposit)
}

func (e *Engine) borrowingPower(user common.Address, override *common.Address, adjustedDeposit *big.Int) (*big.Int, error) {
	if e == nil || e.positions == nil {
		return nil, errNilPositions
	}
	if e.assets == nil {
		return nil, errNilRegistry
	}
	power := big.NewInt(0)
	for _, asset := range e.assets.Assets() {
		deposited, _, err := e.positions.LedgerPosition(user, asset.Token)
		if err != nil {
			return nil, err
		}
		if override != nil && asset.Token == *override {
			deposited = adjustedDeposit
		}
		if deposited == nil || deposited.Sign() == 0 {
			continue
		}
		if asset.Stable {
			share := new(big.Int).Mul(deposited, new(big.Int).SetUint64(e.params.StableFactorPct))
			share.Quo(share, big.NewInt(100))
			power.Add(power, share)
			continue
		}
		valuation, err := e.valueReserve(asset, deposited)
		if err != nil {
			return nil, err
		}
		share := new(big.Int).Mul(valuation, new(big.Int).SetUint64(e.params.NonStableFactorPct))
		share.Quo(share, big.NewInt(100))
		power.Add(power, share)
	}
	return power, nil
}

// TotalStablecoinDebt sums the borrowed amount across all stable-asset
// positions. Callers wanting post-accrual figures accrue first.
func (e *Engine) TotalStablecoinDebt(user common.Address) (*big.Int, error) {
	if e == nil || e.positions == nil {
		return nil, errNilPositions
	}
	if e.assets == nil {
		return nil, errNilRegistry
	}
	debt := big.NewInt(0)
	for _, asset := range e.assets.Assets() {
		if !asset.Stable {
			continue
		}
		_, borrowed, err := e.positions.LedgerPosition(user, asset.Token)
		if err != nil {
			return nil, err
		}
		if borrowed != nil && borrowed.Sign() > 0 {
			debt.Add(debt, borrowed)
		}
	}
	return debt, nil
}

// ReserveValuation prices the user's deposit in a non-stable asset, normalized
// to 18 decimal places. Stable assets are rejected: they are valued directly.
func (e *Engine) ReserveValuation(token, user common.Address) (*big.Int, error) {
	if e == nil || e.positions == nil {
		return nil, errNilPositions
	}
	asset, err := e.assets.Resolve(token)
	if err != nil {
		return nil, err
	}
	if asset.Stable {
		return nil, ErrNotCollateralAsset
	}
	deposited, _, err := e.positions.LedgerPosition(user, token)
	if err != nil {
		return nil, err
	}
	if deposited == nil || deposited.Sign() == 0 {
		return big.NewInt(0), nil
	}
	return e.valueReserve(asset, deposited)
}

// valueReserve multiplies amount by the oracle price with both operands
// normalized to a common 18-decimal precision first, avoiding scale errors
// between assets of different native precision.
func (e *Engine) valueReserve(asset *registry.Asset, amount *big.Int) (*big.Int, error) {
	if asset.Oracle == nil {
		return nil, fmt.Errorf("collateral engine: no oracle for asset %s", asset.Token.Hex())
	}
	price, err := asset.Oracle.LatestPrice()
	if err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidOraclePrice
	}
	priceDecimals, err := asset.Oracle.PriceDecimals()
	if err != nil {
		return nil, err
	}
	normAmount := normalize(amount, asset.Decimals)
	normPrice := normalize(price, priceDecimals)
	valuation := new(big.Int).Mul(normAmount, normPrice)
	return valuation.Quo(valuation, pow10[valuationDecimals]), nil
}

func normalize(value *big.Int, decimals uint8) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	if decimals == valuationDecimals {
		return new(big.Int).Set(value)
	}
	if decimals < valuationDecimals {
		return new(big.Int).Mul(value, pow10[valuationDecimals-decimals])
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-valuationDecimals)), nil)
	return new(big.Int).Quo(value, scale)
}
