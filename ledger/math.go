package ledger

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	// wad is the fixed-point scale shared with the market adapter's per-step
	// borrow rate.
	wad = mustBigInt("1000000000000000000")
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// applyBps computes amount * bps / 10000, truncating toward zero.
func applyBps(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, basisPoints)
}

// inflateRate scales a wad-denominated rate up by deltaBps over par.
func inflateRate(rate *big.Int, deltaBps uint64) *big.Int {
	if rate == nil || rate.Sign() <= 0 {
		return big.NewInt(0)
	}
	if deltaBps == 0 {
		return new(big.Int).Set(rate)
	}
	numerator := new(big.Int).SetUint64(10_000 + deltaBps)
	out := new(big.Int).Mul(rate, numerator)
	return out.Quo(out, basisPoints)
}

// simpleInterest bridges elapsed steps with a single linear update:
// principal * rate * elapsed / wad.
func simpleInterest(principal, rate *big.Int, elapsed uint64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || rate == nil || rate.Sign() <= 0 || elapsed == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(principal, rate)
	out.Mul(out, new(big.Int).SetUint64(elapsed))
	return out.Quo(out, wad)
}
