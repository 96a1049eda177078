package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Validate enforces the parameter ranges the engines assume.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if c.Collateral.StableFactorPct == 0 || c.Collateral.StableFactorPct > 100 {
		return fmt.Errorf("config: StableFactorPct must be within (0,100], got %d", c.Collateral.StableFactorPct)
	}
	if c.Collateral.NonStableFactorPct == 0 || c.Collateral.NonStableFactorPct > 100 {
		return fmt.Errorf("config: NonStableFactorPct must be within (0,100], got %d", c.Collateral.NonStableFactorPct)
	}
	if c.Ledger.RateDeltaBps > 10_000 {
		return fmt.Errorf("config: RateDeltaBps exceeds 100%%")
	}
	if c.Ledger.RepayFeeBps > 10_000 {
		return fmt.Errorf("config: RepayFeeBps exceeds 100%%")
	}
	if c.FeeSplit.SplitPct > 100 {
		return fmt.Errorf("config: SplitPct exceeds 100")
	}
	if c.FeeSplit.CommissionPct > 100 {
		return fmt.Errorf("config: CommissionPct exceeds 100")
	}
	if c.Credit.Baseline == 0 || c.Credit.MaxScore < c.Credit.Baseline {
		return fmt.Errorf("config: credit baseline/max scores inconsistent")
	}
	for _, raw := range []struct {
		name  string
		value string
	}{
		{"CapacityUnitWei", c.Credit.CapacityUnitWei},
		{"GlobalCeilingWei", c.Credit.GlobalCeilingWei},
		{"SweepThresholdWei", c.FeeSplit.SweepThresholdWei},
	} {
		if _, err := parseWei(raw.value); err != nil {
			return fmt.Errorf("config: %s: %w", raw.name, err)
		}
	}
	for i, asset := range c.Assets {
		if !common.IsHexAddress(asset.Token) {
			return fmt.Errorf("config: assets[%d].Token is not a hex address", i)
		}
		if strings.TrimSpace(asset.AdapterEndpoint) == "" {
			return fmt.Errorf("config: assets[%d] missing AdapterEndpoint", i)
		}
		if !asset.Stable && strings.TrimSpace(asset.OracleEndpoint) == "" {
			return fmt.Errorf("config: assets[%d] is non-stable and missing OracleEndpoint", i)
		}
		if asset.Decimals > 18 {
			return fmt.Errorf("config: assets[%d].Decimals exceeds 18", i)
		}
	}
	if c.FeeSplit.PoolHolder != "" && !common.IsHexAddress(c.FeeSplit.PoolHolder) {
		return fmt.Errorf("config: PoolHolder is not a hex address")
	}
	if c.AdminAddress != "" && !common.IsHexAddress(c.AdminAddress) {
		return fmt.Errorf("config: AdminAddress is not a hex address")
	}
	for i, hop := range c.FeeSplit.SweepConvertPath {
		if !common.IsHexAddress(hop) {
			return fmt.Errorf("config: SweepConvertPath[%d] is not a hex address", i)
		}
	}
	return nil
}

// parseWei converts an optional decimal string into wei. Empty means zero.
func parseWei(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount %q", raw)
	}
	return value, nil
}

// MustWei parses a validated wei string; it panics on malformed input and is
// intended for use after Validate has run.
func MustWei(raw string) *big.Int {
	value, err := parseWei(raw)
	if err != nil {
		panic(err)
	}
	return value
}
