package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8646" {
		t.Fatalf("default listen address = %q", cfg.ListenAddress)
	}
	if cfg.Credit.Baseline != 500 || cfg.Credit.MaxScore != 1000 {
		t.Fatalf("default credit params = %+v", cfg.Credit)
	}
	if cfg.Collateral.StableFactorPct != 70 || cfg.Collateral.NonStableFactorPct != 50 {
		t.Fatalf("default collateral params = %+v", cfg.Collateral)
	}
	if cfg.FeeSplit.SplitPct != 80 {
		t.Fatalf("default split = %d", cfg.FeeSplit.SplitPct)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "ListenAddress = \":9000\"\nBogusKey = true\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unknown keys") {
		t.Fatalf("got %v, want unknown keys error", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
ListenAddress = ":9000"
AdminAddress = "0x00000000000000000000000000000000000000aa"

[ledger]
RateDeltaBps = 250
RepayFeeBps = 100

[credit]
CapacityUnitWei = "1000000000000000"

[feesplit]
SplitPct = 80
CommissionPct = 8
SweepThresholdWei = "500000000000000000000"

[[assets]]
Token = "0x0000000000000000000000000000000000000010"
Decimals = 18
Stable = true
AdapterEndpoint = "http://localhost:9100"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ledger.RateDeltaBps != 250 || cfg.Ledger.RepayFeeBps != 100 {
		t.Fatalf("ledger section = %+v", cfg.Ledger)
	}
	if len(cfg.Assets) != 1 || !cfg.Assets[0].Stable {
		t.Fatalf("assets = %+v", cfg.Assets)
	}
	want, _ := new(big.Int).SetString("500000000000000000000", 10)
	if MustWei(cfg.FeeSplit.SweepThresholdWei).Cmp(want) != 0 {
		t.Fatalf("sweep threshold = %s", cfg.FeeSplit.SweepThresholdWei)
	}
}

func TestValidateRejectsBadFactors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero stable factor", func(c *Config) { c.Collateral.StableFactorPct = 0 }},
		{"factor above 100", func(c *Config) { c.Collateral.NonStableFactorPct = 101 }},
		{"rate delta above 100%", func(c *Config) { c.Ledger.RateDeltaBps = 10_001 }},
		{"split above 100", func(c *Config) { c.FeeSplit.SplitPct = 101 }},
		{"commission above 100", func(c *Config) { c.FeeSplit.CommissionPct = 101 }},
		{"max below baseline", func(c *Config) { c.Credit.MaxScore = 100 }},
		{"bad admin address", func(c *Config) { c.AdminAddress = "not-an-address" }},
		{"bad wei amount", func(c *Config) { c.Credit.CapacityUnitWei = "12x4" }},
	}
	for _, tc := range cases {
		cfg := &Config{}
		applyDefaults(cfg)
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: validation passed, want error", tc.name)
		}
	}
}

func TestValidateAssetEntries(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		cfg.Assets = []AssetConfig{{
			Token:           "0x0000000000000000000000000000000000000010",
			Decimals:        18,
			Stable:          true,
			AdapterEndpoint: "http://localhost:9100",
		}}
		return cfg
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid asset rejected: %v", err)
	}

	cfg = base()
	cfg.Assets[0].Token = "nope"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("bad token address accepted")
	}

	cfg = base()
	cfg.Assets[0].AdapterEndpoint = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("missing adapter endpoint accepted")
	}

	cfg = base()
	cfg.Assets[0].Stable = false
	if err := cfg.Validate(); err == nil {
		t.Fatalf("non-stable asset without oracle accepted")
	}

	cfg = base()
	cfg.Assets[0].Decimals = 19
	if err := cfg.Validate(); err == nil {
		t.Fatalf("19 decimals accepted")
	}
}

func TestMustWei(t *testing.T) {
	if MustWei("").Sign() != 0 {
		t.Fatalf("empty wei string != 0")
	}
	if MustWei("123").Cmp(big.NewInt(123)) != 0 {
		t.Fatalf("MustWei(123) mismatch")
	}
}
