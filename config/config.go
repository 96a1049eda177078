package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// AssetConfig declares one underlying asset registered at startup.
type AssetConfig struct {
	Token           string `toml:"Token"`
	Decimals        uint8  `toml:"Decimals"`
	Stable          bool   `toml:"Stable"`
	AdapterEndpoint string `toml:"AdapterEndpoint"`
	OracleEndpoint  string `toml:"OracleEndpoint,omitempty"`
}

// LedgerConfig groups position-ledger accrual and fee knobs.
type LedgerConfig struct {
	RateDeltaBps uint64 `toml:"RateDeltaBps"`
	RepayFeeBps  uint64 `toml:"RepayFeeBps"`
}

// CollateralConfig groups the collateralization factors, in whole percents.
type CollateralConfig struct {
	StableFactorPct    uint64 `toml:"StableFactorPct"`
	NonStableFactorPct uint64 `toml:"NonStableFactorPct"`
}

// CreditConfig groups the scoring parameters.
type CreditConfig struct {
	Baseline            uint64 `toml:"Baseline"`
	MaxScore            uint64 `toml:"MaxScore"`
	BorrowStep          uint64 `toml:"BorrowStep"`
	RepayStep           uint64 `toml:"RepayStep"`
	DecayThresholdSteps uint64 `toml:"DecayThresholdSteps"`
	MultiplierBps       uint64 `toml:"MultiplierBps"`
	CapacityUnitWei     string `toml:"CapacityUnitWei"`
	GlobalCeilingWei    string `toml:"GlobalCeilingWei"`
}

// FeeSplitConfig groups inflow routing and sweep policy.
type FeeSplitConfig struct {
	SplitPct          uint64   `toml:"SplitPct"`
	CommissionPct     uint64   `toml:"CommissionPct"`
	SweepThresholdWei string   `toml:"SweepThresholdWei"`
	SweepConvertPath  []string `toml:"SweepConvertPath,omitempty"`
	SweepDeadlineSecs uint64   `toml:"SweepDeadlineSecs"`
	PoolHolder        string   `toml:"PoolHolder"`
	VenueEndpoint     string   `toml:"VenueEndpoint,omitempty"`
}

type Config struct {
	ListenAddress string           `toml:"ListenAddress"`
	DataDir       string           `toml:"DataDir"`
	LogFile       string           `toml:"LogFile,omitempty"`
	Env           string           `toml:"Env"`
	RPCToken      string           `toml:"RPCToken"`
	AdminAddress  string           `toml:"AdminAddress"`
	PayerEndpoint string           `toml:"PayerEndpoint,omitempty"`
	Ledger        LedgerConfig     `toml:"ledger"`
	Collateral    CollateralConfig `toml:"collateral"`
	Credit        CreditConfig     `toml:"credit"`
	FeeSplit      FeeSplitConfig   `toml:"feesplit"`
	Assets        []AssetConfig    `toml:"assets"`
}

// Load reads the configuration from path, writing a commented default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8646"
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "local"
	}
	if cfg.Credit.Baseline == 0 {
		cfg.Credit.Baseline = 500
	}
	if cfg.Credit.MaxScore == 0 {
		cfg.Credit.MaxScore = 1000
	}
	if cfg.Credit.BorrowStep == 0 {
		cfg.Credit.BorrowStep = 6
	}
	if cfg.Credit.RepayStep == 0 {
		cfg.Credit.RepayStep = 4
	}
	if cfg.Collateral.StableFactorPct == 0 {
		cfg.Collateral.StableFactorPct = 70
	}
	if cfg.Collateral.NonStableFactorPct == 0 {
		cfg.Collateral.NonStableFactorPct = 50
	}
	if cfg.FeeSplit.SplitPct == 0 {
		cfg.FeeSplit.SplitPct = 80
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
