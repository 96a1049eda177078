package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/Paracosm-Labs/mintdeals-ledger/collateral"
	"github.com/Paracosm-Labs/mintdeals-ledger/common"
	"github.com/Paracosm-Labs/mintdeals-ledger/config"
	"github.com/Paracosm-Labs/mintdeals-ledger/credit"
	"github.com/Paracosm-Labs/mintdeals-ledger/feesplit"
	"github.com/Paracosm-Labs/mintdeals-ledger/ledger"
	"github.com/Paracosm-Labs/mintdeals-ledger/market"
	"github.com/Paracosm-Labs/mintdeals-ledger/observability/logging"
	"github.com/Paracosm-Labs/mintdeals-ledger/registry"
	"github.com/Paracosm-Labs/mintdeals-ledger/rpc"
	"github.com/Paracosm-Labs/mintdeals-ledger/state"
	"github.com/Paracosm-Labs/mintdeals-ledger/storage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.Setup("mintdeals-ledger", "", "").Error("failed to load configuration", "path", configPath, "error", err)
		os.Exit(1)
	}
	log := logging.Setup("mintdeals-ledger", cfg.Env, cfg.LogFile)

	var db storage.Database
	if cfg.DataDir != "" {
		ldb, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
		if err != nil {
			log.Error("failed to open database", "dataDir", cfg.DataDir, "error", err)
			os.Exit(1)
		}
		db = ldb
	} else {
		log.Warn("no DataDir configured, state is in-memory and will not survive restarts")
		db = storage.NewMemDB()
	}
	defer db.Close()

	manager := state.NewManager(db)
	admin := ethcommon.HexToAddress(cfg.AdminAddress)
	roles := common.NewStaticRoles(map[string][]ethcommon.Address{
		common.RoleAdmin: {admin},
	})
	pauses := common.NewPauses()

	var payer *market.HTTPPayer
	if cfg.PayerEndpoint != "" {
		payer = market.NewHTTPPayer(nil, cfg.PayerEndpoint)
	}

	assets := registry.NewRegistry(roles)
	for _, asset := range cfg.Assets {
		token := ethcommon.HexToAddress(asset.Token)
		descriptor := registry.Asset{
			Token:    token,
			Adapter:  market.NewHTTPAdapter(nil, asset.AdapterEndpoint, token),
			Decimals: asset.Decimals,
			Stable:   asset.Stable,
		}
		if !asset.Stable {
			descriptor.Oracle = market.NewHTTPOracle(nil, asset.OracleEndpoint)
		}
		if err := assets.Register(admin, descriptor); err != nil {
			log.Error("failed to register asset", "token", asset.Token, "error", err)
			os.Exit(1)
		}
		log.Info("registered asset", "token", asset.Token, "stable", asset.Stable, "decimals", asset.Decimals)
	}

	creditEngine := credit.NewEngine(credit.Params{
		Baseline:            cfg.Credit.Baseline,
		MaxScore:            cfg.Credit.MaxScore,
		BorrowStep:          cfg.Credit.BorrowStep,
		RepayStep:           cfg.Credit.RepayStep,
		DecayThresholdSteps: cfg.Credit.DecayThresholdSteps,
		MultiplierBps:       cfg.Credit.MultiplierBps,
		CapacityUnit:        config.MustWei(cfg.Credit.CapacityUnitWei),
	})
	creditEngine.SetState(manager)
	creditEngine.SetPauses(pauses)
	creditEngine.SetAuthorizer(roles)
	creditEngine.SetStep(1)
	if ceiling := config.MustWei(cfg.Credit.GlobalCeilingWei); ceiling.Sign() > 0 {
		if err := creditEngine.SetGlobalCeiling(admin, ceiling); err != nil {
			log.Error("failed to set global ceiling", "error", err)
			os.Exit(1)
		}
	}

	collateralEngine := collateral.NewEngine(assets, collateral.Params{
		StableFactorPct:    cfg.Collateral.StableFactorPct,
		NonStableFactorPct: cfg.Collateral.NonStableFactorPct,
	})
	collateralEngine.SetPositions(manager)

	ledgerEngine := ledger.NewEngine(assets, collateralEngine, creditEngine)
	ledgerEngine.SetState(manager)
	ledgerEngine.SetPauses(pauses)
	ledgerEngine.SetAuthorizer(roles)
	ledgerEngine.SetRateDelta(cfg.Ledger.RateDeltaBps)
	ledgerEngine.SetRepayFee(cfg.Ledger.RepayFeeBps)
	ledgerEngine.SetStep(1)
	if payer != nil {
		ledgerEngine.SetPayer(payer)
	}

	router, err := feesplit.NewRouter(ethcommon.HexToAddress(cfg.FeeSplit.PoolHolder), cfg.FeeSplit.SplitPct, cfg.FeeSplit.CommissionPct)
	if err != nil {
		log.Error("failed to construct fee split router", "error", err)
		os.Exit(1)
	}
	router.SetState(manager)
	router.SetFacility(ledgerEngine)
	router.SetPauses(pauses)
	router.SetAuthorizer(roles)
	if payer != nil {
		router.SetPayer(payer)
	}
	if cfg.FeeSplit.VenueEndpoint != "" {
		router.SetVenue(market.NewHTTPVenue(nil, cfg.FeeSplit.VenueEndpoint))
	}
	convertPath := make([]ethcommon.Address, 0, len(cfg.FeeSplit.SweepConvertPath))
	for _, hop := range cfg.FeeSplit.SweepConvertPath {
		convertPath = append(convertPath, ethcommon.HexToAddress(hop))
	}
	router.SetSweepConfig(feesplit.SweepConfig{
		Threshold:    config.MustWei(cfg.FeeSplit.SweepThresholdWei),
		ConvertPath:  convertPath,
		DeadlineSecs: cfg.FeeSplit.SweepDeadlineSecs,
	})

	server := rpc.NewServer(rpc.Deps{
		Log:        log,
		AuthToken:  cfg.RPCToken,
		Admin:      admin,
		Ledger:     ledgerEngine,
		Credit:     creditEngine,
		Collateral: collateralEngine,
		Router:     router,
		Assets:     assets,
		Pauses:     pauses,
		Events:     manager,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("rpc listening", "address", cfg.ListenAddress)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("rpc server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("stopped")
}
