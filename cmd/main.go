package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"nodemint/authorizer"
	"nodemint/db"
	"nodemint/handlers"
	"nodemint/ledger"
	"nodemint/logger"
	"nodemint/repository"
	"nodemint/rewards"
	"nodemint/routers"
	"nodemint/scheduler"
	"nodemint/tiers"
)

func main() {
	// Load config
	viper.SetConfigFile("config/config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}

	appLogFile := viper.GetString("log.app_log_file")
	logLevel := viper.GetString("log.level")

	if err := logger.InitLogger(appLogFile, logLevel); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}

	logger.Logger.Info("Starting node NFT platform...")

	// Connect to LevelDB
	leveldbPath := viper.GetString("leveldb.path")
	ldb, err := db.NewLevelDB(leveldbPath)
	if err != nil {
		logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
	}
	defer ldb.Close()

	// Tier configuration
	registry, err := tiers.NewRegistryFromViper()
	if err != nil {
		logger.Logger.Fatal("Invalid tier configuration", zap.Error(err))
	}

	// Platform signing key
	viper.SetDefault("mint.lease_minutes", 30)
	lease := time.Duration(viper.GetInt("mint.lease_minutes")) * time.Minute
	auth, err := authorizer.New(viper.GetString("mint.signing_key"), lease)
	if err != nil {
		logger.Logger.Fatal("Invalid signing key", zap.Error(err))
	}
	logger.Logger.Info("Authorization signer loaded", zap.String("address", auth.SignerAddress().Hex()))

	// Mint contract addresses per chain
	contracts := make(map[uint64]string)
	for chain, addr := range viper.GetStringMapString("mint.contracts") {
		var chainID uint64
		if _, err := fmt.Sscanf(chain, "%d", &chainID); err != nil {
			logger.Logger.Fatal("Invalid chain id in mint.contracts", zap.String("chain", chain))
		}
		contracts[chainID] = addr
	}

	// Core services
	ledgerRepo := repository.NewLedgerRepository(ldb)
	rewardRepo := repository.NewRewardRepository(ldb)
	tokenLedger := ledger.NewLedger(registry, ledgerRepo, lease)
	settlement := rewards.NewSettlement(rewardRepo, auth)

	launch, err := time.ParseInLocation("2006-01-02", viper.GetString("rewards.launch_date"), time.UTC)
	if err != nil {
		logger.Logger.Fatal("Invalid rewards.launch_date", zap.Error(err))
	}
	engine := rewards.NewEngine(registry, rewardRepo,
		decimal.NewFromFloat(viper.GetFloat64("rewards.base_daily_pool")),
		launch,
		decimal.NewFromFloat(viper.GetFloat64("rewards.community_bonus_percent")))

	// Periodic accrual, decoupled from request handling
	viper.SetDefault("rewards.accrual_check_minutes", 10)
	runner := scheduler.NewRunner(time.Duration(viper.GetInt("rewards.accrual_check_minutes")) * time.Minute)
	runner.Add(&rewards.AccrualTask{Engine: engine})
	runner.Start()

	// Initialize HTTP handlers
	h := handlers.NewHandler(tokenLedger, auth, settlement, contracts)

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", viper.GetInt("server.port")),
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Logger.Info("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", viper.GetInt("server.port")))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")
	runner.Stop()
	srv.Close()
}
