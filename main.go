package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chain-vouch/chain-vouch/pkg/chainclient"
	"github.com/chain-vouch/chain-vouch/pkg/config"
	"github.com/chain-vouch/chain-vouch/pkg/health"
	"github.com/chain-vouch/chain-vouch/pkg/logger"
	"github.com/chain-vouch/chain-vouch/pkg/reconcile"
	"github.com/chain-vouch/chain-vouch/pkg/service"
	"github.com/chain-vouch/chain-vouch/pkg/signature"
	"github.com/chain-vouch/chain-vouch/pkg/store/badgerdb"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	stdLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Open the intent stores
	stores, err := badgerdb.Open(cfg.DataDir, nil)
	if err != nil {
		log.Fatalf("Failed to open intent stores: %v", err)
	}
	defer stores.Close()

	// Connect to every configured chain
	registry, err := chainclient.NewRegistry(cfg, stdLogger)
	if err != nil {
		log.Fatalf("Failed to connect to chains: %v", err)
	}
	defer registry.Close()

	reconciler := reconcile.NewReconciler(registry, signature.PersonalSignVerifier{}, stdLogger)

	services := service.New(cfg, service.Repositories{
		Sends:         stores.Sends,
		Payouts:       stores.Payouts,
		Deployments:   stores.Deployments,
		Calls:         stores.Calls,
		BalanceProofs: stores.BalanceProofs,
	}, reconciler, stdLogger)

	// Serve health, status and metrics endpoints
	healthServer := health.NewServer(cfg.MetricsPort, cfg.Chains, registry, services)
	go healthServer.Start()

	stdLogger.Info("Reconciliation service started with %d chains", len(cfg.Chains))

	// Wait for termination signal
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	<-signalCh
	log.Println("Received termination signal, shutting down gracefully...")
}
