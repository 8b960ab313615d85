package config

import (
	"fmt"
	"log"
	"time"

	"github.com/chain-vouch/chain-vouch/pkg/logger"
	"github.com/joho/godotenv"
)

// Config holds the configuration for the reconciliation service
type Config struct {
	Chains          map[int]ChainConfig
	DataDir         string
	BaseRedirectURL string
	WorkerCount     int
	MetricsPort     string
	CircuitBreaker  CircuitBreakerConfig
	LoggerConfig    LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration for RPC lookups
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// ChainConfig holds the configuration for a specific blockchain
type ChainConfig struct {
	ChainID int
	RPCURL  string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	workerCount, err := GetEnvWorkerCount()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	dataDir := GetEnvDataDir()

	baseRedirectURL, err := GetEnvBaseRedirectURL()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	// Initialize chain configurations
	chainConfigs := make(map[int]ChainConfig)
	chainConfigList, err := GetEnvChainConfigs()
	if err != nil {
		return nil, err
	}
	for _, chainConfig := range chainConfigList {
		chainConfigs[chainConfig.ChainID] = chainConfig
	}

	cfg := &Config{
		Chains:          chainConfigs,
		DataDir:         dataDir,
		BaseRedirectURL: baseRedirectURL,
		WorkerCount:     workerCount,
		MetricsPort:     metricsPort,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("at least one chain configuration is required")
	}
	for chainID, chainConfig := range cfg.Chains {
		if chainConfig.RPCURL == "" {
			return fmt.Errorf("RPC URL for chain %d is required", chainID)
		}
	}
	return nil
}
