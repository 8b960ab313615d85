package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chain-vouch/chain-vouch/pkg/logger"
)

const (
	// DefaultWorkerCount defines the default number of workers used to
	// reconcile intent lists in parallel
	DefaultWorkerCount = 5

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultDataDir defines the default directory for the intent store
	DefaultDataDir = "data"

	// DefaultBaseRedirectURL defines the default base URL used to build
	// per-intent redirect URLs when the caller does not supply one
	DefaultBaseRedirectURL = "https://app.chain-vouch.io"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 15

	// Default RPC endpoints for the supported mainnets. Each can be
	// overridden with the corresponding <NAME>_RPC_URL variable, and
	// additional chains can be added with EXTRA_CHAIN_IDS plus
	// CHAIN_<id>_RPC_URL.

	EthereumMainnetChainID     = 1
	DefaultEthereumMainnetRPC  = "https://eth.llamarpc.com"
	PolygonMainnetChainID      = 137
	DefaultPolygonMainnetRPC   = "https://polygon-rpc.com"
	BaseMainnetChainID         = 8453
	DefaultBaseMainnetRPC      = "https://mainnet.base.org"
	ArbitrumMainnetChainID     = 42161
	DefaultArbitrumMainnetRPC  = "https://arb1.arbitrum.io/rpc"
	BSCMainnetChainID          = 56
	DefaultBSCMainnetRPC       = "https://bsc-dataseed.bnbchain.org"
	AvalancheMainnetChainID    = 43114
	DefaultAvalancheMainnetRPC = "https://avalanche-c-chain-rpc.publicnode.com"
)

// GetEnvWorkerCount returns the number of workers from environment variables
func GetEnvWorkerCount() (int, error) {
	workerCount := os.Getenv("WORKER_COUNT")
	if workerCount == "" {
		return DefaultWorkerCount, nil
	}

	count, err := strconv.Atoi(workerCount)
	if err != nil {
		return 0, fmt.Errorf("invalid WORKER_COUNT value: %s, must be an integer", workerCount)
	}
	if count <= 0 {
		return 0, fmt.Errorf("WORKER_COUNT must be greater than 0")
	}
	return count, nil
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvDataDir returns the intent store directory from environment variables
func GetEnvDataDir() string {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		return DefaultDataDir
	}
	return dataDir
}

// GetEnvBaseRedirectURL returns the base redirect URL from environment variables
func GetEnvBaseRedirectURL() (string, error) {
	baseRedirectURL := os.Getenv("BASE_REDIRECT_URL")
	if baseRedirectURL == "" {
		return DefaultBaseRedirectURL, nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(baseRedirectURL); err != nil {
		return "", fmt.Errorf("invalid BASE_REDIRECT_URL value: %s, must be a valid URL", baseRedirectURL)
	}
	return strings.TrimSuffix(baseRedirectURL, "/"), nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "", "info":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of 'debug', 'info', 'notice', 'error'", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}

// GetEnvChainConfigs returns the chain configurations for all supported
// networks based on the environment variables
func GetEnvChainConfigs() ([]ChainConfig, error) {
	defaults := []struct {
		chainID    int
		envName    string
		defaultRPC string
	}{
		{EthereumMainnetChainID, "ETHEREUM_RPC_URL", DefaultEthereumMainnetRPC},
		{PolygonMainnetChainID, "POLYGON_RPC_URL", DefaultPolygonMainnetRPC},
		{BaseMainnetChainID, "BASE_RPC_URL", DefaultBaseMainnetRPC},
		{ArbitrumMainnetChainID, "ARBITRUM_RPC_URL", DefaultArbitrumMainnetRPC},
		{BSCMainnetChainID, "BSC_RPC_URL", DefaultBSCMainnetRPC},
		{AvalancheMainnetChainID, "AVALANCHE_RPC_URL", DefaultAvalancheMainnetRPC},
	}

	configs := make([]ChainConfig, 0, len(defaults))
	for _, d := range defaults {
		rpc := os.Getenv(d.envName)
		if rpc == "" {
			rpc = d.defaultRPC
		}
		configs = append(configs, ChainConfig{ChainID: d.chainID, RPCURL: rpc})
	}

	// Extra chains are configured as EXTRA_CHAIN_IDS=11155111,10 with a
	// CHAIN_<id>_RPC_URL variable for each listed id.
	extra := os.Getenv("EXTRA_CHAIN_IDS")
	if extra == "" {
		return configs, nil
	}

	for _, raw := range strings.Split(extra, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		chainID, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid EXTRA_CHAIN_IDS entry: %s, must be an integer", raw)
		}
		rpc := os.Getenv(fmt.Sprintf("CHAIN_%d_RPC_URL", chainID))
		if rpc == "" {
			return nil, fmt.Errorf("CHAIN_%d_RPC_URL is required for extra chain %d", chainID, chainID)
		}
		configs = append(configs, ChainConfig{ChainID: chainID, RPCURL: rpc})
	}

	return configs, nil
}
