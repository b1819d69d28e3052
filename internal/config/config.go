// Package config provides configuration management for the fund ledger
// application. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Chain     ChainConfig
	Fund      FundConfig
	Ledger    LedgerConfig
	Contracts ContractsConfig
	Oracle    OracleConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainConfig holds chain data source configuration
type ChainConfig struct {
	RPCPrimary        string
	RPCSecondary      string
	RequestsPerSecond int
	RequestTimeout    time.Duration
}

// FundConfig identifies the fund and its monitored wallets
type FundConfig struct {
	FundID  string
	Wallets []string
	// Roles maps wallet address to a role label (LENDER, BORROWER, TRADER).
	Roles map[string]string
}

// LedgerConfig holds journal and cost-basis policy configuration
type LedgerConfig struct {
	// ClearingAccountPattern is the substring that marks a clearing account.
	ClearingAccountPattern string
	// AutoPostCategories is the whitelist of categories safe for unattended posting.
	AutoPostCategories []string
	// NativeAsset is the chain's native asset symbol.
	NativeAsset string
	// NativeEquivalents are symbols 1:1 fungible with the native asset for balancing.
	NativeEquivalents []string
	// StableAssets are symbols denominated 1:1 in the unit of account.
	StableAssets []string
	// LotMethod selects the lot consumption order (fifo, lifo, hifo).
	LotMethod string
	// WorkerConcurrency bounds the number of transactions decoded in parallel.
	WorkerConcurrency int
}

// ContractsConfig holds the contract addresses the platform decoders match on
type ContractsConfig struct {
	WETH        string
	LendingPool string
	SwapRouter  string
}

// OracleConfig holds reference price oracle configuration
type OracleConfig struct {
	// StaticPrice is the fallback unit-of-account price per native unit
	// used when no live oracle is wired.
	StaticPrice string
	CacheTTL    time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "fund_ledger"),
				User:           getEnv("POSTGRES_USER", "ledger"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "fund_ledger"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Chain: ChainConfig{
			RPCPrimary:        getEnv("ETHEREUM_RPC_PRIMARY", ""),
			RPCSecondary:      getEnv("ETHEREUM_RPC_SECONDARY", ""),
			RequestsPerSecond: getEnvAsInt("ETHEREUM_RPC_RPS", 10),
			RequestTimeout:    getEnvAsDuration("ETHEREUM_RPC_TIMEOUT", 30*time.Second),
		},
		Fund: FundConfig{
			FundID:  getEnv("FUND_ID", "fund-main"),
			Wallets: getEnvAsList("FUND_WALLETS", ""),
			Roles:   getEnvAsMap("FUND_WALLET_ROLES", ""),
		},
		Ledger: LedgerConfig{
			ClearingAccountPattern: getEnv("LEDGER_CLEARING_PATTERN", "clearing"),
			AutoPostCategories:     getEnvAsList("LEDGER_AUTO_POST_CATEGORIES", "eth_transfer,token_transfer,wrap,unwrap"),
			NativeAsset:            getEnv("LEDGER_NATIVE_ASSET", "ETH"),
			NativeEquivalents:      getEnvAsList("LEDGER_NATIVE_EQUIVALENTS", "ETH,WETH,STETH,WSTETH"),
			StableAssets:           getEnvAsList("LEDGER_STABLE_ASSETS", "USD,USDC,USDT,DAI"),
			LotMethod:              getEnv("LEDGER_LOT_METHOD", "fifo"),
			WorkerConcurrency:      getEnvAsInt("LEDGER_WORKER_CONCURRENCY", 8),
		},
		Contracts: ContractsConfig{
			WETH:        getEnv("CONTRACT_WETH", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
			LendingPool: getEnv("CONTRACT_LENDING_POOL", ""),
			SwapRouter:  getEnv("CONTRACT_SWAP_ROUTER", ""),
		},
		Oracle: OracleConfig{
			StaticPrice: getEnv("ORACLE_STATIC_PRICE", "0"),
			CacheTTL:    getEnvAsDuration("ORACLE_CACHE_TTL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList gets a comma-separated environment variable as a string slice
func getEnvAsList(key, defaultValue string) []string {
	valueStr := getEnv(key, defaultValue)
	if valueStr == "" {
		return nil
	}

	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

// getEnvAsMap gets a comma-separated "key=value" environment variable as a map
func getEnvAsMap(key, defaultValue string) map[string]string {
	values := make(map[string]string)
	for _, pair := range getEnvAsList(key, defaultValue) {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			values[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return values
}
