package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Chains     []ChainConfig
	Treasury   TreasuryConfig
	Settlement SettlementConfig
	Webhook    WebhookConfig
	Compliance ComplianceConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// ChainConfig holds per-network addresses and settlement parameters
type ChainConfig struct {
	Name              string
	ChainID           int64
	RPCURL            string
	BundlerURL        string
	USDCAddress       string
	USDTAddress       string
	PriceFeedAddress  string
	ConfirmationDepth uint64
}

// TreasuryConfig holds the treasury signer and fee destination.
// The signer key is read-only to this process and never rotated here.
type TreasuryConfig struct {
	Wallet     string
	SignerKey  string
	FeePercent int64
}

// SettlementConfig holds sweep retry and listener tuning
type SettlementConfig struct {
	MaxAttempts     int
	RetryDelay      time.Duration
	PollInterval    time.Duration
	MaxLogRange     uint64
	ConfirmPoll     time.Duration
	ConfirmTimeout  time.Duration
	StaleAfter      time.Duration
	StaleCheckEvery int
}

// WebhookConfig holds merchant notification tuning
type WebhookConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
}

// ComplianceConfig holds the screening list
type ComplianceConfig struct {
	SanctionedWallets []string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "chainroute"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		Chains: []ChainConfig{
			{
				Name:              "base",
				ChainID:           84532,
				RPCURL:            getEnv("BASE_RPC_URL", "https://sepolia.base.org"),
				BundlerURL:        getEnv("BASE_BUNDLER_URL", ""),
				USDCAddress:       getEnv("BASE_USDC_ADDRESS", ""),
				USDTAddress:       getEnv("BASE_USDT_ADDRESS", ""),
				PriceFeedAddress:  getEnv("BASE_PRICE_FEED_ADDRESS", ""),
				ConfirmationDepth: uint64(getEnvAsInt("BASE_CONFIRMATIONS", 4)),
			},
			{
				Name:              "polygon",
				ChainID:           80002,
				RPCURL:            getEnv("POLYGON_RPC_URL", "https://rpc-amoy.polygon.technology"),
				BundlerURL:        getEnv("POLYGON_BUNDLER_URL", ""),
				USDCAddress:       getEnv("POLYGON_USDC_ADDRESS", ""),
				USDTAddress:       getEnv("POLYGON_USDT_ADDRESS", ""),
				PriceFeedAddress:  getEnv("POLYGON_PRICE_FEED_ADDRESS", ""),
				ConfirmationDepth: uint64(getEnvAsInt("POLYGON_CONFIRMATIONS", 8)),
			},
			{
				Name:              "arbitrum",
				ChainID:           421614,
				RPCURL:            getEnv("ARB_RPC_URL", "https://sepolia-rollup.arbitrum.io/rpc"),
				BundlerURL:        getEnv("ARB_BUNDLER_URL", ""),
				USDCAddress:       getEnv("ARB_USDC_ADDRESS", ""),
				USDTAddress:       getEnv("ARB_USDT_ADDRESS", ""),
				PriceFeedAddress:  getEnv("ARB_PRICE_FEED_ADDRESS", ""),
				ConfirmationDepth: uint64(getEnvAsInt("ARB_CONFIRMATIONS", 3)),
			},
		},
		Treasury: TreasuryConfig{
			Wallet:     getEnv("TREASURY_WALLET", ""),
			SignerKey:  getEnv("TREASURY_PRIVATE_KEY", ""),
			FeePercent: int64(getEnvAsInt("TREASURY_FEE_PERCENT", 1)),
		},
		Settlement: SettlementConfig{
			MaxAttempts:     getEnvAsInt("SETTLEMENT_MAX_ATTEMPTS", 3),
			RetryDelay:      getEnvAsDuration("SETTLEMENT_RETRY_DELAY", 20*time.Second),
			PollInterval:    getEnvAsDuration("LISTENER_POLL_INTERVAL", 5*time.Second),
			MaxLogRange:     uint64(getEnvAsInt("LISTENER_MAX_LOG_RANGE", 9500)),
			ConfirmPoll:     getEnvAsDuration("CONFIRMATION_POLL_INTERVAL", 1500*time.Millisecond),
			ConfirmTimeout:  getEnvAsDuration("CONFIRMATION_TIMEOUT", 60*time.Second),
			StaleAfter:      getEnvAsDuration("PAYMENT_STALE_AFTER", 15*time.Minute),
			StaleCheckEvery: getEnvAsInt("PAYMENT_STALE_CHECK_EVERY", 12),
		},
		Webhook: WebhookConfig{
			MaxAttempts: getEnvAsInt("WEBHOOK_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvAsDuration("WEBHOOK_BASE_DELAY", 2*time.Second),
			Timeout:     getEnvAsDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Compliance: ComplianceConfig{
			SanctionedWallets: getEnvAsList("SANCTIONED_WALLETS"),
		},
	}
}

// Chain returns the configuration for a chain by name
func (c *Config) Chain(name string) (ChainConfig, bool) {
	for _, cc := range c.Chains {
		if cc.Name == name {
			return cc, true
		}
	}
	return ChainConfig{}, false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
