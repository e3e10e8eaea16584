/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the balance-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisCachePrefix         string `mapstructure:"REDIS_CACHE_PREFIX"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	LedgerEventQueue         string `mapstructure:"LEDGER_EVENT_QUEUE"`
	LedgerEventExchange      string `mapstructure:"LEDGER_EVENT_EXCHANGE"`
	WorkflowAPIBaseURL       string `mapstructure:"WORKFLOW_API_BASE_URL"`
	WorkflowAPIKey           string `mapstructure:"WORKFLOW_API_KEY"`
	WorkflowTriggerPath      string `mapstructure:"WORKFLOW_TRIGGER_PATH"`
	WorkflowPollPath         string `mapstructure:"WORKFLOW_POLL_PATH"`
	WorkflowTransactionsPath string `mapstructure:"WORKFLOW_TRANSACTIONS_PATH"`
	CompanyDirectoryURL      string `mapstructure:"COMPANY_DIRECTORY_URL"`
	CompanyDirectoryKey      string `mapstructure:"COMPANY_DIRECTORY_INTERNAL_API_KEY"`
	ClerkJWKSURL             string `mapstructure:"CLERK_JWKS_URL"`
	BalanceCacheTTLSeconds   int    `mapstructure:"BALANCE_CACHE_TTL_SECONDS"`
	CacheSweepSchedule       string `mapstructure:"CACHE_SWEEP_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_CACHE_PREFIX", "fondeo:balance")
	viper.SetDefault("LEDGER_EVENT_QUEUE", "balance_service.ledger_updates")
	viper.SetDefault("LEDGER_EVENT_EXCHANGE", "fondeo.events")
	viper.SetDefault("WORKFLOW_TRIGGER_PATH", "/api/v1/workflows/balance/trigger")
	viper.SetDefault("WORKFLOW_POLL_PATH", "/api/v1/workflow-runs")
	viper.SetDefault("WORKFLOW_TRANSACTIONS_PATH", "/api/v1/workflows/transactions/trigger")
	viper.SetDefault("BALANCE_CACHE_TTL_SECONDS", 300)
	viper.SetDefault("CACHE_SWEEP_SCHEDULE", "*/10 * * * *")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "BALANCE_REDIS_URL")
	_ = viper.BindEnv("REDIS_CACHE_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("LEDGER_EVENT_QUEUE")
	_ = viper.BindEnv("LEDGER_EVENT_EXCHANGE")
	_ = viper.BindEnv("WORKFLOW_API_BASE_URL")
	_ = viper.BindEnv("WORKFLOW_API_KEY", "WORKFLOW_API_KEY", "WORKFLOW_ENGINE_API_KEY")
	_ = viper.BindEnv("WORKFLOW_TRIGGER_PATH")
	_ = viper.BindEnv("WORKFLOW_POLL_PATH")
	_ = viper.BindEnv("WORKFLOW_TRANSACTIONS_PATH")
	_ = viper.BindEnv("COMPANY_DIRECTORY_URL")
	_ = viper.BindEnv("COMPANY_DIRECTORY_INTERNAL_API_KEY")
	_ = viper.BindEnv("CLERK_JWKS_URL")
	_ = viper.BindEnv("BALANCE_CACHE_TTL_SECONDS")
	_ = viper.BindEnv("CACHE_SWEEP_SCHEDULE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.WorkflowAPIBaseURL = strings.TrimSpace(config.WorkflowAPIBaseURL)
	config.WorkflowAPIKey = strings.TrimSpace(config.WorkflowAPIKey)
	if config.WorkflowAPIKey == "" {
		config.WorkflowAPIKey = strings.TrimSpace(os.Getenv("WORKFLOW_ENGINE_API_KEY"))
	}

	if config.BalanceCacheTTLSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive cache ttl configured; using default\" ttl_seconds=%d", config.BalanceCacheTTLSeconds)
		config.BalanceCacheTTLSeconds = 300
	}
	if strings.TrimSpace(config.CacheSweepSchedule) == "" {
		config.CacheSweepSchedule = "*/10 * * * *"
	}

	return
}
