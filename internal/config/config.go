/**
 * @description
 * This file handles configuration management for the ledger-service. It uses
 * the Viper library to read settings from environment variables or a local
 * .env file.
 *
 * @dependencies
 * - github.com/spf13/viper: A powerful configuration library for Go applications.
 */

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	JWTSecret      string `mapstructure:"JWT_SECRET"`
	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY"`

	// PaymentWebhookToken is optional: not every payment provider supports a
	// shared-secret header, in which case payloads are validated by content
	// alone.
	PaymentWebhookToken       string `mapstructure:"PAYMENT_WEBHOOK_TOKEN"`
	DisbursementCallbackToken string `mapstructure:"DISBURSEMENT_CALLBACK_TOKEN"`

	DisburseAPIBaseURL string `mapstructure:"DISBURSE_API_BASE_URL"`
	DisburseAPIKey     string `mapstructure:"DISBURSE_API_KEY"`

	WithdrawalFixedFee int64 `mapstructure:"WITHDRAWAL_FIXED_FEE"`
	WithdrawalFeeBps   int64 `mapstructure:"WITHDRAWAL_FEE_BPS"`

	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (Config, error) {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind env vars explicitly
	for _, key := range []string{
		"SERVER_PORT",
		"DATABASE_URL",
		"RABBITMQ_URL",
		"REDIS_URL",
		"JWT_SECRET",
		"INTERNAL_API_KEY",
		"PAYMENT_WEBHOOK_TOKEN",
		"DISBURSEMENT_CALLBACK_TOKEN",
		"DISBURSE_API_BASE_URL",
		"DISBURSE_API_KEY",
		"WITHDRAWAL_FIXED_FEE",
		"WITHDRAWAL_FEE_BPS",
		"ALLOWED_ORIGINS",
	} {
		_ = viper.BindEnv(key)
	}

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("WITHDRAWAL_FIXED_FEE", 5000)
	viper.SetDefault("WITHDRAWAL_FEE_BPS", 500)

	// Read the config file if it exists.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if strings.TrimSpace(config.DatabaseURL) == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be configured")
	}
	if strings.TrimSpace(config.JWTSecret) == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be configured")
	}
	if strings.TrimSpace(config.DisbursementCallbackToken) == "" {
		return Config{}, fmt.Errorf("DISBURSEMENT_CALLBACK_TOKEN must be configured")
	}
	if config.WithdrawalFixedFee < 0 || config.WithdrawalFeeBps < 0 {
		return Config{}, fmt.Errorf("withdrawal fees must not be negative")
	}

	return config, nil
}
