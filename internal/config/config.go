/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
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

// Config holds all the configuration variables for the payroll-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	ReceiptEventExchange       string `mapstructure:"RECEIPT_EVENT_EXCHANGE"`
	ReceiptEventQueue          string `mapstructure:"RECEIPT_EVENT_QUEUE"`
	NotificationExchange       string `mapstructure:"NOTIFICATION_EXCHANGE"`
	FXPrimaryBaseURL           string `mapstructure:"FX_PRIMARY_BASE_URL"`
	FXPrimaryAPIKey            string `mapstructure:"FX_PRIMARY_API_KEY"`
	FXFallbackBaseURL          string `mapstructure:"FX_FALLBACK_BASE_URL"`
	FXFallbackAPIKey           string `mapstructure:"FX_FALLBACK_API_KEY"`
	FXLockTTLSeconds           int64  `mapstructure:"FX_LOCK_TTL_SECONDS"`
	BaseCurrency               string `mapstructure:"BASE_CURRENCY"`
	PaymentProviderBaseURL     string `mapstructure:"PAYMENT_PROVIDER_BASE_URL"`
	PaymentProviderAPIKey      string `mapstructure:"PAYMENT_PROVIDER_API_KEY"`
	ComplianceServiceURL       string `mapstructure:"COMPLIANCE_SERVICE_URL"`
	ComplianceInternalAPIKey   string `mapstructure:"COMPLIANCE_SERVICE_INTERNAL_API_KEY"`
	JWKSURL                    string `mapstructure:"JWKS_URL"`
	InternalAPIKey             string `mapstructure:"INTERNAL_API_KEY"`
	BankFileRateLimitPerMinute int    `mapstructure:"BANK_FILE_RATE_LIMIT_PER_MINUTE"`
	FXRefreshJobSchedule       string `mapstructure:"FX_REFRESH_JOB_SCHEDULE"`
	ApprovalReminderSchedule   string `mapstructure:"APPROVAL_REMINDER_JOB_SCHEDULE"`
	ApprovalReminderAfterMin   int    `mapstructure:"APPROVAL_REMINDER_AFTER_MINUTES"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("RECEIPT_EVENT_EXCHANGE", "payroll.events")
	viper.SetDefault("RECEIPT_EVENT_QUEUE", "payroll_service.receipt_updates")
	viper.SetDefault("NOTIFICATION_EXCHANGE", "payroll.notifications")
	viper.SetDefault("FX_LOCK_TTL_SECONDS", 900)
	viper.SetDefault("BASE_CURRENCY", "USD")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "payroll:rate_limit")
	viper.SetDefault("BANK_FILE_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("FX_REFRESH_JOB_SCHEDULE", "*/15 * * * *")
	viper.SetDefault("APPROVAL_REMINDER_JOB_SCHEDULE", "0 * * * *")
	viper.SetDefault("APPROVAL_REMINDER_AFTER_MINUTES", 240)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "PAYROLL_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("RECEIPT_EVENT_EXCHANGE")
	_ = viper.BindEnv("RECEIPT_EVENT_QUEUE")
	_ = viper.BindEnv("NOTIFICATION_EXCHANGE")
	_ = viper.BindEnv("FX_PRIMARY_BASE_URL")
	_ = viper.BindEnv("FX_PRIMARY_API_KEY")
	_ = viper.BindEnv("FX_FALLBACK_BASE_URL")
	_ = viper.BindEnv("FX_FALLBACK_API_KEY")
	_ = viper.BindEnv("FX_LOCK_TTL_SECONDS")
	_ = viper.BindEnv("BASE_CURRENCY")
	_ = viper.BindEnv("PAYMENT_PROVIDER_BASE_URL")
	_ = viper.BindEnv("PAYMENT_PROVIDER_API_KEY")
	_ = viper.BindEnv("COMPLIANCE_SERVICE_URL")
	_ = viper.BindEnv("COMPLIANCE_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "PAYROLL_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("BANK_FILE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("FX_REFRESH_JOB_SCHEDULE")
	_ = viper.BindEnv("APPROVAL_REMINDER_JOB_SCHEDULE")
	_ = viper.BindEnv("APPROVAL_REMINDER_AFTER_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("PAYROLL_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "payroll:rate_limit"
	}
	config.BaseCurrency = strings.ToUpper(strings.TrimSpace(config.BaseCurrency))
	if config.BaseCurrency == "" {
		config.BaseCurrency = "USD"
	}

	if config.FXLockTTLSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive fx lock ttl configured; using default\" ttl_seconds=%d", config.FXLockTTLSeconds)
		config.FXLockTTLSeconds = 900
	}
	if config.BankFileRateLimitPerMinute <= 0 {
		config.BankFileRateLimitPerMinute = 10
	}
	if config.ApprovalReminderAfterMin <= 0 {
		config.ApprovalReminderAfterMin = 240
	}

	return
}
