/**
 * @description
 * This package handles the configuration management for the payout service. It uses the
 * Viper library to read configuration from environment variables (and an optional .env
 * file), then resolves the Bridge-specific values into an immutable BridgeSettings value
 * that is injected into every component.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultBridgeBaseURL        = "https://api.bridge.xyz/v0"
	defaultAPIKeyHeader         = "Api-Key"
	defaultRequestTimeoutMS     = 15000
	defaultEnabledRegions       = "US"
	defaultBankETA              = "1-3 business days"
	defaultTransferPath         = "/transfers"
	defaultExternalAccountLimit = 20
	defaultRateLimitPrefix      = "payout:rate_limit"
	defaultDispatchRateLimit    = 5
)

// Config holds all the configuration variables for the payout service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	PayoutEventExchange        string `mapstructure:"PAYOUT_EVENT_EXCHANGE"`
	ProviderStatusQueue        string `mapstructure:"PROVIDER_STATUS_QUEUE"`
	InternalAPIKey             string `mapstructure:"INTERNAL_API_KEY"`
	DispatchRateLimitPerMinute int    `mapstructure:"DISPATCH_RATE_LIMIT_PER_MINUTE"`

	BridgeAPIBaseURL           string `mapstructure:"BRIDGE_API_BASE_URL"`
	BridgeAPIKey               string `mapstructure:"BRIDGE_API_KEY"`
	BridgeAPIKeyHeader         string `mapstructure:"BRIDGE_API_KEY_HEADER"`
	BridgeRequestTimeoutMS     int    `mapstructure:"BRIDGE_REQUEST_TIMEOUT_MS"`
	BridgeTransferTimeoutMS    int    `mapstructure:"BRIDGE_TRANSFER_TIMEOUT_MS"`
	BridgeEnabledRegions       string `mapstructure:"BRIDGE_ENABLED_REGIONS"`
	BridgeRequireOnboarding    bool   `mapstructure:"BRIDGE_REQUIRE_ONBOARDING"`
	BridgeDefaultBankETA       string `mapstructure:"BRIDGE_DEFAULT_BANK_ETA"`
	BridgeDefaultDebitETA      string `mapstructure:"BRIDGE_DEFAULT_DEBIT_ETA"`
	BridgeOnboardingRedirect   string `mapstructure:"BRIDGE_ONBOARDING_REDIRECT_URI"`
	ClaimAppURL                string `mapstructure:"CLAIM_APP_URL"`
	BridgeDestinationRail      string `mapstructure:"BRIDGE_DESTINATION_RAIL"`
	BridgeDestinationCurrency  string `mapstructure:"BRIDGE_DESTINATION_CURRENCY"`
	BridgeDebitRail            string `mapstructure:"BRIDGE_DEBIT_DESTINATION_RAIL"`
	BridgeDebitCurrency        string `mapstructure:"BRIDGE_DEBIT_DESTINATION_CURRENCY"`
	BridgeBankRail             string `mapstructure:"BRIDGE_BANK_DESTINATION_RAIL"`
	BridgeBankCurrency         string `mapstructure:"BRIDGE_BANK_DESTINATION_CURRENCY"`
	BridgeDebitRailTokens      string `mapstructure:"BRIDGE_DEBIT_RAIL_TOKENS"`
	BridgeBankRailTokens       string `mapstructure:"BRIDGE_BANK_RAIL_TOKENS"`
	BridgePrefundedAccountID   string `mapstructure:"BRIDGE_PREFUNDED_ACCOUNT_ID"`
	BridgeSourceRail           string `mapstructure:"BRIDGE_SOURCE_RAIL"`
	BridgeSourceCurrency       string `mapstructure:"BRIDGE_SOURCE_CURRENCY"`
	BridgeSourceFromAddress    string `mapstructure:"BRIDGE_SOURCE_FROM_ADDRESS"`
	BridgeSourceWalletID       string `mapstructure:"BRIDGE_SOURCE_WALLET_ID"`
	BridgeSourceJSON           string `mapstructure:"BRIDGE_SOURCE_JSON"`
	BridgeDestinationJSON      string `mapstructure:"BRIDGE_DESTINATION_JSON"`
	BridgeDebitDestinationJSON string `mapstructure:"BRIDGE_DEBIT_DESTINATION_JSON"`
	BridgeBankDestinationJSON  string `mapstructure:"BRIDGE_BANK_DESTINATION_JSON"`
	BridgeTransferPath         string `mapstructure:"BRIDGE_TRANSFER_PATH"`
	BridgeExternalAccountLimit int    `mapstructure:"BRIDGE_EXTERNAL_ACCOUNT_LIMIT"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", defaultRateLimitPrefix)
	viper.SetDefault("PAYOUT_EVENT_EXCHANGE", "payout.events")
	viper.SetDefault("PROVIDER_STATUS_QUEUE", "payout_service.provider_status")
	viper.SetDefault("DISPATCH_RATE_LIMIT_PER_MINUTE", defaultDispatchRateLimit)
	viper.SetDefault("BRIDGE_API_BASE_URL", defaultBridgeBaseURL)
	viper.SetDefault("BRIDGE_API_KEY_HEADER", defaultAPIKeyHeader)
	viper.SetDefault("BRIDGE_REQUEST_TIMEOUT_MS", defaultRequestTimeoutMS)
	viper.SetDefault("BRIDGE_ENABLED_REGIONS", defaultEnabledRegions)
	viper.SetDefault("BRIDGE_REQUIRE_ONBOARDING", true)
	viper.SetDefault("BRIDGE_DEFAULT_BANK_ETA", defaultBankETA)
	viper.SetDefault("BRIDGE_TRANSFER_PATH", defaultTransferPath)
	viper.SetDefault("BRIDGE_EXTERNAL_ACCOUNT_LIMIT", defaultExternalAccountLimit)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for _, key := range []string{
		"SERVER_PORT",
		"PORT",
		"DATABASE_URL",
		"REDIS_URL",
		"REDIS_RATE_LIMIT_PREFIX",
		"RABBITMQ_URL",
		"PAYOUT_EVENT_EXCHANGE",
		"PROVIDER_STATUS_QUEUE",
		"DISPATCH_RATE_LIMIT_PER_MINUTE",
		"BRIDGE_API_BASE_URL",
		"BRIDGE_API_KEY_HEADER",
		"BRIDGE_REQUEST_TIMEOUT_MS",
		"BRIDGE_TRANSFER_TIMEOUT_MS",
		"BRIDGE_ENABLED_REGIONS",
		"BRIDGE_REQUIRE_ONBOARDING",
		"BRIDGE_DEFAULT_BANK_ETA",
		"BRIDGE_DEFAULT_DEBIT_ETA",
		"BRIDGE_ONBOARDING_REDIRECT_URI",
		"CLAIM_APP_URL",
		"BRIDGE_DESTINATION_RAIL",
		"BRIDGE_DESTINATION_CURRENCY",
		"BRIDGE_DEBIT_DESTINATION_RAIL",
		"BRIDGE_DEBIT_DESTINATION_CURRENCY",
		"BRIDGE_BANK_DESTINATION_RAIL",
		"BRIDGE_BANK_DESTINATION_CURRENCY",
		"BRIDGE_DEBIT_RAIL_TOKENS",
		"BRIDGE_BANK_RAIL_TOKENS",
		"BRIDGE_PREFUNDED_ACCOUNT_ID",
		"BRIDGE_SOURCE_RAIL",
		"BRIDGE_SOURCE_CURRENCY",
		"BRIDGE_SOURCE_FROM_ADDRESS",
		"BRIDGE_SOURCE_WALLET_ID",
		"BRIDGE_SOURCE_JSON",
		"BRIDGE_DESTINATION_JSON",
		"BRIDGE_DEBIT_DESTINATION_JSON",
		"BRIDGE_BANK_DESTINATION_JSON",
		"BRIDGE_TRANSFER_PATH",
		"BRIDGE_EXTERNAL_ACCOUNT_LIMIT",
	} {
		_ = viper.BindEnv(key)
	}
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "PAYOUT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("BRIDGE_API_KEY", "BRIDGE_API_KEY", "BRIDGE_SECRET_KEY")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	coerceInvalidValues()

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	config.BridgeAPIKey = strings.TrimSpace(config.BridgeAPIKey)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = defaultRateLimitPrefix
	}

	if config.BridgeRequestTimeoutMS <= 0 {
		log.Printf("level=warn component=config msg=\"invalid bridge request timeout; using default\" timeout_ms=%d", config.BridgeRequestTimeoutMS)
		config.BridgeRequestTimeoutMS = defaultRequestTimeoutMS
	}
	if config.BridgeTransferTimeoutMS <= 0 {
		config.BridgeTransferTimeoutMS = config.BridgeRequestTimeoutMS
	}
	if config.BridgeExternalAccountLimit <= 0 {
		config.BridgeExternalAccountLimit = defaultExternalAccountLimit
	}
	if config.DispatchRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative dispatch rate limit configured; disabling\" limit=%d", config.DispatchRateLimitPerMinute)
		config.DispatchRateLimitPerMinute = 0
	}

	return
}

// coerceInvalidValues replaces unparsable numeric and boolean settings with their
// defaults so a typo in one variable never prevents the service from booting.
func coerceInvalidValues() {
	intDefaults := map[string]int{
		"DISPATCH_RATE_LIMIT_PER_MINUTE": defaultDispatchRateLimit,
		"BRIDGE_REQUEST_TIMEOUT_MS":      defaultRequestTimeoutMS,
		"BRIDGE_TRANSFER_TIMEOUT_MS":     0,
		"BRIDGE_EXTERNAL_ACCOUNT_LIMIT":  defaultExternalAccountLimit,
	}
	for key, fallback := range intDefaults {
		raw := strings.TrimSpace(viper.GetString(key))
		if raw == "" {
			continue
		}
		if _, err := strconv.Atoi(raw); err != nil {
			log.Printf("level=warn component=config msg=\"invalid integer setting; using default\" key=%s value=%q", key, raw)
			viper.Set(key, fallback)
		}
	}

	raw := strings.TrimSpace(viper.GetString("BRIDGE_REQUIRE_ONBOARDING"))
	if raw != "" {
		if _, err := strconv.ParseBool(raw); err != nil {
			log.Printf("level=warn component=config msg=\"invalid boolean setting; using default\" key=BRIDGE_REQUIRE_ONBOARDING value=%q", raw)
			viper.Set("BRIDGE_REQUIRE_ONBOARDING", true)
		}
	}
}
