package threedsecure

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment selects the gateway the client talks to.
type Environment string

const (
	EnvSandbox     Environment = "sandbox"
	EnvProduction  Environment = "production"
	EnvDevelopment Environment = "development"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultConfigurationTTL = 5 * time.Minute
)

// Settings holds what a [GatewayClient] needs to reach the gateway.
type Settings struct {
	// Authorization is either a tokenization key or a base64 client token.
	Authorization string `json:"authorization" validate:"required"`

	// Env selects the gateway environment.
	Env Environment `json:"environment" validate:"required,oneof=sandbox production development"`

	// BaseURL optionally overrides the gateway origin. When empty, it is
	// derived from Env.
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`

	// Timeout bounds every gateway HTTP call.
	Timeout time.Duration `json:"timeout" validate:"gte=0"`

	// ConfigurationTTL is how long a fetched merchant configuration is reused.
	ConfigurationTTL time.Duration `json:"configuration_ttl" validate:"gte=0"`

	LogLevel string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
}

// Validate checks that the settings are usable.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		verr := normalizeValidationError(err)
		var e *Error
		if errors.As(verr, &e) {
			e.Type = ConfigurationError
			e.Code = InvalidConfigurationValue
		}
		return verr
	}
	return nil
}

// DefaultBaseURL returns the gateway origin for the configured environment.
func (s Settings) DefaultBaseURL() string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	switch s.Env {
	case EnvProduction:
		return "https://api.braintreegateway.com"
	case EnvDevelopment:
		return "http://localhost:3000"
	default:
		return "https://api.sandbox.braintreegateway.com"
	}
}

func (s Settings) timeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultTimeout
	}
	return s.Timeout
}

func (s Settings) configurationTTL() time.Duration {
	if s.ConfigurationTTL <= 0 {
		return defaultConfigurationTTL
	}
	return s.ConfigurationTTL
}

// LoadSettingsFromEnv creates Settings from environment variables:
//
//	THREEDS_AUTHORIZATION       tokenization key or client token (required)
//	THREEDS_ENV                 "sandbox" (default), "production" or "development"
//	THREEDS_BASE_URL            optional gateway origin override
//	THREEDS_TIMEOUT             HTTP timeout, e.g. "15s"
//	THREEDS_CONFIGURATION_TTL   configuration cache lifetime, e.g. "5m"
//	THREEDS_LOG_LEVEL           debug, info, warn or error
func LoadSettingsFromEnv() Settings {
	return settingsFromEnv()
}

// LoadSettingsFromDotEnv loads environment variables from .env files and then
// reads the Settings from them. Missing files fall back to the process
// environment.
func LoadSettingsFromDotEnv(filenames ...string) Settings {
	// godotenv.Load does not override variables that are already set.
	_ = godotenv.Load(filenames...)
	return settingsFromEnv()
}

func settingsFromEnv() Settings {
	env := EnvSandbox
	switch Environment(strings.ToLower(os.Getenv("THREEDS_ENV"))) {
	case EnvProduction:
		env = EnvProduction
	case EnvDevelopment:
		env = EnvDevelopment
	}

	return Settings{
		Authorization:    strings.TrimSpace(os.Getenv("THREEDS_AUTHORIZATION")),
		Env:              env,
		BaseURL:          os.Getenv("THREEDS_BASE_URL"),
		Timeout:          durationFromEnv("THREEDS_TIMEOUT", defaultTimeout),
		ConfigurationTTL: durationFromEnv("THREEDS_CONFIGURATION_TTL", defaultConfigurationTTL),
		LogLevel:         strings.ToLower(os.Getenv("THREEDS_LOG_LEVEL")),
	}
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
