package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
	"github.com/alephbunnies/bunny_token/internal/events"
	"github.com/alephbunnies/bunny_token/internal/vesting"
)

const (
	defaultAppName         = "BunnyToken"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultTotalSupply     = "1000000000000000"
	defaultRateLimitPerMin = 60
	defaultCallerMaxSkew   = 5 * time.Minute
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	skewSecondsEnvVar      = "CALLER_MAX_SKEW_SECONDS"
	skewDurationEnvVar     = "CALLER_MAX_SKEW"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// Construction parameters, only consulted when the ledger is empty.
	TotalSupply      uint256.Int
	Creator          account.ID
	MarketingWallet  account.ID
	AirdropStartTime vesting.Timestamp

	RateLimitPerMin   int
	TrustCallerHeader bool
	// CallerMaxSkew bounds the age of a signed request; used nonces are
	// remembered for twice this long.
	CallerMaxSkew time.Duration
	EventStream   string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		ShutdownPeriod:   defaultShutdownDelay,
		IdempotencyTTL:   defaultIdempotencyTTL,
		AirdropStartTime: vesting.DefaultUnlockTime,
		RateLimitPerMin:  defaultRateLimitPerMin,
		CallerMaxSkew:    defaultCallerMaxSkew,
		EventStream:      getEnv("EVENT_STREAM", events.DefaultStream),
	}

	var err error
	if cfg.ShutdownPeriod, err = duration(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = duration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.CallerMaxSkew, err = duration(skewSecondsEnvVar, skewDurationEnvVar, cfg.CallerMaxSkew); err != nil {
		return Config{}, err
	}
	if cfg.CallerMaxSkew <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", skewDurationEnvVar)
	}

	supply, err := uint256.FromDecimal(getEnv("TOTAL_SUPPLY", defaultTotalSupply))
	if err != nil {
		return Config{}, fmt.Errorf("invalid TOTAL_SUPPLY: %w", err)
	}
	cfg.TotalSupply = *supply

	if v := os.Getenv("CREATOR_ACCOUNT"); v != "" {
		if cfg.Creator, err = account.Parse(v); err != nil {
			return Config{}, fmt.Errorf("invalid CREATOR_ACCOUNT: %w", err)
		}
	}
	if v := os.Getenv("MARKETING_WALLET"); v != "" {
		if cfg.MarketingWallet, err = account.Parse(v); err != nil {
			return Config{}, fmt.Errorf("invalid MARKETING_WALLET: %w", err)
		}
	}
	if v := os.Getenv("AIRDROP_START_TIME_MS"); v != "" {
		ms, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AIRDROP_START_TIME_MS: %w", err)
		}
		cfg.AirdropStartTime = vesting.Timestamp(ms)
	}
	if v := os.Getenv("RATE_LIMIT_PER_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_PER_MIN: %w", err)
		}
		cfg.RateLimitPerMin = n
	}
	if v := os.Getenv("TRUST_CALLER_HEADER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TRUST_CALLER_HEADER: %w", err)
		}
		cfg.TrustCallerHeader = b
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.TrustCallerHeader {
			return Config{}, fmt.Errorf("TRUST_CALLER_HEADER is only allowed in development")
		}
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// duration reads a timeout given either in whole seconds or as a Go duration;
// the seconds form wins when both are set.
func duration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
