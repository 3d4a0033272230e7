package config

import (
	"strings"
	"testing"
	"time"

	"github.com/alephbunnies/bunny_token/internal/vesting"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Address())
	}
	if cfg.TotalSupply.Dec() != defaultTotalSupply {
		t.Fatalf("unexpected total supply %s", cfg.TotalSupply.Dec())
	}
	if cfg.AirdropStartTime != vesting.DefaultUnlockTime {
		t.Fatalf("unexpected airdrop start %d", cfg.AirdropStartTime)
	}
	if !cfg.Creator.IsZero() || !cfg.MarketingWallet.IsZero() {
		t.Fatalf("expected unset accounts")
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("unexpected idempotency ttl %s", cfg.IdempotencyTTL)
	}
	if cfg.CallerMaxSkew != 5*time.Minute {
		t.Fatalf("unexpected caller skew %s", cfg.CallerMaxSkew)
	}
}

func TestLoadCallerSkew(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CALLER_MAX_SKEW", "30s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CallerMaxSkew != 30*time.Second {
		t.Fatalf("unexpected caller skew %s", cfg.CallerMaxSkew)
	}

	t.Setenv("CALLER_MAX_SKEW_SECONDS", "0")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CALLER_MAX_SKEW") {
		t.Fatalf("expected skew error, got %v", err)
	}
}

func TestLoadParsesTokenSettings(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("TOTAL_SUPPLY", "1000000000000")
	t.Setenv("CREATOR_ACCOUNT", "0x"+strings.Repeat("aa", 32))
	t.Setenv("MARKETING_WALLET", strings.Repeat("bb", 32))
	t.Setenv("AIRDROP_START_TIME_MS", "42")
	t.Setenv("TRUST_CALLER_HEADER", "true")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("IDEMPOTENCY_TTL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TotalSupply.Uint64() != 1_000_000_000_000 {
		t.Fatalf("unexpected supply %s", cfg.TotalSupply.Dec())
	}
	if cfg.Creator[0] != 0xaa || cfg.MarketingWallet[31] != 0xbb {
		t.Fatalf("accounts not parsed: %s %s", cfg.Creator, cfg.MarketingWallet)
	}
	if cfg.AirdropStartTime != 42 || !cfg.TrustCallerHeader {
		t.Fatalf("unexpected airdrop=%d trust=%v", cfg.AirdropStartTime, cfg.TrustCallerHeader)
	}
	if cfg.ShutdownPeriod != 3*time.Second || cfg.IdempotencyTTL != 90*time.Second {
		t.Fatalf("unexpected durations %s %s", cfg.ShutdownPeriod, cfg.IdempotencyTTL)
	}
}

func TestLoadRequiresBackendsOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestLoadRejectsTrustedCallerInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/bunny")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("TRUST_CALLER_HEADER", "1")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for trusted caller header in production")
	}
}

func TestLoadRejectsBadAccount(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CREATOR_ACCOUNT", "not-hex")

	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid account error")
	}
}
