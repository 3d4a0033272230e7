package vesting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
)

type mapStore map[account.ID]uint256.Int

func (m mapStore) Airdrop(_ context.Context, acct account.ID) (uint256.Int, error) {
	return m[acct], nil
}

func (m mapStore) SetAirdrop(_ context.Context, acct account.ID, amount uint256.Int) error {
	m[acct] = amount
	return nil
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDefaultUnlockTime(t *testing.T) {
	if got := DefaultUnlockTime.Time(); !got.Equal(mustTime("2023-04-15T00:00:00Z")) {
		t.Fatalf("unexpected default unlock time %s", got)
	}
	if FromTime(mustTime("2023-04-15T00:00:00Z")) != DefaultUnlockTime {
		t.Fatalf("FromTime does not round trip")
	}
}

func TestIsVested(t *testing.T) {
	l := NewLedger(1_000)
	if l.IsVested(999) {
		t.Fatalf("expected locked before unlock time")
	}
	if !l.IsVested(1_000) {
		t.Fatalf("expected vested at unlock time")
	}
	if !l.IsVested(1_001) {
		t.Fatalf("expected vested after unlock time")
	}
}

func TestSpendable(t *testing.T) {
	l := NewLedger(1_000)
	raw := *uint256.NewInt(500)
	alloc := *uint256.NewInt(200)

	if got := l.Spendable(raw, alloc, 999); got.Uint64() != 300 {
		t.Fatalf("before unlock expected 300 got %s", got.Dec())
	}
	if got := l.Spendable(raw, alloc, 1_000); got.Uint64() != 500 {
		t.Fatalf("at unlock expected 500 got %s", got.Dec())
	}
	if got := l.Spendable(raw, uint256.Int{}, 0); got.Uint64() != 500 {
		t.Fatalf("without allocation expected 500 got %s", got.Dec())
	}
	// allocation above balance saturates instead of wrapping
	if got := l.Spendable(*uint256.NewInt(100), alloc, 0); !got.IsZero() {
		t.Fatalf("expected 0 spendable got %s", got.Dec())
	}
}

func TestRecordOverwrites(t *testing.T) {
	l := NewLedger(DefaultUnlockTime)
	s := mapStore{}
	ctx := context.Background()
	acct := account.MustParse(strings.Repeat("0c", account.Size))

	if got, _ := l.Allocation(ctx, s, acct); !got.IsZero() {
		t.Fatalf("expected zero allocation for unknown account, got %s", got.Dec())
	}
	_ = l.Record(ctx, s, acct, *uint256.NewInt(50))
	_ = l.Record(ctx, s, acct, *uint256.NewInt(20))
	if got, _ := l.Allocation(ctx, s, acct); got.Uint64() != 20 {
		t.Fatalf("expected overwrite to 20, got %s", got.Dec())
	}
}

func TestFixedClock(t *testing.T) {
	var c Clock = FixedClock(42)
	if c.Now() != 42 {
		t.Fatalf("expected 42 got %d", c.Now())
	}
	if (SystemClock{}).Now() < DefaultUnlockTime {
		t.Fatalf("system clock is before the default unlock time")
	}
}
