package vesting

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
)

// Timestamp is milliseconds since the Unix epoch.
type Timestamp uint64

// DefaultUnlockTime is 2023-04-15T00:00:00Z.
const DefaultUnlockTime Timestamp = 1681516800000

// FromTime converts t to a Timestamp. Instants before the epoch map to 0.
func FromTime(t time.Time) Timestamp {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return Timestamp(ms)
}

// Time converts ts back to a UTC time.
func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts)).UTC()
}

// Clock supplies the current time.
type Clock interface {
	Now() Timestamp
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() Timestamp { return FromTime(time.Now()) }

// FixedClock always returns the same instant. Useful for tests.
type FixedClock Timestamp

func (c FixedClock) Now() Timestamp { return Timestamp(c) }

// Store persists per-account locked allocations.
type Store interface {
	Airdrop(ctx context.Context, acct account.ID) (uint256.Int, error)
	SetAirdrop(ctx context.Context, acct account.ID, amount uint256.Int) error
}

// Ledger tracks airdrop allocations that stay locked until a single global
// unlock time. Once the unlock time passes every allocation is spendable.
type Ledger struct {
	unlockAt Timestamp
}

// NewLedger builds a vesting ledger unlocking at unlockAt.
func NewLedger(unlockAt Timestamp) *Ledger {
	return &Ledger{unlockAt: unlockAt}
}

// UnlockTime returns the global unlock instant.
func (l *Ledger) UnlockTime() Timestamp { return l.unlockAt }

// IsVested reports whether allocations are unlocked at now.
func (l *Ledger) IsVested(now Timestamp) bool {
	return now >= l.unlockAt
}

// Allocation returns the locked allocation of acct, zero if none was recorded.
func (l *Ledger) Allocation(ctx context.Context, s Store, acct account.ID) (uint256.Int, error) {
	return s.Airdrop(ctx, acct)
}

// Record overwrites the locked allocation of acct.
func (l *Ledger) Record(ctx context.Context, s Store, acct account.ID, amount uint256.Int) error {
	return s.SetAirdrop(ctx, acct, amount)
}

// Locked returns the part of an allocation still locked at now.
func (l *Ledger) Locked(allocation uint256.Int, now Timestamp) uint256.Int {
	if l.IsVested(now) {
		return uint256.Int{}
	}
	return allocation
}

// Spendable returns raw minus the allocation still locked at now. An
// allocation larger than raw leaves nothing spendable.
func (l *Ledger) Spendable(raw, allocation uint256.Int, now Timestamp) uint256.Int {
	locked := l.Locked(allocation, now)
	var out uint256.Int
	if _, underflow := out.SubOverflow(&raw, &locked); underflow {
		return uint256.Int{}
	}
	return out
}
