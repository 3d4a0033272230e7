package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
)

var (
	acctA = account.MustParse(strings.Repeat("0a", account.Size))
	acctB = account.MustParse(strings.Repeat("0b", account.Size))
)

func balanceOf(t *testing.T, l Ledger, acct account.ID) uint64 {
	t.Helper()
	ctx := context.Background()
	tx, err := l.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck
	bal, err := tx.BalanceOf(ctx, acct)
	if err != nil {
		t.Fatalf("balance of %s: %v", acct, err)
	}
	return bal.Uint64()
}

func TestInMemoryLedger_CommitAppliesWrites(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	tx, err := l.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.SetBalance(ctx, acctA, *uint256.NewInt(1_500)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if err := tx.SetFeeExempt(ctx, acctB); err != nil {
		t.Fatalf("set exempt: %v", err)
	}
	if err := tx.AppendPrivileged(ctx, acctB); err != nil {
		t.Fatalf("append privileged: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if got := balanceOf(t, l, acctA); got != 1_500 {
		t.Fatalf("expected balance 1500, got %d", got)
	}

	tx, _ = l.Begin(ctx)
	defer tx.Rollback(ctx) // nolint:errcheck
	exempt, _ := tx.FeeExempt(ctx, acctB)
	if !exempt {
		t.Fatalf("expected exemption to persist")
	}
	list, _ := tx.PrivilegedAccounts(ctx)
	if len(list) != 1 || list[0] != acctB {
		t.Fatalf("unexpected privileged list: %v", list)
	}
}

func TestInMemoryLedger_RollbackDiscardsWrites(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	SeedBalance(l, acctA, 10_000)

	tx, _ := l.Begin(ctx)
	_ = tx.SetBalance(ctx, acctA, *uint256.NewInt(1))
	_ = tx.SetAirdrop(ctx, acctA, *uint256.NewInt(5))
	_ = tx.SetDisbursementPool(ctx, *uint256.NewInt(7))
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if got := balanceOf(t, l, acctA); got != 10_000 {
		t.Fatalf("expected balance 10000 after rollback, got %d", got)
	}
	tx, _ = l.Begin(ctx)
	defer tx.Rollback(ctx) // nolint:errcheck
	airdrop, _ := tx.Airdrop(ctx, acctA)
	pool, _ := tx.DisbursementPool(ctx)
	if !airdrop.IsZero() || !pool.IsZero() {
		t.Fatalf("expected rolled back state, airdrop=%s pool=%s", airdrop.Dec(), pool.Dec())
	}
}

func TestInMemoryLedger_TxDone(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	tx, _ := l.Begin(ctx)
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := tx.Commit(ctx); !errors.Is(err, ErrTxDone) {
		t.Fatalf("expected ErrTxDone, got %v", err)
	}
	if _, err := tx.BalanceOf(ctx, acctA); !errors.Is(err, ErrTxDone) {
		t.Fatalf("expected ErrTxDone on read, got %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback after commit should be a no-op, got %v", err)
	}
}

func TestMintCreditsAndGrowsSupply(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	tx, _ := l.Begin(ctx)
	if err := Mint(ctx, tx, nil, acctA, *uint256.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx, _ = l.Begin(ctx)
	defer tx.Rollback(ctx) // nolint:errcheck
	supply, _ := tx.TotalSupply(ctx)
	bal, _ := tx.BalanceOf(ctx, acctA)
	if supply.Uint64() != 1_000 || bal.Uint64() != 1_000 {
		t.Fatalf("expected supply and balance 1000, got %s and %s", supply.Dec(), bal.Dec())
	}
}

func TestMintSupplyOverflow(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	tx, _ := l.Begin(ctx)
	defer tx.Rollback(ctx) // nolint:errcheck

	limit := new(uint256.Int).SetAllOne()
	if err := Mint(ctx, tx, nil, acctA, *limit); err != nil {
		t.Fatalf("mint max: %v", err)
	}
	if err := Mint(ctx, tx, nil, acctB, *uint256.NewInt(1)); !errors.Is(err, ErrSupplyOverflow) {
		t.Fatalf("expected supply overflow, got %v", err)
	}
}

func TestInMemoryLedger_ConcurrentTransactions(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	SeedBalance(l, acctA, 100_000)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx, err := l.Begin(ctx)
			if err != nil {
				t.Errorf("begin %d: %v", i, err)
				return
			}
			a, _ := tx.BalanceOf(ctx, acctA)
			b, _ := tx.BalanceOf(ctx, acctB)
			amount := uint256.NewInt(500)
			_ = tx.SetBalance(ctx, acctA, *new(uint256.Int).Sub(&a, amount))
			_ = tx.SetBalance(ctx, acctB, *new(uint256.Int).Add(&b, amount))
			if err := tx.Commit(ctx); err != nil {
				t.Errorf("commit %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	total := balanceOf(t, l, acctA) + balanceOf(t, l, acctB)
	if total != 100_000 {
		t.Fatalf("ledger not balanced after concurrency, total=%d", total)
	}
	if got := balanceOf(t, l, acctB); got != workers*500 {
		t.Fatalf("expected %d credited, got %d", workers*500, got)
	}
}
