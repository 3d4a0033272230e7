package token

import (
	"context"
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
	"github.com/alephbunnies/bunny_token/internal/events"
	"github.com/alephbunnies/bunny_token/internal/ledger"
)

func (t *Token) authorize(caller account.ID) error {
	if caller != t.params.Creator {
		t.logger.Warn("unauthorized creator operation", slog.String("caller", caller.String()))
		return ErrUnauthorized
	}
	return nil
}

// ExcludeFromFees exempts acct from transfer fees and adds it to the
// privileged set. Repeating the call for the same account changes nothing.
func (t *Token) ExcludeFromFees(ctx context.Context, caller, acct account.ID) error {
	if err := t.authorize(caller); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var added bool
	err := t.update(ctx, func(tx ledger.Tx) error {
		var err error
		added, err = t.privileges.Exempt(ctx, tx, acct)
		return err
	})
	if err != nil {
		return err
	}
	if added {
		t.logger.Info("account excluded from fees", slog.String("account", acct.String()))
		t.refreshPrivilegedGauge(ctx)
	}
	return nil
}

// AddToAirdrop records amount as acct's locked allocation and funds it from
// the creator's balance without charging a fee. Once funded, acct's balance
// always covers the allocation.
func (t *Token) AddToAirdrop(ctx context.Context, caller, acct account.ID, amount uint256.Int) error {
	if err := t.authorize(caller); err != nil {
		return err
	}
	if acct.IsZero() {
		return ErrZeroRecipientAddress
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.update(ctx, func(tx ledger.Tx) error {
		if err := t.vesting.Record(ctx, tx, acct, amount); err != nil {
			return err
		}
		return t.fund(ctx, tx, acct, amount)
	})
	if err != nil {
		return err
	}

	t.logger.Info("airdrop allocated",
		slog.String("account", acct.String()),
		slog.String("amount", amount.Dec()),
	)
	creator := t.params.Creator
	t.emit(ctx, events.NewTransfer(&creator, &acct, amount))
	return nil
}

// RecordAllocation sets acct's locked allocation without moving tokens. The
// allocation may not exceed acct's current balance.
func (t *Token) RecordAllocation(ctx context.Context, caller, acct account.ID, amount uint256.Int) error {
	if err := t.authorize(caller); err != nil {
		return err
	}
	if acct.IsZero() {
		return ErrZeroRecipientAddress
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.update(ctx, func(tx ledger.Tx) error {
		bal, err := tx.BalanceOf(ctx, acct)
		if err != nil {
			return err
		}
		if amount.Gt(&bal) {
			return ErrAllocationExceedsBalance
		}
		return t.vesting.Record(ctx, tx, acct, amount)
	})
}

// FundTransfer moves amount from the creator to acct without a fee and
// without touching allocations.
func (t *Token) FundTransfer(ctx context.Context, caller, acct account.ID, amount uint256.Int) error {
	if err := t.authorize(caller); err != nil {
		return err
	}
	if acct.IsZero() {
		return ErrZeroRecipientAddress
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.update(ctx, func(tx ledger.Tx) error {
		return t.fund(ctx, tx, acct, amount)
	}); err != nil {
		return err
	}

	creator := t.params.Creator
	t.emit(ctx, events.NewTransfer(&creator, &acct, amount))
	return nil
}

// fund debits the creator before crediting acct, so a self-funding leaves
// the creator's balance unchanged.
func (t *Token) fund(ctx context.Context, tx ledger.Tx, acct account.ID, amount uint256.Int) error {
	creator := t.params.Creator
	bal, err := tx.BalanceOf(ctx, creator)
	if err != nil {
		return err
	}
	if bal.Lt(&amount) {
		return ErrInsufficientBalance
	}
	if err := t.hooks.BeforeTransfer(ctx, &creator, &acct, amount); err != nil {
		return err
	}
	var debited uint256.Int
	debited.Sub(&bal, &amount)
	if err := tx.SetBalance(ctx, creator, debited); err != nil {
		return err
	}
	if err := ledger.Credit(ctx, tx, acct, amount); err != nil {
		return err
	}
	return t.hooks.AfterTransfer(ctx, &creator, &acct, amount)
}
