package token

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
	"github.com/alephbunnies/bunny_token/internal/ledger"
)

// TotalSupply returns the amount minted at construction.
func (t *Token) TotalSupply(ctx context.Context) (uint256.Int, error) {
	var out uint256.Int
	err := t.view(ctx, func(tx ledger.Tx) (err error) {
		out, err = tx.TotalSupply(ctx)
		return err
	})
	return out, err
}

// BalanceOf returns acct's raw balance, locked allocation included.
func (t *Token) BalanceOf(ctx context.Context, acct account.ID) (uint256.Int, error) {
	var out uint256.Int
	err := t.view(ctx, func(tx ledger.Tx) (err error) {
		out, err = tx.BalanceOf(ctx, acct)
		return err
	})
	return out, err
}

// SpendableBalance returns what acct could transfer right now.
func (t *Token) SpendableBalance(ctx context.Context, acct account.ID) (uint256.Int, error) {
	var out uint256.Int
	err := t.view(ctx, func(tx ledger.Tx) error {
		raw, err := tx.BalanceOf(ctx, acct)
		if err != nil {
			return err
		}
		allocation, err := t.vesting.Allocation(ctx, tx, acct)
		if err != nil {
			return err
		}
		out = t.vesting.Spendable(raw, allocation, t.clock.Now())
		return nil
	})
	return out, err
}

// Airdrop returns acct's recorded airdrop allocation, zero if none.
func (t *Token) Airdrop(ctx context.Context, acct account.ID) (uint256.Int, error) {
	var out uint256.Int
	err := t.view(ctx, func(tx ledger.Tx) (err error) {
		out, err = t.vesting.Allocation(ctx, tx, acct)
		return err
	})
	return out, err
}

// IsExempt reports whether acct is excluded from transfer fees.
func (t *Token) IsExempt(ctx context.Context, acct account.ID) (bool, error) {
	var out bool
	err := t.view(ctx, func(tx ledger.Tx) (err error) {
		out, err = t.privileges.IsExempt(ctx, tx, acct)
		return err
	})
	return out, err
}

// PrivilegedAccounts lists fee-exempt accounts in the order they were added.
func (t *Token) PrivilegedAccounts(ctx context.Context) ([]account.ID, error) {
	var out []account.ID
	err := t.view(ctx, func(tx ledger.Tx) (err error) {
		out, err = t.privileges.Accounts(ctx, tx)
		return err
	})
	return out, err
}

// CirculatingSupply is the total supply minus every privileged balance.
func (t *Token) CirculatingSupply(ctx context.Context) (uint256.Int, error) {
	var out uint256.Int
	err := t.view(ctx, func(tx ledger.Tx) (err error) {
		out, err = t.privileges.CirculatingSupply(ctx, tx)
		return err
	})
	return out, err
}

// DisbursementPool returns the fees accumulated since the last disbursement.
func (t *Token) DisbursementPool(ctx context.Context) (uint256.Int, error) {
	var out uint256.Int
	err := t.view(ctx, func(tx ledger.Tx) (err error) {
		out, err = t.disbursement.Pool(ctx, tx)
		return err
	})
	return out, err
}
