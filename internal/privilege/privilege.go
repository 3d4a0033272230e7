package privilege

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
	"github.com/alephbunnies/bunny_token/internal/ledger"
)

// Store is the ledger surface the registry needs.
type Store interface {
	ledger.Balances
	FeeExempt(ctx context.Context, acct account.ID) (bool, error)
	SetFeeExempt(ctx context.Context, acct account.ID) error
	PrivilegedAccounts(ctx context.Context) ([]account.ID, error)
	AppendPrivileged(ctx context.Context, acct account.ID) error
}

// Registry tracks fee-exempt accounts. Entries are append-only.
type Registry struct{}

// NewRegistry returns a privilege registry.
func NewRegistry() *Registry { return &Registry{} }

// Exempt marks acct fee exempt and appends it to the privileged list. It
// reports false when acct was already exempt.
func (r *Registry) Exempt(ctx context.Context, s Store, acct account.ID) (bool, error) {
	exempt, err := s.FeeExempt(ctx, acct)
	if err != nil {
		return false, err
	}
	if exempt {
		return false, nil
	}
	if err := s.SetFeeExempt(ctx, acct); err != nil {
		return false, err
	}
	if err := s.AppendPrivileged(ctx, acct); err != nil {
		return false, err
	}
	return true, nil
}

// IsExempt reports whether acct pays no transfer fees.
func (r *Registry) IsExempt(ctx context.Context, s Store, acct account.ID) (bool, error) {
	return s.FeeExempt(ctx, acct)
}

// Accounts lists every account ever marked exempt, in insertion order.
func (r *Registry) Accounts(ctx context.Context, s Store) ([]account.ID, error) {
	return s.PrivilegedAccounts(ctx)
}

// CirculatingSupply is the total supply minus the balances held by
// privileged accounts, floored at zero.
func (r *Registry) CirculatingSupply(ctx context.Context, s Store) (uint256.Int, error) {
	total, err := s.TotalSupply(ctx)
	if err != nil {
		return uint256.Int{}, err
	}
	accounts, err := s.PrivilegedAccounts(ctx)
	if err != nil {
		return uint256.Int{}, err
	}

	var held uint256.Int
	for _, acct := range accounts {
		bal, err := s.BalanceOf(ctx, acct)
		if err != nil {
			return uint256.Int{}, fmt.Errorf("balance of %s: %w", acct, err)
		}
		if _, overflow := held.AddOverflow(&held, &bal); overflow {
			return uint256.Int{}, ledger.ErrBalanceOverflow
		}
	}

	var circ uint256.Int
	if _, underflow := circ.SubOverflow(&total, &held); underflow {
		return uint256.Int{}, nil
	}
	return circ, nil
}
