package ledger

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
)

var (
	// ErrBalanceOverflow occurs when crediting an account would exceed the
	// representable balance range.
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrSupplyOverflow occurs when minting would overflow the total supply.
	ErrSupplyOverflow = errors.New("total supply overflow")

	// ErrTxDone is returned when a transaction is used after Commit or Rollback.
	ErrTxDone = errors.New("ledger transaction already finished")

	// ErrAirdropStartOutOfRange rejects start times the Postgres BIGINT
	// column cannot hold.
	ErrAirdropStartOutOfRange = errors.New("airdrop start time out of range")
)

// Params are the construction-time parameters of a token instance.
type Params struct {
	Creator          account.ID
	MarketingWallet  account.ID
	AirdropStartTime uint64
}

// Balances is the base ledger surface: per-account balances and total supply.
type Balances interface {
	BalanceOf(ctx context.Context, acct account.ID) (uint256.Int, error)
	SetBalance(ctx context.Context, acct account.ID, value uint256.Int) error
	TotalSupply(ctx context.Context) (uint256.Int, error)
	SetTotalSupply(ctx context.Context, value uint256.Int) error
}

// State holds the token extension state persisted next to the balances.
type State interface {
	Params(ctx context.Context) (Params, bool, error)
	SetParams(ctx context.Context, p Params) error

	FeeExempt(ctx context.Context, acct account.ID) (bool, error)
	SetFeeExempt(ctx context.Context, acct account.ID) error
	PrivilegedAccounts(ctx context.Context) ([]account.ID, error)
	AppendPrivileged(ctx context.Context, acct account.ID) error

	Airdrop(ctx context.Context, acct account.ID) (uint256.Int, error)
	SetAirdrop(ctx context.Context, acct account.ID, amount uint256.Int) error

	DisbursementPool(ctx context.Context) (uint256.Int, error)
	SetDisbursementPool(ctx context.Context, value uint256.Int) error
}

// Tx is an all-or-nothing unit of work over the ledger.
type Tx interface {
	Balances
	State
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	Begin(ctx context.Context) (Tx, error)
}

// Hooks are the extension points invoked around every balance movement.
// A nil sender means a mint.
type Hooks interface {
	BeforeTransfer(ctx context.Context, from, to *account.ID, amount uint256.Int) error
	AcceptTransfer(ctx context.Context, from, to account.ID, amount uint256.Int, data []byte) error
	AfterTransfer(ctx context.Context, from, to *account.ID, amount uint256.Int) error
}

// NoopHooks accepts every transfer.
type NoopHooks struct{}

func (NoopHooks) BeforeTransfer(context.Context, *account.ID, *account.ID, uint256.Int) error {
	return nil
}

func (NoopHooks) AcceptTransfer(context.Context, account.ID, account.ID, uint256.Int, []byte) error {
	return nil
}

func (NoopHooks) AfterTransfer(context.Context, *account.ID, *account.ID, uint256.Int) error {
	return nil
}

// Credit adds amount to the balance of acct.
func Credit(ctx context.Context, b Balances, acct account.ID, amount uint256.Int) error {
	bal, err := b.BalanceOf(ctx, acct)
	if err != nil {
		return err
	}
	var next uint256.Int
	if _, overflow := next.AddOverflow(&bal, &amount); overflow {
		return ErrBalanceOverflow
	}
	return b.SetBalance(ctx, acct, next)
}

// Mint creates amount new tokens owned by to.
func Mint(ctx context.Context, tx Tx, hooks Hooks, to account.ID, amount uint256.Int) error {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	if err := hooks.BeforeTransfer(ctx, nil, &to, amount); err != nil {
		return err
	}

	supply, err := tx.TotalSupply(ctx)
	if err != nil {
		return err
	}
	var next uint256.Int
	if _, overflow := next.AddOverflow(&supply, &amount); overflow {
		return ErrSupplyOverflow
	}
	if err := tx.SetTotalSupply(ctx, next); err != nil {
		return err
	}
	if err := Credit(ctx, tx, to, amount); err != nil {
		return err
	}

	return hooks.AfterTransfer(ctx, nil, &to, amount)
}
