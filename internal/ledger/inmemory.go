package ledger

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
)

type inMemoryLedger struct {
	mu          sync.Mutex
	params      *Params
	balances    map[account.ID]uint256.Int
	totalSupply uint256.Int
	feeExempt   map[account.ID]bool
	privileged  []account.ID
	airdrops    map[account.ID]uint256.Int
	pool        uint256.Int
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and development. Transactions are serialized: Begin blocks until the
// previous transaction commits or rolls back.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:  make(map[account.ID]uint256.Int),
		feeExempt: make(map[account.ID]bool),
		airdrops:  make(map[account.ID]uint256.Int),
	}
}

func (l *inMemoryLedger) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	return &inMemoryTx{
		l:         l,
		balances:  make(map[account.ID]uint256.Int),
		feeExempt: make(map[account.ID]bool),
		airdrops:  make(map[account.ID]uint256.Int),
	}, nil
}

// inMemoryTx buffers writes and applies them to the ledger on Commit.
type inMemoryTx struct {
	l    *inMemoryLedger
	done bool

	params      *Params
	balances    map[account.ID]uint256.Int
	totalSupply *uint256.Int
	feeExempt   map[account.ID]bool
	privileged  []account.ID
	airdrops    map[account.ID]uint256.Int
	pool        *uint256.Int
}

func (tx *inMemoryTx) BalanceOf(_ context.Context, acct account.ID) (uint256.Int, error) {
	if tx.done {
		return uint256.Int{}, ErrTxDone
	}
	if v, ok := tx.balances[acct]; ok {
		return v, nil
	}
	return tx.l.balances[acct], nil
}

func (tx *inMemoryTx) SetBalance(_ context.Context, acct account.ID, value uint256.Int) error {
	if tx.done {
		return ErrTxDone
	}
	tx.balances[acct] = value
	return nil
}

func (tx *inMemoryTx) TotalSupply(context.Context) (uint256.Int, error) {
	if tx.done {
		return uint256.Int{}, ErrTxDone
	}
	if tx.totalSupply != nil {
		return *tx.totalSupply, nil
	}
	return tx.l.totalSupply, nil
}

func (tx *inMemoryTx) SetTotalSupply(_ context.Context, value uint256.Int) error {
	if tx.done {
		return ErrTxDone
	}
	tx.totalSupply = &value
	return nil
}

func (tx *inMemoryTx) Params(context.Context) (Params, bool, error) {
	if tx.done {
		return Params{}, false, ErrTxDone
	}
	if tx.params != nil {
		return *tx.params, true, nil
	}
	if tx.l.params != nil {
		return *tx.l.params, true, nil
	}
	return Params{}, false, nil
}

func (tx *inMemoryTx) SetParams(_ context.Context, p Params) error {
	if tx.done {
		return ErrTxDone
	}
	tx.params = &p
	return nil
}

func (tx *inMemoryTx) FeeExempt(_ context.Context, acct account.ID) (bool, error) {
	if tx.done {
		return false, ErrTxDone
	}
	if tx.feeExempt[acct] {
		return true, nil
	}
	return tx.l.feeExempt[acct], nil
}

func (tx *inMemoryTx) SetFeeExempt(_ context.Context, acct account.ID) error {
	if tx.done {
		return ErrTxDone
	}
	tx.feeExempt[acct] = true
	return nil
}

func (tx *inMemoryTx) PrivilegedAccounts(context.Context) ([]account.ID, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	out := make([]account.ID, 0, len(tx.l.privileged)+len(tx.privileged))
	out = append(out, tx.l.privileged...)
	out = append(out, tx.privileged...)
	return out, nil
}

func (tx *inMemoryTx) AppendPrivileged(_ context.Context, acct account.ID) error {
	if tx.done {
		return ErrTxDone
	}
	tx.privileged = append(tx.privileged, acct)
	return nil
}

func (tx *inMemoryTx) Airdrop(_ context.Context, acct account.ID) (uint256.Int, error) {
	if tx.done {
		return uint256.Int{}, ErrTxDone
	}
	if v, ok := tx.airdrops[acct]; ok {
		return v, nil
	}
	return tx.l.airdrops[acct], nil
}

func (tx *inMemoryTx) SetAirdrop(_ context.Context, acct account.ID, amount uint256.Int) error {
	if tx.done {
		return ErrTxDone
	}
	tx.airdrops[acct] = amount
	return nil
}

func (tx *inMemoryTx) DisbursementPool(context.Context) (uint256.Int, error) {
	if tx.done {
		return uint256.Int{}, ErrTxDone
	}
	if tx.pool != nil {
		return *tx.pool, nil
	}
	return tx.l.pool, nil
}

func (tx *inMemoryTx) SetDisbursementPool(_ context.Context, value uint256.Int) error {
	if tx.done {
		return ErrTxDone
	}
	tx.pool = &value
	return nil
}

func (tx *inMemoryTx) Commit(context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	l := tx.l
	if tx.params != nil {
		p := *tx.params
		l.params = &p
	}
	for acct, v := range tx.balances {
		l.balances[acct] = v
	}
	if tx.totalSupply != nil {
		l.totalSupply = *tx.totalSupply
	}
	for acct := range tx.feeExempt {
		l.feeExempt[acct] = true
	}
	l.privileged = append(l.privileged, tx.privileged...)
	for acct, v := range tx.airdrops {
		l.airdrops[acct] = v
	}
	if tx.pool != nil {
		l.pool = *tx.pool
	}
	tx.finish()
	return nil
}

func (tx *inMemoryTx) Rollback(context.Context) error {
	if tx.done {
		return nil
	}
	tx.finish()
	return nil
}

func (tx *inMemoryTx) finish() {
	tx.done = true
	tx.l.mu.Unlock()
}
