package disbursement

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
	"github.com/alephbunnies/bunny_token/internal/ledger"
)

// defaultThreshold is 10^12 smallest units (one million whole tokens at six decimals).
const defaultThreshold = 1_000_000_000_000

// DefaultThreshold returns the pool size that triggers a disbursement unless
// overridden.
func DefaultThreshold() uint256.Int { return *uint256.NewInt(defaultThreshold) }

// Store is the ledger surface the engine needs.
type Store interface {
	ledger.Balances
	DisbursementPool(ctx context.Context) (uint256.Int, error)
	SetDisbursementPool(ctx context.Context, value uint256.Int) error
}

// Engine accumulates transfer fees and flushes the whole pool to the
// marketing wallet once it reaches the threshold.
type Engine struct {
	wallet    account.ID
	threshold uint256.Int
}

// NewEngine builds an engine disbursing to wallet. A zero threshold uses
// DefaultThreshold.
func NewEngine(wallet account.ID, threshold uint256.Int) *Engine {
	if threshold.IsZero() {
		threshold = DefaultThreshold()
	}
	return &Engine{wallet: wallet, threshold: threshold}
}

// Wallet returns the disbursement destination.
func (e *Engine) Wallet() account.ID { return e.wallet }

// Threshold returns the pool size that triggers a disbursement.
func (e *Engine) Threshold() uint256.Int { return e.threshold }

// Pool returns the fees collected and not yet disbursed.
func (e *Engine) Pool(ctx context.Context, s Store) (uint256.Int, error) {
	return s.DisbursementPool(ctx)
}

// Accumulate adds fee to the pool and disburses when the threshold is met.
// It returns the disbursed amount, zero when nothing was flushed.
func (e *Engine) Accumulate(ctx context.Context, s Store, fee uint256.Int) (uint256.Int, error) {
	pool, err := s.DisbursementPool(ctx)
	if err != nil {
		return uint256.Int{}, err
	}
	var next uint256.Int
	if _, overflow := next.AddOverflow(&pool, &fee); overflow {
		return uint256.Int{}, fmt.Errorf("disbursement pool: %w", ledger.ErrBalanceOverflow)
	}
	if err := s.SetDisbursementPool(ctx, next); err != nil {
		return uint256.Int{}, err
	}
	if next.Lt(&e.threshold) {
		return uint256.Int{}, nil
	}
	return e.Disburse(ctx, s)
}

// Disburse credits the whole pool to the marketing wallet and empties it.
func (e *Engine) Disburse(ctx context.Context, s Store) (uint256.Int, error) {
	pool, err := s.DisbursementPool(ctx)
	if err != nil {
		return uint256.Int{}, err
	}
	if pool.IsZero() {
		return uint256.Int{}, nil
	}
	if err := ledger.Credit(ctx, s, e.wallet, pool); err != nil {
		return uint256.Int{}, fmt.Errorf("credit marketing wallet: %w", err)
	}
	if err := s.SetDisbursementPool(ctx, uint256.Int{}); err != nil {
		return uint256.Int{}, err
	}
	return pool, nil
}
