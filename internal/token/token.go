package token

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
	"github.com/alephbunnies/bunny_token/internal/disbursement"
	"github.com/alephbunnies/bunny_token/internal/events"
	"github.com/alephbunnies/bunny_token/internal/fee"
	"github.com/alephbunnies/bunny_token/internal/ledger"
	"github.com/alephbunnies/bunny_token/internal/metrics"
	"github.com/alephbunnies/bunny_token/internal/privilege"
	"github.com/alephbunnies/bunny_token/internal/vesting"
)

const (
	Name     = "Aleph Bunnies"
	Symbol   = "BUNNY"
	Decimals = 6
)

var (
	ErrZeroSenderAddress    = errors.New("zero sender address")
	ErrZeroRecipientAddress = errors.New("zero recipient address")
	ErrInsufficientBalance  = errors.New("insufficient balance")

	// ErrUnauthorized is returned when a creator-only operation is invoked by
	// another account. State is left untouched.
	ErrUnauthorized = errors.New("caller is not the creator")

	// ErrAllocationExceedsBalance rejects an airdrop allocation larger than
	// the recipient's balance.
	ErrAllocationExceedsBalance = errors.New("airdrop allocation exceeds balance")

	ErrMissingCreator         = errors.New("creator account not set")
	ErrMissingMarketingWallet = errors.New("marketing wallet not set")

	ErrAlreadyInitialized = errors.New("token already initialized")
	ErrNotInitialized     = errors.New("token not initialized")
)

// Token is a fee-on-transfer token with a fee disbursement pool and
// time-locked airdrop allocations. Mutating calls are serialized.
type Token struct {
	mu sync.Mutex

	ledger ledger.Ledger
	params ledger.Params

	hooks  ledger.Hooks
	sink   events.Sink
	clock  vesting.Clock
	logger *slog.Logger

	fees         fee.Policy
	vesting      *vesting.Ledger
	disbursement *disbursement.Engine
	privileges   *privilege.Registry
}

type options struct {
	hooks       ledger.Hooks
	sink        events.Sink
	clock       vesting.Clock
	logger      *slog.Logger
	fees        fee.Policy
	threshold   uint256.Int
	airdropTime vesting.Timestamp
}

// Option customizes a Token.
type Option func(*options)

// WithHooks installs transfer hooks.
func WithHooks(h ledger.Hooks) Option { return func(o *options) { o.hooks = h } }

// WithSink sets where transfer events are delivered.
func WithSink(s events.Sink) Option { return func(o *options) { o.sink = s } }

// WithClock overrides the wall clock.
func WithClock(c vesting.Clock) Option { return func(o *options) { o.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithFeePolicy overrides the 7% transfer fee.
func WithFeePolicy(p fee.Policy) Option { return func(o *options) { o.fees = p } }

// WithDisbursementThreshold overrides the pool size that triggers a disbursement.
func WithDisbursementThreshold(v uint256.Int) Option { return func(o *options) { o.threshold = v } }

// WithAirdropStartTime overrides the airdrop unlock time. It only applies to
// New; Load uses the stored value.
func WithAirdropStartTime(ts vesting.Timestamp) Option {
	return func(o *options) { o.airdropTime = ts }
}

func buildOptions(opts []Option) options {
	o := options{
		hooks:       ledger.NoopHooks{},
		clock:       vesting.SystemClock{},
		fees:        fee.Default(),
		threshold:   disbursement.DefaultThreshold(),
		airdropTime: vesting.DefaultUnlockTime,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.sink == nil {
		o.sink = events.NewLoggerSink(o.logger)
	}
	return o
}

func newToken(l ledger.Ledger, p ledger.Params, o options) *Token {
	return &Token{
		ledger:       l,
		params:       p,
		hooks:        o.hooks,
		sink:         o.sink,
		clock:        o.clock,
		logger:       o.logger,
		fees:         o.fees,
		vesting:      vesting.NewLedger(vesting.Timestamp(p.AirdropStartTime)),
		disbursement: disbursement.NewEngine(p.MarketingWallet, o.threshold),
		privileges:   privilege.NewRegistry(),
	}
}

// New constructs the token on an empty ledger: it records the creator and
// marketing wallet, exempts both from fees and mints totalSupply to the creator.
func New(ctx context.Context, l ledger.Ledger, totalSupply uint256.Int, creator, marketingWallet account.ID, opts ...Option) (*Token, error) {
	if creator.IsZero() {
		return nil, ErrMissingCreator
	}
	if marketingWallet.IsZero() {
		return nil, ErrMissingMarketingWallet
	}
	o := buildOptions(opts)
	p := ledger.Params{
		Creator:          creator,
		MarketingWallet:  marketingWallet,
		AirdropStartTime: uint64(o.airdropTime),
	}
	t := newToken(l, p, o)

	err := t.update(ctx, func(tx ledger.Tx) error {
		if _, exists, err := tx.Params(ctx); err != nil {
			return err
		} else if exists {
			return ErrAlreadyInitialized
		}
		if err := tx.SetParams(ctx, p); err != nil {
			return err
		}
		if _, err := t.privileges.Exempt(ctx, tx, creator); err != nil {
			return err
		}
		if _, err := t.privileges.Exempt(ctx, tx, marketingWallet); err != nil {
			return err
		}
		return ledger.Mint(ctx, tx, t.hooks, creator, totalSupply)
	})
	if err != nil {
		return nil, fmt.Errorf("construct token: %w", err)
	}

	t.logger.Info("token constructed",
		slog.String("creator", creator.String()),
		slog.String("marketing_wallet", marketingWallet.String()),
		slog.String("total_supply", totalSupply.Dec()),
		slog.Uint64("airdrop_start_time", p.AirdropStartTime),
	)
	t.emit(ctx, events.NewTransfer(nil, &creator, totalSupply))
	t.refreshPrivilegedGauge(ctx)
	return t, nil
}

// Load resumes a token previously constructed on l.
func Load(ctx context.Context, l ledger.Ledger, opts ...Option) (*Token, error) {
	o := buildOptions(opts)
	var p ledger.Params
	err := view(ctx, l, func(tx ledger.Tx) error {
		stored, exists, err := tx.Params(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotInitialized
		}
		p = stored
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	t := newToken(l, p, o)
	t.refreshPrivilegedGauge(ctx)
	return t, nil
}

// Open loads the token stored on l, constructing it first when the ledger is
// still empty.
func Open(ctx context.Context, l ledger.Ledger, totalSupply uint256.Int, creator, marketingWallet account.ID, opts ...Option) (*Token, error) {
	t, err := Load(ctx, l, opts...)
	if !errors.Is(err, ErrNotInitialized) {
		return t, err
	}
	return New(ctx, l, totalSupply, creator, marketingWallet, opts...)
}

// Creator returns the privileged creator account.
func (t *Token) Creator() account.ID { return t.params.Creator }

// MarketingWallet returns the account receiving disbursed fees.
func (t *Token) MarketingWallet() account.ID { return t.params.MarketingWallet }

// AirdropStartTime returns the instant airdrop allocations unlock.
func (t *Token) AirdropStartTime() vesting.Timestamp { return t.vesting.UnlockTime() }

// DisbursementThreshold returns the pool size that triggers a disbursement.
func (t *Token) DisbursementThreshold() uint256.Int { return t.disbursement.Threshold() }

func (t *Token) update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := t.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (t *Token) view(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return view(ctx, t.ledger, fn)
}

func view(ctx context.Context, l ledger.Ledger, fn func(tx ledger.Tx) error) error {
	tx, err := l.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck
	return fn(tx)
}

// emit delivers an event; failures are logged and never abort the caller.
func (t *Token) emit(ctx context.Context, event events.Transfer) {
	if err := t.sink.Emit(ctx, event); err != nil {
		metrics.EventFailures.Inc()
		t.logger.Warn("emit transfer event", slog.String("event_id", event.ID), "error", err)
	}
}

func (t *Token) refreshPrivilegedGauge(ctx context.Context) {
	accounts, err := t.PrivilegedAccounts(ctx)
	if err != nil {
		t.logger.Warn("count privileged accounts", "error", err)
		return
	}
	metrics.PrivilegedAccounts.Set(float64(len(accounts)))
}
