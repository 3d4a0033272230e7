package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alephbunnies/bunny_token/internal/account"
)

// advisoryLockKey serializes token transactions across every process sharing
// the database.
const advisoryLockKey int64 = 0x42554e4e59

// PostgresLedger persists balances and token state in PostgreSQL.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Begin opens a transaction holding the ledger-wide advisory lock until it ends.
func (l *PostgresLedger) Begin(ctx context.Context) (Tx, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
		tx.Rollback(ctx) // nolint:errcheck
		return nil, fmt.Errorf("acquire ledger lock: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) BalanceOf(ctx context.Context, acct account.ID) (uint256.Int, error) {
	return t.amount(ctx, `SELECT amount::text FROM balances WHERE account = $1`, acct[:])
}

func (t *postgresTx) SetBalance(ctx context.Context, acct account.ID, value uint256.Int) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO balances (account, amount) VALUES ($1, $2::numeric)
        ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount`, acct[:], value.Dec())
	return err
}

func (t *postgresTx) TotalSupply(ctx context.Context) (uint256.Int, error) {
	return t.amount(ctx, `SELECT total_supply::text FROM token_state WHERE id = 1`)
}

func (t *postgresTx) SetTotalSupply(ctx context.Context, value uint256.Int) error {
	return t.updateState(ctx, `UPDATE token_state SET total_supply = $1::numeric WHERE id = 1`, value)
}

func (t *postgresTx) Params(ctx context.Context) (Params, bool, error) {
	const query = `SELECT creator, marketing_wallet, airdrop_start_time FROM token_params WHERE id = 1`
	var (
		creator, marketing []byte
		startTime          int64
	)
	if err := t.tx.QueryRow(ctx, query).Scan(&creator, &marketing, &startTime); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Params{}, false, nil
		}
		return Params{}, false, err
	}
	c, err := account.FromBytes(creator)
	if err != nil {
		return Params{}, false, fmt.Errorf("stored creator: %w", err)
	}
	m, err := account.FromBytes(marketing)
	if err != nil {
		return Params{}, false, fmt.Errorf("stored marketing wallet: %w", err)
	}
	return Params{Creator: c, MarketingWallet: m, AirdropStartTime: uint64(startTime)}, true, nil
}

func (t *postgresTx) SetParams(ctx context.Context, p Params) error {
	if p.AirdropStartTime > math.MaxInt64 {
		return fmt.Errorf("%w: %d", ErrAirdropStartOutOfRange, p.AirdropStartTime)
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO token_params (id, creator, marketing_wallet, airdrop_start_time)
        VALUES (1, $1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET creator = EXCLUDED.creator,
            marketing_wallet = EXCLUDED.marketing_wallet,
            airdrop_start_time = EXCLUDED.airdrop_start_time`,
		p.Creator[:], p.MarketingWallet[:], int64(p.AirdropStartTime))
	return err
}

func (t *postgresTx) FeeExempt(ctx context.Context, acct account.ID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fee_exemptions WHERE account = $1)`, acct[:]).Scan(&exists)
	return exists, err
}

func (t *postgresTx) SetFeeExempt(ctx context.Context, acct account.ID) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO fee_exemptions (account) VALUES ($1) ON CONFLICT (account) DO NOTHING`, acct[:])
	return err
}

func (t *postgresTx) PrivilegedAccounts(ctx context.Context) ([]account.ID, error) {
	rows, err := t.tx.Query(ctx, `SELECT account FROM privileged_accounts ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []account.ID
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := account.FromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("stored privileged account: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *postgresTx) AppendPrivileged(ctx context.Context, acct account.ID) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO privileged_accounts (account) VALUES ($1) ON CONFLICT (account) DO NOTHING`, acct[:])
	return err
}

func (t *postgresTx) Airdrop(ctx context.Context, acct account.ID) (uint256.Int, error) {
	return t.amount(ctx, `SELECT amount::text FROM airdrops WHERE account = $1`, acct[:])
}

func (t *postgresTx) SetAirdrop(ctx context.Context, acct account.ID, amount uint256.Int) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO airdrops (account, amount) VALUES ($1, $2::numeric)
        ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount`, acct[:], amount.Dec())
	return err
}

func (t *postgresTx) DisbursementPool(ctx context.Context) (uint256.Int, error) {
	return t.amount(ctx, `SELECT disbursement_pool::text FROM token_state WHERE id = 1`)
}

func (t *postgresTx) SetDisbursementPool(ctx context.Context, value uint256.Int) error {
	return t.updateState(ctx, `UPDATE token_state SET disbursement_pool = $1::numeric WHERE id = 1`, value)
}

func (t *postgresTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			return ErrTxDone
		}
		return err
	}
	return nil
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// amount runs a single-value numeric query; a missing row reads as zero.
func (t *postgresTx) amount(ctx context.Context, query string, args ...any) (uint256.Int, error) {
	var text string
	if err := t.tx.QueryRow(ctx, query, args...).Scan(&text); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uint256.Int{}, nil
		}
		return uint256.Int{}, err
	}
	v, err := uint256.FromDecimal(text)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("decode stored amount %q: %w", text, err)
	}
	return *v, nil
}

func (t *postgresTx) updateState(ctx context.Context, stmt string, value uint256.Int) error {
	cmd, err := t.tx.Exec(ctx, stmt, value.Dec())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("token_state row missing, run migrations")
	}
	return nil
}
