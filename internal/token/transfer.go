package token

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
	"github.com/alephbunnies/bunny_token/internal/events"
	"github.com/alephbunnies/bunny_token/internal/ledger"
	"github.com/alephbunnies/bunny_token/internal/metrics"
)

// Receipt describes the effect of a committed transfer.
type Receipt struct {
	From      account.ID
	To        account.ID
	Amount    uint256.Int
	Fee       uint256.Int
	Received  uint256.Int
	Disbursed uint256.Int
}

// Transfer moves amount from one account to another. The sender always loses
// exactly amount; the recipient receives amount minus the fee, which goes to
// the disbursement pool. Locked airdrop allocations cannot be spent before
// the airdrop start time. Either everything commits or nothing does.
func (t *Token) Transfer(ctx context.Context, from, to account.ID, amount uint256.Int, data []byte) (Receipt, error) {
	if from.IsZero() {
		metrics.Transfers.WithLabelValues("rejected").Inc()
		return Receipt{}, ErrZeroSenderAddress
	}
	if to.IsZero() {
		metrics.Transfers.WithLabelValues("rejected").Inc()
		return Receipt{}, ErrZeroRecipientAddress
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	receipt := Receipt{From: from, To: to, Amount: amount}
	err := t.update(ctx, func(tx ledger.Tx) error {
		return t.transfer(ctx, tx, &receipt, data)
	})
	if err != nil {
		metrics.Transfers.WithLabelValues("failed").Inc()
		return Receipt{}, err
	}

	metrics.Transfers.WithLabelValues("ok").Inc()
	metrics.FeesCollected.Add(metrics.Tokens(receipt.Fee))
	if !receipt.Disbursed.IsZero() {
		metrics.Disbursements.Inc()
		metrics.Disbursed.Add(metrics.Tokens(receipt.Disbursed))
		t.logger.Info("disbursement pool flushed",
			slog.String("marketing_wallet", t.params.MarketingWallet.String()),
			slog.String("amount", receipt.Disbursed.Dec()),
		)
	}
	t.logger.Debug("transfer committed",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.String("amount", amount.Dec()),
		slog.String("fee", receipt.Fee.Dec()),
	)

	// the event reports the requested amount, not the post-fee credit
	t.emit(ctx, events.NewTransfer(&from, &to, amount))
	return receipt, nil
}

func (t *Token) transfer(ctx context.Context, tx ledger.Tx, r *Receipt, data []byte) error {
	raw, err := tx.BalanceOf(ctx, r.From)
	if err != nil {
		return err
	}
	allocation, err := t.vesting.Allocation(ctx, tx, r.From)
	if err != nil {
		return err
	}
	spendable := t.vesting.Spendable(raw, allocation, t.clock.Now())
	if spendable.Lt(&r.Amount) {
		return ErrInsufficientBalance
	}

	if err := t.hooks.BeforeTransfer(ctx, &r.From, &r.To, r.Amount); err != nil {
		return err
	}

	var debited uint256.Int
	debited.Sub(&raw, &r.Amount)
	if err := tx.SetBalance(ctx, r.From, debited); err != nil {
		return err
	}

	senderExempt, err := t.privileges.IsExempt(ctx, tx, r.From)
	if err != nil {
		return err
	}
	recipientExempt, err := t.privileges.IsExempt(ctx, tx, r.To)
	if err != nil {
		return err
	}
	r.Fee = t.fees.For(r.Amount, senderExempt, recipientExempt)
	r.Received.Sub(&r.Amount, &r.Fee)

	if err := t.hooks.AcceptTransfer(ctx, r.From, r.To, r.Received, data); err != nil {
		return err
	}
	if err := ledger.Credit(ctx, tx, r.To, r.Received); err != nil {
		return fmt.Errorf("credit %s: %w", r.To, err)
	}

	r.Disbursed, err = t.disbursement.Accumulate(ctx, tx, r.Fee)
	if err != nil {
		return err
	}

	return t.hooks.AfterTransfer(ctx, &r.From, &r.To, r.Received)
}
