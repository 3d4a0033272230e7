package ledger

import (
	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
)

// SeedBalance is a test helper that seeds the balance for an account when using
// the in-memory ledger. The total supply is adjusted so balances keep summing to it.
func SeedBalance(l Ledger, acct account.ID, amount uint64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		old := mem.balances[acct]
		mem.totalSupply.Sub(&mem.totalSupply, &old)
		next := uint256.NewInt(amount)
		mem.totalSupply.Add(&mem.totalSupply, next)
		mem.balances[acct] = *next
	}
}
