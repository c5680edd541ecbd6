package ledger

import (
	"github.com/holiman/uint256"

	"token-ledger/internal/domain"
)

// Ledger is the authoritative balance table.
// It is not safe for concurrent use on its own; Engine serializes access.
type Ledger struct {
	balances map[domain.Account]*uint256.Int
}

func newLedger() *Ledger {
	return &Ledger{balances: make(map[domain.Account]*uint256.Int)}
}

// BalanceOf returns the balance of account. Unknown accounts hold 0.
func (l *Ledger) BalanceOf(account domain.Account) *uint256.Int {
	return domain.CloneAmount(l.balances[account])
}

// Sum returns the sum of all balances.
func (l *Ledger) Sum() *uint256.Int {
	sum := new(uint256.Int)
	for _, b := range l.balances {
		sum.Add(sum, b)
	}
	return sum
}

// Holders returns the number of accounts with a non-zero balance.
func (l *Ledger) Holders() int {
	n := 0
	for _, b := range l.balances {
		if !b.IsZero() {
			n++
		}
	}
	return n
}

// canDebit reports whether account holds at least amount.
func (l *Ledger) canDebit(account domain.Account, amount *uint256.Int) bool {
	return !domain.AmountOrZero(l.balances[account]).Lt(amount)
}

// debit decreases the balance of account by amount.
func (l *Ledger) debit(account domain.Account, amount *uint256.Int) error {
	if !l.canDebit(account, amount) {
		return ErrInsufficientBalance
	}
	if amount.IsZero() {
		return nil
	}
	b := l.balances[account]
	b.Sub(b, amount)
	if b.IsZero() {
		delete(l.balances, account)
	}
	return nil
}

// credit increases the balance of account by amount.
func (l *Ledger) credit(account domain.Account, amount *uint256.Int) error {
	if account.IsNull() {
		return ErrInvalidRecipient
	}
	current := domain.AmountOrZero(l.balances[account])
	next, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return ErrOverflow
	}
	if next.IsZero() {
		return nil
	}
	l.balances[account] = next
	return nil
}

// restore puts back an amount removed by debit. Used to roll back a failed move.
func (l *Ledger) restore(account domain.Account, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	current := domain.AmountOrZero(l.balances[account])
	l.balances[account] = new(uint256.Int).Add(current, amount)
}
