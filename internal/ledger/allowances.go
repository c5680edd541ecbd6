package ledger

import (
	"github.com/holiman/uint256"

	"token-ledger/internal/domain"
)

// allowanceKey identifies an (owner, spender) pair.
type allowanceKey struct {
	owner   domain.Account
	spender domain.Account
}

// AllowanceRegistry tracks how much each spender may move out of an owner's balance.
// Like Ledger it relies on Engine for serialization.
type AllowanceRegistry struct {
	quotas map[allowanceKey]*uint256.Int
}

func newAllowanceRegistry() *AllowanceRegistry {
	return &AllowanceRegistry{quotas: make(map[allowanceKey]*uint256.Int)}
}

// AllowanceOf returns the remaining quota of spender over owner's balance. Defaults to 0.
func (r *AllowanceRegistry) AllowanceOf(owner, spender domain.Account) *uint256.Int {
	return domain.CloneAmount(r.quotas[allowanceKey{owner: owner, spender: spender}])
}

// setAllowance replaces the quota. Prior unspent allowance is discarded.
func (r *AllowanceRegistry) setAllowance(owner, spender domain.Account, amount *uint256.Int) error {
	if spender.IsNull() {
		return ErrInvalidSpender
	}
	key := allowanceKey{owner: owner, spender: spender}
	if amount.IsZero() {
		delete(r.quotas, key)
		return nil
	}
	r.quotas[key] = domain.CloneAmount(amount)
	return nil
}

// canConsume reports whether the quota covers amount.
func (r *AllowanceRegistry) canConsume(owner, spender domain.Account, amount *uint256.Int) bool {
	return !domain.AmountOrZero(r.quotas[allowanceKey{owner: owner, spender: spender}]).Lt(amount)
}

// consume reduces the quota by exactly amount.
func (r *AllowanceRegistry) consume(owner, spender domain.Account, amount *uint256.Int) error {
	if !r.canConsume(owner, spender, amount) {
		return ErrInsufficientAllowance
	}
	if amount.IsZero() {
		return nil
	}
	key := allowanceKey{owner: owner, spender: spender}
	q := r.quotas[key]
	q.Sub(q, amount)
	if q.IsZero() {
		delete(r.quotas, key)
	}
	return nil
}

// restore puts back a quota removed by consume. Used to roll back a failed transferFrom.
func (r *AllowanceRegistry) restore(owner, spender domain.Account, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	key := allowanceKey{owner: owner, spender: spender}
	q := domain.AmountOrZero(r.quotas[key])
	r.quotas[key] = new(uint256.Int).Add(q, amount)
}
