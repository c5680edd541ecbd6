// Package ledger implements a fixed-supply fungible token: balances,
// delegated allowances, and the append-only log of committed operations.
//
// Engine is the only entry point that mutates state. Every write is
// validated in full before anything changes, so a rejected call is a no-op.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"token-ledger/internal/domain"
)

// Operation names a state-changing engine call.
type Operation string

// Engine operations
const (
	OpTransfer     Operation = "transfer"
	OpApprove      Operation = "approve"
	OpTransferFrom Operation = "transfer_from"
)

// Observer is notified after each write call returns. Callbacks run outside
// the engine lock and must not call back into write operations.
type Observer interface {
	OperationCommitted(op Operation, e *domain.Event)
	OperationRejected(op Operation, err error)
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	decimals uint8
	now      func() time.Time
	observer Observer
}

// WithDecimals overrides the default of 18 decimals.
func WithDecimals(decimals uint8) Option {
	return func(o *options) {
		o.decimals = decimals
	}
}

// WithClock sets the time source used for CommittedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithObserver registers an observer for committed and rejected operations.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// Engine composes Ledger, AllowanceRegistry and EventLog behind one lock.
type Engine struct {
	mu         sync.RWMutex
	meta       domain.TokenMetadata
	genesis    *domain.Genesis
	ledger     *Ledger
	allowances *AllowanceRegistry
	log        *EventLog

	now      func() time.Time
	observer Observer
}

// New constructs a token whose total supply, initialSupply × 10^decimals,
// is credited entirely to deployer. No event is emitted for the initial credit.
func New(name, symbol string, initialSupply *uint256.Int, deployer domain.Account, opts ...Option) (*Engine, error) {
	o := buildOptions(opts)
	g := &domain.Genesis{
		Name:          name,
		Symbol:        symbol,
		Decimals:      o.decimals,
		InitialSupply: domain.CloneAmount(initialSupply),
		Deployer:      deployer,
		CreatedAt:     o.now().UnixMilli(),
	}
	return newEngine(g, o)
}

// NewFromGenesis constructs the token described by a stored genesis record.
// The record's decimals take precedence over WithDecimals.
func NewFromGenesis(g *domain.Genesis, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("new from genesis: nil genesis")
	}
	o := buildOptions(opts)
	o.decimals = g.Decimals
	return newEngine(g.Clone(), o)
}

func buildOptions(opts []Option) options {
	o := options{
		decimals: domain.DefaultDecimals,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newEngine(g *domain.Genesis, o options) (*Engine, error) {
	if g.Deployer.IsNull() {
		return nil, fmt.Errorf("construct ledger: deployer: %w", ErrInvalidRecipient)
	}

	supply, overflow := domain.Scale(g.InitialSupply, o.decimals)
	if overflow {
		return nil, fmt.Errorf("construct ledger: total supply: %w", ErrOverflow)
	}

	e := &Engine{
		meta: domain.TokenMetadata{
			Name:        g.Name,
			Symbol:      g.Symbol,
			Decimals:    o.decimals,
			TotalSupply: supply,
		},
		genesis:    g,
		ledger:     newLedger(),
		allowances: newAllowanceRegistry(),
		log:        newEventLog(),
		now:        o.now,
		observer:   o.observer,
	}

	if err := e.ledger.credit(g.Deployer, supply); err != nil {
		return nil, fmt.Errorf("construct ledger: credit deployer: %w", err)
	}

	return e, nil
}

// Name returns the token name.
func (e *Engine) Name() string { return e.meta.Name }

// Symbol returns the token symbol.
func (e *Engine) Symbol() string { return e.meta.Symbol }

// Decimals returns the token decimals.
func (e *Engine) Decimals() uint8 { return e.meta.Decimals }

// TotalSupply returns the fixed total supply in smallest units.
func (e *Engine) TotalSupply() *uint256.Int { return domain.CloneAmount(e.meta.TotalSupply) }

// Metadata returns a copy of the token metadata.
func (e *Engine) Metadata() domain.TokenMetadata { return e.meta.Clone() }

// Genesis returns a copy of the construction record.
func (e *Engine) Genesis() *domain.Genesis { return e.genesis.Clone() }

// Log returns the event log for observers.
func (e *Engine) Log() *EventLog { return e.log }

// BalanceOf returns the balance of account.
func (e *Engine) BalanceOf(account domain.Account) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.BalanceOf(account)
}

// AllowanceOf returns how much spender may still move from owner.
func (e *Engine) AllowanceOf(owner, spender domain.Account) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.allowances.AllowanceOf(owner, spender)
}

// Holders returns the number of accounts with a non-zero balance.
func (e *Engine) Holders() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Holders()
}

// Conserved reports whether the sum of balances equals the total supply.
func (e *Engine) Conserved() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Sum().Eq(e.meta.TotalSupply)
}

// Events returns every committed event in commit order.
func (e *Engine) Events() []*domain.Event {
	return e.log.All()
}

// EventsSince returns at most limit events with Seq > afterSeq.
func (e *Engine) EventsSince(afterSeq uint64, limit int) []*domain.Event {
	return e.log.Since(afterSeq, limit)
}

// Transfer moves value from caller to to and emits Transfer{caller, to, value}.
// A zero value is legal and still emits an event.
func (e *Engine) Transfer(caller, to domain.Account, value *uint256.Int) (*domain.Event, error) {
	value = domain.AmountOrZero(value)

	e.mu.Lock()
	ev, err := e.transfer(caller, to, value, e.now().UnixMilli())
	e.mu.Unlock()

	e.notify(OpTransfer, ev, err)
	if err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}
	return ev, nil
}

// Approve sets spender's quota over caller's balance to exactly value,
// discarding any unspent prior allowance, and emits Approval{caller, spender, value}.
func (e *Engine) Approve(caller, spender domain.Account, value *uint256.Int) (*domain.Event, error) {
	value = domain.AmountOrZero(value)

	e.mu.Lock()
	ev, err := e.approve(caller, spender, value, e.now().UnixMilli())
	e.mu.Unlock()

	e.notify(OpApprove, ev, err)
	if err != nil {
		return nil, fmt.Errorf("approve: %w", err)
	}
	return ev, nil
}

// TransferFrom moves value from from to to on behalf of caller, consuming
// exactly value of caller's allowance, and emits Transfer{from, to, value}.
// Preconditions are checked in order: recipient, allowance, balance.
func (e *Engine) TransferFrom(caller, from, to domain.Account, value *uint256.Int) (*domain.Event, error) {
	value = domain.AmountOrZero(value)

	e.mu.Lock()
	ev, err := e.transferFrom(caller, from, to, value, e.now().UnixMilli())
	e.mu.Unlock()

	e.notify(OpTransferFrom, ev, err)
	if err != nil {
		return nil, fmt.Errorf("transfer from: %w", err)
	}
	return ev, nil
}

func (e *Engine) notify(op Operation, ev *domain.Event, err error) {
	if e.observer == nil {
		return
	}
	if err != nil {
		e.observer.OperationRejected(op, err)
		return
	}
	e.observer.OperationCommitted(op, ev)
}

// The lowercase operations below require e.mu held for writing.

func (e *Engine) transfer(caller, to domain.Account, value *uint256.Int, at int64) (*domain.Event, error) {
	if to.IsNull() {
		return nil, ErrInvalidRecipient
	}
	if !e.ledger.canDebit(caller, value) {
		return nil, ErrInsufficientBalance
	}
	if err := e.move(caller, to, value); err != nil {
		return nil, err
	}
	return e.emit(domain.EventKindTransfer, caller, to, value, domain.NullAccount, at), nil
}

func (e *Engine) approve(caller, spender domain.Account, value *uint256.Int, at int64) (*domain.Event, error) {
	if err := e.allowances.setAllowance(caller, spender, value); err != nil {
		return nil, err
	}
	return e.emit(domain.EventKindApproval, caller, spender, value, domain.NullAccount, at), nil
}

func (e *Engine) transferFrom(caller, from, to domain.Account, value *uint256.Int, at int64) (*domain.Event, error) {
	if to.IsNull() {
		return nil, ErrInvalidRecipient
	}
	if !e.allowances.canConsume(from, caller, value) {
		return nil, ErrInsufficientAllowance
	}
	if !e.ledger.canDebit(from, value) {
		return nil, ErrInsufficientBalance
	}

	if err := e.allowances.consume(from, caller, value); err != nil {
		return nil, err
	}
	if err := e.move(from, to, value); err != nil {
		e.allowances.restore(from, caller, value)
		return nil, err
	}
	return e.emit(domain.EventKindTransfer, from, to, value, caller, at), nil
}

// move debits from and credits to as one step; a failed credit restores the debit.
func (e *Engine) move(from, to domain.Account, value *uint256.Int) error {
	if err := e.ledger.debit(from, value); err != nil {
		return err
	}
	if err := e.ledger.credit(to, value); err != nil {
		e.ledger.restore(from, value)
		return err
	}
	return nil
}

func (e *Engine) emit(kind domain.EventKind, from, to domain.Account, value *uint256.Int, spender domain.Account, at int64) *domain.Event {
	ev := &domain.Event{
		Seq:         e.log.LastSeq() + 1,
		Kind:        kind,
		From:        from,
		To:          to,
		Value:       domain.CloneAmount(value),
		Spender:     spender,
		CommittedAt: at,
	}
	e.log.append(ev)
	return ev
}
