package market

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xraph/bazaar/types"
)

// ErrInsufficientFunds is returned by Book when the payer cannot cover a
// transfer.
var ErrInsufficientFunds = errors.New("market: insufficient funds")

// Transfer moves value from one account to another.
type Transfer struct {
	From   types.Account
	To     types.Account
	Amount types.Money
}

// Payer settles value transfers outside the ledger. The engine calls it
// only after its own state is written, and passes a context that must be
// propagated to any callback into the engine.
type Payer interface {
	Transfer(ctx context.Context, t Transfer) error
}

// Balances reports account balances held by the hosting environment.
type Balances interface {
	BalanceOf(ctx context.Context, account types.Account, currency string) (types.Money, error)
}

// PayerFunc adapts a function to Payer.
type PayerFunc func(ctx context.Context, t Transfer) error

// Transfer implements Payer.
func (f PayerFunc) Transfer(ctx context.Context, t Transfer) error { return f(ctx, t) }

// Book is an in-process balance book implementing Payer and Balances.
type Book struct {
	mu       sync.Mutex
	balances map[types.Account]map[string]uint64
}

// NewBook creates an empty Book.
func NewBook() *Book {
	return &Book{balances: make(map[types.Account]map[string]uint64)}
}

// Deposit credits account with amount.
func (b *Book) Deposit(account types.Account, amount types.Money) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := types.New(b.balances[account][amount.Currency], amount.Currency)
	next, err := cur.Add(amount)
	if err != nil {
		return fmt.Errorf("market: deposit to %s: %w", account, err)
	}
	b.set(account, next)
	return nil
}

// Transfer implements Payer. Either both sides move or neither does.
func (b *Book) Transfer(_ context.Context, t Transfer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	from := types.New(b.balances[t.From][t.Amount.Currency], t.Amount.Currency)
	debited, err := from.Sub(t.Amount)
	if err != nil {
		if errors.Is(err, types.ErrAmountUnderflow) {
			return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, t.From, from, t.Amount)
		}
		return err
	}

	to := types.New(b.balances[t.To][t.Amount.Currency], t.Amount.Currency)
	if t.From == t.To {
		to = debited
	}
	credited, err := to.Add(t.Amount)
	if err != nil {
		return fmt.Errorf("market: credit %s: %w", t.To, err)
	}

	b.set(t.From, debited)
	b.set(t.To, credited)
	return nil
}

// BalanceOf implements Balances.
func (b *Book) BalanceOf(_ context.Context, account types.Account, currency string) (types.Money, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return types.New(b.balances[account][currency], currency), nil
}

func (b *Book) set(account types.Account, m types.Money) {
	byCurrency, ok := b.balances[account]
	if !ok {
		byCurrency = make(map[string]uint64)
		b.balances[account] = byCurrency
	}
	byCurrency[m.Currency] = m.Amount
}
