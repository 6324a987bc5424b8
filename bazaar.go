package bazaar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/bazaar/market"
	"github.com/xraph/bazaar/plugin"
	"github.com/xraph/bazaar/store"
	"github.com/xraph/bazaar/subscription"
	"github.com/xraph/bazaar/types"
)

// Defaults applied by New.
const (
	DefaultEscrowAccount types.Account = "bazaar:escrow"
	DefaultCurrency                    = "gas"
)

// Bazaar is the marketplace ledger engine. Every call runs to completion
// under a single lock and either commits all of its writes or none.
type Bazaar struct {
	mu sync.RWMutex
	// external is set while a payer or balance source runs under mu.
	// Calls arriving meanwhile fail with ErrReentrantCall.
	external atomic.Bool

	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	escrow   types.Account
	currency string
	payer    market.Payer
	balances market.Balances
	renewal  subscription.RenewalPolicy
	clock    func() time.Time
}

// New creates a new Bazaar instance. Without WithPayer and WithBalances the
// engine settles against a private in-memory market.Book.
func New(s store.Store, opts ...Option) *Bazaar {
	book := market.NewBook()
	b := &Bazaar{
		store:    s,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		escrow:   DefaultEscrowAccount,
		currency: DefaultCurrency,
		payer:    book,
		balances: book,
		renewal:  subscription.AlwaysRenewable,
		clock:    time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Option configures a Bazaar instance.
type Option func(*Bazaar)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bazaar) {
		b.logger = logger
		b.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(b *Bazaar) {
		_ = b.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook invocation.
func WithPluginTimeout(d time.Duration) Option {
	return func(b *Bazaar) {
		b.plugins.WithTimeout(d)
	}
}

// WithEscrowAccount sets the account that holds listed assets.
func WithEscrowAccount(account types.Account) Option {
	return func(b *Bazaar) {
		if !account.IsZero() {
			b.escrow = account
		}
	}
}

// WithCurrency sets the currency listings are priced in.
func WithCurrency(currency string) Option {
	return func(b *Bazaar) {
		if currency != "" {
			b.currency = strings.ToLower(currency)
		}
	}
}

// WithPayer sets the collaborator that releases payments to sellers.
func WithPayer(p market.Payer) Option {
	return func(b *Bazaar) {
		b.payer = p
	}
}

// WithBalances sets the collaborator queried for balance snapshots on
// registration.
func WithBalances(bal market.Balances) Option {
	return func(b *Bazaar) {
		b.balances = bal
	}
}

// WithRenewalPolicy sets the predicate consulted before extending an
// existing subscription.
func WithRenewalPolicy(p subscription.RenewalPolicy) Option {
	return func(b *Bazaar) {
		b.renewal = p
	}
}

// WithClock overrides the wall clock used for record timestamps.
func WithClock(clock func() time.Time) Option {
	return func(b *Bazaar) {
		b.clock = clock
	}
}

// Start migrates the store and initializes plugins.
func (b *Bazaar) Start(ctx context.Context) error {
	if err := b.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	b.plugins.EmitInit(ctx, b)

	b.logger.Info("bazaar started",
		"escrow", b.escrow,
		"currency", b.currency,
		"plugins", b.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (b *Bazaar) Stop() error {
	if b.external.Load() {
		return ErrReentrantCall
	}

	b.plugins.EmitShutdown(context.Background())

	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.Info("bazaar stopped")

	return b.store.Close()
}

// Store returns the underlying store.
func (b *Bazaar) Store() store.Store { return b.store }

// Plugins returns the plugin registry.
func (b *Bazaar) Plugins() *plugin.Registry { return b.plugins }

// Escrow returns the escrow account.
func (b *Bazaar) Escrow() types.Account { return b.escrow }

// Currency returns the marketplace currency.
func (b *Bazaar) Currency() string { return b.currency }

// ──────────────────────────────────────────────────
// Call context
// ──────────────────────────────────────────────────

type callerKey struct{}

type settlingKey struct{}

// WithCaller returns a context carrying the authenticated account making
// the call. The hosting environment is responsible for authentication.
func WithCaller(ctx context.Context, account types.Account) context.Context {
	return context.WithValue(ctx, callerKey{}, account)
}

// CallerFrom returns the account stored by WithCaller.
func CallerFrom(ctx context.Context) (types.Account, bool) {
	a, ok := ctx.Value(callerKey{}).(types.Account)
	return a, ok && !a.IsZero()
}

// settling marks contexts handed to external collaborators while a call is
// in flight.
func settling(ctx context.Context) context.Context {
	return context.WithValue(ctx, settlingKey{}, true)
}

// enter rejects calls made from inside a settlement, whichever context the
// collaborator passes back.
func (b *Bazaar) enter(ctx context.Context) error {
	if v, _ := ctx.Value(settlingKey{}).(bool); v {
		return ErrReentrantCall
	}
	if b.external.Load() {
		return ErrReentrantCall
	}
	return nil
}

// callOut runs fn against an external collaborator while mu is held.
func (b *Bazaar) callOut(ctx context.Context, fn func(context.Context) error) error {
	b.external.Store(true)
	defer b.external.Store(false)
	return fn(settling(ctx))
}

// caller resolves the calling account. The escrow account never acts on its
// own behalf.
func (b *Bazaar) caller(ctx context.Context) (types.Account, error) {
	if err := b.enter(ctx); err != nil {
		return "", err
	}
	a, ok := CallerFrom(ctx)
	if !ok {
		return "", fmt.Errorf("%w: no caller in context", ErrUnauthorized)
	}
	if a == b.escrow {
		return "", fmt.Errorf("%w: escrow account cannot call", ErrUnauthorized)
	}
	return a, nil
}

func (b *Bazaar) now() time.Time {
	return b.clock().UTC()
}

// ──────────────────────────────────────────────────
// Atomic writes
// ──────────────────────────────────────────────────

// outbox holds plugin notifications until the engine lock is released.
// Mutating calls defer flush before locking so it runs after the unlock.
type outbox []func()

func (o *outbox) add(fn func()) {
	*o = append(*o, fn)
}

func (o *outbox) flush() {
	for _, fn := range *o {
		fn()
	}
	*o = nil
}

// txn collects compensating writes for a single call. The last store write
// of a call needs no undo step since nothing can fail after it.
type txn struct {
	b    *Bazaar
	op   string
	out  *outbox
	undo []func(context.Context) error
}

func (b *Bazaar) begin(op string, out *outbox) *txn {
	return &txn{b: b, op: op, out: out}
}

func (t *txn) onUndo(fn func(context.Context) error) {
	t.undo = append(t.undo, fn)
}

// setCounter writes a counter and records how to restore it.
func (t *txn) setCounter(ctx context.Context, name string, prev, next uint64) error {
	if err := t.b.store.SetCounter(ctx, name, next); err != nil {
		return err
	}
	t.onUndo(func(ctx context.Context) error {
		return t.b.store.SetCounter(ctx, name, prev)
	})
	return nil
}

// rollback undoes recorded writes in reverse order and returns cause,
// joined with ErrRollbackFailed when an undo step failed.
func (t *txn) rollback(ctx context.Context, cause error) error {
	if len(t.undo) == 0 {
		return cause
	}

	ctx = context.WithoutCancel(ctx)

	var errs MultiError
	for i := len(t.undo) - 1; i >= 0; i-- {
		errs.Add(t.undo[i](ctx))
	}
	t.undo = nil

	if !errs.HasErrors() {
		t.b.logger.Debug("call rolled back", "op", t.op, "error", cause)
		t.out.add(func() { t.b.plugins.EmitRollback(ctx, t.op, cause, nil) })
		return cause
	}

	undoErr := fmt.Errorf("%w: %w", ErrRollbackFailed, errors.Join(errs.Errors...))
	t.b.logger.Error("rollback failed",
		"op", t.op,
		"cause", cause,
		"error", undoErr,
	)
	t.out.add(func() { t.b.plugins.EmitRollback(ctx, t.op, cause, undoErr) })

	return MultiError{Errors: []error{cause, undoErr}}
}

// nextCounter reads a counter and returns its successor.
func (b *Bazaar) nextCounter(ctx context.Context, name string) (prev, next uint64, err error) {
	prev, err = b.store.Counter(ctx, name)
	if err != nil {
		return 0, 0, err
	}
	next, carry := bits.Add64(prev, 1, 0)
	if carry != 0 {
		return 0, 0, fmt.Errorf("%w: %s counter", ErrOverflow, name)
	}
	return prev, next, nil
}
