package bazaar_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/xraph/bazaar"
	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/market"
	"github.com/xraph/bazaar/store"
	"github.com/xraph/bazaar/store/memory"
	"github.com/xraph/bazaar/subscription"
	"github.com/xraph/bazaar/types"
)

const escrow types.Account = "market"

var errBoom = errors.New("boom")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	b     *bazaar.Bazaar
	store *memory.Store
	book  *market.Book
}

func newHarness(t *testing.T, opts ...bazaar.Option) *harness {
	t.Helper()

	s := memory.New()
	book := market.NewBook()
	base := []bazaar.Option{
		bazaar.WithLogger(quietLogger()),
		bazaar.WithEscrowAccount(escrow),
		bazaar.WithCurrency("gas"),
		bazaar.WithPayer(book),
		bazaar.WithBalances(book),
		bazaar.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	}

	b := bazaar.New(s, append(base, opts...)...)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = b.Stop() })

	return &harness{b: b, store: s, book: book}
}

func as(account types.Account) context.Context {
	return bazaar.WithCaller(context.Background(), account)
}

func (h *harness) mint(t *testing.T, owner types.Account, title string) uint64 {
	t.Helper()
	assetID, err := h.b.CreateAsset(as(owner), "ipfs://"+title, title, title+" description")
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	return assetID
}

func (h *harness) asset(t *testing.T, assetID uint64) *asset.Asset {
	t.Helper()
	a, err := h.b.GetAsset(context.Background(), assetID)
	if err != nil {
		t.Fatalf("GetAsset(%d): %v", assetID, err)
	}
	return a
}

func accounts(list ...types.Account) []types.Account { return list }

func sameAccounts(got, want []types.Account) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// ──────────────────────────────────────────────────
// Asset registry
// ──────────────────────────────────────────────────

func TestCreateAsset(t *testing.T) {
	h := newHarness(t)

	first := h.mint(t, "alice", "Ticket")
	second := h.mint(t, "bob", "Poster")
	if first != 1 || second != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", first, second)
	}

	a := h.asset(t, first)
	if a.Seller != "alice" || a.Owner != "alice" {
		t.Errorf("seller/owner = %s/%s, want alice/alice", a.Seller, a.Owner)
	}
	if !a.Price.IsZero() {
		t.Errorf("price = %s, want zero", a.Price)
	}
	if !sameAccounts(a.Subscribers, accounts("alice")) {
		t.Errorf("subscribers = %v, want [alice]", a.Subscribers)
	}
	if a.Likes != 1 {
		t.Errorf("likes = %d, want 1", a.Likes)
	}
	if a.Title != "Ticket" || a.MetadataRef != "ipfs://Ticket" {
		t.Errorf("metadata = %q %q", a.Title, a.MetadataRef)
	}
}

func TestCreateAssetCounterOverflow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.store.SetCounter(ctx, store.CounterAssetID, math.MaxUint64); err != nil {
		t.Fatal(err)
	}
	if _, err := h.b.CreateAsset(as("alice"), "", "", ""); !errors.Is(err, bazaar.ErrOverflow) {
		t.Fatalf("CreateAsset error = %v, want ErrOverflow", err)
	}
	if got, _ := h.store.Counter(ctx, store.CounterAssetID); got != math.MaxUint64 {
		t.Errorf("counter = %d, want unchanged", got)
	}
}

func TestGetAssetNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.b.GetAsset(context.Background(), 7)
	if !errors.Is(err, bazaar.ErrAssetNotFound) || !bazaar.IsNotFound(err) {
		t.Fatalf("GetAsset error = %v, want ErrAssetNotFound", err)
	}
}

func TestLikeDislike(t *testing.T) {
	h := newHarness(t)
	ctx := as("carol")
	assetID := h.mint(t, "alice", "Ticket")

	if err := h.b.Like(ctx, assetID); err != nil {
		t.Fatal(err)
	}
	if got := h.asset(t, assetID).Likes; got != 2 {
		t.Fatalf("likes = %d, want 2", got)
	}

	for range 2 {
		if err := h.b.Dislike(ctx, assetID); err != nil {
			t.Fatal(err)
		}
	}
	if got := h.asset(t, assetID).Likes; got != 0 {
		t.Fatalf("likes = %d, want 0", got)
	}

	err := h.b.Dislike(ctx, assetID)
	if !errors.Is(err, bazaar.ErrUnderflow) || !bazaar.IsArithmeticError(err) {
		t.Fatalf("Dislike at zero error = %v, want ErrUnderflow", err)
	}
	if got := h.asset(t, assetID).Likes; got != 0 {
		t.Errorf("likes after failed dislike = %d, want 0", got)
	}

	if err := h.b.Like(ctx, 99); !errors.Is(err, bazaar.ErrAssetNotFound) {
		t.Errorf("Like(missing) error = %v", err)
	}
}

func TestLikeOverflow(t *testing.T) {
	h := newHarness(t)
	assetID := h.mint(t, "alice", "Ticket")

	a := h.asset(t, assetID)
	a.Likes = math.MaxUint64
	if err := h.store.UpdateAsset(context.Background(), a); err != nil {
		t.Fatal(err)
	}

	if err := h.b.Like(as("bob"), assetID); !errors.Is(err, bazaar.ErrOverflow) {
		t.Fatalf("Like error = %v, want ErrOverflow", err)
	}
}

// ──────────────────────────────────────────────────
// Escrow / marketplace
// ──────────────────────────────────────────────────

func TestMarketplaceScenario(t *testing.T) {
	h := newHarness(t)
	if err := h.book.Deposit("bob", types.GAS(250)); err != nil {
		t.Fatal(err)
	}

	assetID := h.mint(t, "alice", "Ticket")
	if assetID != 1 {
		t.Fatalf("id = %d, want 1", assetID)
	}

	listed, err := h.b.ListForSale(as("alice"), assetID, types.GAS(100))
	if err != nil {
		t.Fatalf("ListForSale: %v", err)
	}
	if listed != 1 {
		t.Errorf("listed = %d, want 1", listed)
	}
	if got := h.asset(t, assetID).Owner; got != escrow {
		t.Fatalf("owner = %s, want escrow", got)
	}

	if err := h.b.Purchase(as("bob"), assetID, types.GAS(100)); err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	seller, _ := h.book.BalanceOf(context.Background(), "alice", "gas")
	if seller.Amount != 100 {
		t.Errorf("seller balance = %d, want 100", seller.Amount)
	}
	a := h.asset(t, assetID)
	if !sameAccounts(a.Subscribers, accounts("alice", "bob")) {
		t.Errorf("subscribers = %v, want [alice bob]", a.Subscribers)
	}
	if a.Owner != escrow {
		t.Errorf("owner after purchase = %s, want escrow", a.Owner)
	}

	err = h.b.Purchase(as("bob"), assetID, types.GAS(99))
	if !errors.Is(err, bazaar.ErrPriceMismatch) {
		t.Fatalf("underpaid Purchase error = %v, want ErrPriceMismatch", err)
	}
	after := h.asset(t, assetID)
	if !sameAccounts(after.Subscribers, accounts("alice", "bob")) || after.Owner != escrow {
		t.Errorf("state changed after failed purchase: %+v", after)
	}
	buyer, _ := h.book.BalanceOf(context.Background(), "bob", "gas")
	if buyer.Amount != 150 {
		t.Errorf("buyer balance = %d, want 150", buyer.Amount)
	}

	// List once, subscribe many.
	if err := h.b.Purchase(as("bob"), assetID, types.GAS(100)); err != nil {
		t.Fatalf("second Purchase: %v", err)
	}
	if got := h.asset(t, assetID).Subscribers; !sameAccounts(got, accounts("alice", "bob", "bob")) {
		t.Errorf("subscribers = %v, want [alice bob bob]", got)
	}
}

func TestPurchasePaymentMustMatchExactly(t *testing.T) {
	tests := []struct {
		name    string
		payment types.Money
		wantErr error
	}{
		{"exact", types.GAS(100), nil},
		{"exact upper-case currency", types.New(100, "GAS"), nil},
		{"underpaid", types.GAS(99), bazaar.ErrPriceMismatch},
		{"overpaid", types.GAS(101), bazaar.ErrPriceMismatch},
		{"zero", types.GAS(0), bazaar.ErrPriceMismatch},
		{"wrong currency", types.NEO(100), bazaar.ErrPriceMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if err := h.book.Deposit("bob", types.GAS(100)); err != nil {
				t.Fatal(err)
			}
			assetID := h.mint(t, "alice", "Ticket")
			if _, err := h.b.ListForSale(as("alice"), assetID, types.GAS(100)); err != nil {
				t.Fatal(err)
			}

			err := h.b.Purchase(as("bob"), assetID, tt.payment)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Purchase error = %v, want %v", err, tt.wantErr)
			}

			want := accounts("alice")
			if tt.wantErr == nil {
				want = accounts("alice", "bob")
			}
			if got := h.asset(t, assetID).Subscribers; !sameAccounts(got, want) {
				t.Errorf("subscribers = %v, want %v", got, want)
			}
		})
	}
}

func TestPurchaseNotForSale(t *testing.T) {
	h := newHarness(t)
	assetID := h.mint(t, "alice", "Ticket")

	err := h.b.Purchase(as("bob"), assetID, types.GAS(0))
	if !errors.Is(err, bazaar.ErrNotForSale) {
		t.Fatalf("Purchase error = %v, want ErrNotForSale", err)
	}
	if err := h.b.Purchase(as("bob"), 42, types.GAS(1)); !errors.Is(err, bazaar.ErrAssetNotFound) {
		t.Errorf("Purchase(missing) error = %v, want ErrAssetNotFound", err)
	}
}

func TestPurchasePaymentFailureRollsBack(t *testing.T) {
	// The book holds no funds for bob, so settlement fails.
	h := newHarness(t)
	assetID := h.mint(t, "alice", "Ticket")
	if _, err := h.b.ListForSale(as("alice"), assetID, types.GAS(100)); err != nil {
		t.Fatal(err)
	}

	err := h.b.Purchase(as("bob"), assetID, types.GAS(100))
	if !errors.Is(err, bazaar.ErrPaymentFailed) {
		t.Fatalf("Purchase error = %v, want ErrPaymentFailed", err)
	}
	if !errors.Is(err, market.ErrInsufficientFunds) {
		t.Errorf("Purchase error = %v, want wrapped ErrInsufficientFunds", err)
	}
	if !bazaar.IsRetryable(err) {
		t.Error("payment failure should be retryable")
	}

	a := h.asset(t, assetID)
	if !sameAccounts(a.Subscribers, accounts("alice")) {
		t.Errorf("subscribers = %v, want [alice]", a.Subscribers)
	}
	if a.Owner != escrow || !a.Price.Equal(types.GAS(100)) {
		t.Errorf("listing changed: owner %s price %s", a.Owner, a.Price)
	}
}

func TestPurchaseRejectsReentrantCalls(t *testing.T) {
	var (
		h            *harness
		reentrant    error
		reentrantGet error
	)

	payer := market.PayerFunc(func(ctx context.Context, tr market.Transfer) error {
		reentrant = h.b.Purchase(ctx, 1, tr.Amount)
		_, reentrantGet = h.b.GetAsset(ctx, 1)
		return nil
	})
	h = newHarness(t, bazaar.WithPayer(payer))

	assetID := h.mint(t, "alice", "Ticket")
	if _, err := h.b.ListForSale(as("alice"), assetID, types.GAS(100)); err != nil {
		t.Fatal(err)
	}
	if err := h.b.Purchase(as("bob"), assetID, types.GAS(100)); err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	if !errors.Is(reentrant, bazaar.ErrReentrantCall) {
		t.Errorf("reentrant Purchase error = %v, want ErrReentrantCall", reentrant)
	}
	if !errors.Is(reentrantGet, bazaar.ErrReentrantCall) {
		t.Errorf("reentrant GetAsset error = %v, want ErrReentrantCall", reentrantGet)
	}
	if got := h.asset(t, assetID).Subscribers; !sameAccounts(got, accounts("alice", "bob")) {
		t.Errorf("subscribers = %v, want [alice bob]", got)
	}
}

func TestPurchaseRejectsCallbacksWithFreshContext(t *testing.T) {
	var (
		h         *harness
		getErr    error
		likeErr   error
		renewErr  error
		stopErr   error
		purchased = make(chan error, 1)
	)

	payer := market.PayerFunc(func(context.Context, market.Transfer) error {
		ctx := context.Background()
		_, getErr = h.b.GetAsset(ctx, 1)
		likeErr = h.b.Like(ctx, 1)
		_, renewErr = h.b.Renew(ctx, 1, 10, 10)
		stopErr = h.b.Stop()
		return nil
	})
	h = newHarness(t, bazaar.WithPayer(payer))

	assetID := h.mint(t, "alice", "Ticket")
	if _, err := h.b.ListForSale(as("alice"), assetID, types.GAS(100)); err != nil {
		t.Fatal(err)
	}

	go func() { purchased <- h.b.Purchase(as("bob"), assetID, types.GAS(100)) }()

	select {
	case err := <-purchased:
		if err != nil {
			t.Fatalf("Purchase: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Purchase did not return while the payer called back into the engine")
	}

	for name, err := range map[string]error{"GetAsset": getErr, "Like": likeErr, "Renew": renewErr, "Stop": stopErr} {
		if !errors.Is(err, bazaar.ErrReentrantCall) {
			t.Errorf("%s during settlement = %v, want ErrReentrantCall", name, err)
		}
	}

	// The engine is usable once settlement is over.
	a := h.asset(t, assetID)
	if a.Likes != 1 || !sameAccounts(a.Subscribers, accounts("alice", "bob")) {
		t.Errorf("asset after purchase = likes %d subscribers %v", a.Likes, a.Subscribers)
	}
}

func TestRegisterRejectsBalanceCallbacks(t *testing.T) {
	var (
		h      *harness
		getErr error
	)

	book := market.NewBook()
	balances := balanceFunc(func(ctx context.Context, account types.Account, currency string) (types.Money, error) {
		_, getErr = h.b.GetProfileByAccount(context.Background(), account)
		return book.BalanceOf(ctx, account, currency)
	})
	h = newHarness(t, bazaar.WithBalances(balances))

	if _, _, err := h.b.Register(as("alice")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !errors.Is(getErr, bazaar.ErrReentrantCall) {
		t.Errorf("GetProfileByAccount during balance lookup = %v, want ErrReentrantCall", getErr)
	}
}

type balanceFunc func(ctx context.Context, account types.Account, currency string) (types.Money, error)

func (f balanceFunc) BalanceOf(ctx context.Context, account types.Account, currency string) (types.Money, error) {
	return f(ctx, account, currency)
}

func TestPurchaseRecordsSubscriberBeforePaying(t *testing.T) {
	var seen []types.Account
	var h *harness

	payer := market.PayerFunc(func(_ context.Context, _ market.Transfer) error {
		a, err := h.store.GetAsset(context.Background(), 1)
		if err != nil {
			return err
		}
		seen = a.Subscribers
		return nil
	})
	h = newHarness(t, bazaar.WithPayer(payer))

	assetID := h.mint(t, "alice", "Ticket")
	if _, err := h.b.ListForSale(as("alice"), assetID, types.GAS(5)); err != nil {
		t.Fatal(err)
	}
	if err := h.b.Purchase(as("bob"), assetID, types.GAS(5)); err != nil {
		t.Fatal(err)
	}

	if !sameAccounts(seen, accounts("alice", "bob")) {
		t.Errorf("subscribers during settlement = %v, want [alice bob]", seen)
	}
}

func TestListForSale(t *testing.T) {
	tests := []struct {
		name    string
		caller  types.Account
		price   types.Money
		wantErr error
	}{
		{"owner", "alice", types.GAS(100), nil},
		{"not owner", "bob", types.GAS(100), bazaar.ErrUnauthorized},
		{"escrow caller", escrow, types.GAS(100), bazaar.ErrUnauthorized},
		{"zero price", "alice", types.GAS(0), bazaar.ErrInvalidInput},
		{"foreign currency", "alice", types.USD(100), bazaar.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			assetID := h.mint(t, "alice", "Ticket")

			listed, err := h.b.ListForSale(as(tt.caller), assetID, tt.price)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ListForSale error = %v, want %v", err, tt.wantErr)
			}

			a := h.asset(t, assetID)
			if tt.wantErr != nil {
				if a.Owner != "alice" || !a.Price.IsZero() {
					t.Errorf("asset changed: owner %s price %s", a.Owner, a.Price)
				}
				if got, _ := h.store.Counter(context.Background(), store.CounterListed); got != 0 {
					t.Errorf("listed counter = %d, want 0", got)
				}
				return
			}
			if listed != 1 || a.Owner != escrow || !a.Price.Equal(tt.price) {
				t.Errorf("listed=%d owner=%s price=%s", listed, a.Owner, a.Price)
			}
		})
	}
}

func TestListForSaleTwice(t *testing.T) {
	h := newHarness(t)
	first := h.mint(t, "alice", "Ticket")
	second := h.mint(t, "alice", "Poster")

	if _, err := h.b.ListForSale(as("alice"), first, types.GAS(1)); err != nil {
		t.Fatal(err)
	}
	// Escrow now owns the asset.
	if _, err := h.b.ListForSale(as("alice"), first, types.GAS(2)); !errors.Is(err, bazaar.ErrUnauthorized) {
		t.Errorf("relist error = %v, want ErrUnauthorized", err)
	}

	listed, err := h.b.ListForSale(as("alice"), second, types.GAS(3))
	if err != nil {
		t.Fatal(err)
	}
	if listed != 2 {
		t.Errorf("listed = %d, want 2", listed)
	}
}

func TestCallerRequired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.b.CreateAsset(ctx, "", "", ""); !errors.Is(err, bazaar.ErrUnauthorized) {
		t.Errorf("CreateAsset without caller = %v", err)
	}
	if _, _, err := h.b.Register(ctx); !errors.Is(err, bazaar.ErrUnauthorized) {
		t.Errorf("Register without caller = %v", err)
	}
	if _, err := h.b.OwnedByCaller(ctx); !errors.Is(err, bazaar.ErrUnauthorized) {
		t.Errorf("OwnedByCaller without caller = %v", err)
	}
}

// ──────────────────────────────────────────────────
// Subscription clock
// ──────────────────────────────────────────────────

func TestRenewStacks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	assetID := h.mint(t, "alice", "Ticket")
	const T = uint64(1_700_000_000)

	exp, err := h.b.Renew(ctx, assetID, 1000, T)
	if err != nil {
		t.Fatal(err)
	}
	if exp != T+1000 {
		t.Fatalf("first renew = %d, want %d", exp, T+1000)
	}

	// Current time is ignored once a window exists, even a lapsed one.
	exp, err = h.b.Renew(ctx, assetID, 500, T+1_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if exp != T+1500 {
		t.Fatalf("second renew = %d, want %d", exp, T+1500)
	}

	got, err := h.b.ExpiresAt(ctx, assetID)
	if err != nil || got != T+1500 {
		t.Errorf("ExpiresAt = %d, %v; want %d", got, err, T+1500)
	}
}

func TestRenewMonotonic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	assetID := h.mint(t, "alice", "Ticket")

	prev := uint64(0)
	for i, d := range []uint64{10, 0, 1, 500, 0, 7} {
		exp, err := h.b.Renew(ctx, assetID, d, 100)
		if err != nil {
			t.Fatalf("renew %d: %v", i, err)
		}
		if exp < prev {
			t.Fatalf("renew %d: expiration %d < previous %d", i, exp, prev)
		}
		prev = exp
	}
}

func TestRenewErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.b.Renew(context.Background(), 9, 10, 10); !errors.Is(err, bazaar.ErrAssetNotFound) {
			t.Errorf("Renew error = %v, want ErrAssetNotFound", err)
		}
	})

	t.Run("not renewable", func(t *testing.T) {
		h := newHarness(t, bazaar.WithRenewalPolicy(func(uint64) bool { return false }))
		ctx := context.Background()
		assetID := h.mint(t, "alice", "Ticket")

		// The policy only gates extending an existing window.
		if _, err := h.b.Renew(ctx, assetID, 10, 100); err != nil {
			t.Fatalf("first renew: %v", err)
		}
		if _, err := h.b.Renew(ctx, assetID, 10, 100); !errors.Is(err, bazaar.ErrNotRenewable) {
			t.Fatalf("second renew error = %v, want ErrNotRenewable", err)
		}
		if got, _ := h.b.ExpiresAt(ctx, assetID); got != 110 {
			t.Errorf("expiration = %d, want 110", got)
		}
	})

	t.Run("overflow", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		assetID := h.mint(t, "alice", "Ticket")

		if _, err := h.b.Renew(ctx, assetID, math.MaxUint64-5, 5); err != nil {
			t.Fatal(err)
		}
		if _, err := h.b.Renew(ctx, assetID, 1, 0); !errors.Is(err, bazaar.ErrOverflow) {
			t.Fatalf("Renew error = %v, want ErrOverflow", err)
		}
		if got, _ := h.b.ExpiresAt(ctx, assetID); got != math.MaxUint64 {
			t.Errorf("expiration = %d, want unchanged", got)
		}
	})
}

func TestCancelSubscription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	assetID := h.mint(t, "alice", "Ticket")

	if _, err := h.b.Renew(ctx, assetID, 1000, 50); err != nil {
		t.Fatal(err)
	}
	if err := h.b.CancelSubscription(ctx, assetID); err != nil {
		t.Fatal(err)
	}
	if got, _ := h.b.ExpiresAt(ctx, assetID); got != 0 {
		t.Errorf("ExpiresAt after cancel = %d, want 0", got)
	}

	// Renewal after cancel starts a fresh window.
	exp, err := h.b.Renew(ctx, assetID, 10, 900)
	if err != nil || exp != 910 {
		t.Errorf("Renew after cancel = %d, %v; want 910", exp, err)
	}

	// Cancel never fails, even for unknown assets.
	if err := h.b.CancelSubscription(ctx, 12345); err != nil {
		t.Errorf("CancelSubscription(unknown) = %v", err)
	}
}

func TestCancelUnknownAssetWritesNothing(t *testing.T) {
	fs := &faultyStore{Store: memory.New()}
	events := &eventLog{}
	b := bazaar.New(fs, bazaar.WithLogger(quietLogger()), bazaar.WithPlugin(events))
	ctx := context.Background()

	if err := b.CancelSubscription(ctx, 404); err != nil {
		t.Fatalf("CancelSubscription(unknown) = %v", err)
	}
	if fs.expirationWrites != 0 {
		t.Errorf("expiration writes = %d, want 0", fs.expirationWrites)
	}
	if len(events.updates) != 1 || events.updates[0] != (subscription.Update{AssetID: 404}) {
		t.Errorf("updates = %v, want one cancel of 404", events.updates)
	}

	assetID, err := b.CreateAsset(as("alice"), "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.CancelSubscription(ctx, assetID); err != nil {
		t.Fatal(err)
	}
	if fs.expirationWrites != 1 {
		t.Errorf("expiration writes = %d, want 1", fs.expirationWrites)
	}
}

// ──────────────────────────────────────────────────
// Social graph
// ──────────────────────────────────────────────────

func TestRegister(t *testing.T) {
	h := newHarness(t)
	if err := h.book.Deposit("alice", types.GAS(42)); err != nil {
		t.Fatal(err)
	}

	userID, balance, err := h.b.Register(as("alice"))
	if err != nil {
		t.Fatal(err)
	}
	if userID != 1 || !balance.Equal(types.GAS(42)) {
		t.Errorf("Register = %d, %s; want 1, 42 gas", userID, balance)
	}

	userID, _, err = h.b.Register(as("bob"))
	if err != nil || userID != 2 {
		t.Errorf("Register(bob) = %d, %v; want 2", userID, err)
	}

	if _, _, err := h.b.Register(as("alice")); !errors.Is(err, bazaar.ErrAlreadyExists) {
		t.Errorf("duplicate Register error = %v, want ErrAlreadyExists", err)
	}
	if got, _ := h.store.Counter(context.Background(), store.CounterUserID); got != 2 {
		t.Errorf("user counter = %d, want 2", got)
	}

	p, err := h.b.GetProfile(context.Background(), 1)
	if err != nil || p.Account != "alice" {
		t.Errorf("GetProfile(1) = %+v, %v", p, err)
	}
}

func TestFollowUnfollow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, a := range accounts("alice", "bob", "carol") {
		if _, _, err := h.b.Register(as(a)); err != nil {
			t.Fatal(err)
		}
	}
	if err := h.b.Follow(as("carol"), "bob"); err != nil {
		t.Fatal(err)
	}

	before, err := h.b.GetProfileByAccount(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}

	if err := h.b.Follow(as("alice"), "bob"); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	// Idempotent.
	if err := h.b.Follow(as("alice"), "bob"); err != nil {
		t.Fatalf("repeated Follow: %v", err)
	}

	followers, err := h.b.Followers(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !sameAccounts(followers, accounts("alice", "carol")) {
		t.Errorf("Followers(bob) = %v, want [alice carol]", followers)
	}
	following, err := h.b.Following(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !sameAccounts(following, accounts("bob")) {
		t.Errorf("Following(alice) = %v, want [bob]", following)
	}

	if err := h.b.Unfollow(as("alice"), "bob"); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	if err := h.b.Unfollow(as("alice"), "bob"); err != nil {
		t.Fatalf("repeated Unfollow: %v", err)
	}

	after, err := h.b.GetProfileByAccount(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !sameAccounts(after.Followers, before.Followers) || !sameAccounts(after.Following, before.Following) {
		t.Errorf("bob after unfollow = %v/%v, want %v/%v", after.Followers, after.Following, before.Followers, before.Following)
	}
	alice, err := h.b.GetProfileByAccount(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(alice.Following) != 0 || len(alice.Followers) != 0 {
		t.Errorf("alice after unfollow = %v/%v, want empty", alice.Followers, alice.Following)
	}
}

func TestFollowRequiresProfiles(t *testing.T) {
	h := newHarness(t)
	if _, _, err := h.b.Register(as("alice")); err != nil {
		t.Fatal(err)
	}

	if err := h.b.Follow(as("alice"), "ghost"); !errors.Is(err, bazaar.ErrProfileNotFound) {
		t.Errorf("Follow(unregistered target) = %v, want ErrProfileNotFound", err)
	}
	if err := h.b.Follow(as("ghost"), "alice"); !errors.Is(err, bazaar.ErrProfileNotFound) {
		t.Errorf("Follow(unregistered caller) = %v, want ErrProfileNotFound", err)
	}
	if err := h.b.Follow(as("alice"), ""); !errors.Is(err, bazaar.ErrInvalidInput) {
		t.Errorf("Follow(empty) = %v, want ErrInvalidInput", err)
	}
	if _, err := h.b.Followers(context.Background(), "ghost"); !errors.Is(err, bazaar.ErrProfileNotFound) {
		t.Errorf("Followers(ghost) = %v, want ErrProfileNotFound", err)
	}
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

func ids(list []*asset.Asset) []uint64 {
	out := make([]uint64, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

func sameIDs(got, want []uint64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestQueries(t *testing.T) {
	h := newHarness(t)
	if err := h.book.Deposit("bob", types.GAS(1000)); err != nil {
		t.Fatal(err)
	}

	a1 := h.mint(t, "alice", "One")
	a2 := h.mint(t, "alice", "Two")
	a3 := h.mint(t, "bob", "Three")
	a4 := h.mint(t, "alice", "Four")

	for _, id := range []uint64{a4, a2} {
		if _, err := h.b.ListForSale(as("alice"), id, types.GAS(10)); err != nil {
			t.Fatal(err)
		}
	}
	// Bob buys asset 2 three times; it must be reported once.
	for range 3 {
		if err := h.b.Purchase(as("bob"), a2, types.GAS(10)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		run  func() ([]*asset.Asset, error)
		want []uint64
	}{
		{"for sale", func() ([]*asset.Asset, error) { return h.b.ForSale(context.Background()) }, []uint64{a2, a4}},
		{"owned by alice", func() ([]*asset.Asset, error) { return h.b.OwnedByCaller(as("alice")) }, []uint64{a1}},
		{"owned by bob", func() ([]*asset.Asset, error) { return h.b.OwnedByCaller(as("bob")) }, []uint64{a3}},
		{"subscribed by bob", func() ([]*asset.Asset, error) { return h.b.SubscribedByCaller(as("bob")) }, []uint64{a2, a3}},
		{"subscribed by alice", func() ([]*asset.Asset, error) { return h.b.SubscribedByCaller(as("alice")) }, []uint64{a1, a2, a4}},
		{"subscribed by nobody", func() ([]*asset.Asset, error) { return h.b.SubscribedByCaller(as("zed")) }, nil},
		{"by id", func() ([]*asset.Asset, error) { return h.b.GetByID(context.Background(), a3) }, []uint64{a3}},
		{"by missing id", func() ([]*asset.Asset, error) { return h.b.GetByID(context.Background(), 99) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.run()
			if err != nil {
				t.Fatal(err)
			}
			if got == nil {
				t.Fatal("query returned nil slice")
			}
			if !sameIDs(ids(got), tt.want) {
				t.Errorf("ids = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Atomicity
// ──────────────────────────────────────────────────

// faultyStore fails selected writes.
type faultyStore struct {
	*memory.Store

	failCreateAsset bool
	failUpdateFrom  int // 1-based UpdateAsset call that starts failing; 0 disables
	updates         int

	expirationWrites int
}

func (s *faultyStore) CreateAsset(ctx context.Context, a *asset.Asset) error {
	if s.failCreateAsset {
		return errBoom
	}
	return s.Store.CreateAsset(ctx, a)
}

func (s *faultyStore) UpdateAsset(ctx context.Context, a *asset.Asset) error {
	s.updates++
	if s.failUpdateFrom > 0 && s.updates >= s.failUpdateFrom {
		return errBoom
	}
	return s.Store.UpdateAsset(ctx, a)
}

func (s *faultyStore) SetExpiration(ctx context.Context, assetID, expiration uint64) error {
	s.expirationWrites++
	return s.Store.SetExpiration(ctx, assetID, expiration)
}

func TestFailedCreateRestoresCounter(t *testing.T) {
	fs := &faultyStore{Store: memory.New(), failCreateAsset: true}
	b := bazaar.New(fs, bazaar.WithLogger(quietLogger()))

	if _, err := b.CreateAsset(as("alice"), "", "", ""); !errors.Is(err, errBoom) {
		t.Fatalf("CreateAsset error = %v, want errBoom", err)
	}
	if got, _ := fs.Counter(context.Background(), store.CounterAssetID); got != 0 {
		t.Errorf("asset counter = %d, want 0", got)
	}

	fs.failCreateAsset = false
	assetID, err := b.CreateAsset(as("alice"), "", "", "")
	if err != nil || assetID != 1 {
		t.Errorf("CreateAsset after recovery = %d, %v; want 1", assetID, err)
	}
}

func TestFailedListingRestoresCounter(t *testing.T) {
	fs := &faultyStore{Store: memory.New()}
	b := bazaar.New(fs, bazaar.WithLogger(quietLogger()), bazaar.WithCurrency("gas"))

	assetID, err := b.CreateAsset(as("alice"), "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	fs.updates = 0
	fs.failUpdateFrom = 1

	if _, err := b.ListForSale(as("alice"), assetID, types.GAS(5)); !errors.Is(err, errBoom) {
		t.Fatalf("ListForSale error = %v, want errBoom", err)
	}
	if got, _ := fs.Counter(context.Background(), store.CounterListed); got != 0 {
		t.Errorf("listed counter = %d, want 0", got)
	}
}

func TestRollbackFailureIsReported(t *testing.T) {
	fs := &faultyStore{Store: memory.New()}
	payer := market.PayerFunc(func(context.Context, market.Transfer) error { return errBoom })
	b := bazaar.New(fs,
		bazaar.WithLogger(quietLogger()),
		bazaar.WithEscrowAccount(escrow),
		bazaar.WithPayer(payer),
	)

	assetID, err := b.CreateAsset(as("alice"), "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.ListForSale(as("alice"), assetID, types.GAS(5)); err != nil {
		t.Fatal(err)
	}

	// The purchase write succeeds; the compensating write fails.
	fs.updates = 0
	fs.failUpdateFrom = 2

	err = b.Purchase(as("bob"), assetID, types.GAS(5))
	if !errors.Is(err, bazaar.ErrPaymentFailed) {
		t.Errorf("Purchase error = %v, want ErrPaymentFailed", err)
	}
	if !errors.Is(err, bazaar.ErrRollbackFailed) {
		t.Errorf("Purchase error = %v, want ErrRollbackFailed", err)
	}
	var multi bazaar.MultiError
	if !errors.As(err, &multi) || len(multi.Errors) != 2 {
		t.Errorf("Purchase error = %#v, want MultiError with cause and undo failure", err)
	}
}

// ──────────────────────────────────────────────────
// Notifications
// ──────────────────────────────────────────────────

type eventLog struct {
	mu      sync.Mutex
	created []*asset.Asset
	updates []subscription.Update
	follows int
	failed  int
	rolled  []string
}

func (l *eventLog) Name() string { return "event-log" }

func (l *eventLog) OnAssetCreated(_ context.Context, a *asset.Asset) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, a)
	return nil
}

func (l *eventLog) OnSubscriptionUpdated(_ context.Context, u subscription.Update) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, u)
	return nil
}

func (l *eventLog) OnFollowed(context.Context, types.Account, types.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.follows++
	return nil
}

func (l *eventLog) OnPaymentFailed(context.Context, *market.Settlement, error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed++
	return nil
}

func (l *eventLog) OnRollback(_ context.Context, op string, _, _ error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolled = append(l.rolled, op)
	return nil
}

func TestNotifications(t *testing.T) {
	events := &eventLog{}
	h := newHarness(t, bazaar.WithPlugin(events))
	ctx := context.Background()

	assetID := h.mint(t, "alice", "Ticket")
	if _, err := h.b.Renew(ctx, assetID, 1000, 10); err != nil {
		t.Fatal(err)
	}
	if err := h.b.CancelSubscription(ctx, assetID); err != nil {
		t.Fatal(err)
	}

	if len(events.created) != 1 {
		t.Fatalf("created events = %d, want 1", len(events.created))
	}
	c := events.created[0]
	if c.ID != assetID || c.Seller != "alice" || c.Owner != "alice" || c.Likes != 1 || c.Title != "Ticket" {
		t.Errorf("AssetCreated payload = %+v", c)
	}

	want := []subscription.Update{{AssetID: assetID, Expiration: 1010}, {AssetID: assetID, Expiration: 0}}
	if len(events.updates) != len(want) {
		t.Fatalf("updates = %v, want %v", events.updates, want)
	}
	for i := range want {
		if events.updates[i] != want[i] {
			t.Errorf("update[%d] = %+v, want %+v", i, events.updates[i], want[i])
		}
	}

	// A failed renewal emits nothing.
	if _, err := h.b.Renew(ctx, 99, 1, 1); err == nil {
		t.Fatal("expected error")
	}
	if len(events.updates) != 2 {
		t.Errorf("updates after failed renew = %d, want 2", len(events.updates))
	}

	// Only graph changes are announced.
	for _, a := range accounts("alice", "bob") {
		if _, _, err := h.b.Register(as(a)); err != nil {
			t.Fatal(err)
		}
	}
	for range 2 {
		if err := h.b.Follow(as("alice"), "bob"); err != nil {
			t.Fatal(err)
		}
	}
	if events.follows != 1 {
		t.Errorf("follow events = %d, want 1", events.follows)
	}

	// Payment failure announces the failure and the rollback.
	if _, err := h.b.ListForSale(as("alice"), assetID, types.GAS(5)); err != nil {
		t.Fatal(err)
	}
	if err := h.b.Purchase(as("bob"), assetID, types.GAS(5)); !errors.Is(err, bazaar.ErrPaymentFailed) {
		t.Fatalf("Purchase error = %v, want ErrPaymentFailed", err)
	}
	if events.failed != 1 || len(events.rolled) != 1 || events.rolled[0] != "purchase" {
		t.Errorf("failed=%d rolled=%v", events.failed, events.rolled)
	}
}

// engineReader reads the engine back from inside its hooks.
type engineReader struct {
	b *bazaar.Bazaar

	mu       sync.Mutex
	created  *asset.Asset
	readErr  error
	rolledOp string
	rollErr  error
}

func (r *engineReader) Name() string { return "engine-reader" }

func (r *engineReader) OnAssetCreated(ctx context.Context, a *asset.Asset) error {
	got, err := r.b.GetAsset(ctx, a.ID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created, r.readErr = got, err
	return nil
}

func (r *engineReader) OnRollback(ctx context.Context, op string, _, _ error) error {
	_, err := r.b.ForSale(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rolledOp, r.rollErr = op, err
	return nil
}

func TestPluginsRunAfterTheLockIsReleased(t *testing.T) {
	reader := &engineReader{}
	payer := market.PayerFunc(func(context.Context, market.Transfer) error { return errBoom })
	h := newHarness(t,
		bazaar.WithPlugin(reader),
		bazaar.WithPluginTimeout(time.Second),
		bazaar.WithPayer(payer),
	)
	reader.b = h.b

	start := time.Now()
	assetID := h.mint(t, "alice", "Ticket")
	if elapsed := time.Since(start); elapsed >= time.Second {
		t.Errorf("CreateAsset took %v, want well under the plugin timeout", elapsed)
	}

	reader.mu.Lock()
	if reader.readErr != nil || reader.created == nil || reader.created.ID != assetID {
		t.Errorf("read from OnAssetCreated = %+v, %v", reader.created, reader.readErr)
	}
	reader.mu.Unlock()

	if _, err := h.b.ListForSale(as("alice"), assetID, types.GAS(5)); err != nil {
		t.Fatal(err)
	}
	if err := h.b.Purchase(as("bob"), assetID, types.GAS(5)); !errors.Is(err, bazaar.ErrPaymentFailed) {
		t.Fatalf("Purchase error = %v, want ErrPaymentFailed", err)
	}

	reader.mu.Lock()
	defer reader.mu.Unlock()
	if reader.rolledOp != "purchase" || reader.rollErr != nil {
		t.Errorf("read from OnRollback = %q, %v", reader.rolledOp, reader.rollErr)
	}
}
