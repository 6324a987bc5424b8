package bazaar_test

import (
	"context"
	"log"
	"log/slog"
	"testing"

	"github.com/xraph/bazaar"
	"github.com/xraph/bazaar/market"
	"github.com/xraph/bazaar/store/memory"
	"github.com/xraph/bazaar/types"
)

// TestDocumentationExamples verifies that the package documentation examples
// run as written.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		book := market.NewBook()
		if err := book.Deposit("bob", types.GAS(100)); err != nil {
			t.Fatal(err)
		}

		b := bazaar.New(memory.New(),
			bazaar.WithLogger(slog.Default()),
			bazaar.WithEscrowAccount("market"),
			bazaar.WithCurrency("gas"),
			bazaar.WithPayer(book),
			bazaar.WithBalances(book),
		)

		ctx := context.Background()
		if err := b.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer b.Stop()

		aliceCtx := bazaar.WithCaller(ctx, "alice")
		bobCtx := bazaar.WithCaller(ctx, "bob")

		assetID, err := b.CreateAsset(aliceCtx, "ipfs://meta", "Ticket", "Front row")
		if err != nil {
			t.Fatal(err)
		}

		listed, err := b.ListForSale(aliceCtx, assetID, bazaar.GAS(100))
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("listed count: %d\n", listed)

		if err := b.Purchase(bobCtx, assetID, bazaar.GAS(100)); err != nil {
			t.Fatal(err)
		}

		now := uint64(1_700_000_000)
		exp, err := b.Renew(ctx, assetID, 1000, now)
		if err != nil {
			t.Fatal(err)
		}
		exp, err = b.Renew(ctx, assetID, 500, now+5000)
		if err != nil {
			t.Fatal(err)
		}
		if exp != now+1500 {
			t.Errorf("expiration = %d, want %d", exp, now+1500)
		}
	})

	t.Run("MoneyExamples", func(t *testing.T) {
		_ = bazaar.GAS(150000000) // 1.50000000 GAS
		_ = bazaar.NEO(3)         // 3 NEO
		_ = bazaar.Zero("gas")

		sum, err := bazaar.GAS(100).Add(bazaar.GAS(200))
		if err != nil {
			t.Fatal(err)
		}
		_ = sum.String()      // "0.00000300 GAS"
		_ = sum.FormatMajor() // "0.00000300"

		if _, err := bazaar.GAS(1).Sub(bazaar.GAS(2)); err == nil {
			t.Error("expected underflow")
		}
	})
}
