package bazaar

import "github.com/xraph/bazaar/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Account is re-exported from types package.
type Account = types.Account

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	GAS  = types.GAS
	NEO  = types.NEO
	USD  = types.USD
	EUR  = types.EUR
	Zero = types.Zero
)
