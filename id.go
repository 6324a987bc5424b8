package bazaar

import "github.com/xraph/bazaar/id"

// ID identifies listings, settlements and events.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
