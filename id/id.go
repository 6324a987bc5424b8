// Package id defines TypeID-based identifiers for Bazaar records that are
// not part of the sequential ledger numbering: lifecycle events, listings
// and payment settlements.
//
// Assets and profiles keep their sequential numeric ids; TypeIDs are used
// where records cross the process boundary (plugins, audit trails) and must
// stay globally unique and K-sortable.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record type encoded in a TypeID.
type Prefix string

const (
	PrefixEvent   Prefix = "evt" // Lifecycle notification
	PrefixListing Prefix = "lst" // Marketplace listing
	PrefixPayment Prefix = "pay" // Payment settlement
)

// ID wraps a TypeID in the format "prefix_suffix". The zero value is Nil.
//
//nolint:recvcheck // Value receivers for reads, pointer receivers for decoding.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix. It panics on an invalid
// prefix, which is a programming error.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// NewEventID generates a new event ID.
func NewEventID() ID { return New(PrefixEvent) }

// NewListingID generates a new listing ID.
func NewListingID() ID { return New(PrefixListing) }

// NewPaymentID generates a new payment ID.
func NewPaymentID() ID { return New(PrefixPayment) }

// Parse parses a TypeID string. When expected prefixes are given the parsed
// prefix must be one of them.
func Parse(s string, expected ...Prefix) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	parsed := ID{inner: tid, valid: true}

	if len(expected) == 0 {
		return parsed, nil
	}
	for _, p := range expected {
		if parsed.Prefix() == p {
			return parsed, nil
		}
	}
	return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected[0], parsed.Prefix())
}

// MustParse is like Parse but panics on error.
func MustParse(s string, expected ...Prefix) ID {
	parsed, err := Parse(s, expected...)
	if err != nil {
		panic(err.Error())
	}
	return parsed
}

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer; Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
