package types

// Account identifies a participant. Identity and signature checks belong to
// the hosting environment; Bazaar treats accounts as opaque strings.
type Account string

// IsZero reports whether the account is empty.
func (a Account) IsZero() bool { return a == "" }

func (a Account) String() string { return string(a) }
