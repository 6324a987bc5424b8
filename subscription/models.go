// Package subscription holds per-asset expiration timestamps and the
// renewal arithmetic applied to them.
package subscription

import (
	"errors"
	"math/bits"
)

var (
	// ErrOverflow is returned when a renewal would wrap the timestamp.
	ErrOverflow = errors.New("subscription: expiration overflow")
	// ErrNotRenewable is returned when the renewal policy refuses.
	ErrNotRenewable = errors.New("subscription: not renewable")
)

// Subscription is the expiration record for one asset. Expiration 0 means
// no active subscription. Records are zeroed on cancel, never removed.
type Subscription struct {
	AssetID    uint64 `json:"asset_id"`
	Expiration uint64 `json:"expiration"`
}

// Active reports whether the subscription is unexpired at now. Expiration is
// advisory; nothing in Bazaar enforces it.
func (s Subscription) Active(now uint64) bool {
	return s.Expiration != 0 && now < s.Expiration
}

// Update is the notification emitted whenever an expiration changes.
type Update struct {
	AssetID    uint64 `json:"asset_id"`
	Expiration uint64 `json:"expiration"`
}

// RenewalPolicy decides whether an existing subscription may be extended.
type RenewalPolicy func(assetID uint64) bool

// AlwaysRenewable is the default policy.
func AlwaysRenewable(uint64) bool { return true }

// Extend computes the next expiration.
//
// With no prior expiration the window starts at now. Otherwise the policy is
// consulted and duration stacks onto the old expiration even when it already
// lies in the past.
func Extend(assetID, current, duration, now uint64, policy RenewalPolicy) (uint64, error) {
	base := current
	if current == 0 {
		base = now
	} else if policy != nil && !policy(assetID) {
		return 0, ErrNotRenewable
	}

	next, carry := bits.Add64(base, duration, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return next, nil
}
