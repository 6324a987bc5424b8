// Package social models account profiles and the follower graph.
package social

import (
	"time"

	"github.com/xraph/bazaar/types"
)

// Profile is an account's social-graph record. Followers and Following are
// sets; the engine returns them sorted for stable output.
type Profile struct {
	types.Entity
	UserID    uint64          `json:"user_id"`
	Account   types.Account   `json:"account"`
	Followers []types.Account `json:"followers"`
	Following []types.Account `json:"following"`
}

// Follow is a single directed edge. One edge is both an entry in the
// follower's Following set and in the followee's Followers set, so the two
// sides are always written together.
type Follow struct {
	Follower  types.Account `json:"follower"`
	Followee  types.Account `json:"followee"`
	CreatedAt time.Time     `json:"created_at"`
}
