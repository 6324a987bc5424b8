package audithook

// Action constants for audit events.
const (
	// Asset actions
	ActionAssetCreated  = "asset.created"
	ActionAssetLiked    = "asset.liked"
	ActionAssetDisliked = "asset.disliked"

	// Marketplace actions
	ActionAssetListed    = "asset.listed"
	ActionAssetPurchased = "asset.purchased"
	ActionPaymentSettled = "payment.settled"
	ActionPaymentFailed  = "payment.failed"

	// Subscription actions
	ActionSubscriptionRenewed  = "subscription.renewed"
	ActionSubscriptionCanceled = "subscription.canceled"

	// Social graph actions
	ActionProfileRegistered = "profile.registered"
	ActionAccountFollowed   = "account.followed"
	ActionAccountUnfollowed = "account.unfollowed"

	// Engine actions
	ActionCallRolledBack = "call.rolled_back"
)

// Resource constants for audit events.
const (
	ResourceAsset        = "asset"
	ResourceSubscription = "subscription"
	ResourcePayment      = "payment"
	ResourceProfile      = "profile"
	ResourceCall         = "call"
)

// Category constants for audit events.
const (
	CategoryRegistry     = "registry"
	CategoryMarketplace  = "marketplace"
	CategorySubscription = "subscription"
	CategoryPayment      = "payment"
	CategorySocial       = "social"
	CategoryIntegrity    = "integrity"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
