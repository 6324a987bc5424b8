// Package audithook bridges Bazaar lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter that bridges
// to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/market"
	"github.com/xraph/bazaar/plugin"
	"github.com/xraph/bazaar/social"
	"github.com/xraph/bazaar/subscription"
	"github.com/xraph/bazaar/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnAssetCreated        = (*Extension)(nil)
	_ plugin.OnAssetLiked          = (*Extension)(nil)
	_ plugin.OnAssetDisliked       = (*Extension)(nil)
	_ plugin.OnAssetListed         = (*Extension)(nil)
	_ plugin.OnAssetPurchased      = (*Extension)(nil)
	_ plugin.OnPaymentSettled      = (*Extension)(nil)
	_ plugin.OnPaymentFailed       = (*Extension)(nil)
	_ plugin.OnSubscriptionUpdated = (*Extension)(nil)
	_ plugin.OnProfileRegistered   = (*Extension)(nil)
	_ plugin.OnFollowed            = (*Extension)(nil)
	_ plugin.OnUnfollowed          = (*Extension)(nil)
	_ plugin.OnRollback            = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Bazaar lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Asset hooks
// ──────────────────────────────────────────────────

// OnAssetCreated implements plugin.OnAssetCreated.
func (e *Extension) OnAssetCreated(ctx context.Context, a *asset.Asset) error {
	return e.record(ctx, ActionAssetCreated, SeverityInfo, OutcomeSuccess,
		ResourceAsset, assetRef(a.ID), CategoryRegistry, nil,
		"seller", a.Seller.String(),
		"owner", a.Owner.String(),
		"title", a.Title,
		"metadata_ref", a.MetadataRef,
	)
}

// OnAssetLiked implements plugin.OnAssetLiked.
func (e *Extension) OnAssetLiked(ctx context.Context, assetID, likes uint64) error {
	return e.record(ctx, ActionAssetLiked, SeverityInfo, OutcomeSuccess,
		ResourceAsset, assetRef(assetID), CategoryRegistry, nil,
		"likes", likes,
	)
}

// OnAssetDisliked implements plugin.OnAssetDisliked.
func (e *Extension) OnAssetDisliked(ctx context.Context, assetID, likes uint64) error {
	return e.record(ctx, ActionAssetDisliked, SeverityInfo, OutcomeSuccess,
		ResourceAsset, assetRef(assetID), CategoryRegistry, nil,
		"likes", likes,
	)
}

// ──────────────────────────────────────────────────
// Marketplace hooks
// ──────────────────────────────────────────────────

// OnAssetListed implements plugin.OnAssetListed.
func (e *Extension) OnAssetListed(ctx context.Context, l *market.Listing) error {
	return e.record(ctx, ActionAssetListed, SeverityInfo, OutcomeSuccess,
		ResourceAsset, assetRef(l.AssetID), CategoryMarketplace, nil,
		"listing_id", l.ID.String(),
		"seller", l.Seller.String(),
		"price", l.Price.String(),
		"listed_count", l.ListedCount,
	)
}

// OnAssetPurchased implements plugin.OnAssetPurchased.
func (e *Extension) OnAssetPurchased(ctx context.Context, p *market.Purchase) error {
	return e.record(ctx, ActionAssetPurchased, SeverityInfo, OutcomeSuccess,
		ResourceAsset, assetRef(p.AssetID), CategoryMarketplace, nil,
		"buyer", p.Buyer.String(),
		"amount", p.Amount.String(),
		"subscribers", p.Subscribers,
	)
}

// OnPaymentSettled implements plugin.OnPaymentSettled.
func (e *Extension) OnPaymentSettled(ctx context.Context, s *market.Settlement) error {
	return e.record(ctx, ActionPaymentSettled, SeverityInfo, OutcomeSuccess,
		ResourcePayment, s.ID.String(), CategoryPayment, nil,
		"asset_id", s.AssetID,
		"payer", s.Payer.String(),
		"payee", s.Payee.String(),
		"amount", s.Amount.String(),
	)
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (e *Extension) OnPaymentFailed(ctx context.Context, s *market.Settlement, err error) error {
	return e.record(ctx, ActionPaymentFailed, SeverityWarning, OutcomeFailure,
		ResourcePayment, s.ID.String(), CategoryPayment, err,
		"asset_id", s.AssetID,
		"payer", s.Payer.String(),
		"payee", s.Payee.String(),
		"amount", s.Amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionUpdated implements plugin.OnSubscriptionUpdated. A zero
// expiration is recorded as a cancellation.
func (e *Extension) OnSubscriptionUpdated(ctx context.Context, u subscription.Update) error {
	action := ActionSubscriptionRenewed
	if u.Expiration == 0 {
		action = ActionSubscriptionCanceled
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, assetRef(u.AssetID), CategorySubscription, nil,
		"expiration", u.Expiration,
	)
}

// ──────────────────────────────────────────────────
// Social graph hooks
// ──────────────────────────────────────────────────

// OnProfileRegistered implements plugin.OnProfileRegistered.
func (e *Extension) OnProfileRegistered(ctx context.Context, p *social.Profile) error {
	return e.record(ctx, ActionProfileRegistered, SeverityInfo, OutcomeSuccess,
		ResourceProfile, strconv.FormatUint(p.UserID, 10), CategorySocial, nil,
		"account", p.Account.String(),
	)
}

// OnFollowed implements plugin.OnFollowed.
func (e *Extension) OnFollowed(ctx context.Context, follower, followee types.Account) error {
	return e.record(ctx, ActionAccountFollowed, SeverityInfo, OutcomeSuccess,
		ResourceProfile, followee.String(), CategorySocial, nil,
		"follower", follower.String(),
	)
}

// OnUnfollowed implements plugin.OnUnfollowed.
func (e *Extension) OnUnfollowed(ctx context.Context, follower, followee types.Account) error {
	return e.record(ctx, ActionAccountUnfollowed, SeverityInfo, OutcomeSuccess,
		ResourceProfile, followee.String(), CategorySocial, nil,
		"follower", follower.String(),
	)
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnRollback implements plugin.OnRollback. A failed undo is critical: the
// store may hold a partial write.
func (e *Extension) OnRollback(ctx context.Context, op string, cause, undoErr error) error {
	if undoErr != nil {
		return e.record(ctx, ActionCallRolledBack, SeverityCritical, OutcomePartial,
			ResourceCall, op, CategoryIntegrity, undoErr,
			"cause", cause.Error(),
		)
	}
	return e.record(ctx, ActionCallRolledBack, SeverityWarning, OutcomeFailure,
		ResourceCall, op, CategoryIntegrity, cause,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func assetRef(assetID uint64) string {
	return strconv.FormatUint(assetID, 10)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
