// Package observability provides a metrics extension for Bazaar that records
// lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/bazaar/asset"
	"github.com/xraph/bazaar/market"
	"github.com/xraph/bazaar/plugin"
	"github.com/xraph/bazaar/social"
	"github.com/xraph/bazaar/subscription"
	"github.com/xraph/bazaar/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnAssetCreated        = (*MetricsExtension)(nil)
	_ plugin.OnAssetLiked          = (*MetricsExtension)(nil)
	_ plugin.OnAssetDisliked       = (*MetricsExtension)(nil)
	_ plugin.OnAssetListed         = (*MetricsExtension)(nil)
	_ plugin.OnAssetPurchased      = (*MetricsExtension)(nil)
	_ plugin.OnPaymentSettled      = (*MetricsExtension)(nil)
	_ plugin.OnPaymentFailed       = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionUpdated = (*MetricsExtension)(nil)
	_ plugin.OnProfileRegistered   = (*MetricsExtension)(nil)
	_ plugin.OnFollowed            = (*MetricsExtension)(nil)
	_ plugin.OnUnfollowed          = (*MetricsExtension)(nil)
	_ plugin.OnRollback            = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Bazaar plugin to track marketplace activity.
type MetricsExtension struct {
	factory MetricFactory

	// Asset metrics
	AssetCreated  Counter
	AssetLiked    Counter
	AssetDisliked Counter

	// Marketplace metrics
	AssetListed     Counter
	AssetPurchased  Counter
	ListingPrice    Histogram
	SubscriberCount Histogram
	PaymentSettled  Counter
	PaymentFailed   Counter
	PaymentVolume   Histogram

	// Subscription metrics
	SubscriptionRenewed  Counter
	SubscriptionCanceled Counter

	// Social metrics
	ProfileRegistered Counter
	AccountFollowed   Counter
	AccountUnfollowed Counter

	// Error metrics
	Rollbacks       Counter
	RollbackFailure Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		AssetCreated:  factory.Counter("bazaar.asset.created"),
		AssetLiked:    factory.Counter("bazaar.asset.liked"),
		AssetDisliked: factory.Counter("bazaar.asset.disliked"),

		AssetListed:     factory.Counter("bazaar.asset.listed"),
		AssetPurchased:  factory.Counter("bazaar.asset.purchased"),
		ListingPrice:    factory.Histogram("bazaar.listing.price"),
		SubscriberCount: factory.Histogram("bazaar.asset.subscribers"),
		PaymentSettled:  factory.Counter("bazaar.payment.settled"),
		PaymentFailed:   factory.Counter("bazaar.payment.failed"),
		PaymentVolume:   factory.Histogram("bazaar.payment.amount"),

		SubscriptionRenewed:  factory.Counter("bazaar.subscription.renewed"),
		SubscriptionCanceled: factory.Counter("bazaar.subscription.canceled"),

		ProfileRegistered: factory.Counter("bazaar.profile.registered"),
		AccountFollowed:   factory.Counter("bazaar.account.followed"),
		AccountUnfollowed: factory.Counter("bazaar.account.unfollowed"),

		Rollbacks:       factory.Counter("bazaar.call.rolled_back"),
		RollbackFailure: factory.Counter("bazaar.call.rollback_failed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Asset hooks
// ──────────────────────────────────────────────────

// OnAssetCreated implements plugin.OnAssetCreated.
func (m *MetricsExtension) OnAssetCreated(_ context.Context, _ *asset.Asset) error {
	m.AssetCreated.Inc()
	return nil
}

// OnAssetLiked implements plugin.OnAssetLiked.
func (m *MetricsExtension) OnAssetLiked(_ context.Context, _, _ uint64) error {
	m.AssetLiked.Inc()
	return nil
}

// OnAssetDisliked implements plugin.OnAssetDisliked.
func (m *MetricsExtension) OnAssetDisliked(_ context.Context, _, _ uint64) error {
	m.AssetDisliked.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Marketplace hooks
// ──────────────────────────────────────────────────

// OnAssetListed implements plugin.OnAssetListed.
func (m *MetricsExtension) OnAssetListed(_ context.Context, l *market.Listing) error {
	m.AssetListed.Inc()
	m.ListingPrice.Observe(float64(l.Price.Amount))
	return nil
}

// OnAssetPurchased implements plugin.OnAssetPurchased.
func (m *MetricsExtension) OnAssetPurchased(_ context.Context, p *market.Purchase) error {
	m.AssetPurchased.Inc()
	m.SubscriberCount.Observe(float64(p.Subscribers))
	return nil
}

// OnPaymentSettled implements plugin.OnPaymentSettled.
func (m *MetricsExtension) OnPaymentSettled(_ context.Context, s *market.Settlement) error {
	m.PaymentSettled.Inc()
	m.PaymentVolume.Observe(float64(s.Amount.Amount))
	return nil
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (m *MetricsExtension) OnPaymentFailed(_ context.Context, _ *market.Settlement, _ error) error {
	m.PaymentFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionUpdated implements plugin.OnSubscriptionUpdated.
func (m *MetricsExtension) OnSubscriptionUpdated(_ context.Context, u subscription.Update) error {
	if u.Expiration == 0 {
		m.SubscriptionCanceled.Inc()
	} else {
		m.SubscriptionRenewed.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Social hooks
// ──────────────────────────────────────────────────

// OnProfileRegistered implements plugin.OnProfileRegistered.
func (m *MetricsExtension) OnProfileRegistered(_ context.Context, _ *social.Profile) error {
	m.ProfileRegistered.Inc()
	return nil
}

// OnFollowed implements plugin.OnFollowed.
func (m *MetricsExtension) OnFollowed(_ context.Context, _, _ types.Account) error {
	m.AccountFollowed.Inc()
	return nil
}

// OnUnfollowed implements plugin.OnUnfollowed.
func (m *MetricsExtension) OnUnfollowed(_ context.Context, _, _ types.Account) error {
	m.AccountUnfollowed.Inc()
	return nil
}

// OnRollback implements plugin.OnRollback.
func (m *MetricsExtension) OnRollback(_ context.Context, _ string, _, undoErr error) error {
	m.Rollbacks.Inc()
	if undoErr != nil {
		m.RollbackFailure.Inc()
	}
	return nil
}
