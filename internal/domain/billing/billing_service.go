// Package billing keeps the subscription store in step with the billing
// provider by processing its signed webhook events.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/cache"
	"github.com/FACorreiaa/rocketstart-api/pkg/clock"
	"github.com/FACorreiaa/rocketstart-api/pkg/observability"
)

const (
	EventCheckoutCompleted        stripe.EventType = "checkout.session.completed"
	EventSubscriptionCreated      stripe.EventType = "customer.subscription.created"
	EventSubscriptionUpdated      stripe.EventType = "customer.subscription.updated"
	EventSubscriptionDeleted      stripe.EventType = "customer.subscription.deleted"
	EventPendingUpdateApplied     stripe.EventType = "customer.subscription.pending_update_applied"
	EventPendingUpdateExpired     stripe.EventType = "customer.subscription.pending_update_expired"
	EventSubscriptionTrialWillEnd stripe.EventType = "customer.subscription.trial_will_end"
)

const cancelClaimPrefix = "cancel:"

// Outcome is how an event was resolved.
type Outcome string

const (
	OutcomeProcessed Outcome = observability.OutcomeProcessed
	OutcomeBlocked   Outcome = observability.OutcomeBlocked
	OutcomeIgnored   Outcome = observability.OutcomeIgnored
)

// ErrInvalidSession marks a checkout session missing its user, customer or subscription.
var ErrInvalidSession = fmt.Errorf("invalid session data: %w", types.ErrInvalidPayload)

// Subscriptions is the subscription store as the webhook uses it.
type Subscriptions interface {
	LiveByCustomer(ctx context.Context, customerID string) (*types.Subscription, error)
	GetByExternalID(ctx context.Context, externalID string) (*types.Subscription, error)
	Create(ctx context.Context, params types.CreateSubscriptionParams) (*types.Subscription, error)
	UpdateByExternalID(ctx context.Context, externalID string, params types.UpdateSubscriptionParams) (bool, error)
}

// Onboarding marks onboarding complete once a subscription exists.
type Onboarding interface {
	Upsert(ctx context.Context, userID uuid.UUID, params types.UpdatePreferencesParams) error
}

// AuthDataInvalidator drops a user's cached navigation data once their
// subscription row changes.
type AuthDataInvalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

type EventHandler interface {
	HandleEvent(ctx context.Context, event stripe.Event) (Outcome, error)
}

var _ EventHandler = (*Service)(nil)

type Service struct {
	provider  Provider
	subs      Subscriptions
	prefs     Onboarding
	checkouts cache.Store[types.CheckoutRef]
	pending   cache.Store[types.PendingSubscription]
	ledger    cache.Ledger
	authData  AuthDataInvalidator
	now       clock.Clock
	logger    *slog.Logger
}

type ServiceDeps struct {
	Provider      Provider
	Subscriptions Subscriptions
	Preferences   Onboarding
	// Checkouts maps a provider subscription id to the checkout that created it.
	Checkouts cache.Store[types.CheckoutRef]
	// Pending holds subscriptions announced before their checkout completed.
	Pending cache.Store[types.PendingSubscription]
	Ledger  cache.Ledger
	// AuthData is optional.
	AuthData AuthDataInvalidator
	Clock    clock.Clock
	Logger   *slog.Logger
}

func NewService(d ServiceDeps) *Service {
	now := d.Clock
	if now == nil {
		now = clock.System
	}
	return &Service{
		provider:  d.Provider,
		subs:      d.Subscriptions,
		prefs:     d.Preferences,
		checkouts: d.Checkouts,
		pending:   d.Pending,
		ledger:    d.Ledger,
		authData:  d.AuthData,
		now:       now,
		logger:    d.Logger,
	}
}

func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) (Outcome, error) {
	ctx, span := otel.Tracer("BillingService").Start(ctx, "HandleEvent", trace.WithAttributes(
		attribute.String("billing.event.id", event.ID),
		attribute.String("billing.event.type", string(event.Type)),
	))
	defer span.End()

	var (
		outcome Outcome
		err     error
	)
	switch event.Type {
	case EventCheckoutCompleted:
		outcome, err = s.checkoutCompleted(ctx, event)
	case EventSubscriptionCreated:
		outcome, err = s.subscriptionCreated(ctx, event)
	case EventSubscriptionUpdated, EventPendingUpdateApplied, EventPendingUpdateExpired, EventSubscriptionTrialWillEnd:
		outcome, err = s.subscriptionUpdated(ctx, event)
	case EventSubscriptionDeleted:
		outcome, err = s.subscriptionDeleted(ctx, event)
	default:
		s.logger.DebugContext(ctx, "Ignoring webhook event", slog.String("type", string(event.Type)))
		outcome = OutcomeIgnored
	}

	if err != nil {
		observability.WebhookEvent(string(event.Type), observability.OutcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "event failed")
		return "", err
	}
	observability.WebhookEvent(string(event.Type), string(outcome))
	span.SetAttributes(attribute.String("billing.outcome", string(outcome)))
	span.SetStatus(codes.Ok, string(outcome))
	return outcome, nil
}

func decodeObject(event stripe.Event, dst any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("event %s has no data: %w", event.ID, types.ErrInvalidPayload)
	}
	if err := json.Unmarshal(event.Data.Raw, dst); err != nil {
		return fmt.Errorf("decode %s object: %v: %w", event.Type, err, types.ErrInvalidPayload)
	}
	return nil
}

func (s *Service) checkoutCompleted(ctx context.Context, event stripe.Event) (Outcome, error) {
	var sess stripe.CheckoutSession
	if err := decodeObject(event, &sess); err != nil {
		return "", err
	}

	var customerID, subID string
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		subID = sess.Subscription.ID
	}
	l := s.logger.With(slog.String("sessionID", sess.ID), slog.String("customerID", customerID), slog.String("subscriptionID", subID))

	userID, err := uuid.Parse(sess.ClientReferenceID)
	if err != nil || customerID == "" || subID == "" {
		l.WarnContext(ctx, "Missing required session data", slog.String("clientReferenceID", sess.ClientReferenceID))
		return "", ErrInvalidSession
	}

	existing, err := s.subs.LiveByCustomer(ctx, customerID)
	switch {
	case errors.Is(err, types.ErrNotFound):
	case err != nil:
		return "", fmt.Errorf("check existing subscription: %w", err)
	case existing.StripeSubscriptionID != subID:
		l.WarnContext(ctx, "Duplicate subscription attempt blocked", slog.String("existingSubscriptionID", existing.StripeSubscriptionID))
		return s.block(ctx, subID)
	}

	ref := types.CheckoutRef{UserID: userID, CustomerID: customerID}
	if err := s.checkouts.Set(ctx, subID, ref); err != nil {
		l.WarnContext(ctx, "Failed to record checkout session", slog.Any("error", err))
	}
	if err := s.pending.Invalidate(ctx, subID); err != nil {
		l.WarnContext(ctx, "Failed to clear pending subscription", slog.Any("error", err))
	}

	return s.createOrUpdate(ctx, subID, ref)
}

func (s *Service) subscriptionCreated(ctx context.Context, event stripe.Event) (Outcome, error) {
	var sub stripe.Subscription
	if err := decodeObject(event, &sub); err != nil {
		return "", err
	}
	remote := remoteSubscription(&sub)
	l := s.logger.With(slog.String("subscriptionID", remote.ID))

	ref, ok, err := s.checkouts.Get(ctx, remote.ID)
	if err != nil {
		return "", fmt.Errorf("read checkout session: %w", err)
	}
	if !ok {
		l.InfoContext(ctx, "Subscription announced before checkout, holding")
		pending := types.PendingSubscription{SubscriptionID: remote.ID, CustomerID: remote.CustomerID}
		if err := s.pending.Set(ctx, remote.ID, pending); err != nil {
			return "", fmt.Errorf("hold pending subscription: %w", err)
		}
		return OutcomeProcessed, nil
	}

	outcome, err := s.createOrUpdate(ctx, remote.ID, ref)
	if err != nil {
		return "", err
	}
	if err := s.checkouts.Invalidate(ctx, remote.ID); err != nil {
		l.WarnContext(ctx, "Failed to clear checkout session", slog.Any("error", err))
	}
	return outcome, nil
}

// createOrUpdate writes the provider's current view of a subscription,
// updating the row when it exists and inserting it otherwise.
func (s *Service) createOrUpdate(ctx context.Context, subID string, ref types.CheckoutRef) (Outcome, error) {
	l := s.logger.With(slog.String("method", "createOrUpdate"), slog.String("subscriptionID", subID), slog.String("userID", ref.UserID.String()))

	remote, err := s.provider.Subscription(ctx, subID)
	if err != nil {
		return "", fmt.Errorf("retrieve subscription: %w", err)
	}
	product, err := s.product(ctx, remote.PriceID)
	if err != nil {
		return "", err
	}

	update := updateParams(remote, product)
	existing, err := s.subs.GetByExternalID(ctx, subID)
	switch {
	case errors.Is(err, types.ErrNotFound):
	case err != nil:
		return "", fmt.Errorf("check existing subscription: %w", err)
	default:
		if _, err := s.subs.UpdateByExternalID(ctx, subID, update); err != nil {
			if errors.Is(err, types.ErrDuplicateSubscription) {
				return s.block(ctx, subID)
			}
			return "", fmt.Errorf("update subscription: %w", err)
		}
		l.InfoContext(ctx, "Updated existing subscription", slog.String("id", existing.ID.String()))
		s.invalidate(ctx, ref.UserID)
		return OutcomeProcessed, nil
	}

	create := types.CreateSubscriptionParams{
		UserID:               ref.UserID,
		StripeCustomerID:     ref.CustomerID,
		StripeSubscriptionID: subID,
		Status:               remote.Status,
		PriceID:              update.PriceID,
		ProductName:          update.ProductName,
		ProductID:            update.ProductID,
		CurrentPeriodEnd:     remote.CurrentPeriodEnd,
		CancelAtPeriodEnd:    remote.CancelAtPeriodEnd,
	}
	_, err = s.subs.Create(ctx, create)
	switch {
	case errors.Is(err, types.ErrDuplicateSubscription):
		l.WarnContext(ctx, "Concurrent activation blocked")
		return s.block(ctx, subID)
	case errors.Is(err, types.ErrConflict):
		// Another delivery inserted the same subscription first.
		if _, err := s.subs.UpdateByExternalID(ctx, subID, update); err != nil {
			return "", fmt.Errorf("update subscription after conflict: %w", err)
		}
		s.invalidate(ctx, ref.UserID)
		return OutcomeProcessed, nil
	case err != nil:
		return "", fmt.Errorf("insert subscription: %w", err)
	}
	l.InfoContext(ctx, "Created subscription")

	done := true
	if err := s.prefs.Upsert(ctx, ref.UserID, types.UpdatePreferencesParams{HasCompletedOnboarding: &done}); err != nil {
		l.ErrorContext(ctx, "Error updating user preferences", slog.Any("error", err))
	}
	s.invalidate(ctx, ref.UserID)
	return OutcomeProcessed, nil
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.authData != nil {
		s.authData.Invalidate(ctx, userID)
	}
}

func (s *Service) subscriptionUpdated(ctx context.Context, event stripe.Event) (Outcome, error) {
	var sub stripe.Subscription
	if err := decodeObject(event, &sub); err != nil {
		return "", err
	}
	remote := remoteSubscription(&sub)
	product, err := s.product(ctx, remote.PriceID)
	if err != nil {
		return "", err
	}

	found, err := s.subs.UpdateByExternalID(ctx, remote.ID, updateParams(remote, product))
	if errors.Is(err, types.ErrDuplicateSubscription) {
		return s.block(ctx, remote.ID)
	}
	if err != nil {
		return "", fmt.Errorf("update subscription: %w", err)
	}
	if !found {
		s.logger.InfoContext(ctx, "No stored subscription to update", slog.String("subscriptionID", remote.ID))
	}
	return OutcomeProcessed, nil
}

func (s *Service) subscriptionDeleted(ctx context.Context, event stripe.Event) (Outcome, error) {
	var sub stripe.Subscription
	if err := decodeObject(event, &sub); err != nil {
		return "", err
	}
	status := types.SubscriptionStatus(sub.Status)
	cancelAtPeriodEnd := false
	ended := s.now().UTC()

	found, err := s.subs.UpdateByExternalID(ctx, sub.ID, types.UpdateSubscriptionParams{
		Status:            &status,
		CancelAtPeriodEnd: &cancelAtPeriodEnd,
		CurrentPeriodEnd:  &ended,
	})
	if err != nil {
		return "", fmt.Errorf("mark subscription deleted: %w", err)
	}
	if !found {
		s.logger.InfoContext(ctx, "No stored subscription to delete", slog.String("subscriptionID", sub.ID))
	}
	return OutcomeProcessed, nil
}

// block cancels a stray subscription upstream at most once per id.
func (s *Service) block(ctx context.Context, subID string) (Outcome, error) {
	key := cancelClaimPrefix + subID
	claimed, err := s.ledger.Claim(ctx, key)
	if err != nil {
		return "", fmt.Errorf("claim cancellation: %w", err)
	}
	if !claimed {
		s.logger.InfoContext(ctx, "Cancellation already issued", slog.String("subscriptionID", subID))
		return OutcomeBlocked, nil
	}
	if err := s.provider.Cancel(ctx, subID); err != nil {
		if rerr := s.ledger.Release(ctx, key); rerr != nil {
			s.logger.ErrorContext(ctx, "Failed to release cancellation claim", slog.Any("error", rerr))
		}
		return "", fmt.Errorf("cancel duplicate subscription: %w", err)
	}
	return OutcomeBlocked, nil
}

func (s *Service) product(ctx context.Context, priceID string) (*types.ProductInfo, error) {
	if priceID == "" {
		return nil, nil
	}
	p, err := s.provider.Product(ctx, priceID)
	if errors.Is(err, types.ErrNotFound) {
		s.logger.WarnContext(ctx, "Price not found at provider", slog.String("priceID", priceID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve price: %w", err)
	}
	return p, nil
}

// updateParams maps provider state onto a row update. A missing product keeps
// the stored product columns.
func updateParams(remote *types.RemoteSubscription, product *types.ProductInfo) types.UpdateSubscriptionParams {
	status := remote.Status
	cancelAtPeriodEnd := remote.CancelAtPeriodEnd
	p := types.UpdateSubscriptionParams{
		Status:            &status,
		CurrentPeriodEnd:  remote.CurrentPeriodEnd,
		CancelAtPeriodEnd: &cancelAtPeriodEnd,
	}
	if remote.PriceID != "" {
		priceID := remote.PriceID
		p.PriceID = &priceID
	}
	if product != nil {
		if product.ProductName != "" {
			name := product.ProductName
			p.ProductName = &name
		}
		if product.ProductID != "" {
			id := product.ProductID
			p.ProductID = &id
		}
	}
	return p
}
