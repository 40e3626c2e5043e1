package types

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus mirrors the billing provider's subscription lifecycle.
type SubscriptionStatus string

const (
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionTrialing          SubscriptionStatus = "trialing"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionPaused            SubscriptionStatus = "paused"
)

// LiveStatuses are the statuses that grant access. At most one subscription per
// user may hold one of them.
var LiveStatuses = []SubscriptionStatus{SubscriptionActive, SubscriptionTrialing}

// IsLive reports whether the status grants access.
func (s SubscriptionStatus) IsLive() bool {
	return s == SubscriptionActive || s == SubscriptionTrialing
}

// Subscription is one billing relationship, keyed by the provider's subscription id.
type Subscription struct {
	ID                   uuid.UUID          `json:"id"`
	UserID               uuid.UUID          `json:"user_id"`
	StripeCustomerID     string             `json:"stripe_customer_id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	Status               SubscriptionStatus `json:"status"`
	PriceID              *string            `json:"price_id"`
	ProductName          *string            `json:"product_name"`
	ProductID            *string            `json:"product_id"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// IsValid reports whether the subscription is live and its period has not ended.
func (s *Subscription) IsValid(now time.Time) bool {
	if s == nil || !s.Status.IsLive() || s.CurrentPeriodEnd == nil {
		return false
	}
	return s.CurrentPeriodEnd.After(now)
}

// CreateSubscriptionParams holds the columns written when a checkout completes.
type CreateSubscriptionParams struct {
	UserID               uuid.UUID
	StripeCustomerID     string
	StripeSubscriptionID string
	Status               SubscriptionStatus
	PriceID              *string
	ProductName          *string
	ProductID            *string
	CurrentPeriodEnd     *time.Time
	CancelAtPeriodEnd    bool
}

// UpdateSubscriptionParams is a partial update keyed by the provider subscription id.
// Nil fields are left untouched.
type UpdateSubscriptionParams struct {
	Status            *SubscriptionStatus
	PriceID           *string
	ProductName       *string
	ProductID         *string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd *bool
}

// SubscriptionStatusResponse is returned by the subscription endpoint.
type SubscriptionStatusResponse struct {
	Subscription *Subscription `json:"subscription"`
	IsSubscriber bool          `json:"isSubscriber"`
	IsValid      bool          `json:"isValid"`
}
