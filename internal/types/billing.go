package types

import (
	"time"

	"github.com/google/uuid"
)

// RemoteSubscription is the billing provider's view of a subscription.
type RemoteSubscription struct {
	ID                string
	CustomerID        string
	Status            SubscriptionStatus
	PriceID           string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
}

// ProductInfo is the catalogue entry behind a price.
type ProductInfo struct {
	PriceID     string
	ProductID   string
	ProductName string
}

// CheckoutRef links a provider subscription to the user who checked out.
type CheckoutRef struct {
	UserID     uuid.UUID `json:"user_id"`
	CustomerID string    `json:"customer_id"`
}

// PendingSubscription is a subscription announced before its checkout session.
type PendingSubscription struct {
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
}
