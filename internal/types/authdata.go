package types

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the caller as asserted by the identity provider.
type Identity struct {
	UserID uuid.UUID `json:"id"`
	Email  string    `json:"email"`
}

// Session is the provider session attached to an identity.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthDataPayload is the batched subscription and onboarding view for one user.
type AuthDataPayload struct {
	IsSubscriber               bool          `json:"isSubscriber"`
	Subscription               *Subscription `json:"subscription"`
	HasCompletedOnboarding     bool          `json:"hasCompletedOnboarding"`
	OnboardingStep             int           `json:"onboardingStep"`
	SelectedPlanID             *string       `json:"selectedPlanId"`
	OnboardingCompletedAt      *time.Time    `json:"onboardingCompletedAt"`
	ShouldRedirectToOnboarding bool          `json:"shouldRedirectToOnboarding"`
	ShouldRedirectToDashboard  bool          `json:"shouldRedirectToDashboard"`
}

// AuthDataResponse wraps the payload the way the endpoint returns it.
type AuthDataResponse struct {
	Success bool             `json:"success"`
	Data    *AuthDataPayload `json:"data"`
}
