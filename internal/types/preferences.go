package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinOnboardingStep     = 1
	MaxOnboardingStep     = 10
	DefaultOnboardingStep = MinOnboardingStep
)

// UserPreferences tracks onboarding progress. Rows are created lazily.
type UserPreferences struct {
	UserID                 uuid.UUID  `json:"user_id"`
	HasCompletedOnboarding bool       `json:"has_completed_onboarding"`
	OnboardingStep         int        `json:"onboarding_step"`
	SelectedPlanID         *string    `json:"selected_plan_id,omitempty"`
	OnboardingCompletedAt  *time.Time `json:"onboarding_completed_at,omitempty"`
	CreatedAt              *time.Time `json:"created_at,omitempty"`
	UpdatedAt              *time.Time `json:"updated_at,omitempty"`
}

// DefaultPreferences is what a user without a stored row sees.
func DefaultPreferences(userID uuid.UUID) *UserPreferences {
	return &UserPreferences{
		UserID:         userID,
		OnboardingStep: DefaultOnboardingStep,
	}
}

// UpdatePreferencesParams is a partial upsert; nil fields keep their stored value.
type UpdatePreferencesParams struct {
	HasCompletedOnboarding *bool      `json:"has_completed_onboarding,omitempty"`
	OnboardingStep         *int       `json:"onboarding_step,omitempty" validate:"omitempty,min=1,max=10"`
	SelectedPlanID         *string    `json:"selected_plan_id,omitempty"`
	OnboardingCompletedAt  *time.Time `json:"onboarding_completed_at,omitempty"`
}

// Empty reports whether no field is set.
func (p UpdatePreferencesParams) Empty() bool {
	return p.HasCompletedOnboarding == nil && p.OnboardingStep == nil &&
		p.SelectedPlanID == nil && p.OnboardingCompletedAt == nil
}
