package types

import (
	"time"

	"github.com/google/uuid"
)

// UserTrial is a materialised trial window.
type UserTrial struct {
	UserID       uuid.UUID  `json:"user_id"`
	TrialEndTime *time.Time `json:"trial_end_time"`
	IsTrialUsed  bool       `json:"is_trial_used"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SubscriptionStatusRef carries just the status of a subscription.
type SubscriptionStatusRef struct {
	Status SubscriptionStatus `json:"status"`
}

// TrialStatus is returned by the trial endpoint.
type TrialStatus struct {
	Subscription          *SubscriptionStatusRef `json:"subscription"`
	Trial                 *UserTrial             `json:"trial"`
	IsTrialActive         bool                   `json:"isTrialActive"`
	IsTrialExpired        bool                   `json:"isTrialExpired"`
	IsTrialUsed           bool                   `json:"isTrialUsed"`
	HasActiveSubscription bool                   `json:"hasActiveSubscription"`
	TrialEndTime          *time.Time             `json:"trialEndTime"`
	// IsInTrial treats users with neither a trial record nor a subscription as
	// implicitly inside their trial.
	IsInTrial bool `json:"isInTrial"`
}
