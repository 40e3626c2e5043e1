package preferences

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/FACorreiaa/rocketstart-api/internal/domain/common"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/httpx"
)

// updateRequest is the POST body. onboarding_completed_at is an RFC 3339 string.
type updateRequest struct {
	UserID                 string  `json:"user_id" validate:"required,uuid"`
	HasCompletedOnboarding *bool   `json:"has_completed_onboarding"`
	OnboardingStep         *int    `json:"onboarding_step" validate:"omitempty,min=1,max=10"`
	SelectedPlanID         *string `json:"selected_plan_id"`
	OnboardingCompletedAt  *string `json:"onboarding_completed_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// Handler serves GET and POST /api/user/preferences.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

func NewHandler(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromQuery(w, r, "user_id is required", "Invalid parameters")
	if !ok {
		return
	}

	prefs, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		httpx.WriteServiceError(w, h.logger, err, "Invalid parameters")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, prefs)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	const invalid = "Invalid data"

	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, invalid, err.Error())
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.WriteServiceError(w, h.logger, err, invalid)
		return
	}

	userID, err := common.ParseUserID(req.UserID)
	if err != nil {
		httpx.WriteServiceError(w, h.logger, err, invalid)
		return
	}

	params := types.UpdatePreferencesParams{
		HasCompletedOnboarding: req.HasCompletedOnboarding,
		OnboardingStep:         req.OnboardingStep,
		SelectedPlanID:         req.SelectedPlanID,
	}
	if req.OnboardingCompletedAt != nil {
		at, err := time.Parse(time.RFC3339, *req.OnboardingCompletedAt)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, invalid, map[string]string{"onboarding_completed_at": "must be an RFC 3339 timestamp"})
			return
		}
		params.OnboardingCompletedAt = &at
	}

	if err := h.svc.Update(r.Context(), userID, params); err != nil {
		httpx.WriteServiceError(w, h.logger, err, invalid)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
