package trial

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/rocketstart-api/internal/domain/common"
	"github.com/FACorreiaa/rocketstart-api/pkg/httpx"
)

// Handler serves GET /api/user/trial.
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

	status, err := h.svc.Status(r.Context(), userID)
	if errors.Is(err, ErrLookup) {
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to fetch trial status", nil)
		return
	}
	if err != nil {
		httpx.WriteServiceError(w, h.logger, err, "Invalid parameters")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, status)
}
