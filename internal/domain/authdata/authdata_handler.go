package authdata

import (
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/rocketstart-api/internal/domain/common"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/httpx"
)

// Handler serves GET /api/user/auth-data.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

func NewHandler(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromQuery(w, r, "user_id parameter is required", "Validation failed")
	if !ok {
		return
	}

	data, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		httpx.WriteServiceError(w, h.logger, err, "Validation failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, types.AuthDataResponse{Success: true, Data: data})
}
