package account

import (
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/rocketstart-api/internal/domain/common"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/httpx"
)

const invalidData = "Invalid data"

// Handler serves POST /api/user/account.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

func NewHandler(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req types.AccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, invalidData, err.Error())
		return
	}

	if req.Action != types.AccountReactivate {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid action", nil)
		return
	}

	userID, err := common.ParseUserID(req.UserID)
	if err != nil {
		httpx.WriteServiceError(w, h.logger, err, invalidData)
		return
	}

	if err := h.svc.Reactivate(r.Context(), userID); err != nil {
		httpx.WriteServiceError(w, h.logger, err, invalidData)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, types.AccountResponse{Success: true, Message: "Account reactivated successfully"})
}
