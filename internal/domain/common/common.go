// Package common holds the user-id handling every user endpoint shares.
package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/httpx"
)

// ErrMissingUserID marks a request without a user_id.
var ErrMissingUserID = fmt.Errorf("user_id is required: %w", types.ErrBadRequest)

// UserChecker confirms a user id names a stored user. Implementations wrap
// types.ErrNotFound when it does not.
type UserChecker interface {
	EnsureUser(ctx context.Context, userID uuid.UUID) error
}

// ParseUserID validates a raw user id.
func ParseUserID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, ErrMissingUserID
	}
	if err := httpx.ValidateVar("user_id", raw, "uuid"); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(raw)
}

// UserIDFromQuery reads and validates ?user_id=, writing the 400 itself when it
// fails. missingMsg and invalidMsg are the endpoint's wording.
func UserIDFromQuery(w http.ResponseWriter, r *http.Request, missingMsg, invalidMsg string) (uuid.UUID, bool) {
	id, err := ParseUserID(r.URL.Query().Get("user_id"))
	if err == nil {
		return id, true
	}
	var verr *httpx.ValidationError
	switch {
	case errors.Is(err, ErrMissingUserID):
		httpx.WriteError(w, http.StatusBadRequest, missingMsg, nil)
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusBadRequest, invalidMsg, verr.Fields)
	default:
		httpx.WriteError(w, http.StatusBadRequest, invalidMsg, err.Error())
	}
	return uuid.Nil, false
}
