package types

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity provider principal as mirrored in the relational store.
type User struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	DisplayName   *string    `json:"display_name,omitempty"`
	IsDeleted     bool       `json:"is_deleted"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	ReactivatedAt *time.Time `json:"reactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AccountAction names the operations accepted by the account endpoint.
type AccountAction string

// AccountReactivate is the only action. Deletion is not exposed over HTTP.
const AccountReactivate AccountAction = "reactivate"

// AccountRequest is the body of POST /api/user/account.
type AccountRequest struct {
	Action AccountAction `json:"action" validate:"required"`
	UserID string        `json:"user_id" validate:"required,uuid"`
}

// AccountResponse is returned after a successful account action.
type AccountResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
