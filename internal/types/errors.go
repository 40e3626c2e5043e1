package types

import "errors"

// Domain specific errors shared by repositories, services and handlers.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")

	// Billing and account state errors.
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrInvalidPayload        = errors.New("invalid webhook payload")
	ErrAccountNotDeleted     = errors.New("account is not deleted")
	ErrDuplicateSubscription = errors.New("customer already has an active subscription")
)
