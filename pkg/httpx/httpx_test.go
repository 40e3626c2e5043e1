package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/logger"
)

type request struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Step   *int   `json:"onboarding_step" validate:"omitempty,min=1,max=10"`
}

func TestValidate(t *testing.T) {
	step := 11
	err := Validate(request{UserID: "not-a-uuid", Step: &step})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be a valid UUID", verr.Fields["user_id"])
	assert.Equal(t, "must be at most 10", verr.Fields["onboarding_step"])
	assert.ErrorIs(t, err, types.ErrBadRequest)

	assert.NoError(t, Validate(request{UserID: "0b7ad2e3-0d8c-4f2a-9c43-3c1b8c4c6a11"}))
}

func TestValidateVar(t *testing.T) {
	err := ValidateVar("user_id", "", "required,uuid")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["user_id"])
}

func TestDecodeJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"user_id":"x"}`))
	var dst request
	require.NoError(t, DecodeJSON(r, &dst))
	assert.Equal(t, "x", dst.UserID)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.ErrorIs(t, DecodeJSON(r, &dst), types.ErrBadRequest)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.ErrorIs(t, DecodeJSON(r, &dst), types.ErrBadRequest)
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"not found is generic", fmt.Errorf("user: %w", types.ErrNotFound), http.StatusBadRequest, "Invalid user ID"},
		{"wrong state", types.ErrAccountNotDeleted, http.StatusBadRequest, "Account is not deleted"},
		{"validation", &ValidationError{Fields: map[string]string{"user_id": "is required"}}, http.StatusBadRequest, "Invalid parameters"},
		{"downstream", fmt.Errorf("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteServiceError(rec, logger.Discard(), tt.err, "Invalid parameters")

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.msg, body.Error)
		})
	}
}
