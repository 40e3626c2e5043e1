package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/httpx"
)

const (
	SignatureHeader = "Stripe-Signature"
	blockedMessage  = "Customer already has an active subscription"
)

// WebhookHandler serves POST /api/stripe/webhook.
type WebhookHandler struct {
	events     EventHandler
	secret     string
	configured bool
	logger     *slog.Logger
}

// NewWebhookHandler builds the receiver. configured is false when the billing
// secret key or webhook secret is missing, in which case every delivery fails.
func NewWebhookHandler(events EventHandler, webhookSecret string, configured bool, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{events: events, secret: webhookSecret, configured: configured, logger: logger}
}

type blockedBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.configured || h.secret == "" {
		h.logger.ErrorContext(r.Context(), "Billing configuration missing")
		httpx.WriteError(w, http.StatusInternalServerError, "Stripe configuration missing", nil)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, httpx.MaxBodyBytes))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid payload", nil)
		return
	}

	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		h.logger.WarnContext(r.Context(), "Missing stripe-signature header")
		httpx.WriteError(w, http.StatusBadRequest, "Missing signature", nil)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "Signature verification failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusBadRequest, "Invalid signature", nil)
		return
	}

	l := h.logger.With(slog.String("eventID", event.ID), slog.String("type", string(event.Type)))
	l.InfoContext(r.Context(), "Event received")

	outcome, err := h.events.HandleEvent(r.Context(), event)
	switch {
	case errors.Is(err, ErrInvalidSession):
		httpx.WriteError(w, http.StatusBadRequest, "Invalid session data", nil)
	case errors.Is(err, types.ErrInvalidPayload):
		l.WarnContext(r.Context(), "Malformed event object", slog.Any("error", err))
		httpx.WriteError(w, http.StatusBadRequest, "Invalid payload", nil)
	case err != nil:
		l.ErrorContext(r.Context(), "Webhook error", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "Webhook handler failed", err.Error())
	case outcome == OutcomeBlocked:
		httpx.WriteJSON(w, http.StatusOK, blockedBody{Status: "blocked", Message: blockedMessage})
	default:
		httpx.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
