package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agentdesk/internal/core"
	"agentdesk/internal/types"
)

// maxWebhookBodySize bounds incoming Stripe webhook payloads (1 MB).
const maxWebhookBodySize = 1 << 20

// PlanSyncer applies a verified Stripe webhook payload to agency plan state.
// Mirrors the concrete billing.Service methods used by this handler.
type PlanSyncer interface {
	VerifySignature(payload []byte, sigHeader string) error
	ProcessEvent(ctx context.Context, payload []byte) error
}

// BillingWebhookHandler receives Stripe webhook events. The route is exempt
// from subject resolution; the Stripe signature is the authentication.
type BillingWebhookHandler struct {
	billing PlanSyncer
	logger  *slog.Logger
}

// NewBillingWebhookHandler creates a new BillingWebhookHandler.
func NewBillingWebhookHandler(billing PlanSyncer, l *slog.Logger) *BillingWebhookHandler {
	if l == nil {
		l = slog.Default()
	}
	return &BillingWebhookHandler{billing: billing, logger: l}
}

// RegisterRoutes mounts the webhook route on the provided chi.Router.
func (h *BillingWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/webhook", h.Handle)
}

// Handle processes one incoming Stripe webhook delivery:
//
//  1. Reads the body with a size limit.
//  2. Verifies the Stripe-Signature header.
//  3. Applies any plan change the event implies.
//
// Processing failures after a valid signature are logged and acknowledged
// with 200 anyway: returning an error would make Stripe retry a delivery
// that will fail identically, and the failure is already visible in logs.
func (h *BillingWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"failed to read request body",
			err,
		))
		return
	}

	if err := h.billing.VerifySignature(payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, err)
		return
	}

	if err := h.billing.ProcessEvent(r.Context(), payload); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed", "error", err)
	}

	w.WriteHeader(http.StatusOK)
}
