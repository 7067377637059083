/**
 * @description
 * This file contains the HTTP handlers for inbound provider callbacks: the
 * payment settlement webhook and the asynchronous disbursement callback.
 * Both providers deliver at-least-once, so these handlers acknowledge
 * duplicates with 200 and only signal an error for payloads that genuinely
 * cannot be processed.
 */

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/tipstream/ledger-service/internal/app"
	"github.com/tipstream/ledger-service/internal/domain"
	"github.com/tipstream/ledger-service/internal/store"
)

// WebhookHandler holds dependencies for the provider callback handlers.
type WebhookHandler struct {
	service           *app.Service
	paymentToken      string
	disbursementToken string
}

// NewWebhookHandler creates a new WebhookHandler. paymentToken may be empty,
// in which case the payment webhook skips the shared-secret check;
// disbursementToken must be set.
func NewWebhookHandler(service *app.Service, paymentToken, disbursementToken string) *WebhookHandler {
	return &WebhookHandler{
		service:           service,
		paymentToken:      paymentToken,
		disbursementToken: disbursementToken,
	}
}

// HandlePaymentWebhook handles POST /webhooks/payments. The body is decoded
// twice: first into an envelope to learn the event kind, then into the
// kind-specific shape.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if !callbackTokenValid(r, h.paymentToken) {
		respondWithError(w, http.StatusUnauthorized, "invalid callback token")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	var envelope domain.PaymentWebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed webhook payload")
		return
	}

	var notice domain.SettlementNotice
	switch envelope.Event {
	case domain.PaymentEventPayment:
		var n domain.PaymentUpdatedNotification
		if err := json.Unmarshal(body, &n); err != nil {
			respondWithError(w, http.StatusBadRequest, "malformed payment.updated payload")
			return
		}
		notice, err = n.Normalize()
	case domain.PaymentEventQRPayment:
		var n domain.QRPaymentNotification
		if err := json.Unmarshal(body, &n); err != nil {
			respondWithError(w, http.StatusBadRequest, "malformed qr.payment payload")
			return
		}
		notice, err = n.Normalize()
	default:
		log.Printf("level=info component=api flow=webhook msg=\"ignoring unknown payment event\" event=%q", envelope.Event)
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.service.ProcessSettlementNotice(r.Context(), notice)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"applied": outcome.Settled,
		})
	case errors.Is(err, store.ErrDonationNotFound):
		respondWithError(w, http.StatusNotFound, "no donation matches notification")
	case errors.Is(err, app.ErrUnknownProviderStatus),
		errors.Is(err, app.ErrAmountMismatch),
		errors.Is(err, domain.ErrMalformedNotification):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("level=error component=api flow=webhook msg=\"settlement processing failed\" error=%v", err)
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// HandleDisbursementCallback handles POST /webhooks/disbursements. The
// shared-secret header is mandatory here since callbacks move funds state.
func (h *WebhookHandler) HandleDisbursementCallback(w http.ResponseWriter, r *http.Request) {
	if h.disbursementToken == "" || !callbackTokenValid(r, h.disbursementToken) {
		respondWithError(w, http.StatusUnauthorized, "invalid callback token")
		return
	}

	var cb domain.DisbursementCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed callback payload")
		return
	}

	err := h.service.ProcessDisbursementCallback(r.Context(), cb)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, store.ErrWithdrawalNotFound):
		respondWithError(w, http.StatusNotFound, "no withdrawal matches callback")
	case errors.Is(err, app.ErrInvalidRequest), errors.Is(err, app.ErrUnknownProviderStatus):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("level=error component=api flow=webhook msg=\"disbursement callback failed\" error=%v", err)
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
