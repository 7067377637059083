/**
 * @description
 * This file defines the typed shapes of inbound provider notifications. The
 * payment provider delivers at-least-once, possibly duplicated and reordered
 * webhooks, so every shape here is treated as adversarial input: each event
 * kind decodes into its own struct and is rejected on mismatch instead of
 * being parsed dynamically.
 */

package domain

import (
	"errors"
	"strings"
)

// Payment webhook event kinds the provider is known to send.
const (
	PaymentEventPayment   = "payment.updated"
	PaymentEventQRPayment = "qr.payment"
)

// Provider payment statuses as they appear on the wire.
const (
	ProviderStatusPaid    = "PAID"
	ProviderStatusFailed  = "FAILED"
	ProviderStatusExpired = "EXPIRED"
)

// PaymentWebhookEnvelope carries only the event discriminator; the body is
// re-decoded into the kind-specific shape once the kind is known.
type PaymentWebhookEnvelope struct {
	Event string `json:"event"`
}

// PaymentUpdatedNotification is the shape of a 'payment.updated' webhook
// (card, bank transfer and e-wallet payments).
type PaymentUpdatedNotification struct {
	Event         string `json:"event"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	MerchantRef   string `json:"merchant_ref"`
	Amount        int64  `json:"amount"`
}

// QRPaymentNotification is the shape of a 'qr.payment' webhook. QR sessions
// carry their own id in addition to the provider transaction id; the merchant
// reference is frequently absent.
type QRPaymentNotification struct {
	Event         string `json:"event"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	QRID          string `json:"qr_id"`
	MerchantRef   string `json:"merchant_ref"`
	Amount        int64  `json:"amount"`
}

// SettlementNotice is the normalized form both webhook shapes reduce to. Keys
// are listed in resolution priority order: provider payment id first, then QR
// session id, then the merchant-chosen reference.
type SettlementNotice struct {
	Status            string
	ProviderPaymentID string
	ProviderQRID      string
	MerchantRef       string
	Amount            int64
}

var ErrMalformedNotification = errors.New("malformed provider notification")

// Normalize validates a payment.updated payload and reduces it to a
// SettlementNotice.
func (n PaymentUpdatedNotification) Normalize() (SettlementNotice, error) {
	status := strings.ToUpper(strings.TrimSpace(n.Status))
	if status == "" {
		return SettlementNotice{}, ErrMalformedNotification
	}
	if strings.TrimSpace(n.TransactionID) == "" && strings.TrimSpace(n.MerchantRef) == "" {
		return SettlementNotice{}, ErrMalformedNotification
	}
	return SettlementNotice{
		Status:            status,
		ProviderPaymentID: strings.TrimSpace(n.TransactionID),
		MerchantRef:       strings.TrimSpace(n.MerchantRef),
		Amount:            n.Amount,
	}, nil
}

// Normalize validates a qr.payment payload and reduces it to a
// SettlementNotice.
func (n QRPaymentNotification) Normalize() (SettlementNotice, error) {
	status := strings.ToUpper(strings.TrimSpace(n.Status))
	if status == "" {
		return SettlementNotice{}, ErrMalformedNotification
	}
	if strings.TrimSpace(n.TransactionID) == "" && strings.TrimSpace(n.QRID) == "" {
		return SettlementNotice{}, ErrMalformedNotification
	}
	return SettlementNotice{
		Status:            status,
		ProviderPaymentID: strings.TrimSpace(n.TransactionID),
		ProviderQRID:      strings.TrimSpace(n.QRID),
		MerchantRef:       strings.TrimSpace(n.MerchantRef),
		Amount:            n.Amount,
	}, nil
}

// Disbursement callback statuses.
const (
	DisbursementCallbackCompleted = "COMPLETED"
	DisbursementCallbackFailed    = "FAILED"
)

// DisbursementCallback is the shape of the provider's asynchronous
// disbursement notification. ExternalID echoes the withdrawal id we supplied
// at submission time.
type DisbursementCallback struct {
	Status         string `json:"status"`
	ExternalID     string `json:"external_id"`
	DisbursementID string `json:"disbursement_id"`
	FailureCode    string `json:"failure_code,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
}
