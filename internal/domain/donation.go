/**
 * @description
 * This file defines the donation models for the ledger-service. A donation is
 * created in 'pending' when a supporter initiates a payment and transitions to
 * 'paid' exactly once, driven only by the settlement pipeline.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Donation statuses. 'paid' is reached at most once; 'failed' and 'expired'
// are terminal states reported by the payment provider.
const (
	DonationPending = "pending"
	DonationPaid    = "paid"
	DonationFailed  = "failed"
	DonationExpired = "expired"
)

// Donation represents a single support payment to a creator.
// This struct maps directly to the `donations` table in the database.
type Donation struct {
	ID                   uuid.UUID  `json:"id"`
	AccountID            uuid.UUID  `json:"account_id"`
	DonorName            string     `json:"donor_name"`
	Message              string     `json:"message"`
	Amount               int64      `json:"amount"` // smallest currency unit
	Status               string     `json:"status"`
	MerchantRef          string     `json:"merchant_ref"`
	ProviderPaymentID    *string    `json:"provider_payment_id,omitempty"`
	ProviderQRID         *string    `json:"provider_qr_id,omitempty"`
	MediaURL             *string    `json:"media_url,omitempty"`
	MediaDurationSeconds *int       `json:"media_duration_seconds,omitempty"`
	SettledAt            *time.Time `json:"settled_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// CreateDonationRequest is the DTO for initiating a support payment. The
// merchant reference is generated server-side and returned to the payment page
// so the provider can echo it back in settlement notifications.
type CreateDonationRequest struct {
	CreatorHandle        string `json:"creator_handle"`
	DonorName            string `json:"donor_name"`
	Message              string `json:"message"`
	Amount               int64  `json:"amount"`
	MediaURL             string `json:"media_url,omitempty"`
	MediaDurationSeconds int    `json:"media_duration_seconds,omitempty"`
}
