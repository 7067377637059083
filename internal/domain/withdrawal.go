/**
 * @description
 * This file defines the withdrawal models for the ledger-service. A withdrawal
 * moves funds from a creator's balance to an external bank or e-wallet
 * destination via the disbursement provider.
 *
 * State machine: pending -> processing -> completed | rejected. The account is
 * debited when the request is created; every path that ends in 'rejected'
 * issues a compensating credit so a failed withdrawal is balance-neutral.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Withdrawal statuses.
const (
	WithdrawalPending    = "pending"
	WithdrawalProcessing = "processing"
	WithdrawalCompleted  = "completed"
	WithdrawalRejected   = "rejected"
)

// Withdrawal represents a creator's request to disburse accumulated funds.
// This struct maps directly to the `withdrawals` table in the database.
type Withdrawal struct {
	ID                      uuid.UUID  `json:"id"`
	AccountID               uuid.UUID  `json:"account_id"`
	Amount                  int64      `json:"amount"` // smallest currency unit
	Status                  string     `json:"status"`
	ProviderDisbursementID  *string    `json:"provider_disbursement_id,omitempty"`
	DestinationBankCode     string     `json:"destination_bank_code"`
	DestinationAccountNo    string     `json:"destination_account_no"`
	DestinationHolderName   string     `json:"destination_holder_name"`
	Notes                   *string    `json:"notes,omitempty"`
	ProcessedAt             *time.Time `json:"processed_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
}

// WithdrawalRequest is the DTO for the dashboard endpoint that initiates a
// withdrawal.
type WithdrawalRequest struct {
	Amount                int64  `json:"amount"` // smallest currency unit
	DestinationBankCode   string `json:"destination_bank_code"`
	DestinationAccountNo  string `json:"destination_account_no"`
	DestinationHolderName string `json:"destination_holder_name"`
}
