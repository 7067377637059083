package domain

import (
	"time"

	"github.com/google/uuid"
)

// Movement directions. A credit increases the account balance, a debit
// decreases it.
const (
	MovementCredit = "credit"
	MovementDebit  = "debit"
)

// Reference kinds link a movement back to the business event that caused it.
const (
	ReferenceDonation   = "donation"
	ReferenceWithdrawal = "withdrawal"
	ReferenceAdjustment = "adjustment"
)

// LedgerMovement is an immutable, signed record of money entering or leaving
// an account. Rows are append-only: they are never updated or deleted, and the
// table is the sole source of truth for account balances.
type LedgerMovement struct {
	ID            uuid.UUID `json:"id"`
	AccountID     uuid.UUID `json:"account_id"`
	Direction     string    `json:"direction"` // 'credit' | 'debit'
	Amount        int64     `json:"amount"`    // smallest currency unit, always > 0
	Reason        string    `json:"reason"`
	ReferenceID   uuid.UUID `json:"reference_id"`
	ReferenceKind string    `json:"reference_kind"` // 'donation' | 'withdrawal' | 'adjustment'
	CreatedAt     time.Time `json:"created_at"`
}

// Revenue entry kinds for platform earnings recorded alongside completed
// withdrawals.
const (
	RevenueFixedFee      = "fixed_fee"
	RevenuePercentageFee = "percentage_fee"
)

// RevenueEntry records the platform's own earnings. Append-only; it carries no
// invariant link to any account balance.
type RevenueEntry struct {
	ID          uuid.UUID `json:"id"`
	Amount      int64     `json:"amount"`
	Kind        string    `json:"kind"` // 'fixed_fee' | 'percentage_fee'
	ReferenceID uuid.UUID `json:"reference_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// AdjustmentRequest is the DTO for the internal ops endpoint that records a
// manual ledger correction.
type AdjustmentRequest struct {
	AccountID uuid.UUID `json:"account_id"`
	Direction string    `json:"direction"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
}
