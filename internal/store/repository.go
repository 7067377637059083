/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access operations required by the ledger-service. The interface decouples
 * the settlement and disbursement logic from PostgreSQL so the business rules
 * can be exercised against stubs in tests.
 *
 * Every money-mutating method runs inside a single database transaction with
 * an explicit conditional-update guard on the entity being transitioned, so
 * concurrent duplicate notifications are serialized per-entity and at most one
 * credit/debit is applied per real-world event.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tipstream/ledger-service/internal/domain"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrDonationNotFound   = errors.New("donation not found")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrGoalNotFound       = errors.New("goal not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
)

// SettlementResult reports what a SettleDonation call changed. Applied is
// false when the donation had already been transitioned by a concurrent or
// earlier delivery; in that case nothing else was written.
type SettlementResult struct {
	Applied  bool
	Donation *domain.Donation
	// Goal is the active goal after the progress increment, nil when the
	// recipient has no active goal.
	Goal *domain.Goal
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account methods
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindAccountByHandle(ctx context.Context, handle string) (*domain.Account, error)
	GetAlertSettings(ctx context.Context, accountID uuid.UUID) (*domain.AlertSettings, error)

	// Donation methods. The three finders back the settlement pipeline's
	// identifier fallback order.
	CreateDonation(ctx context.Context, donation *domain.Donation) error
	FindDonationByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.Donation, error)
	FindDonationByProviderQRID(ctx context.Context, providerQRID string) (*domain.Donation, error)
	FindDonationByMerchantRef(ctx context.Context, merchantRef string) (*domain.Donation, error)
	ListRecentDonations(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Donation, error)

	// SettleDonation atomically transitions the donation to 'paid' (guarded on
	// current status), credits the recipient's ledger, and advances the active
	// goal if one exists.
	SettleDonation(ctx context.Context, donationID uuid.UUID, providerPaymentID string) (*SettlementResult, error)
	// MarkDonationTerminal transitions a pending donation to 'failed' or
	// 'expired'. Returns false when the donation already left 'pending'.
	MarkDonationTerminal(ctx context.Context, donationID uuid.UUID, status string) (bool, error)

	// Withdrawal methods
	// CreateWithdrawal validates sufficient balance under a row lock, inserts
	// the pending request, and debits the account, all in one transaction.
	CreateWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error
	FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error)
	ListWithdrawalsByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Withdrawal, error)
	// MarkWithdrawalProcessing transitions pending -> processing and stores the
	// provider's disbursement id. Returns false when the request is no longer
	// pending.
	MarkWithdrawalProcessing(ctx context.Context, withdrawalID uuid.UUID, providerDisbursementID string) (bool, error)
	// CompleteWithdrawal transitions a pending or processing withdrawal to
	// completed and records the platform's fixed and percentage revenue
	// entries. Returns applied=false when the withdrawal is already terminal.
	CompleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID, fixedFee, percentageFee int64) (*domain.Withdrawal, bool, error)
	// RejectWithdrawalWithRefund transitions pending|processing -> rejected and
	// issues the compensating credit in the same transaction. Returns
	// applied=false when the request is already terminal.
	RejectWithdrawalWithRefund(ctx context.Context, withdrawalID uuid.UUID, notes string) (*domain.Withdrawal, bool, error)

	// Goal methods
	FindActiveGoalByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.Goal, error)
	StartGoal(ctx context.Context, accountID uuid.UUID, title string, targetAmount int64) (*domain.Goal, error)
	CloseGoal(ctx context.Context, goalID, accountID uuid.UUID, status string) (*domain.Goal, error)

	// RecordAdjustment appends a manual correction movement and applies it to
	// the cached balance atomically.
	RecordAdjustment(ctx context.Context, accountID uuid.UUID, direction string, amount int64, reason string) (*domain.LedgerMovement, error)
}
