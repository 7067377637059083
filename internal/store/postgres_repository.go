/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all SQL for accounts, donations, withdrawals, goals,
 * ledger movements and revenue entries.
 *
 * Money-mutating methods follow the same transactional shape: begin, apply a
 * conditional status UPDATE guard on the entity being transitioned, record the
 * ledger movement through the engine in ledger.go, commit. RowsAffected on the
 * guard decides whether anything else in the transaction may run, which is
 * what serializes concurrent duplicate notifications for the same entity.
 *
 * @dependencies
 * - context, fmt, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tipstream/ledger-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const donationColumns = `id, account_id, donor_name, message, amount, status, merchant_ref,
	provider_payment_id, provider_qr_id, media_url, media_duration_seconds, settled_at, created_at`

const withdrawalColumns = `id, account_id, amount, status, provider_disbursement_id,
	destination_bank_code, destination_account_no, destination_holder_name, notes, processed_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(row rowScanner) (*domain.Donation, error) {
	var d domain.Donation
	err := row.Scan(
		&d.ID, &d.AccountID, &d.DonorName, &d.Message, &d.Amount, &d.Status, &d.MerchantRef,
		&d.ProviderPaymentID, &d.ProviderQRID, &d.MediaURL, &d.MediaDurationSeconds, &d.SettledAt, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanWithdrawal(row rowScanner) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	err := row.Scan(
		&w.ID, &w.AccountID, &w.Amount, &w.Status, &w.ProviderDisbursementID,
		&w.DestinationBankCode, &w.DestinationAccountNo, &w.DestinationHolderName,
		&w.Notes, &w.ProcessedAt, &w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func scanGoal(row rowScanner) (*domain.Goal, error) {
	var g domain.Goal
	err := row.Scan(
		&g.ID, &g.AccountID, &g.Title, &g.TargetAmount, &g.CurrentAmount,
		&g.Status, &g.StartedAt, &g.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// FindAccountByID retrieves a creator account by its internal id.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, handle, display_name, balance, min_alert_amount, alerts_enabled, created_at, updated_at
		FROM accounts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&account.ID, &account.Handle, &account.DisplayName, &account.Balance,
		&account.MinAlertAmount, &account.AlertsEnabled, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindAccountByHandle retrieves a creator account by its public handle.
func (r *PostgresRepository) FindAccountByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, handle, display_name, balance, min_alert_amount, alerts_enabled, created_at, updated_at
		FROM accounts WHERE lower(handle) = lower($1)`
	err := r.db.QueryRow(ctx, query, handle).Scan(
		&account.ID, &account.Handle, &account.DisplayName, &account.Balance,
		&account.MinAlertAmount, &account.AlertsEnabled, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetAlertSettings returns the presentation gates the overlay evaluates for an
// account. Read at presentation time, not enqueue time, so configuration
// changes apply to already-queued alerts.
func (r *PostgresRepository) GetAlertSettings(ctx context.Context, accountID uuid.UUID) (*domain.AlertSettings, error) {
	var settings domain.AlertSettings
	query := `SELECT min_alert_amount, alerts_enabled FROM accounts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(&settings.MinAlertAmount, &settings.AlertsEnabled)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &settings, nil
}

// CreateDonation inserts a new pending donation.
func (r *PostgresRepository) CreateDonation(ctx context.Context, donation *domain.Donation) error {
	query := `
		INSERT INTO donations (id, account_id, donor_name, message, amount, status, merchant_ref,
			provider_payment_id, provider_qr_id, media_url, media_duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`
	_, err := r.db.Exec(ctx, query,
		donation.ID, donation.AccountID, donation.DonorName, donation.Message, donation.Amount,
		donation.Status, donation.MerchantRef, donation.ProviderPaymentID, donation.ProviderQRID,
		donation.MediaURL, donation.MediaDurationSeconds,
	)
	return err
}

// FindDonationByProviderPaymentID resolves a donation by the provider's
// payment/transaction id.
func (r *PostgresRepository) FindDonationByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE provider_payment_id = $1`
	donation, err := scanDonation(r.db.QueryRow(ctx, query, providerPaymentID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDonationNotFound
		}
		return nil, err
	}
	return donation, nil
}

// FindDonationByProviderQRID resolves a donation by the provider's QR session id.
func (r *PostgresRepository) FindDonationByProviderQRID(ctx context.Context, providerQRID string) (*domain.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE provider_qr_id = $1`
	donation, err := scanDonation(r.db.QueryRow(ctx, query, providerQRID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDonationNotFound
		}
		return nil, err
	}
	return donation, nil
}

// FindDonationByMerchantRef resolves a donation by the merchant-chosen reference.
func (r *PostgresRepository) FindDonationByMerchantRef(ctx context.Context, merchantRef string) (*domain.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE merchant_ref = $1`
	donation, err := scanDonation(r.db.QueryRow(ctx, query, merchantRef))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDonationNotFound
		}
		return nil, err
	}
	return donation, nil
}

// ListRecentDonations retrieves a creator's most recent settled donations.
func (r *PostgresRepository) ListRecentDonations(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Donation, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := `SELECT ` + donationColumns + `
		FROM donations
		WHERE account_id = $1 AND status = 'paid'
		ORDER BY settled_at DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donations []domain.Donation
	for rows.Next() {
		donation, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, *donation)
	}
	return donations, rows.Err()
}

// SettleDonation applies the settlement transaction: flip the donation to
// 'paid' guarded on its current status, credit the recipient's ledger, and
// advance the recipient's active goal. Exactly one concurrent delivery wins
// the conditional update; the rest observe Applied=false and write nothing.
func (r *PostgresRepository) SettleDonation(ctx context.Context, donationID uuid.UUID, providerPaymentID string) (*SettlementResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin settlement tx: %w", err)
	}
	defer tx.Rollback(ctx)

	settleQuery := `
		UPDATE donations
		SET status = 'paid',
			settled_at = NOW(),
			provider_payment_id = COALESCE(NULLIF($2, ''), provider_payment_id)
		WHERE id = $1 AND status <> 'paid'
		RETURNING ` + donationColumns
	donation, err := scanDonation(tx.QueryRow(ctx, settleQuery, donationID, providerPaymentID))
	if err != nil {
		if err != pgx.ErrNoRows {
			return nil, fmt.Errorf("transition donation to paid: %w", err)
		}
		// Lost the guard: either already paid or gone. Re-read outside the
		// conditional to tell the caller which.
		existing, findErr := scanDonation(tx.QueryRow(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = $1`, donationID))
		if findErr != nil {
			if findErr == pgx.ErrNoRows {
				return nil, ErrDonationNotFound
			}
			return nil, findErr
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return nil, commitErr
		}
		return &SettlementResult{Applied: false, Donation: existing}, nil
	}

	reason := fmt.Sprintf("Donation from %s", donation.DonorName)
	if _, err := r.recordMovement(ctx, tx, donation.AccountID, domain.MovementCredit, donation.Amount,
		reason, donation.ID, domain.ReferenceDonation); err != nil {
		return nil, err
	}

	goalQuery := `
		UPDATE goals
		SET current_amount = current_amount + $1
		WHERE account_id = $2 AND status = 'active'
		RETURNING id, account_id, title, target_amount, current_amount, status, started_at, ended_at
	`
	goal, err := scanGoal(tx.QueryRow(ctx, goalQuery, donation.Amount, donation.AccountID))
	if err != nil {
		if err != pgx.ErrNoRows {
			return nil, fmt.Errorf("advance goal progress: %w", err)
		}
		goal = nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &SettlementResult{Applied: true, Donation: donation, Goal: goal}, nil
}

// MarkDonationTerminal transitions a pending donation to a provider-reported
// terminal status. No money moves on this path.
func (r *PostgresRepository) MarkDonationTerminal(ctx context.Context, donationID uuid.UUID, status string) (bool, error) {
	if status != domain.DonationFailed && status != domain.DonationExpired {
		return false, fmt.Errorf("invalid terminal donation status %q", status)
	}

	query := `UPDATE donations SET status = $2 WHERE id = $1 AND status = 'pending'`
	result, err := r.db.Exec(ctx, query, donationID, status)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// CreateWithdrawal inserts the pending withdrawal and debits the account in
// one transaction. The balance check holds the account row lock so concurrent
// requests cannot both pass validation against the same funds.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin withdrawal tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, withdrawal.AccountID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrAccountNotFound
		}
		return err
	}
	if balance < withdrawal.Amount {
		return ErrInsufficientFunds
	}

	insertQuery := `
		INSERT INTO withdrawals (id, account_id, amount, status,
			destination_bank_code, destination_account_no, destination_holder_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	if _, err := tx.Exec(ctx, insertQuery,
		withdrawal.ID, withdrawal.AccountID, withdrawal.Amount, withdrawal.Status,
		withdrawal.DestinationBankCode, withdrawal.DestinationAccountNo, withdrawal.DestinationHolderName,
	); err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}

	if _, err := r.recordMovement(ctx, tx, withdrawal.AccountID, domain.MovementDebit, withdrawal.Amount,
		"Withdrawal request", withdrawal.ID, domain.ReferenceWithdrawal); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindWithdrawalByID retrieves a withdrawal request by id.
func (r *PostgresRepository) FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	withdrawal, err := scanWithdrawal(r.db.QueryRow(ctx, query, withdrawalID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return withdrawal, nil
}

// ListWithdrawalsByAccountID retrieves a creator's withdrawal history.
func (r *PostgresRepository) ListWithdrawalsByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Withdrawal, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := `SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var withdrawals []domain.Withdrawal
	for rows.Next() {
		withdrawal, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, *withdrawal)
	}
	return withdrawals, rows.Err()
}

// MarkWithdrawalProcessing stores the provider disbursement id and moves the
// request to 'processing', guarded on it still being 'pending'.
func (r *PostgresRepository) MarkWithdrawalProcessing(ctx context.Context, withdrawalID uuid.UUID, providerDisbursementID string) (bool, error) {
	query := `
		UPDATE withdrawals
		SET status = 'processing', provider_disbursement_id = $2
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.db.Exec(ctx, query, withdrawalID, providerDisbursementID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// CompleteWithdrawal moves a non-terminal withdrawal to 'completed' and
// records the platform's revenue entries for the withdrawal fees. The
// request-time debit already accounts for the outflow, so no further ledger
// movement is written here. The guard accepts 'pending' as well as
// 'processing': the provider callback is keyed by external id and must be
// able to reconcile a payout whose processing transition was never persisted.
// Duplicate callbacks lose the guard and return applied=false.
func (r *PostgresRepository) CompleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID, fixedFee, percentageFee int64) (*domain.Withdrawal, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin completion tx: %w", err)
	}
	defer tx.Rollback(ctx)

	completeQuery := `
		UPDATE withdrawals
		SET status = 'completed', processed_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
		RETURNING ` + withdrawalColumns
	withdrawal, err := scanWithdrawal(tx.QueryRow(ctx, completeQuery, withdrawalID))
	if err != nil {
		if err != pgx.ErrNoRows {
			return nil, false, fmt.Errorf("transition withdrawal to completed: %w", err)
		}
		existing, findErr := r.FindWithdrawalByID(ctx, withdrawalID)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, false, nil
	}

	revenueQuery := `
		INSERT INTO revenue_entries (id, amount, kind, reference_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	if fixedFee > 0 {
		if _, err := tx.Exec(ctx, revenueQuery, uuid.New(), fixedFee, domain.RevenueFixedFee, withdrawalID); err != nil {
			return nil, false, fmt.Errorf("record fixed fee revenue: %w", err)
		}
	}
	if percentageFee > 0 {
		if _, err := tx.Exec(ctx, revenueQuery, uuid.New(), percentageFee, domain.RevenuePercentageFee, withdrawalID); err != nil {
			return nil, false, fmt.Errorf("record percentage fee revenue: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return withdrawal, true, nil
}

// RejectWithdrawalWithRefund moves a non-terminal withdrawal to 'rejected' and
// credits the debited amount back in the same transaction. Safe to call from
// both the synchronous submission-failure path (request still 'pending') and
// the asynchronous provider FAILED callback (request 'processing'); a request
// that is already terminal loses the guard and nothing is written.
func (r *PostgresRepository) RejectWithdrawalWithRefund(ctx context.Context, withdrawalID uuid.UUID, notes string) (*domain.Withdrawal, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin rejection tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rejectQuery := `
		UPDATE withdrawals
		SET status = 'rejected', notes = $2, processed_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
		RETURNING ` + withdrawalColumns
	withdrawal, err := scanWithdrawal(tx.QueryRow(ctx, rejectQuery, withdrawalID, notes))
	if err != nil {
		if err != pgx.ErrNoRows {
			return nil, false, fmt.Errorf("transition withdrawal to rejected: %w", err)
		}
		existing, findErr := r.FindWithdrawalByID(ctx, withdrawalID)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, false, nil
	}

	if _, err := r.recordMovement(ctx, tx, withdrawal.AccountID, domain.MovementCredit, withdrawal.Amount,
		"Withdrawal refund", withdrawal.ID, domain.ReferenceWithdrawal); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return withdrawal, true, nil
}

// FindActiveGoalByAccountID retrieves the account's single active goal.
func (r *PostgresRepository) FindActiveGoalByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.Goal, error) {
	query := `SELECT id, account_id, title, target_amount, current_amount, status, started_at, ended_at
		FROM goals WHERE account_id = $1 AND status = 'active'`
	goal, err := scanGoal(r.db.QueryRow(ctx, query, accountID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	return goal, nil
}

// StartGoal cancels any prior active goal and inserts the new one in a single
// transaction, maintaining the at-most-one-active invariant.
func (r *PostgresRepository) StartGoal(ctx context.Context, accountID uuid.UUID, title string, targetAmount int64) (*domain.Goal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin goal tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cancelQuery := `UPDATE goals SET status = 'cancelled', ended_at = NOW() WHERE account_id = $1 AND status = 'active'`
	if _, err := tx.Exec(ctx, cancelQuery, accountID); err != nil {
		return nil, fmt.Errorf("cancel prior active goal: %w", err)
	}

	goal := &domain.Goal{
		ID:           uuid.New(),
		AccountID:    accountID,
		Title:        title,
		TargetAmount: targetAmount,
		Status:       domain.GoalActive,
		StartedAt:    time.Now().UTC(),
	}
	insertQuery := `
		INSERT INTO goals (id, account_id, title, target_amount, current_amount, status, started_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
	`
	if _, err := tx.Exec(ctx, insertQuery,
		goal.ID, goal.AccountID, goal.Title, goal.TargetAmount, goal.Status, goal.StartedAt,
	); err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return goal, nil
}

// CloseGoal ends an active goal with an explicit terminal status and stamps
// the end time.
func (r *PostgresRepository) CloseGoal(ctx context.Context, goalID, accountID uuid.UUID, status string) (*domain.Goal, error) {
	if status != domain.GoalCompleted && status != domain.GoalCancelled {
		return nil, fmt.Errorf("invalid terminal goal status %q", status)
	}

	query := `
		UPDATE goals
		SET status = $3, ended_at = NOW()
		WHERE id = $1 AND account_id = $2 AND status = 'active'
		RETURNING id, account_id, title, target_amount, current_amount, status, started_at, ended_at
	`
	goal, err := scanGoal(r.db.QueryRow(ctx, query, goalID, accountID, status))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	return goal, nil
}

// RecordAdjustment appends a manual correction movement. The movement
// references its own adjustment id since no other entity anchors it.
func (r *PostgresRepository) RecordAdjustment(ctx context.Context, accountID uuid.UUID, direction string, amount int64, reason string) (*domain.LedgerMovement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin adjustment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	movement, err := r.recordMovement(ctx, tx, accountID, direction, amount, reason, uuid.New(), domain.ReferenceAdjustment)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return movement, nil
}
