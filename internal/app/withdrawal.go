/**
 * @description
 * This file implements the withdrawal disbursement orchestrator. It converts
 * a creator's withdrawal request into a debited ledger entry plus an external
 * disbursement call, and reconciles the provider's asynchronous outcome.
 *
 * State machine: pending -> processing -> completed | rejected. The debit is
 * taken up front; every rejection path (synchronous submission failure or the
 * provider's asynchronous FAILED callback) runs the compensating credit inside
 * the same transaction as the status transition. Any non-success outcome of
 * the submission call (error, timeout, malformed response) is treated
 * identically as requiring compensation; no ambiguous state is left behind.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tipstream/ledger-service/internal/domain"
	"github.com/tipstream/ledger-service/internal/store"
	"github.com/tipstream/ledger-service/pkg/disburseclient"
)

// RequestWithdrawal validates the request, debits the account and submits the
// disbursement. Ownership of the account is enforced by the API layer before
// this is called.
func (s *Service) RequestWithdrawal(ctx context.Context, accountID uuid.UUID, req domain.WithdrawalRequest) (*domain.Withdrawal, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.DestinationBankCode) == "" ||
		strings.TrimSpace(req.DestinationAccountNo) == "" ||
		strings.TrimSpace(req.DestinationHolderName) == "" {
		return nil, fmt.Errorf("%w: destination bank code, account number and holder name are required", ErrInvalidRequest)
	}

	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	withdrawal := &domain.Withdrawal{
		ID:                    uuid.New(),
		AccountID:             account.ID,
		Amount:                req.Amount,
		Status:                domain.WithdrawalPending,
		DestinationBankCode:   strings.TrimSpace(req.DestinationBankCode),
		DestinationAccountNo:  strings.TrimSpace(req.DestinationAccountNo),
		DestinationHolderName: strings.TrimSpace(req.DestinationHolderName),
	}

	// Sufficient-balance validation and the up-front debit happen together
	// under the account row lock.
	if err := s.repo.CreateWithdrawal(ctx, withdrawal); err != nil {
		return nil, err
	}

	resp, err := s.disburser.SubmitDisbursement(ctx, disburseclient.DisbursementRequest{
		ExternalID:        withdrawal.ID.String(),
		Amount:            withdrawal.Amount,
		BankCode:          withdrawal.DestinationBankCode,
		AccountNumber:     withdrawal.DestinationAccountNo,
		AccountHolderName: withdrawal.DestinationHolderName,
		Description:       fmt.Sprintf("Withdrawal for @%s", account.Handle),
	})
	if err != nil {
		// Compensate so the synchronous path is balance-neutral on failure.
		notes := fmt.Sprintf("disbursement submission failed: %v", err)
		if _, _, refundErr := s.repo.RejectWithdrawalWithRefund(ctx, withdrawal.ID, notes); refundErr != nil {
			log.Printf("CRITICAL: failed to refund withdrawal %s after submission failure: %v", withdrawal.ID, refundErr)
			return nil, fmt.Errorf("disbursement failed and refund did not apply for withdrawal %s: %w", withdrawal.ID, refundErr)
		}
		log.Printf("level=warn component=service flow=withdrawal msg=\"submission failed; funds returned\" withdrawal_id=%s err=%v", withdrawal.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrDisbursementFailed, err)
	}

	applied, err := s.repo.MarkWithdrawalProcessing(ctx, withdrawal.ID, resp.ID)
	if err != nil || !applied {
		// The provider accepted the payout; never reverse it here. The callback
		// keyed by external id will reconcile the final state.
		log.Printf("level=error component=service flow=withdrawal msg=\"provider accepted but processing transition failed\" withdrawal_id=%s provider_id=%s applied=%t err=%v",
			withdrawal.ID, resp.ID, applied, err)
		// Report what was actually persisted rather than a transition that
		// never happened.
		persisted, findErr := s.repo.FindWithdrawalByID(ctx, withdrawal.ID)
		if findErr != nil {
			return withdrawal, nil
		}
		return persisted, nil
	}
	withdrawal.Status = domain.WithdrawalProcessing
	providerID := resp.ID
	withdrawal.ProviderDisbursementID = &providerID

	return withdrawal, nil
}

// ProcessDisbursementCallback reconciles the provider's asynchronous outcome
// for a withdrawal. Safe under duplicate and reordered deliveries: both
// branches are guarded on the current status, so at most one completion or one
// refund is ever applied per request.
func (s *Service) ProcessDisbursementCallback(ctx context.Context, cb domain.DisbursementCallback) error {
	withdrawalID, err := uuid.Parse(strings.TrimSpace(cb.ExternalID))
	if err != nil {
		return fmt.Errorf("%w: external_id is not a withdrawal id", ErrInvalidRequest)
	}

	switch strings.ToUpper(strings.TrimSpace(cb.Status)) {
	case domain.DisbursementCallbackCompleted:
		return s.completeWithdrawal(ctx, withdrawalID)
	case domain.DisbursementCallbackFailed:
		return s.rejectWithdrawal(ctx, withdrawalID, cb)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProviderStatus, cb.Status)
	}
}

func (s *Service) completeWithdrawal(ctx context.Context, withdrawalID uuid.UUID) error {
	withdrawal, err := s.repo.FindWithdrawalByID(ctx, withdrawalID)
	if err != nil {
		return err
	}

	fixedFee := s.fees.FixedFee
	percentageFee := withdrawal.Amount * s.fees.FeeBps / 10000

	withdrawal, applied, err := s.repo.CompleteWithdrawal(ctx, withdrawalID, fixedFee, percentageFee)
	if err != nil {
		return fmt.Errorf("failed to complete withdrawal %s: %w", withdrawalID, err)
	}
	if !applied {
		log.Printf("level=info component=service flow=withdrawal msg=\"completion callback ignored; withdrawal already terminal\" withdrawal_id=%s status=%s", withdrawalID, withdrawal.Status)
		return nil
	}

	s.publishWithdrawalEvent(ctx, withdrawal, "withdrawal.completed", "")
	return nil
}

func (s *Service) rejectWithdrawal(ctx context.Context, withdrawalID uuid.UUID, cb domain.DisbursementCallback) error {
	notes := strings.TrimSpace(fmt.Sprintf("%s: %s", cb.FailureCode, cb.FailureMessage))
	notes = strings.Trim(notes, ": ")
	if notes == "" {
		notes = "disbursement failed"
	}

	withdrawal, applied, err := s.repo.RejectWithdrawalWithRefund(ctx, withdrawalID, notes)
	if err != nil {
		if errors.Is(err, store.ErrWithdrawalNotFound) {
			return err
		}
		return fmt.Errorf("failed to reject withdrawal %s: %w", withdrawalID, err)
	}
	if !applied {
		log.Printf("level=info component=service flow=withdrawal msg=\"failure callback ignored; withdrawal already terminal\" withdrawal_id=%s status=%s", withdrawalID, withdrawal.Status)
		return nil
	}

	s.publishWithdrawalEvent(ctx, withdrawal, "withdrawal.rejected", notes)
	return nil
}

func (s *Service) publishWithdrawalEvent(ctx context.Context, withdrawal *domain.Withdrawal, routingKey, reason string) {
	event := domain.WithdrawalStatusEvent{
		WithdrawalID: withdrawal.ID,
		AccountID:    withdrawal.AccountID,
		Amount:       withdrawal.Amount,
		Status:       withdrawal.Status,
		Reason:       reason,
		Timestamp:    time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, routingKey, event); err != nil {
		log.Printf("level=warn component=service flow=withdrawal msg=\"domain event publish failed\" withdrawal_id=%s routing_key=%s err=%v", withdrawal.ID, routingKey, err)
	}
}

// GetWithdrawal retrieves a withdrawal, enforcing that the requester owns it.
func (s *Service) GetWithdrawal(ctx context.Context, accountID, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	withdrawal, err := s.repo.FindWithdrawalByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if withdrawal.AccountID != accountID {
		return nil, store.ErrWithdrawalNotFound
	}
	return withdrawal, nil
}

// ListWithdrawals returns a creator's withdrawal history.
func (s *Service) ListWithdrawals(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Withdrawal, error) {
	return s.repo.ListWithdrawalsByAccountID(ctx, accountID, limit)
}
