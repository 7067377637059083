/**
 * @description
 * This file contains the core business logic for the ledger-service. The
 * `Service` struct orchestrates the settlement pipeline: it resolves inbound
 * provider notifications to donations, applies the idempotent settlement
 * transaction through the repository, and fans out alert and domain events
 * after commit.
 *
 * Key features:
 * - Identifier fallback order for untrusted, at-least-once provider webhooks.
 * - Already-paid short-circuit plus a storage-level conditional update, so
 *   duplicated and concurrent deliveries credit an account exactly once.
 * - Publish failures are logged and never roll back settlement; money
 *   correctness is independent of notification delivery.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/disburseclient, pkg/pubsub, pkg/rabbitmq: For external communication.
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
	"github.com/tipstream/ledger-service/pkg/pubsub"
	"github.com/tipstream/ledger-service/pkg/rabbitmq"
)

var (
	ErrUnknownProviderStatus = errors.New("unknown provider status")
	ErrAmountMismatch        = errors.New("notification amount does not match donation")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrDisbursementFailed    = errors.New("disbursement submission failed, funds returned")
)

// DisbursementSubmitter is the slice of the provider client the orchestrator
// needs; satisfied by *disburseclient.Client.
type DisbursementSubmitter interface {
	SubmitDisbursement(ctx context.Context, req disburseclient.DisbursementRequest) (*disburseclient.DisbursementResponse, error)
}

// FeePolicy configures the platform's withdrawal fees.
type FeePolicy struct {
	FixedFee int64 // smallest currency unit per completed withdrawal
	FeeBps   int64 // percentage fee in basis points of the withdrawn amount
}

// Service provides the core business logic for settlement, withdrawals and goals.
type Service struct {
	repo      store.Repository
	disburser DisbursementSubmitter
	alerts    pubsub.Publisher
	events    rabbitmq.Publisher
	fees      FeePolicy
}

// NewService creates a new ledger service instance.
func NewService(repo store.Repository, disburser DisbursementSubmitter, alerts pubsub.Publisher, events rabbitmq.Publisher, fees FeePolicy) *Service {
	return &Service{
		repo:      repo,
		disburser: disburser,
		alerts:    alerts,
		events:    events,
		fees:      fees,
	}
}

// SettlementOutcome reports what a processed notification changed.
type SettlementOutcome struct {
	Donation *domain.Donation
	// Settled is true when this delivery applied the credit. False means the
	// notification was a duplicate (donation already paid) or reported a
	// non-success terminal status.
	Settled bool
}

// CreateDonation records a new pending donation for a creator. The generated
// merchant reference is handed to the payment page so the provider can echo it
// back in settlement notifications.
func (s *Service) CreateDonation(ctx context.Context, req domain.CreateDonationRequest) (*domain.Donation, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	donorName := strings.TrimSpace(req.DonorName)
	if donorName == "" {
		donorName = "Anonymous"
	}

	account, err := s.repo.FindAccountByHandle(ctx, req.CreatorHandle)
	if err != nil {
		return nil, fmt.Errorf("failed to find creator: %w", err)
	}

	donation := &domain.Donation{
		ID:          uuid.New(),
		AccountID:   account.ID,
		DonorName:   donorName,
		Message:     strings.TrimSpace(req.Message),
		Amount:      req.Amount,
		Status:      domain.DonationPending,
		MerchantRef: fmt.Sprintf("don_%s", uuid.New()),
	}
	if url := strings.TrimSpace(req.MediaURL); url != "" {
		donation.MediaURL = &url
		if req.MediaDurationSeconds > 0 {
			secs := req.MediaDurationSeconds
			donation.MediaDurationSeconds = &secs
		}
	}

	if err := s.repo.CreateDonation(ctx, donation); err != nil {
		return nil, fmt.Errorf("failed to create donation: %w", err)
	}
	return donation, nil
}

// ProcessSettlementNotice drives the settlement pipeline for one normalized
// provider notification. Safe to call any number of times with the same
// payload.
func (s *Service) ProcessSettlementNotice(ctx context.Context, notice domain.SettlementNotice) (*SettlementOutcome, error) {
	donation, err := s.resolveDonation(ctx, notice)
	if err != nil {
		return nil, err
	}

	switch notice.Status {
	case domain.ProviderStatusPaid:
		return s.settle(ctx, donation, notice)
	case domain.ProviderStatusFailed:
		return s.markTerminal(ctx, donation, domain.DonationFailed)
	case domain.ProviderStatusExpired:
		return s.markTerminal(ctx, donation, domain.DonationExpired)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProviderStatus, notice.Status)
	}
}

// resolveDonation tries each idempotency key in the defined fallback order:
// provider payment id, then provider QR id, then merchant reference.
func (s *Service) resolveDonation(ctx context.Context, notice domain.SettlementNotice) (*domain.Donation, error) {
	if notice.ProviderPaymentID != "" {
		donation, err := s.repo.FindDonationByProviderPaymentID(ctx, notice.ProviderPaymentID)
		if err == nil {
			return donation, nil
		}
		if !errors.Is(err, store.ErrDonationNotFound) {
			return nil, err
		}
	}
	if notice.ProviderQRID != "" {
		donation, err := s.repo.FindDonationByProviderQRID(ctx, notice.ProviderQRID)
		if err == nil {
			return donation, nil
		}
		if !errors.Is(err, store.ErrDonationNotFound) {
			return nil, err
		}
	}
	if notice.MerchantRef != "" {
		donation, err := s.repo.FindDonationByMerchantRef(ctx, notice.MerchantRef)
		if err == nil {
			return donation, nil
		}
		if !errors.Is(err, store.ErrDonationNotFound) {
			return nil, err
		}
	}
	return nil, store.ErrDonationNotFound
}

func (s *Service) settle(ctx context.Context, donation *domain.Donation, notice domain.SettlementNotice) (*SettlementOutcome, error) {
	// The channel alone is never trusted: a caller claiming a reference must
	// also carry the right amount for it. A payload with no amount at all is
	// rejected the same way; money only moves against a corroborated figure.
	if notice.Amount != donation.Amount {
		return nil, fmt.Errorf("%w: got %d, donation is %d", ErrAmountMismatch, notice.Amount, donation.Amount)
	}

	// Primary duplicate-delivery defense: already paid means success, no effect.
	if donation.Status == domain.DonationPaid {
		return &SettlementOutcome{Donation: donation, Settled: false}, nil
	}

	result, err := s.repo.SettleDonation(ctx, donation.ID, notice.ProviderPaymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to settle donation %s: %w", donation.ID, err)
	}
	if !result.Applied {
		// A concurrent delivery won the conditional update. Same answer as the
		// short-circuit above.
		return &SettlementOutcome{Donation: result.Donation, Settled: false}, nil
	}

	s.publishSettlementEvents(ctx, result)
	return &SettlementOutcome{Donation: result.Donation, Settled: true}, nil
}

func (s *Service) markTerminal(ctx context.Context, donation *domain.Donation, status string) (*SettlementOutcome, error) {
	applied, err := s.repo.MarkDonationTerminal(ctx, donation.ID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to mark donation %s %s: %w", donation.ID, status, err)
	}
	if applied {
		donation.Status = status
	}
	return &SettlementOutcome{Donation: donation, Settled: false}, nil
}

// publishSettlementEvents fans out the post-commit notifications for an
// applied settlement. Best effort only.
func (s *Service) publishSettlementEvents(ctx context.Context, result *store.SettlementResult) {
	donation := result.Donation

	account, err := s.repo.FindAccountByID(ctx, donation.AccountID)
	if err != nil {
		log.Printf("level=warn component=service flow=settlement msg=\"account lookup failed; alerts skipped\" donation_id=%s err=%v", donation.ID, err)
		return
	}
	channel := pubsub.Channel(account.Handle)

	alert := domain.DonationAlertEvent{
		DonorName: donation.DonorName,
		Amount:    donation.Amount,
		Message:   donation.Message,
	}
	if donation.MediaURL != nil {
		alert.MediaURL = *donation.MediaURL
	}
	if donation.MediaDurationSeconds != nil {
		alert.MediaDurationSeconds = *donation.MediaDurationSeconds
	}
	if err := s.alerts.Publish(ctx, channel, domain.EventDonation, alert); err != nil {
		log.Printf("level=warn component=service flow=settlement msg=\"donation alert publish failed\" donation_id=%s channel=%s err=%v", donation.ID, channel, err)
	}

	if result.Goal != nil {
		progress := domain.GoalProgressEvent{
			GoalID:        result.Goal.ID,
			Title:         result.Goal.Title,
			CurrentAmount: result.Goal.CurrentAmount,
			TargetAmount:  result.Goal.TargetAmount,
			Percentage:    result.Goal.Percentage(),
			Status:        result.Goal.Status,
		}
		if err := s.alerts.Publish(ctx, channel, domain.EventGoalProgress, progress); err != nil {
			log.Printf("level=warn component=service flow=settlement msg=\"goal progress publish failed\" goal_id=%s channel=%s err=%v", result.Goal.ID, channel, err)
		}
	}

	settledAt := time.Now().UTC()
	if donation.SettledAt != nil {
		settledAt = *donation.SettledAt
	}
	event := domain.DonationSettledEvent{
		DonationID: donation.ID,
		AccountID:  donation.AccountID,
		Amount:     donation.Amount,
		SettledAt:  settledAt,
	}
	if err := s.events.Publish(ctx, "donation.settled", event); err != nil {
		log.Printf("level=warn component=service flow=settlement msg=\"domain event publish failed\" donation_id=%s err=%v", donation.ID, err)
	}
}

// GetAlertSettings returns the presentation gates the overlay applies to a
// creator's queued alerts. Looked up by handle since the overlay client only
// knows the channel name.
func (s *Service) GetAlertSettings(ctx context.Context, handle string) (*domain.AlertSettings, error) {
	account, err := s.repo.FindAccountByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	return s.repo.GetAlertSettings(ctx, account.ID)
}

// GetAccount returns a creator's account, including the current balance.
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountByID(ctx, accountID)
}

// ListRecentDonations returns a creator's latest settled donations.
func (s *Service) ListRecentDonations(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Donation, error) {
	return s.repo.ListRecentDonations(ctx, accountID, limit)
}

// RecordAdjustment appends a manual ledger correction for ops tooling.
func (s *Service) RecordAdjustment(ctx context.Context, req domain.AdjustmentRequest) (*domain.LedgerMovement, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if req.Direction != domain.MovementCredit && req.Direction != domain.MovementDebit {
		return nil, fmt.Errorf("%w: direction must be credit or debit", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidRequest)
	}
	return s.repo.RecordAdjustment(ctx, req.AccountID, req.Direction, req.Amount, strings.TrimSpace(req.Reason))
}
