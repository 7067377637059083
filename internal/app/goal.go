/**
 * @description
 * This file implements the goal progress tracker's creator-facing operations.
 * Progress from settled donations is applied inside the settlement transaction
 * (see store.SettleDonation); this file covers the explicit lifecycle actions:
 * starting a goal (which cancels any prior active one) and closing it with a
 * terminal status.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/tipstream/ledger-service/internal/domain"
	"github.com/tipstream/ledger-service/pkg/pubsub"
)

// StartGoal begins a new fundraising goal for a creator.
func (s *Service) StartGoal(ctx context.Context, accountID uuid.UUID, req domain.StartGoalRequest) (*domain.Goal, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if req.TargetAmount <= 0 {
		return nil, fmt.Errorf("%w: target amount must be positive", ErrInvalidRequest)
	}

	goal, err := s.repo.StartGoal(ctx, accountID, title, req.TargetAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to start goal: %w", err)
	}
	return goal, nil
}

// CloseGoal ends the creator's active goal with an explicit terminal status
// and publishes the terminal goal-progress event to the overlay.
func (s *Service) CloseGoal(ctx context.Context, accountID, goalID uuid.UUID, status string) (*domain.Goal, error) {
	if status != domain.GoalCompleted && status != domain.GoalCancelled {
		return nil, fmt.Errorf("%w: status must be completed or cancelled", ErrInvalidRequest)
	}

	goal, err := s.repo.CloseGoal(ctx, goalID, accountID, status)
	if err != nil {
		return nil, err
	}

	if account, accErr := s.repo.FindAccountByID(ctx, accountID); accErr == nil {
		event := domain.GoalProgressEvent{
			GoalID:        goal.ID,
			Title:         goal.Title,
			CurrentAmount: goal.CurrentAmount,
			TargetAmount:  goal.TargetAmount,
			Percentage:    goal.Percentage(),
			Status:        goal.Status,
		}
		if err := s.alerts.Publish(ctx, pubsub.Channel(account.Handle), domain.EventGoalProgress, event); err != nil {
			log.Printf("level=warn component=service flow=goal msg=\"terminal goal event publish failed\" goal_id=%s err=%v", goal.ID, err)
		}
	} else {
		log.Printf("level=warn component=service flow=goal msg=\"account lookup failed; terminal goal event skipped\" goal_id=%s err=%v", goal.ID, accErr)
	}

	return goal, nil
}

// GetActiveGoal retrieves the creator's current active goal.
func (s *Service) GetActiveGoal(ctx context.Context, accountID uuid.UUID) (*domain.Goal, error) {
	return s.repo.FindActiveGoalByAccountID(ctx, accountID)
}
