package domain

import (
	"time"

	"github.com/google/uuid"
)

// Goal statuses. A goal is closed only by explicit creator action; settled
// donations never complete a goal automatically, and current_amount is allowed
// to exceed target_amount.
const (
	GoalActive    = "active"
	GoalCompleted = "completed"
	GoalCancelled = "cancelled"
)

// Goal represents an optional per-creator fundraising target. At most one
// active goal exists per account; starting a new goal cancels the prior active
// one.
type Goal struct {
	ID            uuid.UUID  `json:"id"`
	AccountID     uuid.UUID  `json:"account_id"`
	Title         string     `json:"title"`
	TargetAmount  int64      `json:"target_amount"`  // smallest currency unit
	CurrentAmount int64      `json:"current_amount"` // smallest currency unit
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

// Percentage returns the goal's progress capped at 100. The cap is
// presentational only; the underlying current amount keeps accumulating past
// the target.
func (g *Goal) Percentage() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	pct := float64(g.CurrentAmount) / float64(g.TargetAmount) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// StartGoalRequest is the DTO for creating a new fundraising goal.
type StartGoalRequest struct {
	Title        string `json:"title"`
	TargetAmount int64  `json:"target_amount"`
}

// CloseGoalRequest is the DTO for explicitly ending a goal.
type CloseGoalRequest struct {
	Status string `json:"status"` // 'completed' | 'cancelled'
}
