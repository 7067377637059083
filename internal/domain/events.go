/**
 * @description
 * This file defines the event payloads the ledger-service publishes after
 * money-moving transactions commit.
 *
 * Two delivery paths exist:
 * - Realtime overlay events go out on the per-creator `stream-{handle}`
 *   channel. Delivery is at-most-once with no persistence; a missed alert is
 *   not retried.
 * - Internal domain events go out on the durable `tipstream.events` topic
 *   exchange for collaborators (analytics, email) outside this service.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Overlay event names carried on stream-{handle} channels.
const (
	EventDonation     = "donation"
	EventGoalProgress = "goal-progress"
)

// DonationAlertEvent is the transient payload the overlay renders for a
// settled donation. It has no identity beyond delivery order.
type DonationAlertEvent struct {
	DonorName            string `json:"donor_name"`
	Amount               int64  `json:"amount"`
	Message              string `json:"message"`
	MediaURL             string `json:"media_url,omitempty"`
	MediaDurationSeconds int    `json:"media_duration_seconds,omitempty"`
}

// GoalProgressEvent reports fundraising progress to the overlay. Terminal
// events (status completed/cancelled) are published when a creator closes the
// goal.
type GoalProgressEvent struct {
	GoalID        uuid.UUID `json:"goal_id"`
	Title         string    `json:"title"`
	CurrentAmount int64     `json:"current_amount"`
	TargetAmount  int64     `json:"target_amount"`
	Percentage    float64   `json:"percentage"`
	Status        string    `json:"status"`
}

// DonationSettledEvent is the internal domain event published to RabbitMQ
// after a donation settles.
type DonationSettledEvent struct {
	DonationID uuid.UUID `json:"donation_id"`
	AccountID  uuid.UUID `json:"account_id"`
	Amount     int64     `json:"amount"`
	SettledAt  time.Time `json:"settled_at"`
}

// WithdrawalStatusEvent is the internal domain event published when a
// withdrawal reaches a terminal state.
type WithdrawalStatusEvent struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	AccountID    uuid.UUID `json:"account_id"`
	Amount       int64     `json:"amount"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
