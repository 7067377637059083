/**
 * @description
 * This file defines the creator account model for the ledger-service.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit to avoid
 *   floating-point inaccuracies with financial data.
 * - `Balance` is a cached value maintained exclusively by the ledger engine;
 *   it must always equal the signed sum of committed ledger movements for the
 *   account.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a creator who can receive donations and withdraw funds.
// This struct maps directly to the `accounts` table in the database.
type Account struct {
	ID             uuid.UUID `json:"id"`
	Handle         string    `json:"handle"`
	DisplayName    string    `json:"display_name"`
	Balance        int64     `json:"balance"` // smallest currency unit
	MinAlertAmount int64     `json:"min_alert_amount"`
	AlertsEnabled  bool      `json:"alerts_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AlertSettings is the subset of account configuration the overlay evaluates
// when deciding whether a queued alert may be presented.
type AlertSettings struct {
	MinAlertAmount int64 `json:"min_alert_amount"`
	AlertsEnabled  bool  `json:"alerts_enabled"`
}
