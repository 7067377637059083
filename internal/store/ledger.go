/**
 * @description
 * This file implements the ledger engine: the single place that appends
 * immutable balance movements and keeps the cached account balance in step
 * with them.
 *
 * recordMovement only ever runs inside a caller-owned transaction, so the
 * movement row and the balance adjustment commit or abort together with the
 * triggering business event (settlement, disbursement or compensation). The
 * engine does not forbid a resulting negative balance; the withdrawal path is
 * responsible for pre-validating sufficient funds under a row lock before
 * calling it.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tipstream/ledger-service/internal/domain"
)

// recordMovement appends one immutable ledger movement and adjusts the cached
// account balance by +amount for a credit or -amount for a debit.
func (r *PostgresRepository) recordMovement(
	ctx context.Context,
	tx pgx.Tx,
	accountID uuid.UUID,
	direction string,
	amount int64,
	reason string,
	referenceID uuid.UUID,
	referenceKind string,
) (*domain.LedgerMovement, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("ledger movement amount must be positive, got %d", amount)
	}

	var delta int64
	switch direction {
	case domain.MovementCredit:
		delta = amount
	case domain.MovementDebit:
		delta = -amount
	default:
		return nil, fmt.Errorf("unknown ledger movement direction %q", direction)
	}

	movement := &domain.LedgerMovement{
		ID:            uuid.New(),
		AccountID:     accountID,
		Direction:     direction,
		Amount:        amount,
		Reason:        reason,
		ReferenceID:   referenceID,
		ReferenceKind: referenceKind,
		CreatedAt:     time.Now().UTC(),
	}

	insertQuery := `
		INSERT INTO ledger_movements (id, account_id, direction, amount, reason, reference_id, reference_kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.Exec(ctx, insertQuery,
		movement.ID, movement.AccountID, movement.Direction, movement.Amount,
		movement.Reason, movement.ReferenceID, movement.ReferenceKind, movement.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("append ledger movement: %w", err)
	}

	balanceQuery := `UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2`
	result, err := tx.Exec(ctx, balanceQuery, delta, accountID)
	if err != nil {
		return nil, fmt.Errorf("apply balance delta: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrAccountNotFound
	}

	return movement, nil
}
