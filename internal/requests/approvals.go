package requests

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/supplyops/internal/shared"
)

// ApprovalTrail stores approval steps in the approvals table.
type ApprovalTrail struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewApprovalTrail constructs ApprovalTrail.
func NewApprovalTrail(pool *pgxpool.Pool, logger *slog.Logger) *ApprovalTrail {
	return &ApprovalTrail{pool: pool, logger: logger}
}

// Record appends one step. A zero At takes the database clock.
func (t *ApprovalTrail) Record(ctx context.Context, step shared.ApprovalLog) error {
	if t == nil || t.pool == nil {
		return errors.New("approval trail not initialised")
	}
	if err := step.Validate(); err != nil {
		return err
	}
	var at *time.Time
	if !step.At.IsZero() {
		at = &step.At
	}
	if _, err := t.pool.Exec(ctx, `INSERT INTO approvals (module, ref_id, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, step.Module, step.RefID, step.ActorID, string(step.Action), step.Note, at); err != nil {
		t.logger.Error("record approval step", slog.String("module", step.Module), slog.String("action", string(step.Action)), slog.Any("error", err))
		return err
	}
	return nil
}

// List returns the trail of module/ref oldest first.
func (t *ApprovalTrail) List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	if t == nil || t.pool == nil {
		return nil, errors.New("approval trail not initialised")
	}
	rows, err := t.pool.Query(ctx, `SELECT id, module, ref_id, actor_id, action, note, at
FROM approvals WHERE module=$1 AND ref_id=$2 ORDER BY at ASC, id ASC`, module, ref)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (shared.ApprovalLog, error) {
		var (
			step   shared.ApprovalLog
			action string
		)
		err := row.Scan(&step.ID, &step.Module, &step.RefID, &step.ActorID, &action, &step.Note, &step.At)
		step.Action = shared.ApprovalAction(action)
		return step, err
	})
}
