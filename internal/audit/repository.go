package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/supplyops/internal/shared"
)

// PGRepository appends to and reads audit_logs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the PostgreSQL audit repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Record appends one entry; a zero At takes the database clock.
func (r *PGRepository) Record(ctx context.Context, entry shared.AuditLog) error {
	if r == nil || r.pool == nil {
		return errors.New("audit repository not initialised")
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	var meta []byte
	if len(entry.Meta) > 0 {
		var err error
		if meta, err = json.Marshal(entry.Meta); err != nil {
			return err
		}
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		entry.ActorID, entry.Action, entry.Entity, entry.EntityID, meta, optionalTime(entry.At))
	return err
}

// Window returns matching rows newest first.
func (r *PGRepository) Window(ctx context.Context, q WindowQuery) ([]TimelineRow, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("audit repository not initialised")
	}
	f := q.Filters
	rows, err := r.pool.Query(ctx, `SELECT occurred_at, actor_id, action, entity, entity_id, meta FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::bigint = 0 OR actor_id = $3)
  AND ($4::text = '' OR entity = $4)
  AND ($5::text = '' OR action = $5)
ORDER BY occurred_at DESC, id DESC
OFFSET $6 LIMIT $7`, optionalTime(f.From), optionalTime(f.To), f.ActorID, f.Entity, f.Action, q.Offset, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TimelineRow{}
	for rows.Next() {
		var (
			row  TimelineRow
			meta []byte
		)
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 && string(meta) != "null" {
			if err := json.Unmarshal(meta, &row.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func optionalTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
