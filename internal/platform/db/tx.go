package db

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/supplyops/internal/shared"
)

// SQLSTATE codes treated as transient lock contention.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// TxConfig tunes transaction retry behaviour.
type TxConfig struct {
	MaxAttempts int
	// IsoLevel defaults to read committed. Rows guarding invariants are always
	// read with SELECT ... FOR UPDATE, so the latest committed version is seen.
	IsoLevel    pgx.TxIsoLevel
	LockTimeout time.Duration
	BaseBackoff time.Duration
	// OnRetry is invoked with the SQLSTATE before each retry.
	OnRetry func(code string)
}

// TxRunner runs callbacks inside transactions, retrying lock contention a
// bounded number of times.
type TxRunner struct {
	pool *pgxpool.Pool
	cfg  TxConfig
}

// NewTxRunner constructs a TxRunner.
func NewTxRunner(pool *pgxpool.Pool, cfg TxConfig) *TxRunner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 20 * time.Millisecond
	}
	if cfg.IsoLevel == "" {
		cfg.IsoLevel = pgx.ReadCommitted
	}
	return &TxRunner{pool: pool, cfg: cfg}
}

// Pool exposes the underlying pool for read queries.
func (r *TxRunner) Pool() *pgxpool.Pool {
	return r.pool
}

// WithTx executes fn within a transaction at the configured isolation level.
// Contention surviving every attempt is reported as shared.ErrContention.
func (r *TxRunner) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	if r == nil || r.pool == nil {
		return errors.New("platform/db: tx runner not initialised")
	}
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		code, transient := contentionCode(err)
		if !transient {
			return err
		}
		lastErr = err
		if attempt == r.cfg.MaxAttempts {
			break
		}
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(code)
		}
		if err := sleep(ctx, backoff(r.cfg.BaseBackoff, attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w (after %d attempts: %v)", shared.ErrContention, r.cfg.MaxAttempts, lastErr)
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: r.cfg.IsoLevel})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if r.cfg.LockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", r.cfg.LockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("platform/db: set lock timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// ParseIsoLevel maps a configuration value such as "repeatable read" to a pgx level.
func ParseIsoLevel(raw string) (pgx.TxIsoLevel, error) {
	switch level := pgx.TxIsoLevel(strings.ToLower(strings.TrimSpace(raw))); level {
	case "":
		return pgx.ReadCommitted, nil
	case pgx.ReadCommitted, pgx.RepeatableRead, pgx.Serializable:
		return level, nil
	}
	return "", fmt.Errorf("platform/db: unsupported isolation level %q", raw)
}

func contentionCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return pgErr.Code, true
	}
	return pgErr.Code, false
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func backoff(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	return d/2 + rand.N(d/2+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
