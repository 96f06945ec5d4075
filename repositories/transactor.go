package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// TxFunc is the unit of work executed inside a transaction.
type TxFunc func(ctx context.Context, exec SQLExecutor) error

// Transactor runs a unit of work in one READ COMMITTED transaction. Callers
// that check-then-write take advisory locks first; every later statement then
// gets a fresh snapshot and sees what the previous lock holder committed.
// The work is re-run from the start when Postgres aborts it with a
// serialization failure or a deadlock, so fn must not keep side effects
// outside the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

type postgresTransactor struct {
	db         *sql.DB
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

func NewPostgresTransactor(db *sql.DB, maxRetries int, logger *slog.Logger) Transactor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &postgresTransactor{
		db:         db,
		maxRetries: maxRetries,
		backoff:    25 * time.Millisecond,
		logger:     logger,
	}
}

func (t *postgresTransactor) WithinTx(ctx context.Context, fn TxFunc) error {
	for attempt := 0; ; attempt++ {
		err := t.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) || attempt >= t.maxRetries {
			return err
		}

		wait := t.backoff * time.Duration(attempt+1)
		t.logger.WarnContext(ctx, "transaction aborted by serialization conflict, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", wait),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction retry interrupted: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (t *postgresTransactor) runOnce(ctx context.Context, fn TxFunc) (err error) {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				t.logger.ErrorContext(ctx, "transaction rollback failed", slog.Any("error", rbErr))
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
