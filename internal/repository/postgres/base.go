package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type txKey struct{}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) *BaseRepository {
	return &BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithinTx executes fn within a transaction carried on ctx. When ctx already
// holds one, fn joins it.
func (r *BaseRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Storage(fmt.Errorf("begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Storage(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// ext returns the transaction on ctx, or the pool.
func (r *BaseRepository) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.db
}

func (r *BaseRepository) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, r.ext(ctx), dest, query, args...)
}

func (r *BaseRepository) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, r.ext(ctx), dest, query, args...)
}

// exec runs a statement and reports how many rows it touched.
func (r *BaseRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.ext(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.Storage(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Storage(err)
	}
	return n, nil
}

// compareAndSet runs a conditional UPDATE and reports whether it won.
func (r *BaseRepository) compareAndSet(ctx context.Context, query string, args ...any) (bool, error) {
	n, err := r.exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// lookupErr maps sql.ErrNoRows to a NotFound for resource.
func lookupErr(resource string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, nil)
	}
	return apperrors.Storage(fmt.Errorf("get %s: %w", resource, err))
}
