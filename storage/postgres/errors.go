package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"fulfillment/pkg/models"
)

const uniqueViolation = "23505"

// wrapErr maps driver errors onto the domain taxonomy.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return models.Invalid(pgErr.ConstraintName, "already exists")
	}
	return fmt.Errorf("%w: %w", models.ErrStorageUnavailable, err)
}
