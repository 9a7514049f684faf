package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Healthcheck returns a readiness check that acquires a pooled connection
// and runs a trivial query, so an exhausted pool also reports unhealthy.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		var one int
		if err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
