package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToOpenDBConnection = errors.New("pg.errors.failed_to_open_connection")
	ErrHealthcheckFailed        = errors.New("pg.errors.healthcheck_failed")
	ErrFailedToParseDBConfig    = errors.New("pg.errors.invalid_config")
	ErrFailedToApplyMigrations  = errors.New("pg.errors.migrations_failed")
	ErrMigrationsNotProvided    = errors.New("pg.errors.migrations_not_provided")
)

// IsNotFoundError reports whether a query matched no rows.
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError detects unique constraint violations (SQLSTATE 23505).
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
