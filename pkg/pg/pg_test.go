package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, pg.IsDuplicateKeyError(dup))
	assert.False(t, pg.IsDuplicateKeyError(fk))
	assert.False(t, pg.IsDuplicateKeyError(nil))

	assert.True(t, pg.IsNotFoundError(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(errors.New("boom")))
	assert.False(t, pg.IsNotFoundError(nil))
}

func TestConnect_InvalidConnectionString(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://%%invalid"})
	require.Error(t, err)
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}

func TestMigrate_RequiresMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	err := pg.Migrate(ctx, nil, pg.Config{}, nil, "migrations", logger.Discard())
	assert.ErrorIs(t, err, pg.ErrMigrationsNotProvided)

	err = pg.Migrate(ctx, nil, pg.Config{}, fstest.MapFS{}, "migrations", logger.Discard())
	assert.ErrorIs(t, err, pg.ErrMigrationsNotProvided)
	assert.ErrorIs(t, err, pg.ErrFailedToApplyMigrations)
}
