// Package pg bootstraps PostgreSQL for the notification store.
//
// Connect opens a pgx pool and retries with exponential backoff until the
// database answers a ping. Migrate runs goose migrations from any fs.FS, so
// services ship their schema embedded in the binary:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, cfg, notifications.Migrations, notifications.MigrationsDir, log); err != nil {
//		return err
//	}
//
// Healthcheck returns a check compatible with the readiness endpoint, and the
// IsNotFoundError and IsDuplicateKeyError helpers classify pgx errors.
package pg
