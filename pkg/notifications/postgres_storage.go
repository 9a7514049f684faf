package notifications

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Migrations holds the goose migrations for PostgresStorage. Apply them
// with pg.Migrate(ctx, pool, cfg, notifications.Migrations, log).
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads.
const MigrationsDir = "migrations"

// DB is the subset of *pgxpool.Pool that PostgresStorage uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage keeps records in the notifications table.
type PostgresStorage struct {
	db DB
}

func NewPostgresStorage(db DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

const selectColumns = `id, user_id, type, recipient, title, message, payload, status, attempts, error, created_at, sent_at, updated_at`

func (s *PostgresStorage) Create(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (`+selectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.UserID, string(rec.Type), rec.To, rec.Title, rec.Message, rec.Payload,
		string(rec.Status), rec.Attempts, rec.Error, rec.CreatedAt, rec.SentAt, rec.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return errInvalid("duplicate id " + rec.ID)
		}
		return errors.Join(ErrStorage, err)
	}
	return nil
}

func (s *PostgresStorage) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM notifications WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if pg.IsNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return &rec, nil
}

func (s *PostgresStorage) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]Record, error) {
	var limit any // NULL means no limit
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+` FROM notifications
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		userID, string(opts.Status), limit, max(opts.Offset, 0),
	)
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

func (s *PostgresStorage) MarkSent(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications
		SET status = 'sent', error = '', sent_at = COALESCE(sent_at, $2), updated_at = now()
		WHERE id = $1`, id, at.UTC())
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) MarkFailed(ctx context.Context, id string, reason string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications
		SET status = 'failed', error = $2, updated_at = now()
		WHERE id = $1 AND status <> 'sent'`, id, reason)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return s.exists(ctx, id)
	}
	return nil
}

func (s *PostgresStorage) SetAttempts(ctx context.Context, id string, n int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications
		SET attempts = GREATEST(attempts, $2), updated_at = now()
		WHERE id = $1`, id, n)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) exists(ctx context.Context, id string) error {
	var found bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`, id).Scan(&found); err != nil {
		return errors.Join(ErrStorage, err)
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		typ    string
		status string
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &typ, &rec.To, &rec.Title, &rec.Message, &rec.Payload,
		&status, &rec.Attempts, &rec.Error, &rec.CreatedAt, &rec.SentAt, &rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Type = queue.NotificationType(typ)
	rec.Status = Status(status)
	return rec, nil
}
