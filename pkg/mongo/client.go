package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// New connects a client and pings the primary, retrying with exponential
// backoff until the server answers or the attempts run out.
func New(ctx context.Context, cfg Config) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.ConnectionURL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetRetryWrites(cfg.RetryWrites).
		SetRetryReads(cfg.RetryReads)

	var client *mongo.Client
	backoff := retry.WithMaxRetries(uint64(max(cfg.RetryAttempts, 0)), retry.NewExponential(max(cfg.RetryInterval, 100*time.Millisecond)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := mongo.Connect(opts)
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := c.Ping(ctx, nil); err != nil {
			_ = c.Disconnect(context.WithoutCancel(ctx))
			return retry.RetryableError(err)
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrFailedToConnectToMongo, err)
	}
	return client, nil
}

// NewWithDatabase connects and returns the database named in cfg.
func NewWithDatabase(ctx context.Context, cfg Config) (*mongo.Database, error) {
	if cfg.Database == "" {
		return nil, ErrDatabaseRequired
	}
	client, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client.Database(cfg.Database), nil
}
