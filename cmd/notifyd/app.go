package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/pkg/api"
	"github.com/dmitrymomot/notifykit/pkg/broker"
	"github.com/dmitrymomot/notifykit/pkg/clientip"
	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/metrics"
	"github.com/dmitrymomot/notifykit/pkg/mongo"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/sms"
)

type closer struct {
	name string
	fn   func(context.Context) error
}

// App owns every long-lived resource of the process.
type App struct {
	cfg Config
	log *slog.Logger

	broker   broker.Broker
	storage  notifications.Storage
	hub      *realtime.Hub
	metrics  *metrics.Metrics
	consumer *queue.Consumer
	service  *notifications.Service
	server   *httpserver.Server
	router   http.Handler

	checks  map[string]httpserver.Check
	closers []closer
}

// NewApp connects to the broker and storage, declares the lane topology and
// wires the pipeline. On failure everything opened so far is released.
func NewApp(ctx context.Context, cfg Config, log *slog.Logger) (_ *App, err error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{
		cfg:    cfg,
		log:    log,
		checks: make(map[string]httpserver.Check),
	}
	defer func() {
		if err != nil {
			a.close(context.WithoutCancel(ctx))
		}
	}()

	a.metrics = metrics.New(metrics.WithNamespace(cfg.MetricsNamespace))

	if err := a.openBroker(ctx); err != nil {
		return nil, err
	}
	if err := queue.DeclareTopology(ctx, a.broker, cfg.Queue); err != nil {
		return nil, fmt.Errorf("declare topology: %w", err)
	}
	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	emailSender, err := email.New(cfg.Email, log.With(logger.Component("email")))
	if err != nil {
		return nil, fmt.Errorf("email: %w", err)
	}
	smsSender, err := sms.New(cfg.SMS, sms.WithLogger(log.With(logger.Component("sms"))))
	if err != nil {
		return nil, fmt.Errorf("sms: %w", err)
	}

	a.hub = realtime.NewHub(
		realtime.WithLogger(log),
		realtime.WithSendBuffer(cfg.Realtime.SendBuffer),
		realtime.WithPingInterval(cfg.Realtime.PingInterval),
	)
	if err := a.metrics.GaugeFunc("realtime_connections", "Open realtime sockets.", func() float64 {
		return float64(a.hub.Connections())
	}); err != nil {
		return nil, err
	}

	var dispatcherOpts []queue.DispatcherOption
	dispatcherOpts = append(dispatcherOpts, queue.WithDispatcherLogger(log))
	if cfg.StrictHandlers {
		dispatcherOpts = append(dispatcherOpts, queue.WithStrictRegistration())
	}
	dispatcher := queue.NewDispatcher(dispatcherOpts...)
	if err := notifications.RegisterHandlers(dispatcher, emailSender, smsSender, a.hub); err != nil {
		return nil, err
	}

	publisher, err := queue.NewPublisher(a.broker,
		queue.WithPublishLane(cfg.Queue.PrimaryLane),
		queue.WithPublisherLogger(log),
		queue.WithPublishObserver(a.metrics),
	)
	if err != nil {
		return nil, err
	}

	a.consumer, err = queue.NewConsumer(a.broker, dispatcher,
		queue.WithConfig(cfg.Queue),
		queue.WithObserver(a.metrics, notifications.NewTracker(a.storage, log)),
		queue.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, err
	}

	a.service = notifications.NewService(a.storage, publisher,
		notifications.WithServiceLogger(log.With(logger.Component("service"))))

	a.router = api.NewRouter(api.Deps{
		Notifier:     a.service,
		Realtime:     a.hub,
		Metrics:      a.metrics,
		Checks:       a.checks,
		CheckTimeout: cfg.ReadinessTimeout,
		ClientIP:     clientip.New(cfg.TrustedIPHeaders),
		Logger:       log,
	})
	a.server = httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	return a, nil
}

func (a *App) openBroker(ctx context.Context) error {
	opts := []broker.Option{
		broker.WithLogger(a.log),
		broker.WithPrefetch(a.cfg.Broker.Prefetch),
	}

	switch a.cfg.Broker.Driver {
	case broker.DriverAMQP:
		b, err := broker.DialAMQP(ctx, a.cfg.Broker, opts...)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		a.broker = b
	case broker.DriverRedis:
		var rcfg redis.Config
		if err := config.Load(&rcfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.onClose("redis", func(context.Context) error { return client.Close() })
		a.broker = broker.NewRedis(client, a.cfg.Broker, append(opts,
			broker.WithPollInterval(a.cfg.Broker.PollInterval),
			broker.WithConsumerID(a.cfg.Broker.ConsumerID),
		)...)
		a.checks["redis"] = redis.Healthcheck(client)
	default:
		a.log.Warn("using in-memory broker, messages do not survive a restart")
		a.broker = broker.NewMemory(opts...)
	}

	a.checks["broker"] = a.broker.Ping
	return nil
}

func (a *App) openStorage(ctx context.Context) error {
	switch a.cfg.StoreDriver {
	case StorePostgres:
		var pcfg pg.Config
		if err := config.Load(&pcfg); err != nil {
			return err
		}
		pool, err := pg.Connect(ctx, pcfg)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.onClose("postgres", func(context.Context) error { pool.Close(); return nil })
		if err := pg.Migrate(ctx, pool, pcfg, notifications.Migrations, notifications.MigrationsDir, a.log); err != nil {
			return err
		}
		a.storage = notifications.NewPostgresStorage(pool)
		a.checks["storage"] = pg.Healthcheck(pool)
	case StoreMongo:
		var mcfg mongo.Config
		if err := config.Load(&mcfg); err != nil {
			return err
		}
		db, err := mongo.NewWithDatabase(ctx, mcfg)
		if err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
		client := db.Client()
		a.onClose("mongo", client.Disconnect)
		storage, err := notifications.NewMongoStorage(ctx, db, mcfg.Collection)
		if err != nil {
			return err
		}
		a.storage = storage
		a.checks["storage"] = mongo.Healthcheck(client)
	case StoreMemory:
		a.log.Warn("using in-memory storage, records do not survive a restart")
		a.storage = notifications.NewMemoryStorage()
	default:
		return fmt.Errorf("%w: %q", notifications.ErrUnknownDriver, a.cfg.StoreDriver)
	}
	return nil
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run serves HTTP and consumes the primary lane until ctx is cancelled or
// either of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(ctx, a.router)
	})
	g.Go(func() error {
		return a.consume(ctx)
	})

	a.log.InfoContext(ctx, "notifyd started",
		slog.String("broker", a.cfg.Broker.Driver),
		slog.String("store", a.cfg.StoreDriver))
	return g.Wait()
}

// stableConsume is how long a consumer has to run before a lost broker
// starts a fresh reconnect budget.
const stableConsume = time.Minute

// consume runs the consumer until ctx is cancelled. When the broker becomes
// unavailable it reconnects with exponential backoff and restarts the
// consumer, giving up after Broker.RetryAttempts consecutive failures.
func (a *App) consume(ctx context.Context) error {
	interval := a.cfg.Broker.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	newBackoff := func() retry.Backoff {
		return retry.WithMaxRetries(uint64(max(a.cfg.Broker.RetryAttempts, 0)), retry.NewExponential(interval))
	}
	backoff := newBackoff()

	err := retry.Do(ctx, retry.BackoffFunc(func() (time.Duration, bool) {
		return backoff.Next()
	}), func(ctx context.Context) error {
		if err := a.reconnect(ctx); err != nil {
			if errors.Is(err, broker.ErrBrokerUnavailable) {
				a.log.WarnContext(ctx, "broker reconnect failed, retrying", logger.Error(err))
				return retry.RetryableError(err)
			}
			return err
		}

		started := time.Now()
		err := a.consumer.Run(ctx)()
		if err == nil || !errors.Is(err, broker.ErrBrokerUnavailable) {
			return err
		}
		if time.Since(started) > stableConsume {
			backoff = newBackoff()
		}
		a.log.WarnContext(ctx, "consumer lost the broker, restarting", logger.Error(err))
		return retry.RetryableError(err)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// reconnect re-dials brokers that hold their own connection. Calling it on a
// healthy broker is a no-op.
func (a *App) reconnect(ctx context.Context) error {
	c, ok := a.broker.(interface{ Connect(context.Context) error })
	if !ok {
		return nil
	}
	return c.Connect(ctx)
}

// Shutdown stops consumer delivery and waits for the in-flight dispatch,
// then stops the HTTP server and closes the hub, the broker and the
// storage clients. Safe to call after Run returned.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.consumer != nil {
		if err := a.consumer.Stop(); err != nil && !errors.Is(err, queue.ErrConsumerNotRunning) {
			errs = append(errs, fmt.Errorf("consumer: %w", err))
		}
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	errs = append(errs, a.close(ctx))
	a.log.InfoContext(ctx, "notifyd stopped")
	return errors.Join(errs...)
}

// close releases the hub, the broker and the storage clients in that order.
func (a *App) close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("realtime: %w", err))
		}
	}
	if a.broker != nil {
		if err := a.broker.Close(); err != nil && !errors.Is(err, broker.ErrClosed) {
			errs = append(errs, fmt.Errorf("broker: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
