// Package notifications owns the notification record: how requests are
// validated and stored, how they enter the delivery pipeline, and how
// pipeline outcomes flow back onto the stored record.
//
// # Components
//
//   - Storage persists records. MemoryStorage, MongoStorage and
//     PostgresStorage implement it; the Postgres schema ships as embedded
//     goose migrations in Migrations.
//   - Service validates a Request, stores a pending Record and publishes
//     the channel payload through a queue publisher.
//   - Tracker is a queue.Observer that moves records to sent or failed and
//     keeps the attempt counter current.
//   - EmailHandler, SMSHandler and InAppHandler are the dispatcher handlers
//     for each channel. Errors that cannot succeed on retry are wrapped with
//     queue.Permanent.
//
// # Usage
//
//	store := notifications.NewMemoryStorage()
//	svc := notifications.NewService(store, publisher)
//	rec, err := svc.Send(ctx, notifications.Request{
//	    UserID:  "u-1",
//	    Type:    "email",
//	    To:      "user@example.com",
//	    Title:   "Welcome",
//	    Message: "Thanks for joining",
//	})
//
//	consumer, _ := queue.NewConsumer(b, dispatcher,
//	    queue.WithObserver(notifications.NewTracker(store, log)))
package notifications
