// Package mongo connects to MongoDB for the notification store.
//
// Configuration comes from MONGODB_* environment variables. New retries the
// initial connect and ping with exponential backoff, which covers the usual
// container start ordering where the service comes up before the database.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store, err := notifications.NewMongoStorage(ctx, db, cfg.Collection)
//
// Healthcheck plugs into the readiness endpoint.
package mongo
