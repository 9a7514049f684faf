// Package redis connects to the Redis server that backs the redis broker
// driver.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	b := broker.NewRedis(client, brokerCfg, broker.WithLogger(log))
//
// Connect retries the first PING with exponential backoff. Healthcheck plugs
// into the readiness endpoint.
package redis
