// Package broker abstracts the message transport under the notification
// pipeline.
//
// A Broker exposes named lanes. Publishing appends to the tail of a lane;
// consuming yields one unsettled Delivery at a time that must be acknowledged
// or rejected. Delay lanes hold each message for a fixed TTL and then move it
// to the tail of their dead-letter target, which is how retries are scheduled.
//
// Three implementations are provided:
//
//   - AMQP: RabbitMQ queues on the default exchange. Delay lanes use
//     x-message-ttl with dead-lettering back to the primary queue.
//   - Redis: lists with a per-process processing list for unacked messages and
//     sorted sets for delay lanes.
//   - Memory: in-process lanes with a heap-based delay scheduler, for tests
//     and local development.
//
// AMQP does not reconnect on its own: when the connection drops, operations
// fail with ErrBrokerUnavailable and consumer channels close until Connect is
// called again. The Redis client redials per command, but a consumer whose
// blocking pop fails still closes its channel.
package broker
