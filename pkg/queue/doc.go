// Package queue implements the asynchronous notification pipeline on top of a
// broker.Broker.
//
// The package is organised around three components:
//
//   - Publisher: wraps notification data in an Envelope and puts it on the primary lane
//   - Dispatcher: maps a NotificationType to the Handler that delivers it
//   - Consumer: pulls envelopes, dispatches them and settles each delivery
//
// # Retry policy
//
// Every envelope carries an Attempts counter that starts at zero. When a
// handler fails, the consumer looks at the counter:
//
//  1. Attempts < MaxAttempts: the envelope is republished to the retry lane
//     with Attempts+1 and the original is acknowledged. The retry lane holds
//     it for RetryDelay and then dead-letters it back to the primary lane.
//  2. Attempts >= MaxAttempts: the envelope is acknowledged and dropped.
//
// A handler that always fails is therefore invoked MaxAttempts+1 times.
// Envelopes that can never succeed (undecodable bodies, types with no
// registered handler, errors marked with Permanent) skip the retry lane.
// Dropped and rejected envelopes are written to a DeadLetterSink when one is
// configured.
//
// # Usage
//
//	cfg := queue.DefaultConfig()
//	if err := queue.DeclareTopology(ctx, b, cfg); err != nil {
//	    return err
//	}
//
//	d := queue.NewDispatcher()
//	_ = d.Register(queue.TypeEmail, queue.NewTypedHandler(sendEmail))
//
//	c, _ := queue.NewConsumer(b, d, queue.WithConfig(cfg))
//	g.Go(c.Run(ctx))
//
//	p, _ := queue.NewPublisher(b)
//	_ = p.Publish(ctx, queue.TypeEmail, map[string]any{"to": "user@example.com"})
//
// Delivery is at-least-once: a crash between a successful handler and the
// acknowledgement redelivers the envelope.
package queue
