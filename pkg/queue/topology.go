package queue

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/broker"
)

// Topology returns the lanes the pipeline needs: a durable primary lane, a
// durable retry lane that holds messages for RetryDelay and dead-letters them
// back to the primary lane, and the dead lane when dead letters are enabled.
func Topology(cfg Config) []broker.Lane {
	lanes := []broker.Lane{
		{Name: cfg.PrimaryLane, Durable: true},
		{Name: cfg.RetryLane, Durable: true, MessageTTL: cfg.RetryDelay, DeadLetterTo: cfg.PrimaryLane},
	}
	if cfg.DeadLetters {
		lanes = append(lanes, broker.Lane{Name: cfg.DeadLane, Durable: true})
	}
	return lanes
}

// DeclareTopology declares every lane from Topology on b.
func DeclareTopology(ctx context.Context, b broker.Broker, cfg Config) error {
	for _, lane := range Topology(cfg) {
		if err := b.Declare(ctx, lane); err != nil {
			return fmt.Errorf("declare lane %q: %w", lane.Name, err)
		}
	}
	return nil
}
