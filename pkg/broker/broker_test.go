package broker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/broker"
)

func TestLane_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		lane    broker.Lane
		wantErr bool
	}{
		{name: "primary", lane: broker.Lane{Name: "notifications", Durable: true}},
		{name: "delay", lane: broker.Lane{Name: "notifications_retry", MessageTTL: 5 * time.Second, DeadLetterTo: "notifications"}},
		{name: "empty name", lane: broker.Lane{}, wantErr: true},
		{name: "negative ttl", lane: broker.Lane{Name: "x", MessageTTL: -time.Second}, wantErr: true},
		{name: "self dead-letter", lane: broker.Lane{Name: "x", MessageTTL: time.Second, DeadLetterTo: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.lane.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, broker.ErrInvalidLane)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLane_IsDelay(t *testing.T) {
	t.Parallel()

	assert.False(t, broker.Lane{Name: "a"}.IsDelay())
	assert.False(t, broker.Lane{Name: "a", MessageTTL: time.Second}.IsDelay())
	assert.True(t, broker.Lane{Name: "a", MessageTTL: time.Second, DeadLetterTo: "b"}.IsDelay())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, broker.Config{Driver: broker.DriverAMQP, Prefetch: 1}.Validate())
	assert.NoError(t, broker.Config{Driver: broker.DriverMemory, Prefetch: 1}.Validate())
	assert.ErrorIs(t, broker.Config{Driver: "kafka", Prefetch: 1}.Validate(), broker.ErrUnknownDriver)
	assert.Error(t, broker.Config{Driver: broker.DriverRedis}.Validate())
}

func TestDelivery_ZeroValue(t *testing.T) {
	t.Parallel()

	var d broker.Delivery
	assert.ErrorIs(t, d.Ack(), broker.ErrAlreadySettled)
	assert.ErrorIs(t, d.Nack(true), broker.ErrAlreadySettled)
}
