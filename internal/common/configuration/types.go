package configuration

import (
	"time"

	"github.com/go-redis/redis/v8"
)

type PostgresConfig struct {
	// Connection parameters in libpq key/value form, e.g. host, port, dbname.
	Connection map[string]string
}

type QueueConfig struct {
	// Redis hosting the queue state
	Redis redis.UniversalOptions
	// Name of the queue; all redis keys are derived from it
	Name string
	// How long a delivered message stays invisible to other consumers
	// before it becomes eligible for redelivery
	VisibilityTimeout time.Duration
	// Number of deliveries after which an unacknowledged message is moved
	// to the dead-letter channel instead of being redelivered
	MaxDeliveries int
	// Retention of unconsumed messages on the main channel
	Retention time.Duration
	// Retention of messages on the dead-letter channel
	DeadLetterRetention time.Duration
	// How often a blocked Receive re-polls for new messages
	PollInterval time.Duration
	// How often expired visibility leases are swept
	SweepInterval time.Duration
}

type MetricsConfig struct {
	Port uint16
}
