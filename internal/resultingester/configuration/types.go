package configuration

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/surgeworks/surge/internal/common/configuration"
)

type ResultIngesterConfiguration struct {
	// Database configuration
	Postgres configuration.PostgresConfig
	// Queue the ingester consumes from
	Queue configuration.QueueConfig
	// Metrics configuration
	Metrics configuration.MetricsConfig
	// Maximum number of envelopes fetched in one receive
	BatchSize int `validate:"gte=1"`
	// Maximum time a receive waits for envelopes before returning what it has
	BatchDuration time.Duration `validate:"gt=0"`
	// Time after which stored results become invisible to queries
	ResultRetentionPolicy ResultRetentionPolicy
	// How often physically expired rows are deleted; zero disables the janitor
	JanitorInterval time.Duration
}

type ResultRetentionPolicy struct {
	RetentionDuration time.Duration `validate:"gt=0"`
}

func (c ResultIngesterConfiguration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
