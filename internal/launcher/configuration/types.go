package configuration

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/surgeworks/surge/internal/common/configuration"
)

type LauncherConfiguration struct {
	// Port the launch API listens on
	HttpPort uint16 `validate:"required"`
	// Metrics configuration
	Metrics configuration.MetricsConfig
	// Queue whose address is injected into every worker
	Queue configuration.QueueConfig
	// Worker execution substrate configuration
	Worker WorkerExecutionConfig
}

type WorkerExecutionConfig struct {
	// Path to the worker binary started for each index
	BinaryPath string `validate:"required"`
	// Total start attempts per worker index, including the first
	StartAttempts uint `validate:"gte=1"`
	// Delay between start attempts
	StartRetryDelay time.Duration
}

func (c LauncherConfiguration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
