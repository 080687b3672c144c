package paginate

import "github.com/rs/zerolog"

// Config holds the coordinator configuration.
type Config struct {
	// MaxConcurrentMeasurements bounds parallel renderer measurements.
	MaxConcurrentMeasurements int

	// QueueBuffer sizes the measurement scheduler's task queue.
	QueueBuffer int

	// SubscriptionBuffer sizes each subscriber channel. Delivery is
	// non-blocking; a full buffer drops the update with a warning.
	SubscriptionBuffer int

	// Logger is an optional component logger. If nil, one is derived
	// from the global zerolog logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentMeasurements: 2,
		QueueBuffer:               64,
		SubscriptionBuffer:        16,
	}
}
