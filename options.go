package flow

import "github.com/rs/zerolog"

// AutoWorkerCount requests hardware-concurrency detection (fallback
// DefaultWorkerCount on failure).
const AutoWorkerCount = 0

// DefaultWorkerCount is used when hardware concurrency cannot be
// determined.
const DefaultWorkerCount = 4

// DefaultTaskQueueSize is the default bounded capacity of each worker's
// task queue.
const DefaultTaskQueueSize = 4096

// DefaultNotificationQueueSize is the default bounded capacity of the
// scheduler-wide notification queue.
const DefaultNotificationQueueSize = 4096

type config struct {
	workerCount           int
	taskQueueSize         int
	notificationQueueSize int
	logger                zerolog.Logger
}

func defaultConfig() config {
	return config{
		workerCount:           AutoWorkerCount,
		taskQueueSize:         DefaultTaskQueueSize,
		notificationQueueSize: DefaultNotificationQueueSize,
		logger:                defaultLogger(),
	}
}

// Option configures a Scheduler at construction time.
type Option func(*config)

// WithWorkerCount pins the worker count instead of auto-detecting it.
func WithWorkerCount(n int) Option {
	return func(c *config) { c.workerCount = n }
}

// WithTaskQueueSize overrides the per-worker task queue capacity.
func WithTaskQueueSize(n int) Option {
	return func(c *config) { c.taskQueueSize = n }
}

// WithNotificationQueueSize overrides the notification queue capacity.
func WithNotificationQueueSize(n int) Option {
	return func(c *config) { c.notificationQueueSize = n }
}

// WithLogger overrides the zerolog.Logger used for the Scheduler's own
// lifecycle event (the start message). Recovered task and notify panics
// are logged through flowlog.Logger, which this option does not change.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}
