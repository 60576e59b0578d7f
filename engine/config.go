package engine

import "time"

// Config configures an Environment: spec §6's "controller API" config
// surface.
type Config struct {
	StartTime time.Time
	// Duration is nullable; nil means "run forever" until stopped or the
	// queue drains (with ExitWhenNoEvents).
	Duration *time.Duration
	// TimeIncrementInSeconds maps one wall-clock second to this many
	// virtual seconds in time-based mode. Must be >= 1.
	TimeIncrementInSeconds int
	// OracleMode honors OracleEvents and permits QueueBasedLoop.
	OracleMode bool
	// QueueBasedLoop uses the time-jumping loop instead of the
	// time-based one. Requires OracleMode.
	QueueBasedLoop bool
	// ExitWhenNoEvents ends the loop once the queue drains, instead of
	// running until Duration/stop. Only safe without a live agent.
	ExitWhenNoEvents bool
	// WaitForUserInputTimeout is a scripted-user reply timeout carried in
	// the config; nil means none. No tool or loop in this module reads it,
	// so setting it does not change how a run behaves.
	WaitForUserInputTimeout *time.Duration
	// DumpDir, when set, implies OracleMode and causes the environment to
	// store "initial_state"/"final_state" snapshots in the bbolt file
	// aresim.db under this directory (via persist.BoltStore). No JSON-lines
	// file is written.
	DumpDir *string
	// NotificationQueueCapacity bounds the notify.Queue; <= 0 means
	// unbounded.
	NotificationQueueCapacity int
}

// Option configures a Config, following the functional-options shape the
// teacher's runtime.RunOption uses.
type Option func(*Config)

// WithDuration bounds the run to d virtual seconds from StartTime.
func WithDuration(d time.Duration) Option {
	return func(c *Config) { c.Duration = &d }
}

// WithTimeIncrement sets the wall-second to virtual-second ratio for
// time-based mode.
func WithTimeIncrement(seconds int) Option {
	return func(c *Config) { c.TimeIncrementInSeconds = seconds }
}

// WithOracleMode toggles oracle mode.
func WithOracleMode(enabled bool) Option {
	return func(c *Config) { c.OracleMode = enabled }
}

// WithQueueBasedLoop toggles the time-jumping loop. Only meaningful
// alongside WithOracleMode(true).
func WithQueueBasedLoop(enabled bool) Option {
	return func(c *Config) { c.QueueBasedLoop = enabled }
}

// WithExitWhenNoEvents toggles exiting the loop once the queue drains.
func WithExitWhenNoEvents(enabled bool) Option {
	return func(c *Config) { c.ExitWhenNoEvents = enabled }
}

// WithWaitForUserInputTimeout sets Config.WaitForUserInputTimeout, which
// nothing in this module reads.
func WithWaitForUserInputTimeout(d time.Duration) Option {
	return func(c *Config) { c.WaitForUserInputTimeout = &d }
}

// WithDumpDir sets the oracle-mode state dump directory.
func WithDumpDir(dir string) Option {
	return func(c *Config) {
		c.DumpDir = &dir
		c.OracleMode = true
	}
}

// WithNotificationQueueCapacity bounds the notification queue.
func WithNotificationQueueCapacity(n int) Option {
	return func(c *Config) { c.NotificationQueueCapacity = n }
}

// NewConfig builds a Config from StartTime plus options, defaulting
// TimeIncrementInSeconds to 1 (the tightest legal value).
func NewConfig(startTime time.Time, opts ...Option) Config {
	c := Config{StartTime: startTime, TimeIncrementInSeconds: 1}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
