package delivery

import "time"

type Config struct {
	WaitForConfirmation bool
	DefaultTimeout      time.Duration
	MaxRetries          int
	RetryDelay          time.Duration
	CleanupAfter        time.Duration
	PollInterval        time.Duration
}

func DefaultConfig() Config {
	return Config{
		WaitForConfirmation: true,
		DefaultTimeout:      30 * time.Second,
		MaxRetries:          3,
		RetryDelay:          2 * time.Second,
		CleanupAfter:        5 * time.Minute,
		PollInterval:        100 * time.Millisecond,
	}
}

// MaxAttempts is the attempt budget of one tracking.
func (c Config) MaxAttempts() int {
	return c.MaxRetries + 1
}

// WorstCaseLatency bounds one Send call.
func (c Config) WorstCaseLatency() time.Duration {
	return (c.DefaultTimeout + c.RetryDelay) * time.Duration(c.MaxAttempts())
}

func (c Config) normalize() Config {
	defaults := DefaultConfig()
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaults.DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.CleanupAfter <= 0 {
		c.CleanupAfter = defaults.CleanupAfter
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.PollInterval > c.DefaultTimeout {
		c.PollInterval = c.DefaultTimeout
	}
	return c
}
