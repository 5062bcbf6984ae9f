package scheduler

import (
	"time"
)

// Config controls job timeouts and the cron time zone.
type Config struct {
	RentJobTimeout time.Duration
	// LockWait bounds how long a run waits for another instance holding the
	// same job lock before skipping.
	LockWait time.Duration
	Location *time.Location
}

func DefaultConfig() Config {
	return Config{
		RentJobTimeout: 30 * time.Minute,
		LockWait:       time.Second,
		Location:       time.UTC,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RentJobTimeout <= 0 {
		c.RentJobTimeout = defaults.RentJobTimeout
	}
	if c.LockWait <= 0 {
		c.LockWait = defaults.LockWait
	}
	if c.Location == nil {
		c.Location = defaults.Location
	}
	return c
}
