package dbcache

import (
	"fmt"
	"time"
)

const (
	defaultTTL = 60 * 24 * time.Hour
	defaultExt = "xml"
)

type config struct {
	name     string
	ext      string
	readOnly bool
	ttl      time.Duration
	clock    func() time.Time
	version  func(namespace string) string
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		ext:     defaultExt,
		ttl:     defaultTTL,
		clock:   time.Now,
		version: func(string) string { return "" },
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithName sets the name used for the cache in logs and metrics.
func WithName(name string) Option {
	return func(cfg *config) error {
		cfg.name = name
		return nil
	}
}

// WithExt sets the extension of the files written by a cache created with
// Open.
//
// Default is "xml".
func WithExt(ext string) Option {
	return func(cfg *config) error {
		cfg.ext = ext
		return nil
	}
}

// WithTTL sets how long an undated lookup treats an entry as valid after it
// was fetched. Entries looked up with an explicit year never expire.
//
// Default is 60 days.
func WithTTL(ttl time.Duration) Option {
	return func(cfg *config) error {
		if ttl <= 0 {
			return fmt.Errorf("ttl must be positive")
		}
		cfg.ttl = ttl
		return nil
	}
}

// WithClock sets the function that returns the current time.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) error {
		if now != nil {
			cfg.clock = now
		}
		return nil
	}
}

// WithVersionFunc sets the function returning the grammar version of a
// namespace. The version is stamped into each namespace when it is first
// written and compared by CheckVersion.
func WithVersionFunc(fn func(namespace string) string) Option {
	return func(cfg *config) error {
		if fn != nil {
			cfg.version = fn
		}
		return nil
	}
}

// ReadOnly makes every write to the cache fail with ErrReadOnly.
func ReadOnly() Option {
	return func(cfg *config) error {
		cfg.readOnly = true
		return nil
	}
}
