package bibdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-datastore"
	"github.com/relaton/go-relaton/provider"
)

const (
	defaultRetries = 1
	defaultTTL     = 60 * 24 * time.Hour
)

type config struct {
	registry *provider.Registry

	globalDir   string
	localDir    string
	staticDir   string
	globalStore datastore.Datastore
	localStore  datastore.Datastore
	staticStore datastore.Datastore

	ttl     time.Duration
	clock   func() time.Time
	retries int
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		ttl:     defaultTTL,
		clock:   time.Now,
		retries: defaultRetries,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithRegistry sets the providers that codes are resolved with. Required.
func WithRegistry(r *provider.Registry) Option {
	return func(cfg *config) error {
		if r == nil {
			return errors.New("nil registry")
		}
		cfg.registry = r
		return nil
	}
}

// WithGlobalCache keeps the global cache tier in files under dir. The global
// tier is shared by all users of the machine.
func WithGlobalCache(dir string) Option {
	return func(cfg *config) error {
		cfg.globalDir = dir
		return nil
	}
}

// WithLocalCache keeps the local cache tier in files under dir. The local
// tier belongs to one project and takes precedence over the global tier.
func WithLocalCache(dir string) Option {
	return func(cfg *config) error {
		cfg.localDir = dir
		return nil
	}
}

// WithStaticCache reads bundled YAML items from files under dir. The static
// tier is never written.
func WithStaticCache(dir string) Option {
	return func(cfg *config) error {
		cfg.staticDir = dir
		return nil
	}
}

// WithGlobalStore keeps the global cache tier in ds. Takes precedence over
// WithGlobalCache.
func WithGlobalStore(ds datastore.Datastore) Option {
	return func(cfg *config) error {
		cfg.globalStore = ds
		return nil
	}
}

// WithLocalStore keeps the local cache tier in ds. Takes precedence over
// WithLocalCache.
func WithLocalStore(ds datastore.Datastore) Option {
	return func(cfg *config) error {
		cfg.localStore = ds
		return nil
	}
}

// WithStaticStore reads the static tier from ds. Takes precedence over
// WithStaticCache.
func WithStaticStore(ds datastore.Datastore) Option {
	return func(cfg *config) error {
		cfg.staticStore = ds
		return nil
	}
}

// WithTTL sets how long entries fetched for undated codes stay valid.
//
// Default is 60 days.
func WithTTL(ttl time.Duration) Option {
	return func(cfg *config) error {
		if ttl <= 0 {
			return errors.New("ttl must be positive")
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

// WithDefaultRetries sets the number of fetch attempts made on transient
// provider failures when a lookup does not set its own.
//
// Default is 1.
func WithDefaultRetries(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return errors.New("retries must be at least 1")
		}
		cfg.retries = n
		return nil
	}
}
