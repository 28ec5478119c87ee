package provider

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"
)

// BaseOption configures a Base.
type BaseOption func(*Base) error

// WithDefaultPrefix sets a pattern matching codes that belong to the provider
// even though they do not start with its prefix.
func WithDefaultPrefix(pattern string) BaseOption {
	return func(b *Base) error {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return err
		}
		b.defaultPrefix = re
		return nil
	}
}

// WithIDType sets the identifier type. Default is the prefix.
func WithIDType(idType string) BaseOption {
	return func(b *Base) error {
		b.idType = idType
		return nil
	}
}

// WithWorkers sets the number of concurrent asynchronous fetches.
//
// Default is 10.
func WithWorkers(n int) BaseOption {
	return func(b *Base) error {
		if n < 1 {
			return errors.New("workers must be at least 1")
		}
		b.workers = n
		return nil
	}
}

// WithGrammarHash sets the grammar version stamped on cached entries.
func WithGrammarHash(hash string) BaseOption {
	return func(b *Base) error {
		b.grammarHash = hash
		return nil
	}
}

// WithYearSeparator sets the separator between code and year in cache keys.
//
// Default is ":".
func WithYearSeparator(sep string) BaseOption {
	return func(b *Base) error {
		b.yearSep = sep
		return nil
	}
}

type httpConfig struct {
	client       *http.Client
	header       http.Header
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	rateLimit    float64
	rateBurst    int
	timeout      time.Duration
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*httpConfig) error

func getHTTPOpts(opts []HTTPOption) (httpConfig, error) {
	cfg := httpConfig{
		client: http.DefaultClient,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return httpConfig{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithClient sets the http client used to reach the provider service.
func WithClient(c *http.Client) HTTPOption {
	return func(cfg *httpConfig) error {
		if c != nil {
			cfg.client = c
		}
		return nil
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) HTTPOption {
	return func(cfg *httpConfig) error {
		if cfg.header == nil {
			cfg.header = make(http.Header)
		}
		cfg.header.Add(key, value)
		return nil
	}
}

// WithHTTPRetries retries requests that fail at the transport level or with a
// server error, waiting between waitMin and waitMax between attempts. Retries
// at this level happen within a single provider fetch.
func WithHTTPRetries(retryMax int, waitMin, waitMax time.Duration) HTTPOption {
	return func(cfg *httpConfig) error {
		if retryMax < 0 {
			return errors.New("retry max cannot be negative")
		}
		cfg.retryMax = retryMax
		cfg.retryWaitMin = waitMin
		cfg.retryWaitMax = waitMax
		return nil
	}
}

// WithRateLimit limits requests to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(cfg *httpConfig) error {
		if rps <= 0 {
			return errors.New("rate limit must be positive")
		}
		if burst < 1 {
			burst = 1
		}
		cfg.rateLimit = rps
		cfg.rateBurst = burst
		return nil
	}
}

// WithTimeout sets the timeout of each request.
func WithTimeout(d time.Duration) HTTPOption {
	return func(cfg *httpConfig) error {
		cfg.timeout = d
		return nil
	}
}
