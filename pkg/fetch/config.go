// Package fetch retrieves cga.ct.gov pages politely: a fixed delay plus
// random jitter before each network request, per-request timeouts, retries
// with exponential backoff on transient failures, and an optional on-disk
// page cache.
package fetch

import (
	"fmt"
	"time"
)

// DefaultUserAgent identifies the crawler to cga.ct.gov.
const DefaultUserAgent = "Mozilla/5.0 (compatible; CTStatutesIndexer/1.0; +https://www.cga.ct.gov/current/pub/titles.htm)"

// DefaultSleep is the base politeness delay before each request.
const DefaultSleep = 300 * time.Millisecond

// DefaultJitter is the maximum random delay added to DefaultSleep.
const DefaultJitter = 200 * time.Millisecond

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultMaxRetries is the default number of attempts per URL.
const DefaultMaxRetries = 3

// DefaultRetryBaseDelay is the backoff before the second attempt; it doubles
// for each attempt after that.
const DefaultRetryBaseDelay = 1 * time.Second

// DefaultMaxBodyBytes caps the size of a fetched page.
const DefaultMaxBodyBytes = 20 * 1024 * 1024

// DefaultCacheTTL is the default time-to-live for cached pages.
const DefaultCacheTTL = 24 * time.Hour

// Config holds the fetch policy. It is passed explicitly to the client; the
// fetch layer keeps no process-wide state.
type Config struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Sleep is the fixed delay before each network request.
	Sleep time.Duration

	// Jitter is the upper bound of a uniformly random delay added to Sleep.
	Jitter time.Duration

	// Timeout bounds a single request, including reading the body.
	Timeout time.Duration

	// VerifyTLS controls certificate verification. CGA has served
	// incomplete certificate chains in the past; disabling verification is
	// an explicit operator choice.
	VerifyTLS bool

	// MaxRetries is the number of attempts per URL for transient errors.
	MaxRetries int

	// RetryBaseDelay is the first backoff delay between attempts.
	RetryBaseDelay time.Duration

	// MaxBodyBytes is the largest accepted response body.
	MaxBodyBytes int64

	// CacheDir enables the on-disk page cache when non-empty.
	CacheDir string

	// CacheTTL is how long cached pages stay valid.
	CacheTTL time.Duration
}

// DefaultConfig returns the fetch policy used by the crawler.
func DefaultConfig() Config {
	return Config{
		UserAgent:      DefaultUserAgent,
		Sleep:          DefaultSleep,
		Jitter:         DefaultJitter,
		Timeout:        DefaultTimeout,
		VerifyTLS:      true,
		MaxRetries:     DefaultMaxRetries,
		RetryBaseDelay: DefaultRetryBaseDelay,
		MaxBodyBytes:   DefaultMaxBodyBytes,
		CacheTTL:       DefaultCacheTTL,
	}
}

// Validate reports configuration values the client cannot work with.
func (config Config) Validate() error {
	switch {
	case config.Sleep < 0:
		return fmt.Errorf("sleep must not be negative: %s", config.Sleep)
	case config.Jitter < 0:
		return fmt.Errorf("jitter must not be negative: %s", config.Jitter)
	case config.Timeout <= 0:
		return fmt.Errorf("timeout must be positive: %s", config.Timeout)
	case config.MaxRetries < 1:
		return fmt.Errorf("max retries must be at least 1: %d", config.MaxRetries)
	case config.RetryBaseDelay < 0:
		return fmt.Errorf("retry base delay must not be negative: %s", config.RetryBaseDelay)
	case config.MaxBodyBytes <= 0:
		return fmt.Errorf("max body bytes must be positive: %d", config.MaxBodyBytes)
	case config.CacheDir != "" && config.CacheTTL <= 0:
		return fmt.Errorf("cache TTL must be positive when caching is enabled: %s", config.CacheTTL)
	}
	return nil
}
