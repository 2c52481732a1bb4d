package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
)

// Outcome classifies a completed FetchHTML call.
type Outcome string

const (
	OutcomeFetched  Outcome = "fetched"
	OutcomeCacheHit Outcome = "cache_hit"
	OutcomeFailed   Outcome = "failed"
)

// Observer receives fetch events, typically to feed metrics.
type Observer interface {
	FetchCompleted(outcome Outcome, elapsed time.Duration)
	FetchRetried()
}

// HTTPDoer is the subset of *http.Client the fetcher needs.
type HTTPDoer interface {
	Do(request *http.Request) (*http.Response, error)
}

// Client fetches pages according to a Config. It is safe for concurrent
// use; each request waits out its own politeness delay.
type Client struct {
	config     Config
	httpClient HTTPDoer
	cache      *DiskCache
	logger     *slog.Logger
	observer   Observer
	sleep      func(ctx context.Context, duration time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client built from the config.
func WithHTTPClient(httpClient HTTPDoer) ClientOption {
	return func(client *Client) {
		client.httpClient = httpClient
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithObserver registers an observer for fetch events.
func WithObserver(observer Observer) ClientOption {
	return func(client *Client) {
		client.observer = observer
	}
}

// NewClient creates a Client. The disk cache is opened when
// config.CacheDir is set.
func NewClient(config Config, options ...ClientOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fetch config: %w", err)
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}

	client := &Client{
		config: config,
		logger: slog.Default(),
		sleep:  sleepContext,
	}
	for _, option := range options {
		option(client)
	}

	if client.httpClient == nil {
		client.httpClient = newHTTPClient(config)
	}

	if config.CacheDir != "" {
		cache, err := NewDiskCache(config.CacheDir, config.CacheTTL)
		if err != nil {
			return nil, err
		}
		client.cache = cache
	}

	return client, nil
}

// PruneCache removes expired pages from the disk cache, if one is enabled.
func (client *Client) PruneCache() (int, error) {
	if client.cache == nil {
		return 0, nil
	}
	return client.cache.Prune()
}

func newHTTPClient(config Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !config.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in
	}
	return &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
		CheckRedirect: func(request *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// FetchHTML returns the decoded body of pageURL. Cached pages are returned
// without any delay; otherwise the politeness delay is observed before each
// attempt and transient failures are retried with exponential backoff.
func (client *Client) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	startedAt := time.Now()

	if client.cache != nil {
		if page, found := client.cache.Get(pageURL); found {
			client.logger.Debug("page cache hit", "url", pageURL)
			client.observe(OutcomeCacheHit, startedAt)
			return page.Body, nil
		}
	}

	body, err := client.fetchWithRetry(ctx, pageURL)
	if err != nil {
		client.observe(OutcomeFailed, startedAt)
		return "", err
	}

	if client.cache != nil {
		if cacheErr := client.cache.Set(pageURL, body); cacheErr != nil {
			client.logger.Warn("failed to cache page", "url", pageURL, "error", cacheErr)
		}
	}

	client.observe(OutcomeFetched, startedAt)
	return body, nil
}

func (client *Client) fetchWithRetry(ctx context.Context, pageURL string) (string, error) {
	maxRetries := client.config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			currentDelay := client.config.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			client.logger.Info("retrying fetch", "url", pageURL, "attempt", attempt+1, "delay", currentDelay, "error", lastErr)
			if client.observer != nil {
				client.observer.FetchRetried()
			}
			if err := client.sleep(ctx, currentDelay); err != nil {
				return "", err
			}
		}

		if err := client.sleep(ctx, client.politenessDelay()); err != nil {
			return "", err
		}

		body, err := client.fetchAttempt(ctx, pageURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryableError(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

// politenessDelay is Sleep plus a uniformly random share of Jitter.
func (client *Client) politenessDelay() time.Duration {
	delay := client.config.Sleep
	if client.config.Jitter > 0 {
		delay += time.Duration(rand.Int64N(int64(client.config.Jitter) + 1))
	}
	return delay
}

func (client *Client) fetchAttempt(ctx context.Context, pageURL string) (string, error) {
	requestCtx, cancel := context.WithTimeout(ctx, client.config.Timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(requestCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", pageURL, err)
	}
	request.Header.Set("User-Agent", client.config.UserAgent)
	request.Header.Set("Accept", "text/html, application/xhtml+xml")

	response, err := client.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", &StatusError{StatusCode: response.StatusCode, URL: pageURL}
	}

	rawBody, err := io.ReadAll(io.LimitReader(response.Body, client.config.MaxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read body from %s: %w", pageURL, err)
	}
	if int64(len(rawBody)) > client.config.MaxBodyBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, pageURL, client.config.MaxBodyBytes)
	}

	decodedReader, err := charset.NewReader(bytes.NewReader(rawBody), response.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to detect charset for %s: %w", pageURL, err)
	}
	decoded, err := io.ReadAll(decodedReader)
	if err != nil {
		return "", fmt.Errorf("failed to decode body from %s: %w", pageURL, err)
	}

	return string(decoded), nil
}

func (client *Client) observe(outcome Outcome, startedAt time.Time) {
	if client.observer != nil {
		client.observer.FetchCompleted(outcome, time.Since(startedAt))
	}
}

func sleepContext(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
