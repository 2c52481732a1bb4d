package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

var (
	// ErrInvalidOutput indicates an unusable output directory.
	ErrInvalidOutput = errors.New("invalid output directory")

	// ErrInvalidDuration indicates a negative delay or a missing timeout.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidWorkers indicates a worker count below one.
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidTitlesURL indicates a titles URL that is not absolute http(s).
	ErrInvalidTitlesURL = errors.New("invalid titles url")

	// ErrInvalidLogSettings indicates an unknown log level or format.
	ErrInvalidLogSettings = errors.New("invalid log settings")

	// ErrInvalidReportFormat indicates an unknown report format.
	ErrInvalidReportFormat = errors.New("invalid report format")
)

// Validate checks the configuration before any network activity and
// reports every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateFetch(&cfg.Fetch); err != nil {
		errs = append(errs, err)
	}
	if cfg.Crawl.Workers < 1 {
		errs = append(errs, fmt.Errorf("%w: crawl.workers must be at least 1, got %d", ErrInvalidWorkers, cfg.Crawl.Workers))
	}
	if err := validateOutput(&cfg.Output); err != nil {
		errs = append(errs, err)
	}
	if err := validateLog(&cfg.Log); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateFetch(fetchConfig *FetchConfig) error {
	var errs []error

	parsedURL, err := url.Parse(fetchConfig.TitlesURL)
	if err != nil || !parsedURL.IsAbs() || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidTitlesURL, fetchConfig.TitlesURL))
	}

	durations := []struct {
		key   string
		value int64
	}{
		{"fetch.sleep", int64(fetchConfig.Sleep)},
		{"fetch.jitter", int64(fetchConfig.Jitter)},
		{"fetch.retry_base_delay", int64(fetchConfig.RetryBaseDelay)},
		{"fetch.cache_ttl", int64(fetchConfig.CacheTTL)},
	}
	for _, duration := range durations {
		if duration.value < 0 {
			errs = append(errs, fmt.Errorf("%w: %s must not be negative", ErrInvalidDuration, duration.key))
		}
	}
	if fetchConfig.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: fetch.timeout must be positive", ErrInvalidDuration))
	}
	if fetchConfig.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("fetch.max_retries must be at least 1, got %d", fetchConfig.MaxRetries))
	}
	if fetchConfig.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("fetch.max_body_bytes must be positive, got %d", fetchConfig.MaxBodyBytes))
	}

	return errors.Join(errs...)
}

func validateOutput(outputConfig *OutputConfig) error {
	if strings.TrimSpace(outputConfig.Dir) == "" {
		return fmt.Errorf("%w: output.dir is required", ErrInvalidOutput)
	}
	if info, err := os.Stat(outputConfig.Dir); err == nil && !info.IsDir() {
		return fmt.Errorf("%w: %s exists and is not a directory", ErrInvalidOutput, outputConfig.Dir)
	}

	switch strings.ToLower(outputConfig.Report) {
	case "table", "json":
	default:
		return fmt.Errorf("%w: %q (use table or json)", ErrInvalidReportFormat, outputConfig.Report)
	}
	return nil
}

func validateLog(logConfig *LogConfig) error {
	switch strings.ToLower(logConfig.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: level %q", ErrInvalidLogSettings, logConfig.Level)
	}
	switch strings.ToLower(logConfig.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: format %q", ErrInvalidLogSettings, logConfig.Format)
	}
	return nil
}
