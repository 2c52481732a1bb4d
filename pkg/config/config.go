// Package config loads cgscrawl settings from defaults, an optional
// cgscrawl.yaml file, CGS_* environment variables, and command-line flags.
package config

import (
	"path/filepath"
	"time"

	"github.com/coolbeans/cgscrawl/pkg/crawler"
	"github.com/coolbeans/cgscrawl/pkg/fetch"
)

// Config is the complete cgscrawl configuration.
type Config struct {
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Crawl  CrawlConfig  `yaml:"crawl" mapstructure:"crawl"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// FetchConfig configures page retrieval.
type FetchConfig struct {
	TitlesURL      string        `yaml:"titles_url" mapstructure:"titles_url"`
	UserAgent      string        `yaml:"user_agent" mapstructure:"user_agent"`
	Sleep          time.Duration `yaml:"sleep" mapstructure:"sleep"`   // base politeness delay
	Jitter         time.Duration `yaml:"jitter" mapstructure:"jitter"` // random extra delay, up to this much
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	VerifyTLS      bool          `yaml:"verify_tls" mapstructure:"verify_tls"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	CacheDir       string        `yaml:"cache_dir" mapstructure:"cache_dir"` // empty disables the page cache
	CacheTTL       time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// CrawlConfig configures the crawl itself.
type CrawlConfig struct {
	Workers     int      `yaml:"workers" mapstructure:"workers"`           // concurrent chapter fetches per title
	TitleFilter []string `yaml:"title_filter" mapstructure:"title_filter"` // title keys to crawl; empty means all
	Resume      bool     `yaml:"resume" mapstructure:"resume"`
	StateFile   string   `yaml:"state_file" mapstructure:"state_file"` // relative paths resolve against output.dir
}

// OutputConfig configures where results are written.
type OutputConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	IndexFile   string `yaml:"index_file" mapstructure:"index_file"`     // combined index; relative to dir unless absolute
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`   // empty disables the SQLite export
	MetricsPath string `yaml:"metrics_path" mapstructure:"metrics_path"` // empty disables the metrics textfile
	Report      string `yaml:"report" mapstructure:"report"`             // "table" or "json"
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	fetchDefaults := fetch.DefaultConfig()
	return &Config{
		Fetch: FetchConfig{
			TitlesURL:      crawler.DefaultTitlesURL,
			UserAgent:      fetchDefaults.UserAgent,
			Sleep:          fetchDefaults.Sleep,
			Jitter:         fetchDefaults.Jitter,
			Timeout:        fetchDefaults.Timeout,
			VerifyTLS:      fetchDefaults.VerifyTLS,
			MaxRetries:     fetchDefaults.MaxRetries,
			RetryBaseDelay: fetchDefaults.RetryBaseDelay,
			MaxBodyBytes:   fetchDefaults.MaxBodyBytes,
			CacheDir:       "",
			CacheTTL:       fetchDefaults.CacheTTL,
		},
		Crawl: CrawlConfig{
			Workers:     crawler.DefaultWorkers,
			TitleFilter: []string{},
			Resume:      false,
			StateFile:   crawler.DefaultStateFileName,
		},
		Output: OutputConfig{
			Dir:       "data",
			IndexFile: "cgs_index.json",
			Report:    "table",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// FetchClientConfig converts the fetch section for fetch.NewClient.
func (cfg *Config) FetchClientConfig() fetch.Config {
	return fetch.Config{
		UserAgent:      cfg.Fetch.UserAgent,
		Sleep:          cfg.Fetch.Sleep,
		Jitter:         cfg.Fetch.Jitter,
		Timeout:        cfg.Fetch.Timeout,
		VerifyTLS:      cfg.Fetch.VerifyTLS,
		MaxRetries:     cfg.Fetch.MaxRetries,
		RetryBaseDelay: cfg.Fetch.RetryBaseDelay,
		MaxBodyBytes:   cfg.Fetch.MaxBodyBytes,
		CacheDir:       cfg.Fetch.CacheDir,
		CacheTTL:       cfg.Fetch.CacheTTL,
	}
}

// CrawlerConfig converts the crawl section for crawler.NewCrawler.
func (cfg *Config) CrawlerConfig() crawler.Config {
	return crawler.Config{
		TitlesURL:   cfg.Fetch.TitlesURL,
		UserAgent:   cfg.Fetch.UserAgent,
		Workers:     cfg.Crawl.Workers,
		TitleFilter: cfg.Crawl.TitleFilter,
		StatePath:   cfg.StatePath(),
		Resume:      cfg.Crawl.Resume,
	}
}

// StatePath returns the crawl state file location, or "" when disabled.
func (cfg *Config) StatePath() string {
	return cfg.resolveOutput(cfg.Crawl.StateFile)
}

func (cfg *Config) resolveOutput(filePath string) string {
	if filePath == "" || filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(cfg.Output.Dir, filePath)
}
