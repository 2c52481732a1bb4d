package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file name searched for without an explicit path.
const FileName = "cgscrawl.yaml"

// EnvPrefix prefixes environment overrides, e.g. CGS_FETCH_SLEEP.
const EnvPrefix = "CGS"

// LoadOptions controls where configuration comes from.
type LoadOptions struct {
	// ConfigFile is an explicit config path; it must exist when set.
	ConfigFile string

	// SearchPaths are directories searched for cgscrawl.yaml when
	// ConfigFile is empty. Nil means "." and $HOME/.config/cgscrawl.
	SearchPaths []string

	// Flags maps config keys to command-line flags. A flag only overrides
	// the other sources when it was set explicitly.
	Flags map[string]*pflag.Flag
}

// Loaded is a validated configuration and the file it came from, if any.
type Loaded struct {
	Config *Config
	File   string
}

// Load resolves configuration with the following priority (highest first):
// explicit flags, CGS_* environment variables, the config file, defaults.
func Load(options LoadOptions) (*Loaded, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if options.ConfigFile != "" {
		v.SetConfigFile(options.ConfigFile)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		for _, searchPath := range defaultSearchPaths(options.SearchPaths) {
			v.AddConfigPath(searchPath)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if options.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, flag := range options.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Crawl.TitleFilter = splitList(cfg.Crawl.TitleFilter)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Loaded{Config: cfg, File: v.ConfigFileUsed()}, nil
}

// setDefaults registers every key so environment variables can reach it.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("fetch.titles_url", defaults.Fetch.TitlesURL)
	v.SetDefault("fetch.user_agent", defaults.Fetch.UserAgent)
	v.SetDefault("fetch.sleep", defaults.Fetch.Sleep)
	v.SetDefault("fetch.jitter", defaults.Fetch.Jitter)
	v.SetDefault("fetch.timeout", defaults.Fetch.Timeout)
	v.SetDefault("fetch.verify_tls", defaults.Fetch.VerifyTLS)
	v.SetDefault("fetch.max_retries", defaults.Fetch.MaxRetries)
	v.SetDefault("fetch.retry_base_delay", defaults.Fetch.RetryBaseDelay)
	v.SetDefault("fetch.max_body_bytes", defaults.Fetch.MaxBodyBytes)
	v.SetDefault("fetch.cache_dir", defaults.Fetch.CacheDir)
	v.SetDefault("fetch.cache_ttl", defaults.Fetch.CacheTTL)

	v.SetDefault("crawl.workers", defaults.Crawl.Workers)
	v.SetDefault("crawl.title_filter", defaults.Crawl.TitleFilter)
	v.SetDefault("crawl.resume", defaults.Crawl.Resume)
	v.SetDefault("crawl.state_file", defaults.Crawl.StateFile)

	v.SetDefault("output.dir", defaults.Output.Dir)
	v.SetDefault("output.index_file", defaults.Output.IndexFile)
	v.SetDefault("output.sqlite_path", defaults.Output.SQLitePath)
	v.SetDefault("output.metrics_path", defaults.Output.MetricsPath)
	v.SetDefault("output.report", defaults.Output.Report)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
}

func defaultSearchPaths(searchPaths []string) []string {
	if searchPaths != nil {
		return searchPaths
	}
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "cgscrawl"))
	}
	return paths
}

// splitList flattens comma-separated entries, as produced by env values
// and repeated flags, into trimmed non-empty items.
func splitList(values []string) []string {
	items := make([]string, 0, len(values))
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}
