package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Marshal renders the configuration as cgscrawl.yaml content. Durations are
// written in time.ParseDuration form so the file reads back through Load.
func (cfg *Config) Marshal() ([]byte, error) {
	document := map[string]any{
		"fetch": map[string]any{
			"titles_url":       cfg.Fetch.TitlesURL,
			"user_agent":       cfg.Fetch.UserAgent,
			"sleep":            cfg.Fetch.Sleep.String(),
			"jitter":           cfg.Fetch.Jitter.String(),
			"timeout":          cfg.Fetch.Timeout.String(),
			"verify_tls":       cfg.Fetch.VerifyTLS,
			"max_retries":      cfg.Fetch.MaxRetries,
			"retry_base_delay": cfg.Fetch.RetryBaseDelay.String(),
			"max_body_bytes":   cfg.Fetch.MaxBodyBytes,
			"cache_dir":        cfg.Fetch.CacheDir,
			"cache_ttl":        cfg.Fetch.CacheTTL.String(),
		},
		"crawl": map[string]any{
			"workers":      cfg.Crawl.Workers,
			"title_filter": cfg.Crawl.TitleFilter,
			"resume":       cfg.Crawl.Resume,
			"state_file":   cfg.Crawl.StateFile,
		},
		"output": map[string]any{
			"dir":          cfg.Output.Dir,
			"index_file":   cfg.Output.IndexFile,
			"sqlite_path":  cfg.Output.SQLitePath,
			"metrics_path": cfg.Output.MetricsPath,
			"report":       cfg.Output.Report,
		},
		"log": map[string]any{
			"level":  cfg.Log.Level,
			"format": cfg.Log.Format,
		},
	}

	data, err := yaml.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// WriteDefault writes the default configuration to filePath. An existing
// file is only replaced when overwrite is set.
func WriteDefault(filePath string, overwrite bool) error {
	if _, err := os.Stat(filePath); err == nil && !overwrite {
		return fmt.Errorf("config file %s already exists", filePath)
	}

	data, err := Default().Marshal()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filePath, err)
	}
	return nil
}
