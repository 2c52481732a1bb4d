package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coolbeans/cgscrawl/pkg/config"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cgscrawl",
		Short: "Connecticut General Statutes crawler",
		Long: `cgscrawl indexes the Connecticut General Statutes published at
cga.ct.gov into a title → chapter → section tree.

It produces:
  - One title_<key>.json file per title with the text of every section
  - A titles_index.json master index and an optional combined index
  - An optional SQLite database for offline search
  - A crawl report and optional Prometheus metrics textfile`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./cgscrawl.yaml or ~/.config/cgscrawl/cgscrawl.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// loadConfig resolves configuration for a command. flagKeys maps config
// keys to the command's flag names; unset flags never override.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, *slog.Logger, error) {
	configFile, _ := cmd.Flags().GetString("config")

	flagKeys["log.level"] = "log-level"
	flagKeys["log.format"] = "log-format"
	flags := make(map[string]*pflag.Flag, len(flagKeys))
	for key, flagName := range flagKeys {
		flags[key] = cmd.Flags().Lookup(flagName)
	}

	loaded, err := config.Load(config.LoadOptions{ConfigFile: configFile, Flags: flags})
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(cmd.ErrOrStderr(), loaded.Config.Log)
	slog.SetDefault(logger)
	if loaded.File != "" {
		logger.Debug("using config file", "path", loaded.File)
	}
	return loaded.Config, logger, nil
}

// newLogger builds the process logger on w.
func newLogger(w io.Writer, logConfig config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logConfig.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(logConfig.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOptions))
	}
	return slog.New(slog.NewTextHandler(w, handlerOptions))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cgscrawl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cgscrawl %s\n", version)
		},
	}
}
