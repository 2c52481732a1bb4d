package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coolbeans/cgscrawl/pkg/config"
	"github.com/coolbeans/cgscrawl/pkg/crawler"
	"github.com/coolbeans/cgscrawl/pkg/extract"
	"github.com/coolbeans/cgscrawl/pkg/fetch"
	"github.com/coolbeans/cgscrawl/pkg/library"
	"github.com/coolbeans/cgscrawl/pkg/metrics"
	"github.com/coolbeans/cgscrawl/pkg/statute"
	"github.com/coolbeans/cgscrawl/pkg/store"
)

func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl cga.ct.gov and write the statute index",
		Long: `Crawl the titles index, every title page, and every chapter page, and
write one JSON file per title plus the master index.

A chapter or title that cannot be fetched is recorded with its error and
the crawl continues. Interrupting the crawl leaves a state file behind;
run again with --resume to skip titles already written.

Examples:
  cgscrawl crawl --out-dir data
  cgscrawl crawl --title 01 --title 7 --workers 4
  cgscrawl crawl --cache-dir .cache --sqlite cgs.db --report json
  cgscrawl crawl --resume`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, map[string]string{
				"crawl.title_filter":  "title",
				"crawl.workers":       "workers",
				"crawl.resume":        "resume",
				"output.dir":          "out-dir",
				"output.index_file":   "index-file",
				"output.sqlite_path":  "sqlite",
				"output.metrics_path": "metrics",
				"output.report":       "report",
				"fetch.cache_dir":     "cache-dir",
				"fetch.titles_url":    "titles-url",
			})
			if err != nil {
				return err
			}
			if noVerify, _ := cmd.Flags().GetBool("no-verify-tls"); noVerify {
				cfg.Fetch.VerifyTLS = false
			}
			quiet, _ := cmd.Flags().GetBool("quiet")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runCrawl(ctx, cmd, cfg, logger, quiet)
		},
	}

	cmd.Flags().StringSlice("title", []string{}, "Crawl only these title keys (repeatable, e.g. --title 01 --title 7)")
	cmd.Flags().Int("workers", crawler.DefaultWorkers, "Chapter pages fetched concurrently per title")
	cmd.Flags().Bool("resume", false, "Skip titles completed by an interrupted crawl")
	cmd.Flags().StringP("out-dir", "o", "data", "Output directory for title files and the master index")
	cmd.Flags().String("index-file", "cgs_index.json", "Combined index file, relative to --out-dir (empty to skip)")
	cmd.Flags().String("sqlite", "", "Also export the crawl to this SQLite database")
	cmd.Flags().String("metrics", "", "Write Prometheus metrics to this textfile when done")
	cmd.Flags().String("report", "table", "Report format (table, json)")
	cmd.Flags().String("cache-dir", "", "Directory for caching fetched pages")
	cmd.Flags().String("titles-url", crawler.DefaultTitlesURL, "Titles index page to start from")
	cmd.Flags().Bool("no-verify-tls", false, "Skip TLS certificate verification")
	cmd.Flags().BoolP("quiet", "q", false, "Hide progress bars")

	return cmd
}

func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, quiet bool) error {
	lib, err := library.Init(cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("failed to prepare output directory: %w", err)
	}

	var recorder *metrics.Recorder
	if cfg.Output.MetricsPath != "" {
		recorder = metrics.NewRecorder()
	}

	fetchOptions := []fetch.ClientOption{fetch.WithLogger(logger)}
	if recorder != nil {
		fetchOptions = append(fetchOptions, fetch.WithObserver(recorder))
	}
	client, err := fetch.NewClient(cfg.FetchClientConfig(), fetchOptions...)
	if err != nil {
		return fmt.Errorf("failed to create fetch client: %w", err)
	}
	if pruned, err := client.PruneCache(); err != nil {
		logger.Warn("page cache not pruned", "error", err)
	} else if pruned > 0 {
		logger.Info("pruned expired cached pages", "count", pruned)
	}
	if !cfg.Fetch.VerifyTLS {
		logger.Warn("TLS certificate verification disabled")
	}

	progress := newCrawlProgress(cmd.ErrOrStderr(), quiet)
	crawl, err := crawler.NewCrawler(cfg.CrawlerConfig(), client,
		crawler.WithLogger(logger),
		crawler.WithExtractor(extract.NewExtractor(extract.WithLogger(logger))),
		crawler.WithHooks(crawler.CombineHooks(progress.Hooks(), recorder.Hooks())),
	)
	if err != nil {
		return err
	}

	sink := func(ctx context.Context, title *statute.Title) error {
		titlePath, err := lib.WriteTitle(title)
		if err != nil {
			return err
		}
		logger.Info("wrote title", "title", title.TitleKey, "sections", title.SectionCount(), "path", titlePath)
		return nil
	}

	masterIndex, report, crawlErr := crawl.Crawl(ctx, sink)

	if len(masterIndex.Titles) > 0 {
		indexPath, err := lib.WriteIndex(masterIndex)
		if err != nil {
			return err
		}
		logger.Info("wrote master index", "path", indexPath, "titles", len(masterIndex.Titles))

		combinedPath, err := lib.WriteCombinedIndex(cfg.Output.IndexFile, masterIndex)
		if err != nil {
			return err
		}
		if combinedPath != "" {
			logger.Info("wrote combined index", "path", combinedPath)
		}
	}

	if crawlErr == nil && cfg.Output.SQLitePath != "" {
		if err := exportToSQLite(lib, cfg.Output.SQLitePath, logger); err != nil {
			return err
		}
	}

	if err := recorder.WriteTextfile(cfg.Output.MetricsPath); err != nil {
		logger.Warn("metrics not written", "error", err)
	}

	report.Finish()
	fmt.Fprintln(cmd.OutOrStdout(), report.Format(cfg.Output.Report))

	if crawlErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("crawl interrupted; run again with --resume to continue: %w", crawlErr)
		}
		return crawlErr
	}
	return nil
}

func exportToSQLite(lib *library.Library, dbPath string, logger *slog.Logger) error {
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := store.ExportLibrary(lib, db, func(title *statute.Title) {
		logger.Debug("exported title", "title", title.TitleKey)
	})
	if err != nil {
		return err
	}
	logger.Info("exported to sqlite", "path", dbPath, "titles", result.Titles, "chapters", result.Chapters, "sections", result.Sections)
	return nil
}
