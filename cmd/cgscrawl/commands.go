package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coolbeans/cgscrawl/pkg/config"
	"github.com/coolbeans/cgscrawl/pkg/extract"
	"github.com/coolbeans/cgscrawl/pkg/library"
	"github.com/coolbeans/cgscrawl/pkg/statute"
	"github.com/coolbeans/cgscrawl/pkg/store"
)

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract sections from a saved chapter page",
		Long: `Run the section extractor on a chapter page saved to disk and print
the sections as JSON. No network access is made.

The --url flag gives the page's original address; section links are
resolved against it and only links pointing into the same page are used.

Example:
  cgscrawl extract --file chap_090.htm --url https://www.cga.ct.gov/current/pub/chap_090.htm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath, _ := cmd.Flags().GetString("file")
			chapterURL, _ := cmd.Flags().GetString("url")

			_, logger, err := loadConfig(cmd, map[string]string{})
			if err != nil {
				return err
			}

			pageHTML, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", filePath, err)
			}

			extractor := extract.NewExtractor(extract.WithLogger(logger))
			sections, err := extractor.ExtractChapter(string(pageHTML), chapterURL)
			if err != nil {
				return err
			}

			return printJSON(cmd, sections)
		},
	}

	cmd.Flags().StringP("file", "f", "", "Saved chapter page (HTML)")
	cmd.Flags().StringP("url", "u", "", "Original URL of the chapter page")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("url")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a crawled output directory to SQLite",
		Long: `Load titles_index.json and every title file from the output directory
and write them to an SQLite database. Titles already in the database are
replaced.

Example:
  cgscrawl export --out-dir data --db cgs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, map[string]string{
				"output.dir":         "out-dir",
				"output.sqlite_path": "db",
			})
			if err != nil {
				return err
			}
			if cfg.Output.SQLitePath == "" {
				return fmt.Errorf("a database path is required (--db or output.sqlite_path)")
			}

			lib, err := library.Open(cfg.Output.Dir)
			if err != nil {
				return err
			}
			return exportToSQLite(lib, cfg.Output.SQLitePath, logger)
		},
	}

	cmd.Flags().StringP("out-dir", "o", "data", "Output directory of a previous crawl")
	cmd.Flags().String("db", "", "SQLite database to write")

	return cmd
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search sections in an exported SQLite database",
		Long: `Find sections whose text or label contains the term, or whose section
key equals it. Results are listed in statute order.

Examples:
  cgscrawl search --db cgs.db "freedom of information"
  cgscrawl search --db cgs.db --title 07 7-148
  cgscrawl search --db cgs.db --repealed --format json "town clerk"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			titleKey, _ := cmd.Flags().GetString("title")
			limit, _ := cmd.Flags().GetInt("limit")
			repealedOnly, _ := cmd.Flags().GetBool("repealed")
			format, _ := cmd.Flags().GetString("format")

			cfg, _, err := loadConfig(cmd, map[string]string{"output.sqlite_path": "db"})
			if err != nil {
				return err
			}
			if cfg.Output.SQLitePath == "" {
				return fmt.Errorf("a database path is required (--db or output.sqlite_path)")
			}
			if _, err := os.Stat(cfg.Output.SQLitePath); err != nil {
				return fmt.Errorf("database not found: %w", err)
			}

			db, err := store.Open(cfg.Output.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()

			query := store.SearchQuery{
				Term:     strings.Join(args, " "),
				TitleKey: titleKey,
				Limit:    limit,
			}
			if repealedOnly {
				repealed := statute.StatusRepealed
				query.Status = &repealed
			}

			results, err := db.Search(query)
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(cmd, results)
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No matching sections.")
				return nil
			}
			for _, result := range results {
				fmt.Fprintf(out, "§ %s  (title %s, chapter %s)\n", result.SectionKey, result.TitleKey, result.ChapterKey)
				fmt.Fprintf(out, "  %s\n", result.Label)
				if result.Snippet != "" {
					fmt.Fprintf(out, "  %s\n", result.Snippet)
				}
				fmt.Fprintf(out, "  %s\n\n", result.URL)
			}
			fmt.Fprintf(out, "%d section(s)\n", len(results))
			return nil
		},
	}

	cmd.Flags().String("db", "", "SQLite database written by export or crawl --sqlite")
	cmd.Flags().String("title", "", "Restrict results to one title key")
	cmd.Flags().Int("limit", store.DefaultSearchLimit, "Maximum number of results")
	cmd.Flags().Bool("repealed", false, "Only list repealed sections")
	cmd.Flags().String("format", "text", "Output format (text, json)")

	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize a crawled output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, map[string]string{"output.dir": "out-dir"})
			if err != nil {
				return err
			}

			lib, err := library.Open(cfg.Output.Dir)
			if err != nil {
				return err
			}
			masterIndex, err := lib.LoadIndex()
			if err != nil {
				return err
			}
			stats, err := lib.Stats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Library: %s\n", lib.Path())
			fmt.Fprintf(out, "Source:  %s (%s)\n", masterIndex.Source.TitlesURL, masterIndex.Source.GeneratedAtUTC)
			if masterIndex.Source.RunID != "" {
				fmt.Fprintf(out, "Run:     %s\n", masterIndex.Source.RunID)
			}
			fmt.Fprintf(out, "\nTitles:   %d (%d failed)\n", stats.TotalTitles, stats.FailedTitles)
			fmt.Fprintf(out, "Chapters: %d (%d failed)\n", stats.TotalChapters, stats.FailedChapters)
			fmt.Fprintf(out, "Sections: %d (%d repealed, %d empty)\n", stats.TotalSections, stats.RepealedSections, stats.EmptySections)
			return nil
		},
	}

	cmd.Flags().StringP("out-dir", "o", "data", "Output directory of a previous crawl")

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the cgscrawl configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := config.FileName
			if len(args) > 0 {
				filePath = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")

			if err := config.WriteDefault(filePath, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", filePath)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, map[string]string{})
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd)
	cmd.AddCommand(showCmd)
	return cmd
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
