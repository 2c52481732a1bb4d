// Package crawler walks the Connecticut General Statutes on cga.ct.gov:
// the titles index, each title's chapter list, and each chapter page, whose
// sections are resolved by the extract package.
package crawler

import (
	"context"

	"github.com/coolbeans/cgscrawl/pkg/links"
	"github.com/coolbeans/cgscrawl/pkg/statute"
)

// Default configuration values for the crawler.
const (
	// DefaultTitlesURL is the CGA page listing every title.
	DefaultTitlesURL = "https://www.cga.ct.gov/current/pub/titles.htm"

	// DefaultWorkers fetches one chapter at a time, like a browser reading
	// the site front to back.
	DefaultWorkers = 1

	// DefaultStateFileName is the resume state written next to the output.
	DefaultStateFileName = ".crawl_state.json"
)

// Config holds configuration for a crawl run.
type Config struct {
	// TitlesURL is the titles index page the crawl starts from.
	TitlesURL string

	// UserAgent is recorded in the master index source block.
	UserAgent string

	// Workers bounds how many chapter pages of a title are processed at
	// once. Titles are always processed one after another.
	Workers int

	// TitleFilter restricts the crawl to these title keys. Empty means all.
	TitleFilter []string

	// StatePath is where crawl progress is saved after each title. Empty
	// disables state tracking.
	StatePath string

	// Resume skips titles recorded as completed in StatePath.
	Resume bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TitlesURL: DefaultTitlesURL,
		Workers:   DefaultWorkers,
	}
}

// Fetcher supplies page HTML. *fetch.Client satisfies it.
type Fetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// TitleSink receives each finished title, typically to write
// title_<key>.json. An error from the sink aborts the run.
type TitleSink func(ctx context.Context, title *statute.Title) error

// Hooks are optional callbacks for progress reporting and metrics.
// ChapterCompleted may be called from several goroutines at once.
type Hooks struct {
	TitlesDiscovered func(titleLinks []links.IndexLink)
	TitleStarted     func(position int, total int, titleLink links.IndexLink)
	ChaptersFound    func(titleKey string, count int)
	ChapterCompleted func(titleKey string, chapter *statute.Chapter)
	TitleCompleted   func(title *statute.Title)
}

// CombineHooks returns Hooks that call each of the given hooks in order.
func CombineHooks(hookSets ...Hooks) Hooks {
	return Hooks{
		TitlesDiscovered: func(titleLinks []links.IndexLink) {
			for _, hooks := range hookSets {
				if hooks.TitlesDiscovered != nil {
					hooks.TitlesDiscovered(titleLinks)
				}
			}
		},
		TitleStarted: func(position int, total int, titleLink links.IndexLink) {
			for _, hooks := range hookSets {
				if hooks.TitleStarted != nil {
					hooks.TitleStarted(position, total, titleLink)
				}
			}
		},
		ChaptersFound: func(titleKey string, count int) {
			for _, hooks := range hookSets {
				if hooks.ChaptersFound != nil {
					hooks.ChaptersFound(titleKey, count)
				}
			}
		},
		ChapterCompleted: func(titleKey string, chapter *statute.Chapter) {
			for _, hooks := range hookSets {
				if hooks.ChapterCompleted != nil {
					hooks.ChapterCompleted(titleKey, chapter)
				}
			}
		},
		TitleCompleted: func(title *statute.Title) {
			for _, hooks := range hookSets {
				if hooks.TitleCompleted != nil {
					hooks.TitleCompleted(title)
				}
			}
		},
	}
}
