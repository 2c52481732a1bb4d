package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coolbeans/cgscrawl/pkg/extract"
	"github.com/coolbeans/cgscrawl/pkg/identifier"
	"github.com/coolbeans/cgscrawl/pkg/links"
	"github.com/coolbeans/cgscrawl/pkg/statute"
)

// Crawler walks titles, then chapters, then sections. Titles run one after
// another; the chapters of a title run on up to Config.Workers goroutines,
// and results are stored by position so output keeps index order.
type Crawler struct {
	config    Config
	fetcher   Fetcher
	extractor *extract.Extractor
	logger    *slog.Logger
	hooks     Hooks
	now       func() time.Time
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the crawler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(crawler *Crawler) {
		if logger != nil {
			crawler.logger = logger
		}
	}
}

// WithHooks registers progress and metrics callbacks.
func WithHooks(hooks Hooks) Option {
	return func(crawler *Crawler) {
		crawler.hooks = hooks
	}
}

// WithExtractor replaces the default section extractor.
func WithExtractor(extractor *extract.Extractor) Option {
	return func(crawler *Crawler) {
		if extractor != nil {
			crawler.extractor = extractor
		}
	}
}

// NewCrawler creates a Crawler that reads pages through fetcher.
func NewCrawler(config Config, fetcher Fetcher, options ...Option) (*Crawler, error) {
	if fetcher == nil {
		return nil, errors.New("crawler requires a fetcher")
	}
	if config.TitlesURL == "" {
		config.TitlesURL = DefaultTitlesURL
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}

	crawler := &Crawler{
		config:  config,
		fetcher: fetcher,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, option := range options {
		option(crawler)
	}
	if crawler.extractor == nil {
		crawler.extractor = extract.NewExtractor(extract.WithLogger(crawler.logger))
	}

	return crawler, nil
}

// Crawl fetches the titles index and processes every selected title. Each
// finished title is handed to sink before the next one starts. Title and
// chapter fetch failures are recorded on their records and the crawl goes
// on; only a titles-index failure, a sink error, or cancellation stop it.
// The returned index lists every title written, including titles completed
// by an earlier session when resuming.
func (crawler *Crawler) Crawl(ctx context.Context, sink TitleSink) (*statute.MasterIndex, *CrawlReport, error) {
	crawlState := crawler.openState()
	report := NewCrawlReport(crawlState.RunID, crawler.config.TitlesURL)
	defer report.Finish()

	masterIndex := &statute.MasterIndex{
		Source: statute.SourceInfo{
			TitlesURL:      crawler.config.TitlesURL,
			GeneratedAtUTC: crawler.now().UTC().Format("2006-01-02T15:04:05Z"),
			UserAgent:      crawler.config.UserAgent,
			RunID:          crawlState.RunID,
		},
		Titles: make([]statute.TitleEntry, 0),
	}

	titlesHTML, err := crawler.fetcher.FetchHTML(ctx, crawler.config.TitlesURL)
	if err != nil {
		return masterIndex, report, fmt.Errorf("failed to fetch titles index: %w", err)
	}
	titleLinks, err := links.ExtractTitleLinks(titlesHTML, crawler.config.TitlesURL)
	if err != nil {
		return masterIndex, report, fmt.Errorf("failed to read titles index: %w", err)
	}
	titleLinks = FilterTitles(titleLinks, crawler.config.TitleFilter, crawler.logger)
	crawler.logger.Info("titles discovered", "count", len(titleLinks), "url", crawler.config.TitlesURL)
	if crawler.hooks.TitlesDiscovered != nil {
		crawler.hooks.TitlesDiscovered(titleLinks)
	}

	for position, titleLink := range titleLinks {
		if err := ctx.Err(); err != nil {
			crawler.saveState(crawlState, CrawlStatusInterrupted)
			return masterIndex, report, err
		}

		if entry, done := crawlState.CompletedEntry(titleLink.Key); done && crawler.config.Resume {
			crawler.logger.Info("skipping completed title", "title", titleLink.Key)
			masterIndex.Titles = append(masterIndex.Titles, entry)
			report.RecordSkipped(entry)
			continue
		}

		crawler.logger.Info("processing title", "title", titleLink.Label, "position", position+1, "total", len(titleLinks))
		if crawler.hooks.TitleStarted != nil {
			crawler.hooks.TitleStarted(position+1, len(titleLinks), titleLink)
		}

		title := crawler.crawlTitle(ctx, titleLink)
		if ctx.Err() != nil {
			crawler.saveState(crawlState, CrawlStatusInterrupted)
			return masterIndex, report, ctx.Err()
		}

		if err := sink(ctx, title); err != nil {
			crawler.saveState(crawlState, CrawlStatusInterrupted)
			return masterIndex, report, fmt.Errorf("failed to store title %s: %w", title.TitleKey, err)
		}

		entry := title.Entry()
		masterIndex.Titles = append(masterIndex.Titles, entry)
		report.RecordTitle(title)
		crawlState.MarkCompleted(entry)
		crawler.saveState(crawlState, CrawlStatusRunning)

		if crawler.hooks.TitleCompleted != nil {
			crawler.hooks.TitleCompleted(title)
		}
	}

	crawler.saveState(crawlState, CrawlStatusCompleted)
	return masterIndex, report, nil
}

// crawlTitle fetches a title page and all of its chapters. A failure on the
// title page itself is recorded as the title's error.
func (crawler *Crawler) crawlTitle(ctx context.Context, titleLink links.IndexLink) *statute.Title {
	title := &statute.Title{
		TitleKey: titleLink.Key,
		Label:    titleLink.Label,
		Name:     titleLink.Name,
		URL:      titleLink.URL,
		Chapters: make([]statute.Chapter, 0),
	}

	titleHTML, err := crawler.fetcher.FetchHTML(ctx, titleLink.URL)
	if err != nil {
		crawler.logger.Warn("title failed", "title", titleLink.Key, "url", titleLink.URL, "error", err)
		title.Error = err.Error()
		return title
	}

	chapterLinks, err := links.ExtractChapterLinks(titleHTML, titleLink.URL)
	if err != nil {
		crawler.logger.Warn("title page unreadable", "title", titleLink.Key, "error", err)
		title.Error = err.Error()
		return title
	}
	if crawler.hooks.ChaptersFound != nil {
		crawler.hooks.ChaptersFound(titleLink.Key, len(chapterLinks))
	}

	title.Chapters = make([]statute.Chapter, len(chapterLinks))

	var group errgroup.Group
	group.SetLimit(crawler.config.Workers)
	for position, chapterLink := range chapterLinks {
		group.Go(func() error {
			title.Chapters[position] = crawler.crawlChapter(ctx, chapterLink)
			if crawler.hooks.ChapterCompleted != nil {
				crawler.hooks.ChapterCompleted(titleLink.Key, &title.Chapters[position])
			}
			return nil
		})
	}
	_ = group.Wait()

	return title
}

// crawlChapter fetches one chapter page and resolves its sections. Any
// failure becomes the chapter's error.
func (crawler *Crawler) crawlChapter(ctx context.Context, chapterLink links.IndexLink) statute.Chapter {
	chapter := statute.Chapter{
		ChapterKey: chapterLink.Key,
		Label:      chapterLink.Label,
		Name:       chapterLink.Name,
		URL:        chapterLink.URL,
		Sections:   make([]statute.Section, 0),
	}

	chapterHTML, err := crawler.fetcher.FetchHTML(ctx, chapterLink.URL)
	if err != nil {
		crawler.logger.Warn("chapter failed", "chapter", chapterLink.Key, "url", chapterLink.URL, "error", err)
		chapter.Error = err.Error()
		return chapter
	}

	sections, err := crawler.extractor.ExtractChapter(chapterHTML, chapterLink.URL)
	if err != nil {
		crawler.logger.Warn("chapter unreadable", "chapter", chapterLink.Key, "error", err)
		chapter.Error = err.Error()
		return chapter
	}

	chapter.Sections = sections
	crawler.logger.Debug("chapter done", "chapter", chapterLink.Key, "sections", len(sections))
	return chapter
}

// FilterTitles keeps the titles whose keys appear in filter, compared after
// normalization ("7" selects "07"). An empty filter keeps everything.
func FilterTitles(titleLinks []links.IndexLink, filter []string, logger *slog.Logger) []links.IndexLink {
	if len(filter) == 0 {
		return titleLinks
	}

	wanted := make(map[string]bool, len(filter))
	for _, titleKey := range filter {
		wanted[identifier.NormalizeTitleKey(titleKey)] = true
	}

	selected := make([]links.IndexLink, 0, len(filter))
	for _, titleLink := range titleLinks {
		if wanted[titleLink.Key] {
			selected = append(selected, titleLink)
			delete(wanted, titleLink.Key)
		}
	}

	if logger != nil {
		for missingKey := range wanted {
			logger.Warn("title filter matched nothing", "title", missingKey)
		}
	}
	return selected
}

// openState loads the saved state when resuming a session over the same
// titles index, and starts a fresh session otherwise.
func (crawler *Crawler) openState() *CrawlState {
	statePath := crawler.config.StatePath
	if crawler.config.Resume && statePath != "" {
		savedState, err := LoadState(statePath)
		switch {
		case err == nil && savedState.TitlesURL == crawler.config.TitlesURL:
			crawler.logger.Info("resuming crawl", "run_id", savedState.RunID, "completed", len(savedState.CompletedTitles))
			savedState.Status = CrawlStatusRunning
			return savedState
		case err == nil:
			crawler.logger.Warn("ignoring saved state for a different titles index", "saved", savedState.TitlesURL)
		case errors.Is(err, os.ErrNotExist):
			crawler.logger.Info("no saved state, starting fresh", "path", statePath)
		default:
			crawler.logger.Warn("ignoring unreadable crawl state", "path", statePath, "error", err)
		}
	}
	return NewCrawlState(uuid.NewString(), crawler.config.TitlesURL)
}

func (crawler *Crawler) saveState(crawlState *CrawlState, status CrawlStatus) {
	if crawler.config.StatePath == "" {
		return
	}
	crawlState.Status = status
	if err := crawlState.SaveState(crawler.config.StatePath); err != nil {
		crawler.logger.Warn("failed to save crawl state", "path", crawler.config.StatePath, "error", err)
	}
}
