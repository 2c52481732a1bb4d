package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/cgscrawl/pkg/fetch"
	"github.com/coolbeans/cgscrawl/pkg/links"
	"github.com/coolbeans/cgscrawl/pkg/statute"
)

const testBaseURL = "https://www.cga.ct.gov/current/pub/"

// fakeSite serves canned pages by URL and counts requests.
type fakeSite struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]error
	delays   map[string]time.Duration
	requests map[string]int
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages:    make(map[string]string),
		failures: make(map[string]error),
		delays:   make(map[string]time.Duration),
		requests: make(map[string]int),
	}
}

func (site *fakeSite) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	site.mu.Lock()
	site.requests[pageURL]++
	delay := site.delays[pageURL]
	failure := site.failures[pageURL]
	page, found := site.pages[pageURL]
	site.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failure != nil {
		return "", failure
	}
	if !found {
		return "", &fetch.StatusError{StatusCode: http.StatusNotFound, URL: pageURL}
	}
	return page, nil
}

func (site *fakeSite) requestCount(pageURL string) int {
	site.mu.Lock()
	defer site.mu.Unlock()
	return site.requests[pageURL]
}

func chapterPage(sectionKeys ...string) string {
	var builder strings.Builder
	builder.WriteString("<html><body>\n")
	for _, sectionKey := range sectionKeys {
		builder.WriteString(fmt.Sprintf(`<p class="toc_catchln"><a href="#sec_%s">Sec. %s.</a></p>`+"\n", sectionKey, sectionKey))
	}
	for _, sectionKey := range sectionKeys {
		builder.WriteString(fmt.Sprintf(`<p><span class="catchln" id="sec_%s">Sec. %s.</span> Text of %s.</p>`+"\n", sectionKey, sectionKey, sectionKey))
		builder.WriteString(fmt.Sprintf(`<p class="source-first">(P.A. %s.)</p>`+"\n", sectionKey))
	}
	builder.WriteString("</body></html>")
	return builder.String()
}

func standardSite() *fakeSite {
	site := newFakeSite()
	site.pages[DefaultTitlesURL] = `<html><body><table>
<tr><td><a href="title_01.htm">Title 1</a></td><td><a href="title_01.htm">Provisions of General Application</a></td></tr>
<tr><td><a href="title_02.htm">Title 2</a></td><td><a href="title_02.htm">Legislative Department</a></td></tr>
<tr><td><a href="title_03.htm">Title 3</a></td><td><a href="title_03.htm">State Elective Officers</a></td></tr>
</table></body></html>`

	site.pages[testBaseURL+"title_01.htm"] = `<html><body>
<a href="chap_001.htm">Chapter 1</a> <a href="chap_001.htm">Construction of Statutes</a>
<a href="chap_002.htm">Chapter 2</a> <a href="chap_002.htm">Legal Holidays</a>
<a href="chap_003.htm">Chapter 3</a> <a href="chap_003.htm">Seals</a>
</body></html>`
	site.pages[testBaseURL+"chap_001.htm"] = chapterPage("1-1", "1-2")
	site.failures[testBaseURL+"chap_002.htm"] = errors.New("failed after 3 attempts: HTTP 503")
	site.pages[testBaseURL+"chap_003.htm"] = `<html><body>
<p><a href="#sec_1-30">Sec. 1-30.</a></p>
<p><span id="secs_1-30"></span>Sections <a href="#sec_1-30">1-30</a> are repealed.</p>
</body></html>`

	site.pages[testBaseURL+"title_02.htm"] = `<a href="chap_010.htm">Chapter 10</a>`
	site.pages[testBaseURL+"chap_010.htm"] = chapterPage("2-1")

	site.failures[testBaseURL+"title_03.htm"] = errors.New("timeout awaiting response headers")
	return site
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type titleCollector struct {
	mu     sync.Mutex
	titles []*statute.Title
}

func (collector *titleCollector) sink(_ context.Context, title *statute.Title) error {
	collector.mu.Lock()
	defer collector.mu.Unlock()
	collector.titles = append(collector.titles, title)
	return nil
}

func newTestCrawler(t *testing.T, config Config, fetcher Fetcher, options ...Option) *Crawler {
	t.Helper()
	options = append([]Option{WithLogger(quietLogger())}, options...)
	crawlerInstance, err := NewCrawler(config, fetcher, options...)
	require.NoError(t, err)
	return crawlerInstance
}

func TestCrawl_IsolatesTitleAndChapterFailures(t *testing.T) {
	site := standardSite()
	collector := &titleCollector{}

	config := DefaultConfig()
	config.UserAgent = "test-agent/1.0"
	crawlerInstance := newTestCrawler(t, config, site)

	masterIndex, report, err := crawlerInstance.Crawl(context.Background(), collector.sink)
	require.NoError(t, err)

	require.Len(t, masterIndex.Titles, 3)
	assert.Equal(t, statute.TitleEntry{
		TitleKey: "01",
		Label:    "Title 1",
		Name:     "Provisions of General Application",
		URL:      testBaseURL + "title_01.htm",
		File:     "title_01.json",
	}, masterIndex.Titles[0])
	assert.Equal(t, DefaultTitlesURL, masterIndex.Source.TitlesURL)
	assert.Equal(t, "test-agent/1.0", masterIndex.Source.UserAgent)
	assert.NotEmpty(t, masterIndex.Source.RunID)
	_, parseErr := time.Parse(time.RFC3339, masterIndex.Source.GeneratedAtUTC)
	assert.NoError(t, parseErr)

	require.Len(t, collector.titles, 3)
	firstTitle := collector.titles[0]
	require.Len(t, firstTitle.Chapters, 3)
	assert.Empty(t, firstTitle.Error)

	firstChapter := firstTitle.Chapters[0]
	assert.Equal(t, "001", firstChapter.ChapterKey)
	assert.Equal(t, "Construction of Statutes", firstChapter.Name)
	require.Len(t, firstChapter.Sections, 2)
	assert.Equal(t, "1-1", firstChapter.Sections[0].SectionKey)
	assert.Equal(t, "Text of 1-1.", firstChapter.Sections[0].Content.Text)
	assert.Equal(t, []string{"(P.A. 1-1.)"}, firstChapter.Sections[0].Content.Source)

	failedChapter := firstTitle.Chapters[1]
	assert.Contains(t, failedChapter.Error, "503")
	assert.Empty(t, failedChapter.Sections)
	assert.NotNil(t, failedChapter.Sections)

	repealedChapter := firstTitle.Chapters[2]
	require.Len(t, repealedChapter.Sections, 1)
	assert.True(t, repealedChapter.Sections[0].Content.IsRepealed())

	failedTitle := collector.titles[2]
	assert.Contains(t, failedTitle.Error, "timeout")
	assert.Empty(t, failedTitle.Chapters)

	assert.Equal(t, 3, report.TotalTitles)
	assert.Equal(t, 4, report.TotalChapters)
	assert.Equal(t, 4, report.TotalSections)
	assert.Equal(t, 1, report.FailedTitles)
	assert.Equal(t, 1, report.FailedChapters)
	assert.Equal(t, 3, report.SectionsByOutcome[SectionOutcomeText])
	assert.Equal(t, 1, report.SectionsByOutcome[SectionOutcomeRepealed])
	assert.True(t, report.HasFailures())
}

func TestCrawl_WorkersPreserveChapterOrder(t *testing.T) {
	site := newFakeSite()
	site.pages[DefaultTitlesURL] = `<a href="title_07.htm">Title 7</a>`

	var titlePage strings.Builder
	for chapterNumber := 1; chapterNumber <= 8; chapterNumber++ {
		chapterURL := fmt.Sprintf("%schap_%03d.htm", testBaseURL, chapterNumber)
		titlePage.WriteString(fmt.Sprintf(`<a href="chap_%03d.htm">Chapter %d</a>`, chapterNumber, chapterNumber))
		site.pages[chapterURL] = chapterPage(fmt.Sprintf("7-%d", chapterNumber))
		site.delays[chapterURL] = time.Duration(9-chapterNumber) * 5 * time.Millisecond
	}
	site.pages[testBaseURL+"title_07.htm"] = titlePage.String()

	config := DefaultConfig()
	config.Workers = 4
	collector := &titleCollector{}

	var completedMu sync.Mutex
	completed := 0
	crawlerInstance := newTestCrawler(t, config, site, WithHooks(Hooks{
		ChapterCompleted: func(string, *statute.Chapter) {
			completedMu.Lock()
			completed++
			completedMu.Unlock()
		},
	}))

	_, _, err := crawlerInstance.Crawl(context.Background(), collector.sink)
	require.NoError(t, err)

	require.Len(t, collector.titles, 1)
	var chapterKeys []string
	for _, chapter := range collector.titles[0].Chapters {
		chapterKeys = append(chapterKeys, chapter.ChapterKey)
		require.Len(t, chapter.Sections, 1)
	}
	assert.Equal(t, []string{"001", "002", "003", "004", "005", "006", "007", "008"}, chapterKeys)
	assert.Equal(t, 8, completed)
}

func TestCrawl_TitleFilter(t *testing.T) {
	site := standardSite()
	collector := &titleCollector{}

	config := DefaultConfig()
	config.TitleFilter = []string{"2", "99"}
	crawlerInstance := newTestCrawler(t, config, site)

	masterIndex, _, err := crawlerInstance.Crawl(context.Background(), collector.sink)
	require.NoError(t, err)

	require.Len(t, masterIndex.Titles, 1)
	assert.Equal(t, "02", masterIndex.Titles[0].TitleKey)
	assert.Zero(t, site.requestCount(testBaseURL+"title_01.htm"))
}

func TestCrawl_TitlesIndexFailureIsFatal(t *testing.T) {
	site := newFakeSite()
	collector := &titleCollector{}

	_, _, err := newTestCrawler(t, DefaultConfig(), site).Crawl(context.Background(), collector.sink)

	require.Error(t, err)
	assert.ErrorIs(t, err, fetch.ErrHTTPStatus)
	assert.Empty(t, collector.titles)
}

func TestCrawl_SinkErrorStopsRun(t *testing.T) {
	site := standardSite()
	diskFull := errors.New("no space left on device")

	_, _, err := newTestCrawler(t, DefaultConfig(), site).Crawl(context.Background(), func(context.Context, *statute.Title) error {
		return diskFull
	})

	assert.ErrorIs(t, err, diskFull)
	assert.Zero(t, site.requestCount(testBaseURL+"title_02.htm"))
}

func TestCrawl_ResumeSkipsCompletedTitles(t *testing.T) {
	site := standardSite()
	statePath := filepath.Join(t.TempDir(), DefaultStateFileName)

	config := DefaultConfig()
	config.StatePath = statePath

	stopAfterFirst := func(_ context.Context, title *statute.Title) error {
		if title.TitleKey == "02" {
			return errors.New("interrupted")
		}
		return nil
	}
	firstIndex, _, err := newTestCrawler(t, config, site).Crawl(context.Background(), stopAfterFirst)
	require.Error(t, err)

	savedState, err := LoadState(statePath)
	require.NoError(t, err)
	assert.Equal(t, CrawlStatusInterrupted, savedState.Status)
	assert.Equal(t, firstIndex.Source.RunID, savedState.RunID)

	config.Resume = true
	collector := &titleCollector{}
	secondIndex, report, err := newTestCrawler(t, config, site).Crawl(context.Background(), collector.sink)
	require.NoError(t, err)

	assert.Equal(t, 1, site.requestCount(testBaseURL+"title_01.htm"), "title 01 is not fetched again")
	assert.Equal(t, savedState.RunID, secondIndex.Source.RunID)
	require.Len(t, secondIndex.Titles, 3)
	assert.Equal(t, "01", secondIndex.Titles[0].TitleKey)
	assert.Len(t, collector.titles, 2)
	assert.Equal(t, 1, report.SkippedTitles)

	finalState, err := LoadState(statePath)
	require.NoError(t, err)
	assert.Equal(t, CrawlStatusCompleted, finalState.Status)
}

func TestCrawl_CancellationStopsBetweenTitles(t *testing.T) {
	site := standardSite()
	collector := &titleCollector{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	crawlerInstance := newTestCrawler(t, DefaultConfig(), site, WithHooks(Hooks{
		TitleCompleted: func(*statute.Title) { cancel() },
	}))

	masterIndex, _, err := crawlerInstance.Crawl(ctx, collector.sink)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, masterIndex.Titles, 1)
	assert.Len(t, collector.titles, 1)
}

func TestCrawl_OverHTTP(t *testing.T) {
	site := standardSite()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(writer http.ResponseWriter, request *http.Request) {
		page, found := site.pages[testBaseURL+strings.TrimPrefix(request.URL.Path, "/current/pub/")]
		if !found {
			http.NotFound(writer, request)
			return
		}
		writer.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(writer, page)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetchConfig := fetch.DefaultConfig()
	fetchConfig.Sleep = 0
	fetchConfig.Jitter = 0
	fetchConfig.MaxRetries = 1
	client, err := fetch.NewClient(fetchConfig, fetch.WithLogger(quietLogger()))
	require.NoError(t, err)

	config := DefaultConfig()
	config.TitlesURL = server.URL + "/current/pub/titles.htm"

	collector := &titleCollector{}
	masterIndex, report, err := newTestCrawler(t, config, client).Crawl(context.Background(), collector.sink)
	require.NoError(t, err)

	require.Len(t, masterIndex.Titles, 3)
	assert.Equal(t, server.URL+"/current/pub/title_01.htm", masterIndex.Titles[0].URL)
	assert.Equal(t, 3, report.SectionsByOutcome[SectionOutcomeText])
	assert.Equal(t, 1, report.FailedChapters, "chap_002 is missing over HTTP and fails with 404")
	assert.Equal(t, 1, report.FailedTitles)
}

func TestFilterTitlesNormalizesKeys(t *testing.T) {
	titleLinks := []links.IndexLink{{Key: "01"}, {Key: "07"}, {Key: "07a"}, {Key: "42"}}

	filtered := FilterTitles(titleLinks, []string{"7", "42", "07A"}, quietLogger())

	var keys []string
	for _, titleLink := range filtered {
		keys = append(keys, titleLink.Key)
	}
	assert.Equal(t, []string{"07", "07a", "42"}, keys)
	assert.Equal(t, titleLinks, FilterTitles(titleLinks, nil, nil))
}

func TestCombineHooksCallsEachInOrder(t *testing.T) {
	var calls []string
	first := Hooks{
		TitleCompleted: func(title *statute.Title) { calls = append(calls, "first:"+title.TitleKey) },
	}
	second := Hooks{
		TitleStarted:   func(position int, total int, titleLink links.IndexLink) { calls = append(calls, "second:start") },
		TitleCompleted: func(title *statute.Title) { calls = append(calls, "second:"+title.TitleKey) },
	}

	combined := CombineHooks(first, second)
	combined.TitlesDiscovered(nil)
	combined.TitleStarted(1, 1, links.IndexLink{Key: "07"})
	combined.ChaptersFound("07", 2)
	combined.ChapterCompleted("07", &statute.Chapter{})
	combined.TitleCompleted(&statute.Title{TitleKey: "07"})

	assert.Equal(t, []string{"second:start", "first:07", "second:07"}, calls)
}
