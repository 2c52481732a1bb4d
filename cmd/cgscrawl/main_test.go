package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/cgscrawl/pkg/config"
	"github.com/coolbeans/cgscrawl/pkg/crawler"
	"github.com/coolbeans/cgscrawl/pkg/statute"
	"github.com/coolbeans/cgscrawl/pkg/store"
)

var testPages = map[string]string{
	"/current/pub/titles.htm": `<html><body><table>
<tr><td><a href="title_07.htm">Title 7</a></td><td><a href="title_07.htm">Municipalities</a></td></tr>
</table></body></html>`,
	"/current/pub/title_07.htm": `<html><body>
<a href="chap_090.htm">Chapter 90</a> <a href="chap_090.htm">Towns</a>
<a href="chap_091.htm">Chapter 91</a> <a href="chap_091.htm">Town Meetings</a>
</body></html>`,
	"/current/pub/chap_090.htm": `<html><body>
<p class="toc_catchln"><a href="#sec_7-1">Sec. 7-1. Town clerks.</a></p>
<p class="toc_catchln"><a href="#sec_7-2">Sec. 7-2.</a></p>
<p><span class="catchln" id="sec_7-1">Sec. 7-1. Town clerks.</span> Each town shall elect a town clerk.</p>
<p class="source-first">(1949 Rev., S. 1.)</p>
<p><span id="secs_7-2"></span>Section <a href="#sec_7-2">7-2</a> is repealed. Sections <a href="#sec_7-2">7-2</a> are repealed.</p>
</body></html>`,
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), config.FileName)
	_, err := runCLI(t, "config", "init", configPath)
	require.NoError(t, err)
	return configPath
}

func TestVersionCommand(t *testing.T) {
	output, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "cgscrawl "+version+"\n", output)
}

func TestConfigInitAndShow(t *testing.T) {
	configPath := writeTestConfig(t)

	_, err := runCLI(t, "config", "init", configPath)
	assert.Error(t, err, "existing file is kept without --force")

	output, err := runCLI(t, "--config", configPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, crawler.DefaultTitlesURL)
	assert.Contains(t, output, "workers: 1")
}

func TestInvalidConfigFailsBeforeWork(t *testing.T) {
	configPath := writeTestConfig(t)
	t.Setenv("CGS_LOG_LEVEL", "loud")

	_, err := runCLI(t, "--config", configPath, "extract", "--file", "missing.htm", "--url", "https://www.cga.ct.gov/current/pub/chap_090.htm")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidLogSettings)
}

func TestExtractCommand(t *testing.T) {
	configPath := writeTestConfig(t)
	pagePath := filepath.Join(t.TempDir(), "chap_090.htm")
	require.NoError(t, os.WriteFile(pagePath, []byte(testPages["/current/pub/chap_090.htm"]), 0o644))

	output, err := runCLI(t, "--config", configPath, "extract",
		"--file", pagePath, "--url", "https://www.cga.ct.gov/current/pub/chap_090.htm")
	require.NoError(t, err)

	var sections []statute.Section
	require.NoError(t, json.Unmarshal([]byte(output), &sections))
	require.Len(t, sections, 2)
	assert.Equal(t, "7-1", sections[0].SectionKey)
	assert.Equal(t, "Each town shall elect a town clerk.", sections[0].Content.Text)
	assert.Equal(t, []string{"(1949 Rev., S. 1.)"}, sections[0].Content.Source)
	assert.True(t, sections[1].Content.IsRepealed())
}

func TestCrawlExportAndSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		page, found := testPages[request.URL.Path]
		if !found {
			http.NotFound(writer, request)
			return
		}
		writer.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(writer, page)
	}))
	defer server.Close()

	configPath := writeTestConfig(t)
	t.Setenv("CGS_FETCH_SLEEP", "0s")
	t.Setenv("CGS_FETCH_JITTER", "0s")
	t.Setenv("CGS_FETCH_MAX_RETRIES", "1")

	workDir := t.TempDir()
	outDir := filepath.Join(workDir, "out")
	dbPath := filepath.Join(workDir, "cgs.db")
	metricsPath := filepath.Join(workDir, "cgscrawl.prom")

	output, err := runCLI(t, "--config", configPath, "crawl",
		"--titles-url", server.URL+"/current/pub/titles.htm",
		"--out-dir", outDir,
		"--sqlite", dbPath,
		"--metrics", metricsPath,
		"--report", "json",
		"--quiet",
	)
	require.NoError(t, err)

	var report crawler.CrawlReport
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, 1, report.TotalTitles)
	assert.Equal(t, 2, report.TotalChapters)
	assert.Equal(t, 1, report.FailedChapters, "chap_091 is not served")
	assert.Equal(t, 1, report.SectionsByOutcome[crawler.SectionOutcomeRepealed])

	for _, fileName := range []string{"titles_index.json", "title_07.json", "cgs_index.json", ".crawl_state.json"} {
		assert.FileExists(t, filepath.Join(outDir, fileName))
	}
	metricsText, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), `cgscrawl_chapters_total{result="failed"} 1`)

	output, err = runCLI(t, "--config", configPath, "search", "--db", dbPath, "--format", "json", "town clerk")
	require.NoError(t, err)
	var results []store.SearchResult
	require.NoError(t, json.Unmarshal([]byte(output), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "7-1", results[0].SectionKey)
	assert.Equal(t, "090", results[0].ChapterKey)

	output, err = runCLI(t, "--config", configPath, "stats", "--out-dir", outDir)
	require.NoError(t, err)
	assert.Contains(t, output, "Sections: 2 (1 repealed, 0 empty)")

	reexportPath := filepath.Join(workDir, "again.db")
	_, err = runCLI(t, "--config", configPath, "export", "--out-dir", outDir, "--db", reexportPath)
	require.NoError(t, err)

	output, err = runCLI(t, "--config", configPath, "search", "--db", reexportPath, "--repealed", "7-2")
	require.NoError(t, err)
	assert.True(t, strings.Contains(output, "§ 7-2"))
}

func TestSearchRequiresExistingDatabase(t *testing.T) {
	configPath := writeTestConfig(t)
	_, err := runCLI(t, "--config", configPath, "search", "--db", filepath.Join(t.TempDir(), "none.db"), "clerk")
	assert.Error(t, err)
}
