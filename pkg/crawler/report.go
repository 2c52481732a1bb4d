package crawler

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coolbeans/cgscrawl/pkg/statute"
)

// Section outcomes counted by the report.
const (
	SectionOutcomeText     = "ok"
	SectionOutcomeRepealed = "repealed"
	SectionOutcomeEmpty    = "empty"
)

// SectionOutcome classifies resolved section content for reporting.
func SectionOutcome(content statute.SectionContent) string {
	switch {
	case content.IsRepealed():
		return SectionOutcomeRepealed
	case content.IsEmpty():
		return SectionOutcomeEmpty
	default:
		return SectionOutcomeText
	}
}

// CrawlReport tallies what one crawl session wrote, title by title.
type CrawlReport struct {
	// RunID identifies the crawl session.
	RunID string `json:"run_id"`

	// TitlesURL is the index the crawl started from.
	TitlesURL string `json:"titles_url"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// TotalTitles counts titles processed in this run, including failures.
	TotalTitles int `json:"total_titles"`

	// TotalChapters counts chapters across processed titles.
	TotalChapters int `json:"total_chapters"`

	// TotalSections counts sections across processed chapters.
	TotalSections int `json:"total_sections"`

	// FailedTitles counts titles whose own page could not be fetched or parsed.
	FailedTitles int `json:"failed_titles"`

	// FailedChapters counts chapters carrying an error.
	FailedChapters int `json:"failed_chapters"`

	// SkippedTitles counts titles already completed by a resumed session.
	SkippedTitles int `json:"skipped_titles"`

	// SectionsByOutcome counts sections as ok, repealed, or empty.
	SectionsByOutcome map[string]int `json:"sections_by_outcome"`

	// Titles holds one summary line per title in crawl order.
	Titles []*TitleSummary `json:"titles"`
}

// TitleSummary is the per-title line of a crawl report.
type TitleSummary struct {
	TitleKey       string `json:"title_key"`
	Label          string `json:"label"`
	Chapters       int    `json:"chapters"`
	Sections       int    `json:"sections"`
	FailedChapters int    `json:"failed_chapters"`
	Skipped        bool   `json:"skipped,omitempty"`
	Error          string `json:"error,omitempty"`
}

// NewCrawlReport creates a new empty crawl report.
func NewCrawlReport(runID string, titlesURL string) *CrawlReport {
	return &CrawlReport{
		RunID:     runID,
		TitlesURL: titlesURL,
		StartedAt: time.Now().UTC(),
		SectionsByOutcome: map[string]int{
			SectionOutcomeText:     0,
			SectionOutcomeRepealed: 0,
			SectionOutcomeEmpty:    0,
		},
		Titles: make([]*TitleSummary, 0),
	}
}

// RecordTitle adds a processed title to the report.
func (report *CrawlReport) RecordTitle(title *statute.Title) {
	summary := &TitleSummary{
		TitleKey: title.TitleKey,
		Label:    title.Label,
		Chapters: len(title.Chapters),
		Error:    title.Error,
	}

	report.TotalTitles++
	if title.Error != "" {
		report.FailedTitles++
	}

	for _, chapter := range title.Chapters {
		report.TotalChapters++
		if chapter.Error != "" {
			report.FailedChapters++
			summary.FailedChapters++
		}
		for _, section := range chapter.Sections {
			report.TotalSections++
			summary.Sections++
			report.SectionsByOutcome[SectionOutcome(section.Content)]++
		}
	}

	report.Titles = append(report.Titles, summary)
}

// RecordSkipped adds a title completed by an earlier session.
func (report *CrawlReport) RecordSkipped(entry statute.TitleEntry) {
	report.SkippedTitles++
	report.Titles = append(report.Titles, &TitleSummary{
		TitleKey: entry.TitleKey,
		Label:    entry.Label,
		Skipped:  true,
	})
}

// Finish stamps the completion time.
func (report *CrawlReport) Finish() {
	report.FinishedAt = time.Now().UTC()
}

// HasFailures reports whether any title or chapter failed.
func (report *CrawlReport) HasFailures() bool {
	return report.FailedTitles > 0 || report.FailedChapters > 0
}

// Format renders the report as "json" or, for anything else, a table.
func (report *CrawlReport) Format(outputFormat string) string {
	switch strings.ToLower(outputFormat) {
	case "json":
		return report.formatJSON()
	default:
		return report.formatTable()
	}
}

func (report *CrawlReport) formatTable() string {
	var builder strings.Builder

	builder.WriteString("=== CGS crawl ===\n\n")

	builder.WriteString("Summary:\n")
	builder.WriteString(fmt.Sprintf("  Run:             %s\n", report.RunID))
	builder.WriteString(fmt.Sprintf("  Titles:          %d\n", report.TotalTitles))
	builder.WriteString(fmt.Sprintf("  Chapters:        %d\n", report.TotalChapters))
	builder.WriteString(fmt.Sprintf("  Sections:        %d\n", report.TotalSections))
	builder.WriteString(fmt.Sprintf("  Failed titles:   %d\n", report.FailedTitles))
	builder.WriteString(fmt.Sprintf("  Failed chapters: %d\n", report.FailedChapters))
	if report.SkippedTitles > 0 {
		builder.WriteString(fmt.Sprintf("  Skipped titles:  %d\n", report.SkippedTitles))
	}
	if !report.FinishedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("  Duration:        %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)))
	}
	builder.WriteString("\n")

	if report.TotalSections > 0 {
		builder.WriteString("Sections:\n")
		outcomes := make([]string, 0, len(report.SectionsByOutcome))
		for outcome := range report.SectionsByOutcome {
			outcomes = append(outcomes, outcome)
		}
		sort.Strings(outcomes)
		for _, outcome := range outcomes {
			builder.WriteString(fmt.Sprintf("  %-10s %d\n", outcome, report.SectionsByOutcome[outcome]))
		}
		builder.WriteString("\n")
	}

	if len(report.Titles) > 0 {
		builder.WriteString("Titles:\n")
		builder.WriteString(fmt.Sprintf("  %-6s %-30s %-9s %-9s %-7s %s\n", "Key", "Label", "Chapters", "Sections", "Failed", "Note"))
		builder.WriteString(fmt.Sprintf("  %-6s %-30s %-9s %-9s %-7s %s\n", "---", "-----", "--------", "--------", "------", "----"))

		for _, summary := range report.Titles {
			note := summary.Error
			if summary.Skipped {
				note = "completed earlier"
			}
			builder.WriteString(fmt.Sprintf("  %-6s %-30s %-9d %-9d %-7d %s\n",
				summary.TitleKey,
				clipColumn(summary.Label, 30),
				summary.Chapters,
				summary.Sections,
				summary.FailedChapters,
				clipColumn(note, 60)))
		}
	}

	return builder.String()
}

// formatJSON renders the report as JSON.
func (report *CrawlReport) formatJSON() string {
	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(reportJSON)
}

// clipColumn shortens text to at most width runes, marking the cut with
// "...".
func clipColumn(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
