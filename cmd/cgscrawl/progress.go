package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/coolbeans/cgscrawl/pkg/crawler"
	"github.com/coolbeans/cgscrawl/pkg/links"
	"github.com/coolbeans/cgscrawl/pkg/statute"
)

// crawlProgress shows one chapter bar per title.
type crawlProgress struct {
	quiet      bool
	writer     io.Writer
	chapterBar *progressbar.ProgressBar
	titleLabel string
}

func newCrawlProgress(writer io.Writer, quiet bool) *crawlProgress {
	return &crawlProgress{quiet: quiet, writer: writer}
}

// Hooks returns the crawler callbacks that drive the bars.
func (progress *crawlProgress) Hooks() crawler.Hooks {
	if progress.quiet {
		return crawler.Hooks{}
	}
	return crawler.Hooks{
		TitleStarted: func(position int, total int, titleLink links.IndexLink) {
			progress.titleLabel = fmt.Sprintf("[%d/%d] %s", position, total, titleLink.Label)
		},
		ChaptersFound: func(titleKey string, count int) {
			progress.chapterBar = progressbar.NewOptions(count,
				progressbar.OptionSetWriter(progress.writer),
				progressbar.OptionSetDescription(progress.titleLabel),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetItsString("chapters"),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(progress.writer)
				}),
			)
		},
		ChapterCompleted: func(titleKey string, chapter *statute.Chapter) {
			if progress.chapterBar != nil {
				progress.chapterBar.Add(1)
			}
		},
		TitleCompleted: func(title *statute.Title) {
			if progress.chapterBar != nil {
				progress.chapterBar.Finish()
				progress.chapterBar = nil
			}
		},
	}
}
