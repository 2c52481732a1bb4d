package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coolbeans/cgscrawl/pkg/statute"
)

// CrawlStatus is where a crawl session stands.
type CrawlStatus string

const (
	// CrawlStatusRunning indicates the crawl is in progress.
	CrawlStatusRunning CrawlStatus = "running"

	// CrawlStatusInterrupted indicates the crawl stopped early and can be resumed.
	CrawlStatusInterrupted CrawlStatus = "interrupted"

	// CrawlStatusCompleted indicates every title was processed.
	CrawlStatusCompleted CrawlStatus = "completed"
)

// CrawlState is the resumable record of a crawl session: which titles are
// already written and the entries they contribute to the master index.
type CrawlState struct {
	// Status is the overall crawl status.
	Status CrawlStatus `json:"status"`

	// RunID identifies the session; a resumed crawl keeps it.
	RunID string `json:"run_id"`

	// TitlesURL is the index the session started from.
	TitlesURL string `json:"titles_url"`

	// CompletedTitles holds the master-index entries of written titles in
	// the order they finished.
	CompletedTitles []statute.TitleEntry `json:"completed_titles"`

	// StartedAt is when the crawl session started.
	StartedAt time.Time `json:"started_at"`

	// UpdatedAt is when the state was last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCrawlState starts a session with nothing completed.
func NewCrawlState(runID string, titlesURL string) *CrawlState {
	return &CrawlState{
		Status:          CrawlStatusRunning,
		RunID:           runID,
		TitlesURL:       titlesURL,
		CompletedTitles: make([]statute.TitleEntry, 0),
		StartedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
}

// MarkCompleted records a written title, replacing an earlier record for
// the same key.
func (state *CrawlState) MarkCompleted(entry statute.TitleEntry) {
	for position, completed := range state.CompletedTitles {
		if completed.TitleKey == entry.TitleKey {
			state.CompletedTitles[position] = entry
			return
		}
	}
	state.CompletedTitles = append(state.CompletedTitles, entry)
}

// CompletedEntry returns the recorded entry for a title key.
func (state *CrawlState) CompletedEntry(titleKey string) (statute.TitleEntry, bool) {
	for _, completed := range state.CompletedTitles {
		if completed.TitleKey == titleKey {
			return completed, true
		}
	}
	return statute.TitleEntry{}, false
}

// SaveState writes the crawl state to disk as JSON. The file is replaced
// atomically so an interrupted write never leaves a truncated state.
func (state *CrawlState) SaveState(statePath string) error {
	state.UpdatedAt = time.Now().UTC()

	stateJSON, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state for run %s: %w", state.RunID, err)
	}

	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	temporaryPath := statePath + ".tmp"
	if err := os.WriteFile(temporaryPath, stateJSON, 0o644); err != nil {
		return fmt.Errorf("failed to write crawl state to %s: %w", temporaryPath, err)
	}
	if err := os.Rename(temporaryPath, statePath); err != nil {
		return fmt.Errorf("failed to replace crawl state %s: %w", statePath, err)
	}

	return nil
}

// LoadState reads the state file written by SaveState.
func LoadState(statePath string) (*CrawlState, error) {
	stateJSON, err := os.ReadFile(statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state file %s: %w", statePath, err)
	}

	var crawlState CrawlState
	if err := json.Unmarshal(stateJSON, &crawlState); err != nil {
		return nil, fmt.Errorf("failed to decode state file %s: %w", statePath, err)
	}

	if crawlState.CompletedTitles == nil {
		crawlState.CompletedTitles = make([]statute.TitleEntry, 0)
	}

	return &crawlState, nil
}
