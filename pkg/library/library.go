// Package library manages the on-disk statute index: one title_<key>.json
// per title and a titles_index.json master index in the output directory.
package library

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coolbeans/cgscrawl/pkg/statute"
)

const (
	// IndexFileName is the master index written next to the title files.
	IndexFileName = "titles_index.json"
)

// Library manages a directory of crawled titles.
type Library struct {
	mu   sync.RWMutex
	path string
}

// Init creates the output directory if needed and returns a library on it.
func Init(libraryPath string) (*Library, error) {
	if libraryPath == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(libraryPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Library{path: libraryPath}, nil
}

// Open returns a library over an existing output directory that holds a
// master index.
func Open(libraryPath string) (*Library, error) {
	indexPath := filepath.Join(libraryPath, IndexFileName)
	if _, err := os.Stat(indexPath); err != nil {
		return nil, fmt.Errorf("failed to open library at %s: %w", libraryPath, err)
	}
	return &Library{path: libraryPath}, nil
}

// WriteTitle stores a title as title_<key>.json and returns the file path.
func (lib *Library) WriteTitle(title *statute.Title) (string, error) {
	if title == nil || title.TitleKey == "" {
		return "", fmt.Errorf("title key is required")
	}

	titlePath := filepath.Join(lib.path, statute.TitleFileName(title.TitleKey))
	if err := lib.writeJSON(titlePath, title); err != nil {
		return "", fmt.Errorf("failed to write title %s: %w", title.TitleKey, err)
	}
	return titlePath, nil
}

// WriteIndex stores the master index as titles_index.json.
func (lib *Library) WriteIndex(masterIndex *statute.MasterIndex) (string, error) {
	indexPath := filepath.Join(lib.path, IndexFileName)
	if err := lib.writeJSON(indexPath, masterIndex); err != nil {
		return "", fmt.Errorf("failed to write master index: %w", err)
	}
	return indexPath, nil
}

// WriteCombinedIndex stores a copy of the master index at indexFile. A
// relative path is resolved against the library directory.
func (lib *Library) WriteCombinedIndex(indexFile string, masterIndex *statute.MasterIndex) (string, error) {
	if indexFile == "" {
		return "", nil
	}
	combinedPath := lib.Resolve(indexFile)
	if err := os.MkdirAll(filepath.Dir(combinedPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", combinedPath, err)
	}
	if err := lib.writeJSON(combinedPath, masterIndex); err != nil {
		return "", fmt.Errorf("failed to write combined index: %w", err)
	}
	return combinedPath, nil
}

// LoadIndex reads titles_index.json.
func (lib *Library) LoadIndex() (*statute.MasterIndex, error) {
	var masterIndex statute.MasterIndex
	if err := lib.readJSON(filepath.Join(lib.path, IndexFileName), &masterIndex); err != nil {
		return nil, fmt.Errorf("failed to load master index: %w", err)
	}
	if masterIndex.Titles == nil {
		masterIndex.Titles = make([]statute.TitleEntry, 0)
	}
	return &masterIndex, nil
}

// LoadTitle reads the file named by a master-index entry.
func (lib *Library) LoadTitle(entry statute.TitleEntry) (*statute.Title, error) {
	fileName := entry.File
	if fileName == "" {
		fileName = statute.TitleFileName(entry.TitleKey)
	}

	var title statute.Title
	if err := lib.readJSON(filepath.Join(lib.path, filepath.Base(fileName)), &title); err != nil {
		return nil, fmt.Errorf("failed to load title %s: %w", entry.TitleKey, err)
	}
	return &title, nil
}

// EachTitle loads every title listed in the master index, in index order,
// and calls visit with it. The first error stops the iteration.
func (lib *Library) EachTitle(visit func(*statute.Title) error) error {
	masterIndex, err := lib.LoadIndex()
	if err != nil {
		return err
	}
	for _, entry := range masterIndex.Titles {
		title, err := lib.LoadTitle(entry)
		if err != nil {
			return err
		}
		if err := visit(title); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns aggregate statistics across all titles in the library.
func (lib *Library) Stats() (*LibraryStats, error) {
	stats := &LibraryStats{}
	err := lib.EachTitle(func(title *statute.Title) error {
		stats.TotalTitles++
		if title.Error != "" {
			stats.FailedTitles++
		}
		for _, chapter := range title.Chapters {
			stats.TotalChapters++
			if chapter.Error != "" {
				stats.FailedChapters++
			}
			for _, section := range chapter.Sections {
				stats.TotalSections++
				switch {
				case section.Content.IsRepealed():
					stats.RepealedSections++
				case section.Content.IsEmpty():
					stats.EmptySections++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// LibraryStats holds aggregate counts for a library.
type LibraryStats struct {
	TotalTitles      int `json:"total_titles"`
	FailedTitles     int `json:"failed_titles"`
	TotalChapters    int `json:"total_chapters"`
	FailedChapters   int `json:"failed_chapters"`
	TotalSections    int `json:"total_sections"`
	RepealedSections int `json:"repealed_sections"`
	EmptySections    int `json:"empty_sections"`
}

// Path returns the library's root directory.
func (lib *Library) Path() string {
	return lib.path
}

// Resolve returns filePath unchanged when absolute, else joined to the
// library directory.
func (lib *Library) Resolve(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(lib.path, filePath)
}

// --- Internal helpers ---

// writeJSON encodes value with two-space indentation and without HTML
// escaping, then moves it into place.
func (lib *Library) writeJSON(filePath string, value any) error {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(filePath), err)
	}

	lib.mu.Lock()
	defer lib.mu.Unlock()

	temporaryPath := filePath + ".tmp"
	if err := os.WriteFile(temporaryPath, buffer.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(temporaryPath, filePath)
}

func (lib *Library) readJSON(filePath string, target any) error {
	lib.mu.RLock()
	data, err := os.ReadFile(filePath)
	lib.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(filePath), err)
	}
	return nil
}
