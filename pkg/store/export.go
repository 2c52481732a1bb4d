package store

import (
	"fmt"

	"github.com/coolbeans/cgscrawl/pkg/library"
	"github.com/coolbeans/cgscrawl/pkg/statute"
)

// ExportResult summarizes a library export.
type ExportResult struct {
	Titles   int
	Chapters int
	Sections int
}

// ExportLibrary copies every title of a library into the store in index
// order. onTitle, when set, is called after each title is written.
func ExportLibrary(lib *library.Library, store *Store, onTitle func(*statute.Title)) (*ExportResult, error) {
	masterIndex, err := lib.LoadIndex()
	if err != nil {
		return nil, err
	}
	if err := store.WriteSource(masterIndex.Source); err != nil {
		return nil, err
	}

	result := &ExportResult{}
	position := 0
	err = lib.EachTitle(func(title *statute.Title) error {
		if err := store.WriteTitle(position, title); err != nil {
			return err
		}
		position++

		result.Titles++
		result.Chapters += len(title.Chapters)
		result.Sections += title.SectionCount()
		if onTitle != nil {
			onTitle(title)
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to export library %s: %w", lib.Path(), err)
	}
	return result, nil
}
