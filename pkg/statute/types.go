// Package statute defines the title → chapter → section data model produced
// when indexing the Connecticut General Statutes from cga.ct.gov.
package statute

import (
	"fmt"
)

// SectionLink identifies one section anchor found on a chapter page.
// SectionKey is the normalized "<number><letter>-<number><letter>" form
// (e.g. "7-123a"), lower-cased. It is empty when neither the URL fragment
// nor the visible label yielded a key.
type SectionLink struct {
	SectionKey string `json:"section_key"`
	Label      string `json:"label"`
	URL        string `json:"url"`
}

// Annotation is a single annotation paragraph. First marks the paragraph
// that opens an annotation sequence.
type Annotation struct {
	First bool   `json:"first"`
	Text  string `json:"text"`
}

// ContentStatus marks how a section's content was obtained.
type ContentStatus string

const (
	// StatusNone is the zero value: structured text was extracted, or the
	// record is empty.
	StatusNone ContentStatus = ""

	// StatusRepealed indicates the content is the chapter's repealed note
	// covering this section.
	StatusRepealed ContentStatus = "repealed"
)

// SectionContent holds the classified text of a single section.
type SectionContent struct {
	BodyParagraphs []string      `json:"body_paragraphs"`
	Source         []string      `json:"source"`
	History        []string      `json:"history"`
	Annotations    []Annotation  `json:"annotations"`
	Text           string        `json:"text"`
	Status         ContentStatus `json:"status,omitempty"`
}

// EmptyContent returns a content record with no text. Slices are non-nil so
// the JSON shape stays stable.
func EmptyContent() SectionContent {
	return SectionContent{
		BodyParagraphs: []string{},
		Source:         []string{},
		History:        []string{},
		Annotations:    []Annotation{},
	}
}

// RepealedContent returns a content record built from a repealed note.
func RepealedContent(note string) SectionContent {
	content := EmptyContent()
	content.BodyParagraphs = []string{note}
	content.Text = note
	content.Status = StatusRepealed
	return content
}

// IsRepealed reports whether the content came from a repealed note.
func (content SectionContent) IsRepealed() bool {
	return content.Status == StatusRepealed
}

// IsEmpty reports whether the content carries no section text.
func (content SectionContent) IsEmpty() bool {
	return content.Text == ""
}

// Section is a section link together with its resolved content.
type Section struct {
	SectionLink
	Content SectionContent `json:"content"`
}

// Chapter is a chapter page and the sections discovered on it.
type Chapter struct {
	ChapterKey string    `json:"chapter_key"`
	Label      string    `json:"label"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Sections   []Section `json:"sections"`
	Error      string    `json:"error,omitempty"`
}

// Title is a title page and its chapters. This is the document written to
// title_<key>.json.
type Title struct {
	TitleKey string    `json:"title_key"`
	Label    string    `json:"label"`
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	Chapters []Chapter `json:"chapters"`
	Error    string    `json:"error,omitempty"`
}

// TitleEntry is the lightweight master-index entry for a title.
type TitleEntry struct {
	TitleKey string `json:"title_key"`
	Label    string `json:"label"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	File     string `json:"file"`
}

// SourceInfo describes the crawl that produced a master index.
type SourceInfo struct {
	TitlesURL      string `json:"titles_url"`
	GeneratedAtUTC string `json:"generated_at_utc"`
	UserAgent      string `json:"user_agent"`
	RunID          string `json:"run_id,omitempty"`
}

// MasterIndex lists every crawled title and the file holding its tree.
type MasterIndex struct {
	Source SourceInfo   `json:"source"`
	Titles []TitleEntry `json:"titles"`
}

// TitleFileName returns the per-title output file name for a title key.
func TitleFileName(titleKey string) string {
	return fmt.Sprintf("title_%s.json", titleKey)
}

// Entry returns the master-index entry for the title.
func (title *Title) Entry() TitleEntry {
	return TitleEntry{
		TitleKey: title.TitleKey,
		Label:    title.Label,
		Name:     title.Name,
		URL:      title.URL,
		File:     TitleFileName(title.TitleKey),
	}
}

// SectionCount returns the number of sections across all chapters.
func (title *Title) SectionCount() int {
	total := 0
	for _, chapter := range title.Chapters {
		total += len(chapter.Sections)
	}
	return total
}
