package store

import (
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/coolbeans/cgscrawl/pkg/statute"
)

// DefaultSearchLimit caps search results when no limit is given.
const DefaultSearchLimit = 20

// SearchQuery selects sections by text.
type SearchQuery struct {
	// Term is matched case-insensitively against section text and label,
	// and exactly against the section key.
	Term string

	// TitleKey restricts results to one title.
	TitleKey string

	// Status restricts results to a content status ("repealed" or "").
	Status *statute.ContentStatus

	// Limit caps the number of results.
	Limit int
}

// SearchResult is one matching section with its location.
type SearchResult struct {
	TitleKey   string                `json:"title_key"`
	ChapterKey string                `json:"chapter_key"`
	SectionKey string                `json:"section_key"`
	Label      string                `json:"label"`
	URL        string                `json:"url"`
	Status     statute.ContentStatus `json:"status,omitempty"`
	Snippet    string                `json:"snippet"`
}

// Search returns sections matching the query in statute order.
func (store *Store) Search(query SearchQuery) ([]SearchResult, error) {
	term := strings.TrimSpace(query.Term)
	if term == "" {
		return nil, fmt.Errorf("search term is required")
	}
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	pattern := "%" + escapeLike(term) + "%"
	builder := sq.Select(
		"t.title_key", "c.chapter_key", "s.section_key", "s.label", "s.url", "s.status", "s.text",
	).
		From("sections s").
		Join("chapters c ON c.chapter_id = s.chapter_id").
		Join("titles t ON t.title_key = c.title_key").
		Where(sq.Or{
			sq.Expr(`s.text LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`s.label LIKE ? ESCAPE '\'`, pattern),
			sq.Eq{"s.section_key": strings.ToLower(term)},
		}).
		OrderBy("t.position", "c.position", "s.position").
		Limit(uint64(limit))

	if query.TitleKey != "" {
		builder = builder.Where(sq.Eq{"t.title_key": query.TitleKey})
	}
	if query.Status != nil {
		builder = builder.Where(sq.Eq{"s.status": string(*query.Status)})
	}

	rows, err := builder.RunWith(store.db).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to search sections: %w", err)
	}
	defer rows.Close()

	results := make([]SearchResult, 0)
	for rows.Next() {
		var result SearchResult
		var status, text string
		if err := rows.Scan(&result.TitleKey, &result.ChapterKey, &result.SectionKey, &result.Label, &result.URL, &status, &text); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		result.Status = statute.ContentStatus(status)
		result.Snippet = Snippet(text, term, 80)
		results = append(results, result)
	}
	return results, rows.Err()
}

// Section loads one stored section by title and section key.
func (store *Store) Section(titleKey string, sectionKey string) (*statute.Section, error) {
	var section statute.Section
	var status, bodyJSON, sourceJSON, historyJSON, annotationsJSON string

	err := sq.Select(
		"s.section_key", "s.label", "s.url", "s.text", "s.status",
		"s.body_json", "s.source_json", "s.history_json", "s.annotations_json",
	).
		From("sections s").
		Join("chapters c ON c.chapter_id = s.chapter_id").
		Where(sq.Eq{"c.title_key": titleKey, "s.section_key": sectionKey}).
		OrderBy("c.position", "s.position").
		Limit(1).
		RunWith(store.db).
		QueryRow().
		Scan(&section.SectionKey, &section.Label, &section.URL, &section.Content.Text, &status,
			&bodyJSON, &sourceJSON, &historyJSON, &annotationsJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to load section %s in title %s: %w", sectionKey, titleKey, err)
	}

	section.Content.Status = statute.ContentStatus(status)
	decodeTargets := []struct {
		data   string
		target any
	}{
		{bodyJSON, &section.Content.BodyParagraphs},
		{sourceJSON, &section.Content.Source},
		{historyJSON, &section.Content.History},
		{annotationsJSON, &section.Content.Annotations},
	}
	for _, decodeTarget := range decodeTargets {
		if err := json.Unmarshal([]byte(decodeTarget.data), decodeTarget.target); err != nil {
			return nil, fmt.Errorf("failed to decode section content: %w", err)
		}
	}
	return &section, nil
}

// Snippet returns up to width characters of text around the first
// case-insensitive occurrence of term, or the start of text when absent.
func Snippet(text string, term string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}

	start := 0
	if matchIndex := strings.Index(strings.ToLower(text), strings.ToLower(term)); matchIndex >= 0 {
		matchRune := len([]rune(text[:matchIndex]))
		start = matchRune - width/4
		if start < 0 {
			start = 0
		}
	}
	end := start + width
	if end > len(runes) {
		end = len(runes)
		start = max(0, end-width)
	}

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet += "..."
	}
	return snippet
}
