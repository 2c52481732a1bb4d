// Package store exports a crawled statute index into SQLite so sections can
// be queried without loading every title file.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/coolbeans/cgscrawl/pkg/statute"
)

// Store is an SQLite database of titles, chapters, and sections.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dbPath and ensures the schema.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (store *Store) Close() error {
	return store.db.Close()
}

// WriteSource records the master index source block.
func (store *Store) WriteSource(source statute.SourceInfo) error {
	values := map[string]string{
		"titles_url":       source.TitlesURL,
		"generated_at_utc": source.GeneratedAtUTC,
		"user_agent":       source.UserAgent,
		"run_id":           source.RunID,
	}

	tx, err := store.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range values {
		_, err := sq.Insert("index_metadata").
			Columns("key", "value").
			Values(key, value).
			Options("OR REPLACE").
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to write metadata %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// Source reads back the recorded source block.
func (store *Store) Source() (statute.SourceInfo, error) {
	rows, err := sq.Select("key", "value").From("index_metadata").RunWith(store.db).Query()
	if err != nil {
		return statute.SourceInfo{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	defer rows.Close()

	var source statute.SourceInfo
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return statute.SourceInfo{}, fmt.Errorf("failed to scan metadata: %w", err)
		}
		switch key {
		case "titles_url":
			source.TitlesURL = value
		case "generated_at_utc":
			source.GeneratedAtUTC = value
		case "user_agent":
			source.UserAgent = value
		case "run_id":
			source.RunID = value
		}
	}
	return source, rows.Err()
}

// WriteTitle replaces everything stored for the title with its current
// chapters and sections, in one transaction.
func (store *Store) WriteTitle(position int, title *statute.Title) error {
	tx, err := store.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := sq.Delete("titles").Where(sq.Eq{"title_key": title.TitleKey}).RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to clear title %s: %w", title.TitleKey, err)
	}

	_, err = sq.Insert("titles").
		Columns("title_key", "position", "label", "name", "url", "error").
		Values(title.TitleKey, position, title.Label, title.Name, title.URL, title.Error).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to write title %s: %w", title.TitleKey, err)
	}

	for chapterPosition, chapter := range title.Chapters {
		result, err := sq.Insert("chapters").
			Columns("title_key", "chapter_key", "position", "label", "name", "url", "error").
			Values(title.TitleKey, chapter.ChapterKey, chapterPosition, chapter.Label, chapter.Name, chapter.URL, chapter.Error).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to write chapter %s: %w", chapter.ChapterKey, err)
		}
		chapterID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read chapter id: %w", err)
		}

		if err := writeSections(tx, chapterID, chapter.Sections); err != nil {
			return fmt.Errorf("chapter %s: %w", chapter.ChapterKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit title %s: %w", title.TitleKey, err)
	}
	return nil
}

func writeSections(tx *sql.Tx, chapterID int64, sections []statute.Section) error {
	if len(sections) == 0 {
		return nil
	}

	insert := sq.Insert("sections").
		Columns(
			"chapter_id", "position", "section_key", "label", "url", "text", "status",
			"body_json", "source_json", "history_json", "annotations_json",
		)
	for sectionPosition, section := range sections {
		encoded, err := encodeContent(section.Content)
		if err != nil {
			return fmt.Errorf("section %s: %w", section.SectionKey, err)
		}
		insert = insert.Values(
			chapterID, sectionPosition, section.SectionKey, section.Label, section.URL,
			section.Content.Text, string(section.Content.Status),
			encoded.body, encoded.source, encoded.history, encoded.annotations,
		)
	}

	if _, err := insert.RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to write sections: %w", err)
	}
	return nil
}

type encodedContent struct {
	body        string
	source      string
	history     string
	annotations string
}

func encodeContent(content statute.SectionContent) (encodedContent, error) {
	var encoded encodedContent
	fields := []struct {
		target *string
		value  any
	}{
		{&encoded.body, nonNilStrings(content.BodyParagraphs)},
		{&encoded.source, nonNilStrings(content.Source)},
		{&encoded.history, nonNilStrings(content.History)},
		{&encoded.annotations, nonNilAnnotations(content.Annotations)},
	}
	for _, field := range fields {
		data, err := json.Marshal(field.value)
		if err != nil {
			return encodedContent{}, fmt.Errorf("failed to encode content: %w", err)
		}
		*field.target = string(data)
	}
	return encoded, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilAnnotations(values []statute.Annotation) []statute.Annotation {
	if values == nil {
		return []statute.Annotation{}
	}
	return values
}

// Counts returns the number of stored titles, chapters, and sections.
func (store *Store) Counts() (titles int, chapters int, sections int, err error) {
	for _, table := range []struct {
		name   string
		target *int
	}{
		{"titles", &titles},
		{"chapters", &chapters},
		{"sections", &sections},
	} {
		if err := sq.Select("COUNT(*)").From(table.name).RunWith(store.db).QueryRow().Scan(table.target); err != nil {
			return 0, 0, 0, fmt.Errorf("failed to count %s: %w", table.name, err)
		}
	}
	return titles, chapters, sections, nil
}

// escapeLike escapes LIKE wildcards so the term matches literally.
func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}
