package store

import (
	"database/sql"
	"fmt"
)

const createMetadataTable = `
CREATE TABLE IF NOT EXISTS index_metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

const createTitlesTable = `
CREATE TABLE IF NOT EXISTS titles (
	title_key TEXT PRIMARY KEY,
	position  INTEGER NOT NULL,
	label     TEXT NOT NULL,
	name      TEXT NOT NULL,
	url       TEXT NOT NULL,
	error     TEXT NOT NULL DEFAULT ''
)`

const createChaptersTable = `
CREATE TABLE IF NOT EXISTS chapters (
	chapter_id  INTEGER PRIMARY KEY AUTOINCREMENT,
	title_key   TEXT NOT NULL REFERENCES titles(title_key) ON DELETE CASCADE,
	chapter_key TEXT NOT NULL,
	position    INTEGER NOT NULL,
	label       TEXT NOT NULL,
	name        TEXT NOT NULL,
	url         TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	UNIQUE (title_key, chapter_key)
)`

const createSectionsTable = `
CREATE TABLE IF NOT EXISTS sections (
	section_id       INTEGER PRIMARY KEY AUTOINCREMENT,
	chapter_id       INTEGER NOT NULL REFERENCES chapters(chapter_id) ON DELETE CASCADE,
	position         INTEGER NOT NULL,
	section_key      TEXT NOT NULL,
	label            TEXT NOT NULL,
	url              TEXT NOT NULL,
	text             TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT '',
	body_json        TEXT NOT NULL,
	source_json      TEXT NOT NULL,
	history_json     TEXT NOT NULL,
	annotations_json TEXT NOT NULL
)`

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_chapters_title ON chapters(title_key)`,
	`CREATE INDEX IF NOT EXISTS idx_sections_chapter ON sections(chapter_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sections_key ON sections(section_key)`,
	`CREATE INDEX IF NOT EXISTS idx_sections_status ON sections(status)`,
}

// CreateSchema creates the export tables and indexes in one transaction.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []struct {
		name string
		ddl  string
	}{
		{"index_metadata", createMetadataTable},
		{"titles", createTitlesTable},
		{"chapters", createChaptersTable},
		{"sections", createSectionsTable},
	}

	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, index := range schemaIndexes {
		if _, err := tx.Exec(index); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}
