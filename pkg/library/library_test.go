package library

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coolbeans/cgscrawl/pkg/statute"
)

func sampleTitle(titleKey string) *statute.Title {
	return &statute.Title{
		TitleKey: titleKey,
		Label:    "Title " + strings.TrimLeft(titleKey, "0"),
		Name:     "Municipalities",
		URL:      "https://www.cga.ct.gov/current/pub/title_" + titleKey + ".htm",
		Chapters: []statute.Chapter{
			{
				ChapterKey: "090",
				Label:      "Chapter 90",
				Sections: []statute.Section{
					{
						SectionLink: statute.SectionLink{SectionKey: "7-1", Label: "Sec. 7-1.", URL: "https://www.cga.ct.gov/current/pub/chap_090.htm#sec_7-1"},
						Content:     statute.SectionContent{BodyParagraphs: []string{"\"Town\" & <city>."}, Source: []string{}, History: []string{}, Annotations: []statute.Annotation{}, Text: "\"Town\" & <city>."},
					},
					{
						SectionLink: statute.SectionLink{SectionKey: "7-2", Label: "Sec. 7-2."},
						Content:     statute.RepealedContent("Sections 7-2 and 7-3 are repealed."),
					},
					{
						SectionLink: statute.SectionLink{SectionKey: "7-3", Label: "Sec. 7-3."},
						Content:     statute.EmptyContent(),
					},
				},
			},
			{ChapterKey: "091", Error: "HTTP 500 for chap_091.htm", Sections: []statute.Section{}},
		},
	}
}

func TestInitAndOpen(t *testing.T) {
	libraryPath := filepath.Join(t.TempDir(), "data")

	lib, err := Init(libraryPath)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := Open(libraryPath); err == nil {
		t.Error("Open should fail before a master index exists")
	}

	if _, err := lib.WriteIndex(&statute.MasterIndex{}); err != nil {
		t.Fatalf("WriteIndex failed: %v", err)
	}

	reopened, err := Open(libraryPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if reopened.Path() != libraryPath {
		t.Errorf("path = %s, want %s", reopened.Path(), libraryPath)
	}
}

func TestInitRequiresPath(t *testing.T) {
	if _, err := Init(""); err == nil {
		t.Error("expected error for empty output directory")
	}
}

func TestWriteAndLoadTitle(t *testing.T) {
	lib, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	title := sampleTitle("07")
	titlePath, err := lib.WriteTitle(title)
	if err != nil {
		t.Fatalf("WriteTitle failed: %v", err)
	}
	if filepath.Base(titlePath) != "title_07.json" {
		t.Errorf("file name = %s", filepath.Base(titlePath))
	}

	raw, err := os.ReadFile(titlePath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"text": "\"Town\" & <city>."`) {
		t.Errorf("expected unescaped HTML characters and two-space indent:\n%s", raw)
	}
	if strings.Count(string(raw), `"status": "repealed"`) != 1 {
		t.Error("status should appear only on the repealed section")
	}

	loaded, err := lib.LoadTitle(title.Entry())
	if err != nil {
		t.Fatalf("LoadTitle failed: %v", err)
	}
	if loaded.SectionCount() != 3 {
		t.Errorf("sections = %d, want 3", loaded.SectionCount())
	}
	if loaded.Chapters[1].Error == "" {
		t.Error("chapter error was not preserved")
	}
}

func TestWriteTitleRequiresKey(t *testing.T) {
	lib, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, err := lib.WriteTitle(&statute.Title{}); err == nil {
		t.Error("expected error for title without key")
	}
}

func TestIndexAndStats(t *testing.T) {
	lib, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	masterIndex := &statute.MasterIndex{
		Source: statute.SourceInfo{TitlesURL: "https://www.cga.ct.gov/current/pub/titles.htm", GeneratedAtUTC: "2026-10-19T12:00:00Z"},
	}
	for _, titleKey := range []string{"01", "07"} {
		title := sampleTitle(titleKey)
		if _, err := lib.WriteTitle(title); err != nil {
			t.Fatalf("WriteTitle failed: %v", err)
		}
		masterIndex.Titles = append(masterIndex.Titles, title.Entry())
	}
	if _, err := lib.WriteIndex(masterIndex); err != nil {
		t.Fatalf("WriteIndex failed: %v", err)
	}

	loadedIndex, err := lib.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex failed: %v", err)
	}
	if len(loadedIndex.Titles) != 2 || loadedIndex.Titles[1].File != "title_07.json" {
		t.Errorf("unexpected index titles: %+v", loadedIndex.Titles)
	}

	stats, err := lib.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	want := LibraryStats{
		TotalTitles:      2,
		TotalChapters:    4,
		FailedChapters:   2,
		TotalSections:    6,
		RepealedSections: 2,
		EmptySections:    2,
	}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
}

func TestWriteCombinedIndex(t *testing.T) {
	libraryPath := t.TempDir()
	lib, err := Init(libraryPath)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	combinedPath, err := lib.WriteCombinedIndex("cgs_index.json", &statute.MasterIndex{})
	if err != nil {
		t.Fatalf("WriteCombinedIndex failed: %v", err)
	}
	if combinedPath != filepath.Join(libraryPath, "cgs_index.json") {
		t.Errorf("relative path resolved to %s", combinedPath)
	}

	absolutePath := filepath.Join(t.TempDir(), "elsewhere", "index.json")
	combinedPath, err = lib.WriteCombinedIndex(absolutePath, &statute.MasterIndex{})
	if err != nil {
		t.Fatalf("WriteCombinedIndex failed: %v", err)
	}
	if combinedPath != absolutePath {
		t.Errorf("absolute path changed to %s", combinedPath)
	}

	if combinedPath, err := lib.WriteCombinedIndex("", &statute.MasterIndex{}); err != nil || combinedPath != "" {
		t.Errorf("empty index file should be skipped, got %q %v", combinedPath, err)
	}
}
