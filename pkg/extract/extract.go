// Package extract turns a cga.ct.gov chapter page into per-section content.
//
// Section text on a chapter page is not wrapped in any container: it starts
// at an anchor whose id or name is "sec_<key>" and runs until the next such
// anchor. The extractor walks the page in document order from each anchor,
// routes every paragraph to a bucket (body, source, history, annotation),
// and falls back to the chapter's "are repealed" notes for sections that
// have no text of their own.
package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/coolbeans/cgscrawl/pkg/links"
	"github.com/coolbeans/cgscrawl/pkg/statute"
)

// Extractor resolves section content on parsed chapter pages. It holds no
// per-page state and is safe for concurrent use.
type Extractor struct {
	classifier Classifier
	logger     *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClassifier replaces the default class-attribute classifier.
func WithClassifier(classifier Classifier) Option {
	return func(extractor *Extractor) {
		if classifier != nil {
			extractor.classifier = classifier
		}
	}
}

// WithLogger sets the logger used for lookup misses.
func WithLogger(logger *slog.Logger) Option {
	return func(extractor *Extractor) {
		if logger != nil {
			extractor.logger = logger
		}
	}
}

// NewExtractor creates an extractor using ClassAttributeClassifier unless
// an option overrides it.
func NewExtractor(options ...Option) *Extractor {
	extractor := &Extractor{
		classifier: ClassAttributeClassifier,
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor
}

// SectionTextMap returns the structured content of every section in
// sectionLinks whose anchor can be found on the page. Sections without a key
// or without an anchor are absent from the map.
func (extractor *Extractor) SectionTextMap(document *goquery.Document, sectionLinks []statute.SectionLink) map[string]statute.SectionContent {
	textMap := make(map[string]statute.SectionContent)
	if document == nil || len(sectionLinks) == 0 {
		return textMap
	}

	list := flatten(document.Get(0))
	for _, sectionLink := range sectionLinks {
		sectionKey := normalizeKey(sectionLink.SectionKey)
		if sectionKey == "" {
			continue
		}

		start := list.findSectionAnchor(sectionKey)
		if start == nil {
			extractor.logger.Debug("section anchor not found", "section", sectionKey, "url", sectionLink.URL)
			continue
		}

		walked := list.walkSection(start, sectionLink.Label, extractor.classifier)
		assembler := NewAssembler()
		for _, block := range walked.Blocks {
			assembler.Add(block)
		}
		textMap[sectionKey] = assembler.Content()
	}
	return textMap
}

// ContentMap applies the fallback chain to every key in sectionLinks:
// structured text when it is non-empty, otherwise the repealed note marked
// as repealed, otherwise an empty record. Every key appears exactly once.
func ContentMap(sectionLinks []statute.SectionLink, textMap map[string]statute.SectionContent, repealedNotes map[string]string) map[string]statute.SectionContent {
	contentMap := make(map[string]statute.SectionContent, len(sectionLinks))
	for _, sectionLink := range sectionLinks {
		sectionKey := normalizeKey(sectionLink.SectionKey)
		if _, done := contentMap[sectionKey]; done {
			continue
		}
		contentMap[sectionKey] = resolveContent(sectionKey, textMap, repealedNotes)
	}
	return contentMap
}

// ResolveSections pairs each section link with its resolved content, in
// the order of sectionLinks.
func ResolveSections(sectionLinks []statute.SectionLink, textMap map[string]statute.SectionContent, repealedNotes map[string]string) []statute.Section {
	sections := make([]statute.Section, 0, len(sectionLinks))
	for _, sectionLink := range sectionLinks {
		sections = append(sections, statute.Section{
			SectionLink: sectionLink,
			Content:     resolveContent(normalizeKey(sectionLink.SectionKey), textMap, repealedNotes),
		})
	}
	return sections
}

func resolveContent(sectionKey string, textMap map[string]statute.SectionContent, repealedNotes map[string]string) statute.SectionContent {
	if sectionKey == "" {
		return statute.EmptyContent()
	}
	if content, ok := textMap[sectionKey]; ok && !content.IsEmpty() {
		return content
	}
	if note := repealedNotes[sectionKey]; note != "" {
		return statute.RepealedContent(note)
	}
	return statute.EmptyContent()
}

// ExtractChapter parses a chapter page once and returns its sections, in
// document order, with content resolved.
func (extractor *Extractor) ExtractChapter(pageHTML string, chapterURL string) ([]statute.Section, error) {
	document, err := links.ParseDocument(pageHTML)
	if err != nil {
		return nil, err
	}
	return extractor.ExtractChapterDocument(document, chapterURL)
}

// ExtractChapterDocument is ExtractChapter for an already parsed page.
func (extractor *Extractor) ExtractChapterDocument(document *goquery.Document, chapterURL string) ([]statute.Section, error) {
	sectionLinks, err := links.SectionLinks(document, chapterURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract section links: %w", err)
	}

	textMap := extractor.SectionTextMap(document, sectionLinks)
	repealedNotes := RepealedNoteMap(document)

	sections := ResolveSections(sectionLinks, textMap, repealedNotes)
	extractor.logger.Debug("chapter extracted",
		"url", chapterURL,
		"sections", len(sections),
		"structured", len(textMap),
		"repealed_notes", len(repealedNotes))
	return sections, nil
}

// ExtractSectionTextMap parses chapter HTML and runs SectionTextMap with
// the default classifier.
func ExtractSectionTextMap(pageHTML string, sectionLinks []statute.SectionLink) (map[string]statute.SectionContent, error) {
	document, err := links.ParseDocument(pageHTML)
	if err != nil {
		return nil, err
	}
	return NewExtractor().SectionTextMap(document, sectionLinks), nil
}

// ExtractRepealedNoteMap parses chapter HTML and runs RepealedNoteMap.
func ExtractRepealedNoteMap(pageHTML string) (map[string]string, error) {
	document, err := links.ParseDocument(pageHTML)
	if err != nil {
		return nil, err
	}
	return RepealedNoteMap(document), nil
}

func normalizeKey(sectionKey string) string {
	return strings.ToLower(strings.TrimSpace(sectionKey))
}
