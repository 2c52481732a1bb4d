package links

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/coolbeans/cgscrawl/pkg/htmltext"
	"github.com/coolbeans/cgscrawl/pkg/identifier"
	"github.com/coolbeans/cgscrawl/pkg/statute"
)

// IndexLink is a title or chapter entry discovered on an index page.
type IndexLink struct {
	Key   string
	Label string
	Name  string
	URL   string
}

// ParseDocument parses page HTML for link discovery.
func ParseDocument(pageHTML string) (*goquery.Document, error) {
	document, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return document, nil
}

// NormalizeURL removes the fragment so that two URLs naming the same page
// compare equal.
func NormalizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		if hashIndex := strings.Index(rawURL, "#"); hashIndex >= 0 {
			return rawURL[:hashIndex]
		}
		return rawURL
	}
	parsedURL.Fragment = ""
	parsedURL.RawFragment = ""
	return parsedURL.String()
}

// TitleLinks returns the titles linked from the titles index page, merged
// per URL and sorted by title key.
func TitleLinks(document *goquery.Document, pageURL string) ([]IndexLink, error) {
	return indexLinks(document, pageURL, KindTitle, identifier.TitleKey, "Title")
}

// ChapterLinks returns the chapters linked from a title page, merged per
// URL and sorted by chapter key.
func ChapterLinks(document *goquery.Document, pageURL string) ([]IndexLink, error) {
	return indexLinks(document, pageURL, KindChapter, identifier.ChapterKey, "Chapter")
}

// ExtractTitleLinks parses the titles index page and returns its titles.
func ExtractTitleLinks(pageHTML string, pageURL string) ([]IndexLink, error) {
	document, err := ParseDocument(pageHTML)
	if err != nil {
		return nil, err
	}
	return TitleLinks(document, pageURL)
}

// ExtractChapterLinks parses a title page and returns its chapters.
func ExtractChapterLinks(pageHTML string, pageURL string) ([]IndexLink, error) {
	document, err := ParseDocument(pageHTML)
	if err != nil {
		return nil, err
	}
	return ChapterLinks(document, pageURL)
}

func indexLinks(document *goquery.Document, pageURL string, kind Kind, keyOf func(string) string, defaultLabelPrefix string) ([]IndexLink, error) {
	anchors, err := resolvedAnchors(document, pageURL)
	if err != nil {
		return nil, err
	}

	var rawLinks []RawLink
	for _, anchor := range anchors {
		if keyOf(anchor.parsed.Path) == "" {
			continue
		}
		rawLinks = append(rawLinks, RawLink{URL: anchor.absolute, Text: anchor.text})
	}

	var indexEntries []IndexLink
	for _, merged := range MergeLinkTexts(rawLinks, kind) {
		entryKey := keyOf(merged.URL)
		if entryKey == "" {
			continue
		}
		label := merged.Primary
		if label == "" {
			label = defaultLabelPrefix + " " + entryKey
		}
		indexEntries = append(indexEntries, IndexLink{
			Key:   entryKey,
			Label: label,
			Name:  merged.Secondary,
			URL:   merged.URL,
		})
	}

	sort.SliceStable(indexEntries, func(i, j int) bool {
		return identifier.Less(indexEntries[i].Key, indexEntries[j].Key)
	})
	return indexEntries, nil
}

// SectionLinks returns the section anchors of a chapter page in document
// order. Only anchors pointing back into the same page are kept, so
// cross-references to other chapters never appear. Anchors are deduplicated
// by absolute URL.
func SectionLinks(document *goquery.Document, chapterURL string) ([]statute.SectionLink, error) {
	anchors, err := resolvedAnchors(document, chapterURL)
	if err != nil {
		return nil, err
	}

	chapterPage := NormalizeURL(chapterURL)
	seenURLs := make(map[string]bool)
	sectionLinks := make([]statute.SectionLink, 0)

	for _, anchor := range anchors {
		if NormalizeURL(anchor.absolute) != chapterPage {
			continue
		}
		if !strings.Contains(strings.ToLower(anchor.absolute), "#sec") {
			continue
		}
		if seenURLs[anchor.absolute] {
			continue
		}
		seenURLs[anchor.absolute] = true

		sectionLinks = append(sectionLinks, statute.SectionLink{
			SectionKey: identifier.SectionKey(anchor.absolute, anchor.text),
			Label:      anchor.text,
			URL:        anchor.absolute,
		})
	}

	return sectionLinks, nil
}

// ExtractSectionLinks parses a chapter page and returns its section links.
func ExtractSectionLinks(pageHTML string, chapterURL string) ([]statute.SectionLink, error) {
	document, err := ParseDocument(pageHTML)
	if err != nil {
		return nil, err
	}
	return SectionLinks(document, chapterURL)
}

type resolvedAnchor struct {
	absolute string
	parsed   *url.URL
	text     string
}

// resolvedAnchors returns every <a href> on the page with its href resolved
// against pageURL. Hrefs that do not parse are skipped.
func resolvedAnchors(document *goquery.Document, pageURL string) ([]resolvedAnchor, error) {
	baseURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %s: %w", pageURL, err)
	}

	var anchors []resolvedAnchor
	document.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href := strings.TrimSpace(selection.AttrOr("href", ""))
		if href == "" {
			return
		}
		resolvedURL, parseErr := baseURL.Parse(href)
		if parseErr != nil {
			return
		}
		anchors = append(anchors, resolvedAnchor{
			absolute: resolvedURL.String(),
			parsed:   resolvedURL,
			text:     htmltext.NodeText(selection.Get(0)),
		})
	})
	return anchors, nil
}
