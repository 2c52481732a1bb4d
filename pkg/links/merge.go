// Package links discovers title, chapter, and section links on cga.ct.gov
// pages and reconciles the several anchors CGA renders per destination into
// a single label + name record.
package links

import (
	"regexp"

	"github.com/coolbeans/cgscrawl/pkg/htmltext"
)

// Kind selects the primary-label heuristic used when merging link texts.
type Kind string

const (
	// KindTitle treats "Title <number>" texts as the primary label.
	KindTitle Kind = "title"

	// KindChapter treats "Chapter <number>" texts as the primary label.
	KindChapter Kind = "chapter"

	// KindGeneric treats the first non-empty text as the primary label.
	KindGeneric Kind = "generic"
)

var (
	titlePrimaryPattern   = regexp.MustCompile(`(?i)^Title\s+\d`)
	chapterPrimaryPattern = regexp.MustCompile(`(?i)^Chapter\s+\d`)
)

// RawLink is one anchor as found on a page: its resolved absolute URL and
// its display text.
type RawLink struct {
	URL  string
	Text string
}

// MergedLink is the reconciled record for one distinct URL.
type MergedLink struct {
	URL       string
	Primary   string
	Secondary string
}

// MergeLinkTexts produces one record per distinct URL, in order of first
// appearance. Texts matching the kind's primary pattern become Primary (a
// later match replaces an earlier one); every other non-empty text is
// appended to Secondary, space-joined. Anchors with empty text are ignored
// and never create a record on their own.
func MergeLinkTexts(rawLinks []RawLink, kind Kind) []MergedLink {
	mergedByURL := make(map[string]*MergedLink)
	var urlOrder []string

	for _, rawLink := range rawLinks {
		text := htmltext.Clean(rawLink.Text)
		if text == "" {
			continue
		}

		merged, exists := mergedByURL[rawLink.URL]
		if !exists {
			merged = &MergedLink{URL: rawLink.URL}
			mergedByURL[rawLink.URL] = merged
			urlOrder = append(urlOrder, rawLink.URL)
		}

		if isPrimaryText(text, kind, merged) {
			merged.Primary = text
		} else {
			merged.Secondary = htmltext.Clean(merged.Secondary + " " + text)
		}
	}

	result := make([]MergedLink, 0, len(urlOrder))
	for _, linkURL := range urlOrder {
		result = append(result, *mergedByURL[linkURL])
	}
	return result
}

func isPrimaryText(text string, kind Kind, merged *MergedLink) bool {
	switch kind {
	case KindTitle:
		return titlePrimaryPattern.MatchString(text)
	case KindChapter:
		return chapterPrimaryPattern.MatchString(text)
	default:
		return merged.Primary == ""
	}
}
