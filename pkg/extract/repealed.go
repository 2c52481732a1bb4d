package extract

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/coolbeans/cgscrawl/pkg/htmltext"
	"github.com/coolbeans/cgscrawl/pkg/identifier"
)

var repealedPattern = regexp.MustCompile(`(?i)\bare repealed\b`)

// RepealedNoteMap maps section keys to the text of the paragraph declaring
// them repealed, e.g. "Sections 7-123 to 7-125, inclusive, are repealed.".
// Keys come from the section fragments of the paragraph's links. When two
// notes name the same key the later paragraph wins.
func RepealedNoteMap(document *goquery.Document) map[string]string {
	repealedNotes := make(map[string]string)

	document.Find("p").Each(func(_ int, paragraph *goquery.Selection) {
		noteText := htmltext.NodeText(paragraph.Get(0))
		if noteText == "" || !repealedPattern.MatchString(noteText) {
			return
		}

		paragraph.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
			sectionKey := identifier.SectionKeyFromURL(link.AttrOr("href", ""))
			if sectionKey != "" {
				repealedNotes[sectionKey] = noteText
			}
		})
	})

	return repealedNotes
}

// IsRepealedNote reports whether text reads as a repeal declaration.
func IsRepealedNote(text string) bool {
	return repealedPattern.MatchString(text)
}
