package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/coolbeans/cgscrawl/pkg/htmltext"
)

// StopReason records why a section walk ended.
type StopReason int

const (
	// StopEndOfDocument means the walk ran off the end of the page.
	StopEndOfDocument StopReason = iota

	// StopBoundaryAnchor means the walk reached another section's anchor.
	StopBoundaryAnchor

	// StopNestedBoundary means the next paragraph or list item contains
	// another section's anchor.
	StopNestedBoundary
)

func (reason StopReason) String() string {
	switch reason {
	case StopBoundaryAnchor:
		return "boundary-anchor"
	case StopNestedBoundary:
		return "nested-boundary"
	default:
		return "end-of-document"
	}
}

// walkResult is the raw outcome of one section walk, before assembly.
type walkResult struct {
	Blocks    []Block
	Container *html.Node
	Stop      StopReason
}

// walkSection collects the classified blocks belonging to the section whose
// anchor is start. The anchor's enclosing <p>/<li>, if any, is the first
// block, with label removed from its front. The walk then moves forward in
// document order from the container's first descendant (or from the
// anchor's, without a container) and classifies every <p>/<li> until it
// meets a different boundary anchor or a block that nests one.
func (list *nodeList) walkSection(start *html.Node, label string, classify Classifier) walkResult {
	result := walkResult{Container: enclosingContainer(start)}
	cursorOrigin := start

	if result.Container != nil {
		containerText := stripLabel(htmltext.NodeText(result.Container), label)
		if containerText != "" {
			result.Blocks = append(result.Blocks, Block{
				Text:           containerText,
				Classification: classify(elementInfo(result.Container)),
			})
		}
		cursorOrigin = result.Container
	}

	cursor := list.cursorAfter(cursorOrigin)
	for {
		element, ok := cursor.Next()
		if !ok {
			result.Stop = StopEndOfDocument
			return result
		}

		if element != start && isBoundaryAnchor(element) {
			result.Stop = StopBoundaryAnchor
			return result
		}

		if !htmltext.IsElement(element, "p", "li") {
			continue
		}

		if result.Container != nil && (element == result.Container || list.contains(result.Container, element)) {
			continue
		}

		if list.containsOtherBoundary(element, start) {
			result.Stop = StopNestedBoundary
			return result
		}

		text := htmltext.NodeText(element)
		if text == "" {
			continue
		}
		result.Blocks = append(result.Blocks, Block{
			Text:           text,
			Classification: classify(elementInfo(element)),
		})
	}
}

// stripLabel removes the cleaned label from the front of text once.
func stripLabel(text string, label string) string {
	cleanedLabel := htmltext.Clean(label)
	if cleanedLabel != "" && strings.HasPrefix(text, cleanedLabel) {
		return strings.TrimSpace(text[len(cleanedLabel):])
	}
	return text
}
