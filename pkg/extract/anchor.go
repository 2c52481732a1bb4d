package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/coolbeans/cgscrawl/pkg/htmltext"
)

// anchorCandidates lists the id/name shapes CGA uses for a section anchor.
func anchorCandidates(sectionKey string) []string {
	lowered := strings.ToLower(sectionKey)
	return []string{"sec_" + lowered, "sec" + lowered}
}

// findSectionAnchor locates the boundary anchor for sectionKey. For each
// candidate shape it tries an element with a matching id, then an <a> with
// a matching name, then any element with a matching name. Returns nil when
// nothing matches.
func (list *nodeList) findSectionAnchor(sectionKey string) *html.Node {
	if strings.TrimSpace(sectionKey) == "" {
		return nil
	}
	for _, candidate := range anchorCandidates(strings.TrimSpace(sectionKey)) {
		if node := list.idIndex[candidate]; node != nil {
			return node
		}
		if node := list.anchorNameIndex[candidate]; node != nil {
			return node
		}
		if node := list.nameIndex[candidate]; node != nil {
			return node
		}
	}
	return nil
}

// isBoundaryAnchor reports whether node marks the start of a section: its
// id or name begins with "sec", case-insensitively.
func isBoundaryAnchor(node *html.Node) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}
	for _, attributeKey := range []string{"id", "name"} {
		value, ok := htmltext.Attr(node, attributeKey)
		if ok && strings.HasPrefix(strings.ToLower(value), "sec") {
			return true
		}
	}
	return false
}

// containsOtherBoundary reports whether node nests a boundary anchor other
// than start.
func (list *nodeList) containsOtherBoundary(node *html.Node, start *html.Node) bool {
	for _, descendant := range list.descendants(node) {
		if descendant != start && isBoundaryAnchor(descendant) {
			return true
		}
	}
	return false
}

// enclosingContainer returns the nearest <p> or <li> ancestor of node.
func enclosingContainer(node *html.Node) *html.Node {
	for parent := node.Parent; parent != nil; parent = parent.Parent {
		if htmltext.IsElement(parent, "p", "li") {
			return parent
		}
	}
	return nil
}
