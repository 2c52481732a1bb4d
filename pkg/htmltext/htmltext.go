// Package htmltext holds the small set of DOM helpers shared by the link
// scanner and the section extractor: visible-text extraction, whitespace
// normalization, and attribute lookup on golang.org/x/net/html nodes.
package htmltext

import (
	"strings"

	"golang.org/x/net/html"
)

// Clean collapses every run of whitespace (including newlines and
// non-breaking spaces) to a single space and trims the result.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// NodeText returns the visible text beneath node: each descendant text node
// is trimmed, empty ones are dropped, and the rest are joined with a single
// space before whitespace is collapsed. Script and style contents are not
// visible and are skipped.
func NodeText(node *html.Node) string {
	if node == nil {
		return ""
	}

	var parts []string
	var collect func(*html.Node)
	collect = func(current *html.Node) {
		switch current.Type {
		case html.TextNode:
			if trimmed := strings.TrimSpace(current.Data); trimmed != "" {
				parts = append(parts, trimmed)
			}
			return
		case html.ElementNode:
			if current.Data == "script" || current.Data == "style" {
				return
			}
		case html.CommentNode:
			return
		}
		for child := current.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(node)

	return Clean(strings.Join(parts, " "))
}

// Attr returns the value of the named attribute and whether it was present.
func Attr(node *html.Node, key string) (string, bool) {
	if node == nil {
		return "", false
	}
	for _, attribute := range node.Attr {
		if attribute.Namespace == "" && attribute.Key == key {
			return attribute.Val, true
		}
	}
	return "", false
}

// Classes returns the whitespace-separated tokens of the class attribute.
func Classes(node *html.Node) []string {
	classValue, ok := Attr(node, "class")
	if !ok {
		return nil
	}
	return strings.Fields(classValue)
}

// IsElement reports whether node is an element with one of the given tag
// names. With no names it matches any element.
func IsElement(node *html.Node, tagNames ...string) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}
	if len(tagNames) == 0 {
		return true
	}
	for _, tagName := range tagNames {
		if node.Data == tagName {
			return true
		}
	}
	return false
}
