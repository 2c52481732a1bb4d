package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/coolbeans/cgscrawl/pkg/htmltext"
)

// nodeList is a document's element nodes flattened into document order.
// subtreeEnd[i] is one past the position of the last descendant of nodes[i],
// so the descendants of nodes[i] are exactly nodes[i+1 : subtreeEnd[i]].
type nodeList struct {
	nodes      []*html.Node
	subtreeEnd []int
	position   map[*html.Node]int

	idIndex         map[string]*html.Node
	anchorNameIndex map[string]*html.Node
	nameIndex       map[string]*html.Node
}

func flatten(root *html.Node) *nodeList {
	list := &nodeList{
		position:        make(map[*html.Node]int),
		idIndex:         make(map[string]*html.Node),
		anchorNameIndex: make(map[string]*html.Node),
		nameIndex:       make(map[string]*html.Node),
	}

	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.ElementNode {
			nodePosition := len(list.nodes)
			list.nodes = append(list.nodes, node)
			list.subtreeEnd = append(list.subtreeEnd, 0)
			list.position[node] = nodePosition
			list.indexAttributes(node)

			for child := node.FirstChild; child != nil; child = child.NextSibling {
				visit(child)
			}
			list.subtreeEnd[nodePosition] = len(list.nodes)
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	if root != nil {
		visit(root)
	}
	return list
}

// indexAttributes records the first element in document order for each
// lower-cased id and name value.
func (list *nodeList) indexAttributes(node *html.Node) {
	if id, ok := htmltext.Attr(node, "id"); ok {
		firstByKey(list.idIndex, strings.ToLower(id), node)
	}
	if name, ok := htmltext.Attr(node, "name"); ok {
		lowered := strings.ToLower(name)
		firstByKey(list.nameIndex, lowered, node)
		if node.Data == "a" {
			firstByKey(list.anchorNameIndex, lowered, node)
		}
	}
}

func firstByKey(index map[string]*html.Node, key string, node *html.Node) {
	if _, exists := index[key]; !exists {
		index[key] = node
	}
}

// contains reports whether candidate is a strict descendant of ancestor.
func (list *nodeList) contains(ancestor *html.Node, candidate *html.Node) bool {
	ancestorPosition, ok := list.position[ancestor]
	if !ok {
		return false
	}
	candidatePosition, ok := list.position[candidate]
	if !ok {
		return false
	}
	return candidatePosition > ancestorPosition && candidatePosition < list.subtreeEnd[ancestorPosition]
}

// descendants returns the element descendants of node in document order.
func (list *nodeList) descendants(node *html.Node) []*html.Node {
	nodePosition, ok := list.position[node]
	if !ok {
		return nil
	}
	return list.nodes[nodePosition+1 : list.subtreeEnd[nodePosition]]
}

// Cursor walks a flattened node list forward in document order.
type Cursor struct {
	list     *nodeList
	position int
}

// cursorAfter returns a cursor positioned on the first element following
// node in document order, which is node's first descendant when it has one.
func (list *nodeList) cursorAfter(node *html.Node) *Cursor {
	nodePosition, ok := list.position[node]
	if !ok {
		return &Cursor{list: list, position: len(list.nodes)}
	}
	return &Cursor{list: list, position: nodePosition + 1}
}

// Next returns the current element and advances. ok is false once the
// document is exhausted.
func (cursor *Cursor) Next() (node *html.Node, ok bool) {
	if cursor.position >= len(cursor.list.nodes) {
		return nil, false
	}
	node = cursor.list.nodes[cursor.position]
	cursor.position++
	return node, true
}
