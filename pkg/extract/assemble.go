package extract

import (
	"strings"

	"github.com/coolbeans/cgscrawl/pkg/htmltext"
	"github.com/coolbeans/cgscrawl/pkg/statute"
)

// Block is one classified unit of section text.
type Block struct {
	Text string
	Classification
}

// Assembler accumulates a section's blocks into a SectionContent. Each
// bucket collapses adjacent duplicates as blocks arrive; annotations are
// compared on text alone.
type Assembler struct {
	body        []string
	source      []string
	history     []string
	annotations []statute.Annotation
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		body:        []string{},
		source:      []string{},
		history:     []string{},
		annotations: []statute.Annotation{},
	}
}

// Add normalizes the block's whitespace and appends it to its bucket unless
// it repeats the bucket's last entry. Blocks that are empty after
// normalization are dropped.
func (assembler *Assembler) Add(block Block) {
	text := htmltext.Clean(block.Text)
	if text == "" {
		return
	}

	switch block.Bucket {
	case BucketSource:
		assembler.source = appendDistinct(assembler.source, text)
	case BucketHistory:
		assembler.history = appendDistinct(assembler.history, text)
	case BucketAnnotation:
		lastIndex := len(assembler.annotations) - 1
		if lastIndex >= 0 && assembler.annotations[lastIndex].Text == text {
			return
		}
		assembler.annotations = append(assembler.annotations, statute.Annotation{First: block.First, Text: text})
	default:
		assembler.body = appendDistinct(assembler.body, text)
	}
}

// Content returns the assembled section content. Text is the body entries
// separated by a blank line.
func (assembler *Assembler) Content() statute.SectionContent {
	return statute.SectionContent{
		BodyParagraphs: append([]string{}, assembler.body...),
		Source:         append([]string{}, assembler.source...),
		History:        append([]string{}, assembler.history...),
		Annotations:    append([]statute.Annotation{}, assembler.annotations...),
		Text:           strings.TrimSpace(strings.Join(assembler.body, "\n\n")),
	}
}

func appendDistinct(entries []string, text string) []string {
	if len(entries) > 0 && entries[len(entries)-1] == text {
		return entries
	}
	return append(entries, text)
}

// CollapseAdjacent returns entries with runs of equal adjacent values
// reduced to one. Non-adjacent repeats are kept.
func CollapseAdjacent(entries []string) []string {
	collapsed := make([]string, 0, len(entries))
	for _, entry := range entries {
		collapsed = appendDistinct(collapsed, entry)
	}
	return collapsed
}
