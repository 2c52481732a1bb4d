package extract

import (
	"golang.org/x/net/html"

	"github.com/coolbeans/cgscrawl/pkg/htmltext"
)

// Bucket is the semantic role of a captured text block.
type Bucket string

const (
	BucketBody       Bucket = "body"
	BucketSource     Bucket = "source"
	BucketHistory    Bucket = "history"
	BucketAnnotation Bucket = "annotation"
)

// ElementInfo is the element metadata a Classifier sees.
type ElementInfo struct {
	Tag     string
	ID      string
	Classes []string
}

// Classification is a classifier's verdict for one block. First is only
// meaningful for BucketAnnotation.
type Classification struct {
	Bucket Bucket
	First  bool
}

// Classifier routes a block to exactly one bucket based on its source
// element. Implementations must not fail; unknown shapes go to the body.
type Classifier func(ElementInfo) Classification

// ClassAttributeClassifier routes blocks using the class tokens CGA puts on
// chapter paragraphs. Tokens are matched exactly and checked in priority
// order: source, history, annotation-first, annotation, then body.
func ClassAttributeClassifier(info ElementInfo) Classification {
	classSet := make(map[string]bool, len(info.Classes))
	for _, class := range info.Classes {
		classSet[class] = true
	}

	switch {
	case classSet["source-first"] || classSet["source"]:
		return Classification{Bucket: BucketSource}
	case classSet["history-first"] || classSet["history"]:
		return Classification{Bucket: BucketHistory}
	case classSet["annotation-first"]:
		return Classification{Bucket: BucketAnnotation, First: true}
	case classSet["annotation"]:
		return Classification{Bucket: BucketAnnotation}
	default:
		return Classification{Bucket: BucketBody}
	}
}

func elementInfo(node *html.Node) ElementInfo {
	id, _ := htmltext.Attr(node, "id")
	return ElementInfo{
		Tag:     node.Data,
		ID:      id,
		Classes: htmltext.Classes(node),
	}
}
