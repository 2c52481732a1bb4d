// Package identifier recovers canonical title, chapter, and section keys
// from cga.ct.gov URLs and visible anchor labels, and orders keys the way
// the statutes are numbered ("7" < "7a" < "8" < "10").
package identifier

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Pre-compiled patterns for the CGA URL and label conventions.
var (
	titleIDPattern   = regexp.MustCompile(`(?i)\btitle_(\d+[a-z]?)\b`)
	chapterIDPattern = regexp.MustCompile(`(?i)\bchap_(\d+[a-z]?)\b`)

	// Section anchors look like #sec_7-123 or #sec7-123.
	sectionFragmentPattern = regexp.MustCompile(`(?i)#sec[_-]?([0-9]+[a-z]*-[0-9]+[a-z]*)`)

	// Visible labels look like "Sec. 7-123. Definitions."
	sectionLabelPattern = regexp.MustCompile(`(?i)\bSec\.\s*([0-9]+[a-z]*-[0-9]+[a-z]*)\b`)

	keyPartsPattern = regexp.MustCompile(`^(\d+)(.*)$`)
)

// TitleKey extracts the title key from a URL or path such as
// ".../title_07.htm". Numeric keys are zero-padded to two digits.
// Returns "" when the value carries no title token.
func TitleKey(value string) string {
	match := titleIDPattern.FindStringSubmatch(value)
	if match == nil {
		return ""
	}
	return NormalizeTitleKey(match[1])
}

// ChapterKey extracts the chapter key from a URL or path such as
// ".../chap_012a.htm". The key keeps its natural form, lower-cased.
func ChapterKey(value string) string {
	match := chapterIDPattern.FindStringSubmatch(value)
	if match == nil {
		return ""
	}
	return strings.ToLower(match[1])
}

// SectionKeyFromURL extracts the section key from a fragment-qualified URL
// ("#sec_7-123" or "#sec7-123").
func SectionKeyFromURL(value string) string {
	match := sectionFragmentPattern.FindStringSubmatch(value)
	if match == nil {
		return ""
	}
	return strings.ToLower(match[1])
}

// SectionKeyFromLabel extracts the section key from visible text such as
// "Sec. 7-123. Definitions.".
func SectionKeyFromLabel(label string) string {
	match := sectionLabelPattern.FindStringSubmatch(label)
	if match == nil {
		return ""
	}
	return strings.ToLower(match[1])
}

// SectionKey tries the URL fragment first and falls back to the visible
// label. Returns "" when neither matches; callers skip such links.
func SectionKey(url string, label string) string {
	if sectionKey := SectionKeyFromURL(url); sectionKey != "" {
		return sectionKey
	}
	return SectionKeyFromLabel(label)
}

// SectionFragmentKeys returns every section key referenced by a section
// fragment in value, in order of appearance.
func SectionFragmentKeys(value string) []string {
	matches := sectionFragmentPattern.FindAllStringSubmatch(value, -1)
	sectionKeys := make([]string, 0, len(matches))
	for _, match := range matches {
		sectionKeys = append(sectionKeys, strings.ToLower(match[1]))
	}
	return sectionKeys
}

// NormalizeTitleKey lower-cases a title key and zero-pads purely numeric
// keys to two digits so that "7" and "07" name the same title.
func NormalizeTitleKey(titleKey string) string {
	titleKey = strings.ToLower(strings.TrimSpace(titleKey))
	if titleKey == "" || !isDigits(titleKey) {
		return titleKey
	}
	if len(titleKey) < 2 {
		return strings.Repeat("0", 2-len(titleKey)) + titleKey
	}
	return titleKey
}

// KeyParts is a key split into its numeric prefix and trailing suffix.
type KeyParts struct {
	Number  int
	Suffix  string
	Numeric bool
}

// ParseKey splits a key such as "12a" into {12, "a"}. Keys without a
// numeric prefix report Numeric=false and keep the whole key as Suffix.
func ParseKey(key string) KeyParts {
	match := keyPartsPattern.FindStringSubmatch(key)
	if match == nil {
		return KeyParts{Suffix: key}
	}
	number, err := strconv.Atoi(match[1])
	if err != nil {
		return KeyParts{Suffix: key}
	}
	return KeyParts{Number: number, Suffix: match[2], Numeric: true}
}

// Compare orders keys by numeric prefix, then suffix. Keys without a
// numeric prefix sort after all numeric keys, lexicographically.
func Compare(leftKey string, rightKey string) int {
	left := ParseKey(leftKey)
	right := ParseKey(rightKey)

	switch {
	case left.Numeric && !right.Numeric:
		return -1
	case !left.Numeric && right.Numeric:
		return 1
	case left.Numeric && right.Numeric && left.Number != right.Number:
		if left.Number < right.Number {
			return -1
		}
		return 1
	}
	return strings.Compare(left.Suffix, right.Suffix)
}

// Less reports whether leftKey sorts before rightKey.
func Less(leftKey string, rightKey string) bool {
	return Compare(leftKey, rightKey) < 0
}

// SortKeys sorts keys in place in statute order.
func SortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		return Less(keys[i], keys[j])
	})
}

func isDigits(value string) bool {
	for _, character := range value {
		if character < '0' || character > '9' {
			return false
		}
	}
	return value != ""
}
