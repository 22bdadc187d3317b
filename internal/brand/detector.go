// Package brand finds electronics brand keywords in free text and filenames.
//
// Matching is deliberately naive: plain substring search over the
// whitespace-free, lowercased input, first keyword in list order wins.
// Short keywords therefore match inside unrelated words ("mi" in "miami").
package brand

import (
	"errors"
	"strings"
	"unicode"
)

// None is returned when no keyword is found.
const None = ""

// ErrNoKeywords is returned when a Detector is built from an empty list.
var ErrNoKeywords = errors.New("brand keyword list is empty")

// Detector holds a read-only keyword list. Safe for concurrent use.
type Detector struct {
	keywords []string
}

// NewDetector builds a Detector. Keywords are lowercased; order is kept.
func NewDetector(keywords []string) (*Detector, error) {
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return nil, errors.New("brand keyword list contains a blank entry")
		}
		kw = append(kw, k)
	}
	return &Detector{keywords: kw}, nil
}

// Detect returns the first keyword found in text, or None.
func (d *Detector) Detect(text string) string {
	norm := normalize(text)
	if norm == "" {
		return None
	}
	for _, k := range d.keywords {
		if strings.Contains(norm, k) {
			return k
		}
	}
	return None
}

// Keywords returns a copy of the keyword list in match order.
func (d *Detector) Keywords() []string {
	out := make([]string, len(d.keywords))
	copy(out, d.keywords)
	return out
}

// Mismatch reports whether both sides named a brand and the brands differ.
// Either side being None lets the upload through to scoring.
func Mismatch(fromFile, fromDescription string) bool {
	return fromFile != None && fromDescription != None && fromFile != fromDescription
}

func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
