package entity

import (
	"fmt"
	"strings"

	"github.com/coregx/ahocorasick"

	"github.com/carmentacollective/carmenta-sub005/pkg/docstore"
)

// minPatternLen drops surfaces too short to be meaningful mentions.
const minPatternLen = 3

// Dictionary is a compiled automaton over the surface forms of one owner's
// knowledge documents: document names and path leaves (hyphens read as
// spaces, so the document at profile.people.jane-doe matches "Jane Doe").
type Dictionary struct {
	ac       *ahocorasick.Automaton
	patterns []string // canonicalized, automaton order
	labels   []string // original surface per pattern, for proposals
}

// Compile builds a dictionary from a document snapshot. An empty snapshot
// yields an empty dictionary that matches nothing.
func Compile(entries []docstore.Entry) (*Dictionary, error) {
	d := &Dictionary{}
	seen := make(map[string]bool)

	add := func(surface string) {
		key := Canonicalize(surface)
		if len(key) < minPatternLen || seen[key] {
			return
		}
		seen[key] = true
		d.patterns = append(d.patterns, key)
		d.labels = append(d.labels, surface)
	}

	for _, e := range entries {
		add(e.Name)
		if leaf := pathLeaf(e.Path); leaf != "" {
			add(strings.ReplaceAll(leaf, "-", " "))
		}
	}

	if len(d.patterns) == 0 {
		return d, nil
	}

	// LeftmostLongest prefers "jane doe" over "jane"
	ac, err := ahocorasick.NewBuilder().
		AddStrings(d.patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, fmt.Errorf("entity: compile dictionary: %w", err)
	}
	d.ac = ac
	return d, nil
}

// Detect returns the surface forms mentioned in text, deduplicated, in order
// of first appearance. Matches must land on word boundaries in the
// canonicalized text so "ada" does not fire inside "canada".
func (d *Dictionary) Detect(text string) []string {
	if d.ac == nil {
		return nil
	}

	haystack := Canonicalize(text)
	bytes := []byte(haystack)

	var out []string
	emitted := make(map[int]bool)
	for _, m := range d.ac.FindAllOverlapping(bytes) {
		if !boundary(haystack, m.Start, m.End) {
			continue
		}
		if emitted[m.PatternID] {
			continue
		}
		emitted[m.PatternID] = true
		out = append(out, d.labels[m.PatternID])
	}
	return out
}

// Size returns the number of compiled patterns.
func (d *Dictionary) Size() int {
	return len(d.patterns)
}

func boundary(s string, start, end int) bool {
	if start > 0 && s[start-1] != ' ' {
		return false
	}
	if end < len(s) && s[end] != ' ' {
		return false
	}
	return true
}

func pathLeaf(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}
