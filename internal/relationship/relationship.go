// Package relationship maps free-text photo descriptions and user utterances
// onto a closed vocabulary of family relationship labels.
package relationship

import (
	"sort"
	"strings"
)

// Label is a normalized relationship drawn from the closed vocabulary.
type Label string

const (
	Mom      Label = "Mom"
	Dad      Label = "Dad"
	Brother  Label = "Brother"
	Sister   Label = "Sister"
	Grandmom Label = "Grandmom"
	Granddad Label = "Granddad"
	Cousin   Label = "Cousin"
	Aunt     Label = "Aunt"
	Uncle    Label = "Uncle"
)

// All lists every label in display order, matching the touch-variant bubble grid.
var All = []Label{Mom, Dad, Brother, Sister, Grandmom, Granddad, Cousin, Aunt, Uncle}

// synonyms maps each label to the literal words that name it in descriptions
// and speech. The canonical word comes first.
var synonyms = map[Label][]string{
	Mom:      {"mom", "mother"},
	Dad:      {"dad", "father"},
	Brother:  {"brother"},
	Sister:   {"sister"},
	Grandmom: {"grandmom", "grandmother"},
	Granddad: {"granddad", "grandfather"},
	Cousin:   {"cousin"},
	Aunt:     {"aunt"},
	Uncle:    {"uncle"},
}

// aliases maps informal spoken words to the canonical relationship root they
// stand for. Matching against the root is loose substring containment in both
// directions; that over-matches on partial word overlap and is kept that way
// deliberately (recall over precision).
var aliases = map[string]string{
	"mommy":   "mom",
	"mama":    "mom",
	"daddy":   "dad",
	"papa":    "dad",
	"granny":  "grandmom",
	"grandma": "grandmom",
	"nani":    "grandmom",
	"grandpa": "granddad",
	"nana":    "granddad",
	"am":      "brother",
	"em":      "sister",
	"auntie":  "aunt",
}

// Set is an unordered collection of labels.
type Set map[Label]struct{}

func NewSet(labels ...Label) Set {
	s := make(Set, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

func (s Set) Has(l Label) bool {
	_, ok := s[l]
	return ok
}

func (s Set) Add(l Label) {
	s[l] = struct{}{}
}

func (s Set) Len() int { return len(s) }

// Labels returns the set's members in display order.
func (s Set) Labels() []Label {
	out := make([]Label, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return order(out[i]) < order(out[j]) })
	return out
}

// Strings returns the set's members as plain strings in display order.
func (s Set) Strings() []string {
	labels := s.Labels()
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}

func order(l Label) int {
	for i, candidate := range All {
		if candidate == l {
			return i
		}
	}
	return len(All)
}

// Parse resolves a display string back to a label. Used for touch selections
// arriving over the wire.
func Parse(s string) (Label, bool) {
	for _, l := range All {
		if strings.EqualFold(s, string(l)) {
			return l, true
		}
	}
	return "", false
}

// Extract scans a photo description case-insensitively for relationship words
// and returns the set of normalized labels found. Pure and total: unmatched
// text yields an empty set.
func Extract(description string) Set {
	found := make(Set)
	lower := strings.ToLower(description)
	for _, label := range All {
		for _, word := range synonyms[label] {
			if strings.Contains(lower, word) {
				found.Add(label)
				break
			}
		}
	}
	return found
}

// IsCorrect reports whether an utterance names any label in the ground-truth
// set. Matching is lowercase substring containment against canonical words and
// synonyms, then against the informal alias map. An empty utterance never
// matches. A miss is the normal "try again" outcome, not an error.
func IsCorrect(utterance string, truth Set) bool {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	if lower == "" {
		return false
	}
	for label := range truth {
		for _, word := range synonyms[label] {
			if strings.Contains(lower, word) {
				return true
			}
		}
	}
	for alias, root := range aliases {
		if !strings.Contains(lower, alias) {
			continue
		}
		for label := range truth {
			canon := synonyms[label][0]
			if strings.Contains(canon, root) || strings.Contains(root, canon) {
				return true
			}
		}
	}
	return false
}

// Matches returns every ground-truth label the utterance names, using the same
// loose containment rules as IsCorrect.
func Matches(utterance string, truth Set) []Label {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	if lower == "" {
		return nil
	}
	hits := make(Set)
	for label := range truth {
		for _, word := range synonyms[label] {
			if strings.Contains(lower, word) {
				hits.Add(label)
				break
			}
		}
	}
	for alias, root := range aliases {
		if !strings.Contains(lower, alias) {
			continue
		}
		for label := range truth {
			canon := synonyms[label][0]
			if strings.Contains(canon, root) || strings.Contains(root, canon) {
				hits.Add(label)
			}
		}
	}
	return hits.Labels()
}
