// Package speech holds the deterministic text transforms applied before
// synthesis: sanitization, sentence pauses, and playful filler openers.
package speech

import (
	"math/rand"
	"regexp"
	"strings"
)

var (
	nonASCII    = regexp.MustCompile(`[^\x00-\x7F]+`)
	whitespace  = regexp.MustCompile(`\s+`)
	sentenceEnd = regexp.MustCompile(`[.!?]`)
)

// fillers is the fixed vocabulary of playful openers. Which one is picked is
// flavor, not correctness; the source of randomness is injectable so tests
// can pin it.
var fillers = []string{"Mmm.", "Oooh.", "Hehe.", "Ahh.", "Yay."}

// Sanitize strips characters outside the synthesizer's safe input range and
// collapses runs of whitespace. Whitespace-only input yields "" meaning
// "nothing to speak".
func Sanitize(text string) string {
	text = nonASCII.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// AddPauses splits on sentence-ending punctuation and rejoins with blank
// lines so the synthesizer breathes between sentences. Empty input stays
// empty.
func AddPauses(text string) string {
	var parts []string
	for _, p := range sentenceEnd.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ".\n\n\n") + "."
}

// Shaper composes the transforms for greetings and replies. The zero value is
// not usable; construct with New.
type Shaper struct {
	pick func(n int) int
}

// New returns a Shaper drawing fillers from pick. A nil pick falls back to
// package-level math/rand.
func New(pick func(n int) int) *Shaper {
	if pick == nil {
		pick = rand.Intn
	}
	return &Shaper{pick: pick}
}

// PlayfulWrap prepends one filler opener. Empty input stays empty so the
// pipeline's "nothing to speak" contract holds.
func (s *Shaper) PlayfulWrap(text string) string {
	if text == "" {
		return ""
	}
	return fillers[s.pick(len(fillers))] + "\n\n" + text
}

// Greeting shapes an opening line: sanitize, then pauses. No filler; the
// openings already start playful.
func (s *Shaper) Greeting(text string) string {
	return AddPauses(Sanitize(text))
}

// Reply shapes a generated reply: sanitize, pauses, then a filler opener.
// Sanitize runs first so collapsing whitespace cannot destroy the pause
// separators added after it. If sanitize yields empty the whole pipeline
// yields empty.
func (s *Shaper) Reply(text string) string {
	return s.PlayfulWrap(AddPauses(Sanitize(text)))
}
