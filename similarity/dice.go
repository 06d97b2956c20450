// Package similarity scores how close a chat guess is to an accepted form.
//
// The default scorer is a Sørensen–Dice coefficient over character bigrams
// that also gives partial credit for swapped neighbours ("hte" for "the")
// and for one inserted or substituted character. The score is asymmetric:
// the reference is turned into bigram multisets and the candidate is scanned
// against them.
package similarity

import (
	"strings"
	"unicode"
)

const (
	// Threshold is the minimum Dice score for a guess to be accepted.
	Threshold = 0.8
	// MaxCandidateLen bounds the work done for a single comparison.
	MaxCandidateLen = 100
)

type bigram [2]rune

func squash(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			out = append(out, r)
		}
	}
	return out
}

// altRatio is the weight of a fuzzy (reversed or skip) bigram credit.
// Longer references tolerate proportionally less fuzziness.
func altRatio(refLen int) float64 {
	return max(0.2, 1-0.05*float64(refLen))
}

// Dice returns the typo-tolerant Sørensen–Dice similarity of candidate to
// reference, in [0, 1]. Interior whitespace is ignored. Empty strings never
// match.
func Dice(reference, candidate string) float64 {
	ref := squash(reference)
	cand := squash(candidate)
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}
	if string(ref) == string(cand) {
		return 1
	}
	if len(cand) > MaxCandidateLen {
		return 0
	}
	if len(ref) < 2 {
		return 0
	}
	denom := len(ref) + len(cand) - 2
	if denom <= 0 {
		return 0
	}

	forward := make(map[bigram]int, len(ref))
	reversed := make(map[bigram]int, len(ref))
	skip := make(map[bigram]int, len(ref))
	for i := 0; i+1 < len(ref); i++ {
		forward[bigram{ref[i], ref[i+1]}]++
		reversed[bigram{ref[i+1], ref[i]}]++
		if i+2 < len(ref) {
			skip[bigram{ref[i], ref[i+2]}]++
		}
	}

	alt := altRatio(len(ref))
	credit := 0.0
	for i := 0; i+1 < len(cand); i++ {
		bg := bigram{cand[i], cand[i+1]}
		switch {
		case forward[bg] > 0:
			forward[bg]--
			credit++
		case reversed[bg] > 0:
			reversed[bg]--
			credit += alt
		case skip[bg] > 0:
			skip[bg]--
			credit += alt
		}
	}
	return min(1, 2*credit/float64(denom))
}

// Matcher decides whether a normalized candidate matches a normalized
// accepted form.
type Matcher interface {
	Accepts(reference, candidate string) bool
}

// DiceMatcher accepts candidates whose Dice score reaches Threshold.
type DiceMatcher struct {
	Threshold float64
}

// Accepts implements Matcher.
func (m DiceMatcher) Accepts(reference, candidate string) bool {
	th := m.Threshold
	if th <= 0 {
		th = Threshold
	}
	return Dice(reference, candidate) >= th
}

// Accepts reports whether candidate matches reference with the default
// Dice threshold.
func Accepts(reference, candidate string) bool {
	return DiceMatcher{}.Accepts(reference, candidate)
}

// compile-time check
var _ Matcher = DiceMatcher{}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
