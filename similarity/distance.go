package similarity

import (
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"
)

var separatorFold = strings.NewReplacer("-", " ", "'", " ")

// MaxDistance is the edit budget allowed for a reference of the given
// length: none up to 8 characters, then one more per 6 characters.
func MaxDistance(reference string) int {
	n := len([]rune(reference)) - 3
	if n < 0 {
		n = 0
	}
	return n / 6
}

// DistanceMatcher accepts candidates within MaxDistance optimal string
// alignment edits of the reference. Hyphens and apostrophes count as
// spaces on both sides.
type DistanceMatcher struct{}

// Accepts implements Matcher.
func (DistanceMatcher) Accepts(reference, candidate string) bool {
	if isBlank(reference) || isBlank(candidate) {
		return false
	}
	if len([]rune(candidate)) > MaxCandidateLen {
		return false
	}
	ref := separatorFold.Replace(reference)
	cand := separatorFold.Replace(candidate)
	return edlib.OSADamerauLevenshteinDistance(ref, cand) <= MaxDistance(reference)
}

var _ Matcher = DistanceMatcher{}

// Algorithm names accepted by ForName.
const (
	AlgorithmDice     = "dice"
	AlgorithmDistance = "distance"
)

// ForName returns the Matcher registered under name. An empty name selects
// Dice.
func ForName(name string) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", AlgorithmDice:
		return DiceMatcher{Threshold: Threshold}, nil
	case AlgorithmDistance:
		return DistanceMatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown match algorithm %q", name)
	}
}
