package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

// Alternative is one entry of the alternative-form table. Every match of
// Pattern in the lower-cased source contributes one extra accepted form per
// replacement.
type Alternative struct {
	Pattern      *regexp.Regexp
	Replacements []string
}

// DefaultAlternatives lets "&" and "+" be typed as "and"/"et" and makes a
// leading "the" optional.
func DefaultAlternatives() []Alternative {
	return []Alternative{
		{Pattern: regexp.MustCompile(` & `), Replacements: []string{" and ", " et "}},
		{Pattern: regexp.MustCompile(` \+ `), Replacements: []string{" and ", " et "}},
		{Pattern: regexp.MustCompile(`^the `), Replacements: []string{""}},
	}
}

// ParseAlternative builds an Alternative from a pattern and replacements.
func ParseAlternative(pattern string, replacements ...string) (Alternative, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Alternative{}, fmt.Errorf("compile alternative %q: %w", pattern, err)
	}
	return Alternative{Pattern: re, Replacements: replacements}, nil
}

type alternativesFile struct {
	// IncludeDefaults keeps DefaultAlternatives ahead of the file entries.
	IncludeDefaults bool `toml:"include_defaults"`
	Alternatives    []struct {
		Pattern      string   `toml:"pattern"`
		Replacements []string `toml:"replacements"`
	} `toml:"alternatives"`
}

// LoadAlternatives reads an alternative-form table from a TOML file:
//
//	include_defaults = true
//
//	[[alternatives]]
//	pattern = "^les "
//	replacements = [""]
//
// Patterns apply to the lower-cased source string.
func LoadAlternatives(fs afero.Fs, path string) ([]Alternative, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read alternatives: %w", err)
	}
	var f alternativesFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode alternatives %s: %w", path, err)
	}
	var alts []Alternative
	if f.IncludeDefaults {
		alts = DefaultAlternatives()
	}
	for i, a := range f.Alternatives {
		if len(a.Replacements) == 0 {
			return nil, fmt.Errorf("alternative %d (%q): no replacements", i, a.Pattern)
		}
		alt, err := ParseAlternative(a.Pattern, a.Replacements...)
		if err != nil {
			return nil, err
		}
		alts = append(alts, alt)
	}
	if alts == nil {
		// an empty table disables alternatives; nil would mean the defaults
		alts = []Alternative{}
	}
	return alts, nil
}

// Normalizer expands reference strings into accepted forms using a fixed
// alternative table. It is safe for concurrent use.
type Normalizer struct {
	alternatives []Alternative
}

// New returns a Normalizer using alts. A nil table means DefaultAlternatives.
func New(alts []Alternative) *Normalizer {
	if alts == nil {
		alts = DefaultAlternatives()
	}
	return &Normalizer{alternatives: alts}
}

// AcceptedForms returns the cleaned form of raw first, followed by one
// cleaned form per matching alternative replacement. Duplicates and empty
// alternatives are dropped; the base form is always present, even when it
// is empty, so the result is never an empty slice.
func (n *Normalizer) AcceptedForms(raw string) []string {
	base := Clean(raw)
	forms := []string{base}
	seen := map[string]struct{}{base: {}}
	lower := strings.ToLower(raw)
	for _, alt := range n.alternatives {
		if alt.Pattern == nil || !alt.Pattern.MatchString(lower) {
			continue
		}
		for _, rep := range alt.Replacements {
			form := Clean(alt.Pattern.ReplaceAllLiteralString(lower, rep))
			if form == "" {
				continue
			}
			if _, dup := seen[form]; dup {
				continue
			}
			seen[form] = struct{}{}
			forms = append(forms, form)
		}
	}
	return forms
}
