// Package normalize turns track metadata and chat messages into comparable
// canonical strings.
//
// Two passes exist. LightClean is applied to chat messages: it lower-cases,
// strips diacritics and a handful of punctuation characters. Clean is applied
// to reference strings (titles, artists, misc answers) and additionally drops
// trailing annotations such as "(Live)" or " - Remastered 2011" and folds
// "&"/"+" to "and".
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	punctuation   = regexp.MustCompile(`[¿¡*,.]`)
	trailingBangs = regexp.MustCompile(`[!?]+$`)
	leadingBangs  = regexp.MustCompile(`^[!?]+`)
	spacedBangsL  = regexp.MustCompile(` [!?]+`)
	spacedBangsR  = regexp.MustCompile(`[!?]+ `)

	annotations = regexp.MustCompile(` [(\[].+[)\]].*| -.+`)
	conjunction = regexp.MustCompile(` [&+] `)

	foldings = strings.NewReplacer("’", "'", "œ", "oe", "$", "s", "ø", "o")
)

func isMark(r rune) bool {
	return unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Diacritic, r)
}

// stripDiacritics decomposes s and removes combining marks.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isMark)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// LightClean lower-cases s, strips diacritics and noise punctuation,
// removes exclamation/question marks that are not part of a word and
// collapses runs of whitespace.
func LightClean(s string) string {
	s = strings.ToLower(s)
	s = stripDiacritics(s)
	s = punctuation.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = trailingBangs.ReplaceAllString(s, "")
	s = leadingBangs.ReplaceAllString(s, "")
	s = spacedBangsL.ReplaceAllString(s, " ")
	s = spacedBangsR.ReplaceAllString(s, " ")
	s = foldings.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Clean applies LightClean, drops trailing parenthetical, bracketed and
// " - " suffixed annotations and folds " & " / " + " to " and ".
func Clean(s string) string {
	s = LightClean(s)
	s = annotations.ReplaceAllString(s, "")
	s = conjunction.ReplaceAllString(s, " and ")
	return strings.TrimSpace(s)
}

// StripSpoiler removes from title any parenthetical, bracketed or " - "
// suffixed segment that mentions one of artists. Matching is
// case-insensitive and artist names are matched literally.
func StripSpoiler(title string, artists []string) string {
	cleaned := title
	for _, artist := range artists {
		if strings.TrimSpace(artist) == "" {
			continue
		}
		q := regexp.QuoteMeta(artist)
		re, err := regexp.Compile(`(?i) \(.*` + q + `.*\)| \[.*` + q + `.*\]| - .*` + q + `.*`)
		if err != nil {
			continue
		}
		cleaned = strings.TrimSpace(re.ReplaceAllString(cleaned, ""))
	}
	return cleaned
}
