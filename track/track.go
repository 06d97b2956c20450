// Package track models a playable track as a set of independently guessable
// facts (title, each artist, optional misc answers).
package track

import (
	"errors"
	"fmt"

	"github.com/onnwee/blindtest/normalize"
)

// ErrIndex is returned when a guessable or track index is out of range.
var ErrIndex = errors.New("index out of range")

// Kind identifies what a guessable stands for.
type Kind int

const (
	Title Kind = iota
	Artist
	Misc
)

var kindNames = [...]string{Title: "title", Artist: "artist", Misc: "misc"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown guessable kind %q", s)
}

// Visibility is the closed set of guessable states an operator can pick.
type Visibility int

const (
	// Open is shown once resolved and participates in scoring.
	Open Visibility = iota
	// Locked is shown immediately and cannot be scored.
	Locked
	// Hidden is never shown and cannot be scored.
	Hidden
)

type visibilityTraits struct {
	name     string
	scorable bool
	visible  bool
}

// visibilities is the only place that says what a visibility means.
var visibilities = [...]visibilityTraits{
	Open:   {name: "guessable", scorable: true, visible: false},
	Locked: {name: "locked", scorable: false, visible: true},
	Hidden: {name: "hidden", scorable: false, visible: false},
}

func (v Visibility) traits() visibilityTraits {
	if v < 0 || int(v) >= len(visibilities) {
		return visibilityTraits{name: fmt.Sprintf("Visibility(%d)", int(v))}
	}
	return visibilities[v]
}

// Scorable reports whether a guessable in this state can be credited.
func (v Visibility) Scorable() bool { return v.traits().scorable }

// VisibleImmediately reports whether the answer is shown before it is
// resolved.
func (v Visibility) VisibleImmediately() bool { return v.traits().visible }

func (v Visibility) String() string { return v.traits().name }

// ParseVisibility is the inverse of Visibility.String.
func ParseVisibility(s string) (Visibility, error) {
	for i, t := range visibilities {
		if t.name == s {
			return Visibility(i), nil
		}
	}
	return 0, fmt.Errorf("unknown visibility %q", s)
}

// Guessable is one scoreable fact about a track.
type Guessable struct {
	Original      string
	AcceptedForms []string
	Kind          Kind
	Visibility    Visibility
}

// Track is one entry of the playlist.
type Track struct {
	Guessables  []Guessable
	CoverURL    string
	PlayableRef string
	Done        bool
}

// Title returns the original title, or "" when the track has none.
func (t *Track) Title() string {
	for _, g := range t.Guessables {
		if g.Kind == Title {
			return g.Original
		}
	}
	return ""
}

// ScorableCount returns the number of guessables that can be credited.
func (t *Track) ScorableCount() int {
	n := 0
	for _, g := range t.Guessables {
		if g.Visibility.Scorable() {
			n++
		}
	}
	return n
}

// SetVisibility changes the state of guessable i.
func (t *Track) SetVisibility(i int, v Visibility) error {
	if i < 0 || i >= len(t.Guessables) {
		return fmt.Errorf("guessable %d: %w", i, ErrIndex)
	}
	if int(v) < 0 || int(v) >= len(visibilities) {
		return fmt.Errorf("invalid visibility %d", int(v))
	}
	t.Guessables[i].Visibility = v
	return nil
}

// Clone returns a deep copy of t.
func (t Track) Clone() Track {
	out := t
	out.Guessables = make([]Guessable, len(t.Guessables))
	for i, g := range t.Guessables {
		g.AcceptedForms = append([]string(nil), g.AcceptedForms...)
		out.Guessables[i] = g
	}
	return out
}

// Builder turns metadata into tracks using a Normalizer.
type Builder struct {
	norm *normalize.Normalizer
}

// NewBuilder returns a Builder. A nil normalizer uses the default
// alternative table.
func NewBuilder(n *normalize.Normalizer) *Builder {
	if n == nil {
		n = normalize.New(nil)
	}
	return &Builder{norm: n}
}

// Guessable computes the accepted forms of value.
func (b *Builder) Guessable(value string, kind Kind, v Visibility) Guessable {
	return Guessable{
		Original:      value,
		AcceptedForms: b.norm.AcceptedForms(value),
		Kind:          kind,
		Visibility:    v,
	}
}

// Build creates a track from metadata. The title is stripped of featured
// artist annotations first; guessables are ordered title, artists, misc.
func (b *Builder) Build(m Metadata) Track {
	t := Track{CoverURL: m.CoverURL, PlayableRef: m.URI}
	t.Guessables = append(t.Guessables, b.Guessable(normalize.StripSpoiler(m.Title, m.Artists), Title, Open))
	for _, a := range m.Artists {
		t.Guessables = append(t.Guessables, b.Guessable(a, Artist, Open))
	}
	for _, misc := range m.Misc {
		t.Guessables = append(t.Guessables, b.Guessable(misc, Misc, Open))
	}
	return t
}

// BuildAll builds one track per metadata entry.
func (b *Builder) BuildAll(ms []Metadata) []Track {
	out := make([]Track, 0, len(ms))
	for _, m := range ms {
		out = append(out, b.Build(m))
	}
	return out
}

// AddMisc appends a misc guessable to t.
func (b *Builder) AddMisc(t *Track, value string, v Visibility) {
	t.Guessables = append(t.Guessables, b.Guessable(value, Misc, v))
}
