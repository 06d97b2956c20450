package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/onnwee/blindtest/ledger"
	"github.com/onnwee/blindtest/track"
)

// SchemaVersion is the version written by Encode.
const SchemaVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported state version")

type stateV1 struct {
	Version  int        `json:"version"`
	Progress progressV1 `json:"progress"`
	Players  []playerV1 `json:"players"`
}

type progressV1 struct {
	DoneCount   int       `json:"doneCount"`
	TotalTracks int       `json:"totalTracks"`
	Current     int       `json:"current"`
	Shuffle     bool      `json:"shuffle"`
	Tracks      []trackV1 `json:"tracks"`
}

type trackV1 struct {
	Done        bool          `json:"done"`
	Guessables  []guessableV1 `json:"guessables"`
	CoverURL    string        `json:"coverUrl,omitempty"`
	PlayableRef string        `json:"playableRef,omitempty"`
}

type guessableV1 struct {
	Original      string   `json:"original"`
	Kind          string   `json:"kind"`
	Visibility    string   `json:"visibility"`
	AcceptedForms []string `json:"acceptedForms"`
}

type playerV1 struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Score       int     `json:"score"`
	Avatar      string  `json:"avatar,omitempty"`
	Stats       statsV1 `json:"stats"`
}

type statsV1 struct {
	Answers         int   `json:"answers"`
	FirstCount      int   `json:"firstCount"`
	ComboCount      int   `json:"comboCount"`
	FastestAnswerMs int64 `json:"fastestAnswerMs"`
}

// Encode serializes progress and players as one document.
func Encode(p *Progress, players []ledger.Player) ([]byte, error) {
	doc := stateV1{
		Version: SchemaVersion,
		Progress: progressV1{
			DoneCount:   p.DoneCount,
			TotalTracks: len(p.Tracks),
			Current:     p.Current,
			Shuffle:     p.Shuffle,
			Tracks:      make([]trackV1, 0, len(p.Tracks)),
		},
		Players: make([]playerV1, 0, len(players)),
	}
	for _, t := range p.Tracks {
		tv := trackV1{
			Done:        t.Done,
			CoverURL:    t.CoverURL,
			PlayableRef: t.PlayableRef,
			Guessables:  make([]guessableV1, 0, len(t.Guessables)),
		}
		for _, g := range t.Guessables {
			tv.Guessables = append(tv.Guessables, guessableV1{
				Original:      g.Original,
				Kind:          g.Kind.String(),
				Visibility:    g.Visibility.String(),
				AcceptedForms: g.AcceptedForms,
			})
		}
		doc.Progress.Tracks = append(doc.Progress.Tracks, tv)
	}
	for _, pl := range players {
		doc.Players = append(doc.Players, playerV1{
			ID:          pl.ID,
			DisplayName: pl.DisplayName,
			Score:       pl.Score,
			Avatar:      pl.Avatar,
			Stats: statsV1{
				Answers:         pl.Stats.Answers,
				FirstCount:      pl.Stats.FirstCount,
				ComboCount:      pl.Stats.ComboCount,
				FastestAnswerMs: pl.Stats.FastestAnswerMs,
			},
		})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// Decode parses a document written by Encode. Player ranks are left at
// zero; loading them into a ledger recomputes them.
func Decode(data []byte) (*Progress, []ledger.Player, error) {
	var head struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, nil, fmt.Errorf("decode state: %w", err)
	}
	if head.Version != SchemaVersion {
		return nil, nil, fmt.Errorf("version %d: %w", head.Version, ErrUnsupportedVersion)
	}
	var doc stateV1
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode state: %w", err)
	}
	if doc.Progress.TotalTracks != len(doc.Progress.Tracks) {
		return nil, nil, fmt.Errorf("decode state: %d tracks listed, %d declared", len(doc.Progress.Tracks), doc.Progress.TotalTracks)
	}

	p := &Progress{
		DoneCount: doc.Progress.DoneCount,
		Current:   doc.Progress.Current,
		Shuffle:   doc.Progress.Shuffle,
		Tracks:    make([]track.Track, 0, len(doc.Progress.Tracks)),
	}
	for ti, tv := range doc.Progress.Tracks {
		t := track.Track{
			Done:        tv.Done,
			CoverURL:    tv.CoverURL,
			PlayableRef: tv.PlayableRef,
			Guessables:  make([]track.Guessable, 0, len(tv.Guessables)),
		}
		for gi, gv := range tv.Guessables {
			kind, err := track.ParseKind(gv.Kind)
			if err != nil {
				return nil, nil, fmt.Errorf("track %d guessable %d: %w", ti, gi, err)
			}
			vis, err := track.ParseVisibility(gv.Visibility)
			if err != nil {
				return nil, nil, fmt.Errorf("track %d guessable %d: %w", ti, gi, err)
			}
			forms := gv.AcceptedForms
			if len(forms) == 0 {
				forms = []string{""}
			}
			t.Guessables = append(t.Guessables, track.Guessable{
				Original:      gv.Original,
				Kind:          kind,
				Visibility:    vis,
				AcceptedForms: forms,
			})
		}
		p.Tracks = append(p.Tracks, t)
	}
	if p.Current >= len(p.Tracks) {
		p.Current = -1
	}

	players := make([]ledger.Player, 0, len(doc.Players))
	for _, pv := range doc.Players {
		players = append(players, ledger.Player{
			ID:          pv.ID,
			DisplayName: pv.DisplayName,
			Score:       pv.Score,
			Avatar:      pv.Avatar,
			Stats: ledger.Stats{
				Answers:         pv.Stats.Answers,
				FirstCount:      pv.Stats.FirstCount,
				ComboCount:      pv.Stats.ComboCount,
				FastestAnswerMs: pv.Stats.FastestAnswerMs,
			},
		})
	}
	return p, players, nil
}
