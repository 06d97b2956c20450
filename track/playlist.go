package track

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/onnwee/blindtest/validation"
)

// Metadata is what a track provider knows about a track.
type Metadata struct {
	Title    string   `json:"title" toml:"title" validate:"notblank"`
	Artists  []string `json:"artists" toml:"artists" validate:"required,min=1,dive,notblank"`
	Misc     []string `json:"misc,omitempty" toml:"misc,omitempty" validate:"dive,notblank"`
	CoverURL string   `json:"coverUrl,omitempty" toml:"cover_url,omitempty" validate:"omitempty,url"`
	URI      string   `json:"uri,omitempty" toml:"uri,omitempty"`
}

// Playlist is the on-disk playlist document.
type Playlist struct {
	Name   string     `json:"name,omitempty" toml:"name,omitempty"`
	Tracks []Metadata `json:"tracks" toml:"tracks" validate:"required,min=1,dive"`
}

// ParsePlaylist decodes a playlist in the given format ("json" or "toml")
// and validates every entry.
func ParsePlaylist(data []byte, format string) (*Playlist, error) {
	var p Playlist
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode json playlist: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode toml playlist: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported playlist format %q", format)
	}
	if err := validation.Validate(&p); err != nil {
		return nil, fmt.Errorf("invalid playlist: %w", err)
	}
	return &p, nil
}

// LoadPlaylist reads a .json or .toml playlist from fs.
func LoadPlaylist(fs afero.Fs, path string) (*Playlist, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read playlist %s: %w", path, err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return ParsePlaylist(data, format)
}
