package game

import (
	"time"

	"github.com/onnwee/blindtest/validation"
)

// ScoreCommandMode controls how !score is answered.
type ScoreCommandMode string

const (
	ScoreDisabled ScoreCommandMode = "disabled"
	ScoreChannel  ScoreCommandMode = "channel"
	ScoreWhisper  ScoreCommandMode = "whisper"
)

// Settings are the operator-editable game rules.
type Settings struct {
	// AddEveryUser puts every chatter on the leaderboard, not only those
	// who score.
	AddEveryUser bool `json:"addEveryUser"`
	// ChatNotifications announces resolved guessables in chat.
	ChatNotifications bool `json:"chatNotifications"`
	// PreviewGuessNumber exposes pending credit counts in the public view.
	PreviewGuessNumber bool `json:"previewGuessNumber"`
	// AcceptanceDelay is the window, in seconds, during which other
	// players can still be credited after the first correct guess.
	AcceptanceDelay  int              `json:"acceptanceDelay" validate:"gte=0,lte=60"`
	ScoreCommandMode ScoreCommandMode `json:"scoreCommandMode" validate:"oneof=disabled channel whisper"`
	Shuffle          bool             `json:"shuffle"`
	MatchAlgorithm   string           `json:"matchAlgorithm" validate:"omitempty,oneof=dice distance"`
}

// DefaultSettings returns the out-of-the-box rules.
func DefaultSettings() Settings {
	return Settings{
		AddEveryUser:      true,
		ChatNotifications: true,
		AcceptanceDelay:   5,
		ScoreCommandMode:  ScoreChannel,
		MatchAlgorithm:    "dice",
	}
}

// Validate checks field ranges.
func (s Settings) Validate() error {
	return validation.Validate(&s)
}

func (s Settings) delay() time.Duration {
	return time.Duration(s.AcceptanceDelay) * time.Second
}
