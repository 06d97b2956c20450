// Command replay re-runs a recorded blind test transcript against a playlist
// and prints the resulting leaderboard.
//
//	replay --playlist night.toml --transcript chat.jsonl --delay 5
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/onnwee/blindtest/game"
	"github.com/onnwee/blindtest/ledger"
	"github.com/onnwee/blindtest/replay"
	"github.com/onnwee/blindtest/track"
)

func main() {
	if err := cmdRoot(afero.NewOsFs()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cmdRoot(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "replay",
		Short:        "Replay a blind test transcript and print the leaderboard",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			playlistPath, _ := cmd.Flags().GetString("playlist")
			transcriptPath, _ := cmd.Flags().GetString("transcript")
			delay, _ := cmd.Flags().GetInt("delay")
			algorithm, _ := cmd.Flags().GetString("algorithm")
			chatLog, _ := cmd.Flags().GetBool("chat")
			noColor, _ := cmd.Flags().GetBool("no-color")
			if noColor {
				color.NoColor = true
			}

			playlist, err := track.LoadPlaylist(fs, playlistPath)
			if err != nil {
				return err
			}
			f, err := fs.Open(transcriptPath)
			if err != nil {
				return fmt.Errorf("open transcript: %w", err)
			}
			defer f.Close()
			events, err := replay.Parse(f)
			if err != nil {
				return err
			}

			settings := game.DefaultSettings()
			settings.AcceptanceDelay = delay
			settings.MatchAlgorithm = algorithm
			settings.ChatNotifications = chatLog

			out := cmd.OutOrStdout()
			clock := clockwork.NewFakeClock()
			opts := game.Options{Clock: clock, Settings: settings}
			if chatLog {
				opts.Messenger = &printer{w: out}
			}
			engine, err := game.New(opts)
			if err != nil {
				return err
			}
			defer engine.Close()
			if err := engine.LoadPlaylist(playlist.Tracks); err != nil {
				return err
			}

			res, err := replay.Run(cmd.Context(), engine, clock, events)
			if err != nil {
				return err
			}
			// close the windows still open at the end of the transcript
			if err := engine.Reveal(cmd.Context()); err != nil && !errors.Is(err, game.ErrNoTrack) {
				return err
			}

			warn := color.New(color.FgYellow)
			for _, r := range res.Rejected {
				warn.Fprintln(out, "skipped", r)
			}
			fmt.Fprintf(out, "%d events applied, %d skipped\n\n", res.Applied, len(res.Rejected))
			printLeaderboard(out, engine.Leaderboard(""))
			return nil
		},
	}
	cmd.Flags().StringP("playlist", "p", "", "playlist file (.json or .toml)")
	cmd.Flags().StringP("transcript", "t", "", "JSONL transcript of chat messages and operator actions")
	cmd.Flags().IntP("delay", "d", game.DefaultSettings().AcceptanceDelay, "acceptance delay in seconds")
	cmd.Flags().String("algorithm", "dice", "answer matching: dice or distance")
	cmd.Flags().Bool("chat", false, "print the bot's chat messages")
	cmd.Flags().Bool("no-color", false, "disable colored output")
	_ = cmd.MarkFlagRequired("playlist")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

var rankColors = map[int]*color.Color{
	1: color.New(color.FgYellow, color.Bold),
	2: color.New(color.FgWhite, color.Bold),
	3: color.New(color.FgRed),
}

func printLeaderboard(w io.Writer, players []ledger.Player) {
	if len(players) == 0 {
		fmt.Fprintln(w, "no players")
		return
	}
	plain := color.New(color.Reset)
	for _, p := range players {
		c, ok := rankColors[p.Rank]
		if !ok {
			c = plain
		}
		c.Fprintf(w, "#%-3d %-25s %5d", p.Rank, p.DisplayName, p.Score)
		fmt.Fprintf(w, "  (answers %d, first %d, combo %d)\n", p.Stats.Answers, p.Stats.FirstCount, p.Stats.ComboCount)
	}
}

// printer shows what the bot would have said in chat.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) Say(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	color.New(color.FgCyan).Fprintln(p.w, "bot>", text)
	return nil
}

func (p *printer) Whisper(_ context.Context, userID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	color.New(color.FgCyan).Fprintf(p.w, "bot> @%s %s\n", userID, text)
	return nil
}
