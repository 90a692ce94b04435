// ABOUTME: Play subcommand streaming a local WAV file through the player
// ABOUTME: Useful for checking devices and buffering without a TTS service
package cli

import (
	"path/filepath"
	"time"

	"github.com/harperreed/narrator-go/internal/tts"
	"github.com/spf13/cobra"
)

func newPlayCmd(opts *rootOptions) *cobra.Command {
	var (
		chunkSize int
		pace      time.Duration
		useTUI    bool
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "play <file.wav>",
		Short: "Stream a WAV file through the player",
		Long: `Feed a 16-bit PCM WAV file to the streaming player in fixed-size chunks,
as if it were arriving from the network. Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.OutOrStdout(), useTUI)
			if err != nil {
				return err
			}
			defer a.Close()

			src := &tts.File{Path: args[0], ChunkSize: chunkSize, Pace: pace}
			name := args[0]
			if name != "-" {
				name = filepath.Base(name)
			}
			return a.run(cmd.Context(), src, []string{name}, runOptions{tui: useTUI, dryRun: dryRun})
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", tts.DefaultChunkSize, "bytes per chunk")
	cmd.Flags().DurationVar(&pace, "pace", 0, "delay between chunks to simulate a slow network")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show the interactive terminal UI")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "play without an audio device")
	return cmd
}
