// ABOUTME: Speak subcommand reading text aloud through the TTS service
// ABOUTME: Text comes from arguments, a file or stdin and is split into paragraphs
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/harperreed/narrator-go/pkg/narrator"
	"github.com/spf13/cobra"
)

// ErrNoText is returned when there is nothing to read
var ErrNoText = errors.New("no text to speak")

func newSpeakCmd(opts *rootOptions) *cobra.Command {
	var (
		file   string
		useTUI bool
		dryRun bool
		from   int
		only   int
	)

	cmd := &cobra.Command{
		Use:   "speak [text...]",
		Short: "Read text aloud",
		Long: `Read text aloud through the configured TTS service.

Text is taken from the arguments, or from --file ("-" for stdin). Paragraphs
separated by blank lines are requested and played one at a time.`,
		Example: `  narrator speak "Hello there"
  narrator speak --file article.txt --tui
  narrator speak --file article.txt --from 3
  narrator speak --file article.txt --only 1
  cat notes.md | narrator speak --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}
			spans := narrator.SplitSpans(text)
			if len(spans) == 0 {
				return ErrNoText
			}
			run, err := spanSelection(from, only, len(spans))
			if err != nil {
				return err
			}
			run.tui = useTUI
			run.dryRun = dryRun

			a, err := newApp(opts, cmd.OutOrStdout(), useTUI)
			if err != nil {
				return err
			}
			defer a.Close()

			src, err := a.source(cmd.Context())
			if err != nil {
				return err
			}

			a.log.Info("speaking", "spans", len(spans), "chars", narrator.CountChars(spans))
			return a.run(cmd.Context(), src, spans, run)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `read text from a file ("-" for stdin)`)
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show the interactive terminal UI")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "stream and time audio without an audio device")
	cmd.Flags().IntVar(&from, "from", 1, "start at this paragraph (1-based) and play to the end")
	cmd.Flags().IntVar(&only, "only", 0, "play just this paragraph (1-based)")
	cmd.MarkFlagsMutuallyExclusive("from", "only")
	return cmd
}

// spanSelection converts the 1-based --from/--only flags into run options
func spanSelection(from, only, total int) (runOptions, error) {
	if only != 0 {
		if only < 1 || only > total {
			return runOptions{}, fmt.Errorf("--only %d: document has %d paragraphs", only, total)
		}
		return runOptions{start: only - 1, only: true}, nil
	}
	if from < 1 || from > total {
		return runOptions{}, fmt.Errorf("--from %d: document has %d paragraphs", from, total)
	}
	return runOptions{start: from - 1}, nil
}

// readText returns the text to narrate from a file or the arguments
func readText(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", errors.New("pass text as arguments or --file, not both")
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read text file: %w", err)
		}
		return string(b), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	return "", ErrNoText
}
