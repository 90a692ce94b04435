// ABOUTME: Estimate subcommand projecting the audio size of a document
// ABOUTME: Samples the first paragraph from the TTS service unless a ratio is given
package cli

import (
	"fmt"
	"sync/atomic"

	"github.com/harperreed/narrator-go/pkg/narrator"
	"github.com/spf13/cobra"
)

// byteCounter is a sink that only measures the response
type byteCounter struct {
	n atomic.Int64
}

func (c *byteCounter) AddChunk(chunk []byte) error {
	c.n.Add(int64(len(chunk)))
	return nil
}

func (c *byteCounter) Complete() error { return nil }

func newEstimateCmd(opts *rootOptions) *cobra.Command {
	var (
		file        string
		sampleBytes int64
		sampleChars int
	)

	cmd := &cobra.Command{
		Use:   "estimate [text...]",
		Short: "Estimate the audio size of a document",
		Long: `Estimate how much audio a document will produce.

The first paragraph is sent to the TTS service and the bytes-per-character
ratio of its response is applied to the whole text. Pass --sample-bytes and
--sample-chars to use a known ratio instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}
			spans := narrator.SplitSpans(text)
			if len(spans) == 0 {
				return ErrNoText
			}
			total := narrator.CountChars(spans)

			if sampleBytes <= 0 || sampleChars <= 0 {
				a, err := newApp(opts, cmd.OutOrStdout(), false)
				if err != nil {
					return err
				}
				defer a.Close()

				src, err := a.source(cmd.Context())
				if err != nil {
					return err
				}
				counter := &byteCounter{}
				if err := src.Stream(cmd.Context(), spans[0], counter); err != nil {
					return fmt.Errorf("sample request failed: %w", err)
				}
				sampleBytes = counter.n.Load()
				sampleChars = len([]rune(spans[0]))
			}

			est, err := narrator.NewEstimate(sampleBytes, sampleChars, total)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Characters: %d in %d paragraphs\n", total, len(spans))
			fmt.Fprintf(out, "Ratio: %.2f bytes/char\n", est.BytesPerChar)
			fmt.Fprintf(out, "Estimated audio: %s\n", est)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `read text from a file ("-" for stdin)`)
	cmd.Flags().Int64Var(&sampleBytes, "sample-bytes", 0, "audio bytes of a known sample")
	cmd.Flags().IntVar(&sampleChars, "sample-chars", 0, "characters of the known sample")
	return cmd
}
