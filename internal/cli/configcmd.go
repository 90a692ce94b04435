// ABOUTME: Configuration management subcommands
// ABOUTME: Shows the effective configuration and validates it
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
		Long:  "Commands for inspecting and validating narrator configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long:  "Validate the configuration file, environment variables and flags.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := opts.load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Configuration is valid")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the effective configuration after defaults, file, environment and flags.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Current Configuration:")
			fmt.Fprintf(out, "  TTS:\n")
			fmt.Fprintf(out, "    URL: %s\n", cfg.TTS.URL)
			fmt.Fprintf(out, "    Transport: %s\n", cfg.TTS.Transport)
			fmt.Fprintf(out, "    Discover: %v\n", cfg.TTS.Discover)
			fmt.Fprintf(out, "    Timeout: %s\n", cfg.TTS.Timeout)
			fmt.Fprintf(out, "  Output:\n")
			fmt.Fprintf(out, "    Backend: %s\n", cfg.Output.Backend)
			fmt.Fprintf(out, "    Volume: %d\n", cfg.Output.Volume)
			fmt.Fprintf(out, "  Stream:\n")
			fmt.Fprintf(out, "    Min buffer: %d bytes\n", cfg.Stream.MinBufferBytes)
			if cfg.Stream.MaxBufferBytes == 0 {
				fmt.Fprintf(out, "    Max buffer: uncapped\n")
			} else {
				fmt.Fprintf(out, "    Max buffer: %d bytes\n", cfg.Stream.MaxBufferBytes)
			}
			fmt.Fprintf(out, "    Redrain delay: %s\n", cfg.Stream.RedrainDelay)
			fmt.Fprintf(out, "    Poll interval: %s\n", cfg.Stream.PollInterval)
			fmt.Fprintf(out, "  Control:\n")
			fmt.Fprintf(out, "    Address: %s\n", orNone(cfg.Control.Addr))
			fmt.Fprintf(out, "  Logging:\n")
			fmt.Fprintf(out, "    Level: %s\n", cfg.Logging.Level)
			fmt.Fprintf(out, "    Format: %s\n", cfg.Logging.Format)
			fmt.Fprintf(out, "    File: %s\n", orNone(cfg.Logging.File))
			return nil
		},
	})

	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}
