// ABOUTME: Root cobra command and global flags
// ABOUTME: Binds flags to viper keys shared by every subcommand
package cli

import (
	"fmt"
	"os"

	"github.com/harperreed/narrator-go/internal/config"
	"github.com/harperreed/narrator-go/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootOptions carries state shared across subcommands
type rootOptions struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
}

// Execute runs the CLI and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree with its own viper instance
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:   "narrator",
		Short: "Stream text-to-speech audio as it is generated",
		Long: `Narrator sends text to a TTS service and plays the WAV response while it
is still downloading, so speech starts after the first few kilobytes instead
of after the whole file.

Long documents are split into paragraphs and read one request at a time.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.narrator/config.yaml)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.String("tts-url", "http://localhost:8000", "TTS service base URL")
	flags.String("transport", "http", "TTS transport (http, ws)")
	flags.Bool("discover", false, "find the TTS service via mDNS")
	flags.String("backend", "oto", "audio output backend")
	flags.Int("volume", 100, "initial volume (0-100)")
	flags.String("control-addr", "", "serve the control API on this address")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("log-file", "", "also write logs to this file")

	bind := map[string]string{
		"tts.url":        "tts-url",
		"tts.transport":  "transport",
		"tts.discover":   "discover",
		"output.backend": "backend",
		"output.volume":  "volume",
		"control.addr":   "control-addr",
		"logging.level":  "log-level",
		"logging.format": "log-format",
		"logging.file":   "log-file",
	}
	for key, flag := range bind {
		if err := opts.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind %s: %v", flag, err))
		}
	}

	root.AddCommand(
		newSpeakCmd(opts),
		newPlayCmd(opts),
		newEstimateCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads and validates configuration
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.v, o.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
