// ABOUTME: Application configuration from defaults, file, environment and flags
// ABOUTME: Backed by viper with .env support via godotenv
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/harperreed/narrator-go/internal/logger"
	"github.com/harperreed/narrator-go/internal/tts"
	"github.com/harperreed/narrator-go/pkg/audio/output"
	"github.com/harperreed/narrator-go/pkg/stream"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. NARRATOR_TTS_URL
const EnvPrefix = "NARRATOR"

// Config holds all configuration for the application
type Config struct {
	TTS     TTSConfig     `mapstructure:"tts"`
	Output  OutputConfig  `mapstructure:"output"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Control ControlConfig `mapstructure:"control"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TTSConfig selects the speech service
type TTSConfig struct {
	URL       string        `mapstructure:"url"`
	Transport string        `mapstructure:"transport"` // http or ws
	Discover  bool          `mapstructure:"discover"`  // browse mDNS instead of using URL
	Timeout   time.Duration `mapstructure:"timeout"`
}

// OutputConfig selects the audio device
type OutputConfig struct {
	Backend string `mapstructure:"backend"`
	Volume  int    `mapstructure:"volume"`
}

// StreamConfig tunes the streaming player
type StreamConfig struct {
	MinBufferBytes int           `mapstructure:"min_buffer_bytes"`
	MaxBufferBytes int           `mapstructure:"max_buffer_bytes"`
	RedrainDelay   time.Duration `mapstructure:"redrain_delay"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

// ControlConfig configures the local control API
type ControlConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the API
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
	File   string `mapstructure:"file"`
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tts.url", tts.DefaultURL)
	v.SetDefault("tts.transport", tts.TransportHTTP)
	v.SetDefault("tts.discover", false)
	v.SetDefault("tts.timeout", "10s")
	v.SetDefault("output.backend", output.BackendOto)
	v.SetDefault("output.volume", 100)
	v.SetDefault("stream.min_buffer_bytes", stream.DefaultMinBufferBytes)
	v.SetDefault("stream.max_buffer_bytes", stream.DefaultMaxBufferBytes)
	v.SetDefault("stream.redrain_delay", stream.DefaultRedrainDelay.String())
	v.SetDefault("stream.poll_interval", stream.DefaultPollInterval.String())
	v.SetDefault("control.addr", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration into v and decodes it. configFile overrides the
// search of ./config.yaml and $HOME/.narrator/config.yaml.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.narrator")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment variables")
	} else {
		slog.Debug("using config file", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the engine cannot use
func (c *Config) Validate() error {
	if !c.TTS.Discover {
		u, err := url.Parse(c.TTS.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return &ConfigError{Field: "tts.url", Message: fmt.Sprintf("must be an http(s) URL, got %q", c.TTS.URL)}
		}
	}
	switch strings.ToLower(c.TTS.Transport) {
	case tts.TransportHTTP, tts.TransportWebSocket, "websocket":
	default:
		return &ConfigError{Field: "tts.transport", Message: fmt.Sprintf("must be http or ws, got %q", c.TTS.Transport)}
	}
	if c.TTS.Timeout < 0 {
		return &ConfigError{Field: "tts.timeout", Message: "must not be negative"}
	}

	if !slices.Contains(output.Backends(), c.Output.Backend) {
		return &ConfigError{Field: "output.backend", Message: fmt.Sprintf("must be one of %s, got %q",
			strings.Join(output.Backends(), ", "), c.Output.Backend)}
	}
	if c.Output.Volume < 0 || c.Output.Volume > 100 {
		return &ConfigError{Field: "output.volume", Message: "must be between 0 and 100"}
	}

	if c.Stream.MinBufferBytes <= 0 {
		return &ConfigError{Field: "stream.min_buffer_bytes", Message: "must be positive"}
	}
	if c.Stream.MaxBufferBytes != 0 && c.Stream.MaxBufferBytes < c.Stream.MinBufferBytes {
		return &ConfigError{Field: "stream.max_buffer_bytes", Message: "must be 0 (uncapped) or at least stream.min_buffer_bytes"}
	}
	if c.Stream.RedrainDelay <= 0 {
		return &ConfigError{Field: "stream.redrain_delay", Message: "must be positive"}
	}
	if c.Stream.PollInterval <= 0 {
		return &ConfigError{Field: "stream.poll_interval", Message: "must be positive"}
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return &ConfigError{Field: "logging.level", Message: err.Error()}
	}
	if f := strings.ToLower(c.Logging.Format); f != "text" && f != "json" {
		return &ConfigError{Field: "logging.format", Message: fmt.Sprintf("must be text or json, got %q", c.Logging.Format)}
	}
	return nil
}

// PlayerConfig converts to the player configuration
func (c *Config) PlayerConfig() stream.Config {
	return stream.Config{
		MinBufferBytes: c.Stream.MinBufferBytes,
		MaxBufferBytes: c.Stream.MaxBufferBytes,
		RedrainDelay:   c.Stream.RedrainDelay,
		PollInterval:   c.Stream.PollInterval,
	}
}

// SourceConfig converts to the TTS source configuration
func (c *Config) SourceConfig() tts.Config {
	return tts.Config{
		URL:       c.TTS.URL,
		Transport: c.TTS.Transport,
		Timeout:   c.TTS.Timeout,
	}
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
