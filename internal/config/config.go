package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved application configuration
type Config struct {
	Audio     AudioConfig     `mapstructure:"audio" yaml:"audio"`
	Recording RecordingConfig `mapstructure:"recording" yaml:"recording"`
	Playback  PlaybackConfig  `mapstructure:"playback" yaml:"playback"`
	Polling   PollingConfig   `mapstructure:"polling" yaml:"polling"`
	Tracks    []Track         `mapstructure:"tracks" yaml:"tracks"`
}

type AudioConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"` // "malgo", "auto"
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int    `mapstructure:"channels" yaml:"channels"`
}

type RecordingConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Format    string `mapstructure:"format" yaml:"format"` // "" = platform default (m4a/caf), "flac"
	FFmpeg    string `mapstructure:"ffmpeg" yaml:"ffmpeg"`
}

type PlaybackConfig struct {
	LocalFile string `mapstructure:"local_file" yaml:"local_file"`
	RemoteURL string `mapstructure:"remote_url" yaml:"remote_url"`
	Loop      bool   `mapstructure:"loop" yaml:"loop"`
	// MaxDownloadMB bounds the size of a remote source
	MaxDownloadMB int `mapstructure:"max_download_mb" yaml:"max_download_mb"`
}

type PollingConfig struct {
	Meter    time.Duration `mapstructure:"meter" yaml:"meter"`
	Duration time.Duration `mapstructure:"duration" yaml:"duration"`
	Volume   time.Duration `mapstructure:"volume" yaml:"volume"`
}

// Track is a read-only catalog entry for the remote playback demo
type Track struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Thumbnail string `mapstructure:"thumbnail" yaml:"thumbnail"`
	URL       string `mapstructure:"url" yaml:"url"`
}

// DefaultPath is the config location used when --config is not given
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/audiodemo.yaml")
}

// DefaultAppDir is the directory "~/" expands to for app-relative paths
func DefaultAppDir() string {
	return filepath.Join(os.Getenv("HOME"), "AudioDemo")
}

var defaultTracks = []Track{
	{Name: "Fight Club", Thumbnail: "~/pics/canoe_girl.jpeg", URL: "http://www.noiseaddicts.com/samples_1w72b820/2514.mp3"},
	{Name: "To The Bat Cave!!!", Thumbnail: "~/pics/bears.jpeg", URL: "http://www.noiseaddicts.com/samples_1w72b820/17.mp3"},
	{Name: "Marlon Brando", Thumbnail: "~/pics/northern_lights.jpeg", URL: "http://www.noiseaddicts.com/samples_1w72b820/47.mp3"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("audio.backend", "auto")
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.channels", 1)

	v.SetDefault("recording.directory", "~/audio")
	v.SetDefault("recording.format", "")
	v.SetDefault("recording.ffmpeg", "ffmpeg")

	v.SetDefault("playback.local_file", "~/audio/angel.mp3")
	v.SetDefault("playback.remote_url", defaultTracks[0].URL)
	v.SetDefault("playback.loop", false)
	v.SetDefault("playback.max_download_mb", 64)

	v.SetDefault("polling.meter", 300*time.Millisecond)
	v.SetDefault("polling.duration", time.Second)
	v.SetDefault("polling.volume", 2*time.Second)

	tracks := make([]map[string]any, 0, len(defaultTracks))
	for _, t := range defaultTracks {
		tracks = append(tracks, map[string]any{"name": t.Name, "thumbnail": t.Thumbnail, "url": t.URL})
	}
	v.SetDefault("tracks", tracks)
}

// Load reads configFile on top of the built-in defaults. A missing file at the
// default location is not an error; an explicitly named missing file is.
func Load(configFile string, explicit bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AUDIODEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if explicit || !isNotFound(err) {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	var pathErr *os.PathError
	return errors.As(err, &pathErr) && os.IsNotExist(pathErr)
}

// AudioDir returns the absolute recordings folder
func (c *Config) AudioDir() string {
	return ExpandAppPath(c.Recording.Directory)
}

// LocalFile returns the absolute path of the bundled local demo file
func (c *Config) LocalFile() string {
	return ExpandAppPath(c.Playback.LocalFile)
}

// ExpandAppPath resolves "~/" against the app directory. AUDIODEMO_APP_DIR
// overrides the default app directory.
func ExpandAppPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		base := os.Getenv("AUDIODEMO_APP_DIR")
		if base == "" {
			base = DefaultAppDir()
		}
		return filepath.Join(base, path[2:])
	}
	return path
}

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Audio.Backend) {
	case "", "auto", "malgo":
	default:
		return fmt.Errorf("audio.backend must be 'auto' or 'malgo', got: %s", cfg.Audio.Backend)
	}

	if cfg.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0, got: %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got: %d", cfg.Audio.Channels)
	}

	switch cfg.Recording.Format {
	case "", "m4a", "caf", "flac":
	default:
		return fmt.Errorf("recording.format must be one of m4a, caf, flac, got: %s", cfg.Recording.Format)
	}
	if cfg.Recording.Directory == "" {
		return fmt.Errorf("recording.directory is required")
	}

	if cfg.Polling.Meter <= 0 || cfg.Polling.Duration <= 0 || cfg.Polling.Volume <= 0 {
		return fmt.Errorf("polling intervals must be > 0 (meter=%s duration=%s volume=%s)",
			cfg.Polling.Meter, cfg.Polling.Duration, cfg.Polling.Volume)
	}

	if cfg.Playback.MaxDownloadMB <= 0 {
		return fmt.Errorf("playback.max_download_mb must be > 0, got: %d", cfg.Playback.MaxDownloadMB)
	}

	if cfg.Playback.RemoteURL != "" {
		if err := validateURL(cfg.Playback.RemoteURL); err != nil {
			return fmt.Errorf("playback.remote_url: %w", err)
		}
	}

	for i, t := range cfg.Tracks {
		if t.Name == "" {
			return fmt.Errorf("tracks[%d]: 'name' is required", i)
		}
		if err := validateURL(t.URL); err != nil {
			return fmt.Errorf("tracks[%d] '%s': %w", i, t.Name, err)
		}
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be http or https, got: %s", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host: %s", raw)
	}
	return nil
}
