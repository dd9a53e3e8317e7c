package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// NotesDirName is the fixed name of the managed directory that owns all
// recording audio files. Import filtering keys on this marker appearing
// in a note's URI, so it must never change between releases.
const NotesDirName = "voiceNotes"

type Config struct {
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Recording RecordingConfig `mapstructure:"recording" yaml:"recording"`
	Playback  PlaybackConfig  `mapstructure:"playback" yaml:"playback"`
	Export    ExportConfig    `mapstructure:"export" yaml:"export"`
}

type StorageConfig struct {
	// DataDirectory holds the key-value blobs; the managed notes
	// directory is always <DataDirectory>/voiceNotes.
	DataDirectory string `mapstructure:"data_directory" yaml:"data_directory"`
}

type RecordingConfig struct {
	Source     string `mapstructure:"source" yaml:"source"`           // pulse source name
	Format     string `mapstructure:"format" yaml:"format"`           // container extension: m4a, ogg, wav
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"` // Hz
}

type PlaybackConfig struct {
	DefaultRate float64 `mapstructure:"default_rate" yaml:"default_rate"`
	Player      string  `mapstructure:"player" yaml:"player"` // playback binary, must support JSON IPC
}

type ExportConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

var supportedFormats = map[string]bool{
	"m4a": true,
	"ogg": true,
	"wav": true,
}

func defaultConfig() Config {
	dataDir := filepath.Join(os.Getenv("HOME"), ".local", "share", "voicenote")
	return Config{
		Storage: StorageConfig{
			DataDirectory: dataDir,
		},
		Recording: RecordingConfig{
			Source:     "default",
			Format:     "m4a",
			SampleRate: 48000,
		},
		Playback: PlaybackConfig{
			DefaultRate: 1.0,
			Player:      "mpv",
		},
		Export: ExportConfig{
			Directory: dataDir,
		},
	}
}

// Default returns the built-in configuration, used when no config file
// exists on disk.
func Default() *Config {
	cfg := defaultConfig()
	return &cfg
}

// Load reads the YAML config file at configFile, fills unset fields from
// the defaults, and validates the result. A missing file is not an error:
// the defaults are returned as-is.
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			v := viper.New()
			v.SetConfigFile(configFile)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
			}
			if err := v.Unmarshal(&cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to access config file %s: %w", configFile, err)
		}
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills fields the config file left empty or zero.
func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Storage.DataDirectory == "" {
		cfg.Storage.DataDirectory = def.Storage.DataDirectory
	}
	if cfg.Recording.Source == "" {
		cfg.Recording.Source = def.Recording.Source
	}
	if cfg.Recording.Format == "" {
		cfg.Recording.Format = def.Recording.Format
	}
	if cfg.Recording.SampleRate == 0 {
		cfg.Recording.SampleRate = def.Recording.SampleRate
	}
	if cfg.Playback.DefaultRate == 0 {
		cfg.Playback.DefaultRate = def.Playback.DefaultRate
	}
	if cfg.Playback.Player == "" {
		cfg.Playback.Player = def.Playback.Player
	}
	if cfg.Export.Directory == "" {
		cfg.Export.Directory = cfg.Storage.DataDirectory
	}
}

// Validate checks a resolved configuration for values the rest of the
// system cannot work with.
func Validate(cfg *Config) error {
	if cfg.Storage.DataDirectory == "" {
		return fmt.Errorf("storage.data_directory must not be empty")
	}
	if !supportedFormats[cfg.Recording.Format] {
		return fmt.Errorf("recording.format '%s' is not supported (supported: m4a, ogg, wav)", cfg.Recording.Format)
	}
	if cfg.Recording.SampleRate < 8000 || cfg.Recording.SampleRate > 192000 {
		return fmt.Errorf("recording.sample_rate %d is out of range [8000, 192000]", cfg.Recording.SampleRate)
	}
	if cfg.Playback.DefaultRate <= 0 || cfg.Playback.DefaultRate > 4.0 {
		return fmt.Errorf("playback.default_rate %.2f is out of range (0, 4.0]", cfg.Playback.DefaultRate)
	}
	if cfg.Playback.Player == "" {
		return fmt.Errorf("playback.player must not be empty")
	}
	return nil
}

// NotesDirectory returns the managed directory that owns all recording
// audio files.
func (c *Config) NotesDirectory() string {
	return filepath.Join(c.Storage.DataDirectory, NotesDirName)
}
