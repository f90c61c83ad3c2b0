// Package daemon manages the Brushwork daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Storage   StorageConfig   `toml:"storage"`
	Gemini    GeminiConfig    `toml:"gemini"`
	Worker    WorkerConfig    `toml:"worker"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig controls where artifacts and uploads live.
type StorageConfig struct {
	ImagesDir  string `toml:"images_dir"`
	UploadsDir string `toml:"uploads_dir"`
}

// GeminiConfig selects the models used for generation and text work.
type GeminiConfig struct {
	ImageModel string `toml:"image_model"`
	TextModel  string `toml:"text_model"`
}

// WorkerConfig tunes the queue worker's delays.
type WorkerConfig struct {
	PollInterval string `toml:"poll_interval"`
	RetryDelay   string `toml:"retry_delay"`
	ItemDelay    string `toml:"item_delay"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// TelemetryConfig controls the optional observability surface.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := brushworkHome()
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Storage: StorageConfig{
			ImagesDir:  filepath.Join(homeDir, "images"),
			UploadsDir: filepath.Join(homeDir, "uploads"),
		},
		Gemini: GeminiConfig{
			ImageModel: "gemini-2.0-flash-preview-image-generation",
			TextModel:  "gemini-2.0-flash",
		},
		Worker: WorkerConfig{
			PollInterval: "2s",
			RetryDelay:   "2s",
			ItemDelay:    "1s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from ~/.brushwork/config.toml, falling back
// to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(brushworkHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.brushwork/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(brushworkHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// brushworkHome returns the Brushwork data directory.
func brushworkHome() string {
	if env := os.Getenv("BRUSHWORK_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".brushwork")
}

// Home is exported for use by other packages.
func Home() string {
	return brushworkHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
