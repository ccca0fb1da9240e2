package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	YouTube   YouTubeConfig   `toml:"youtube"`
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Downloads DownloadsConfig `toml:"downloads"`
	Scheduler SchedulerConfig `toml:"scheduler"`
}

// YouTubeConfig contains YouTube Data API settings.
type YouTubeConfig struct {
	APIKey string `toml:"api_key"`
	// BaseURL overrides the Data API endpoint, used by tests.
	BaseURL string `toml:"base_url"`
	// RequestsPerSecond bounds outgoing Data API calls.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig contains filesystem locations for media and metadata.
type StorageConfig struct {
	// MediaRoot is the mount under which all root folders must live.
	MediaRoot string `toml:"media_root"`
	// MetadataPath holds application metadata such as uploader avatars.
	MetadataPath string `toml:"metadata_path"`
}

// DownloadsConfig contains settings for the external fetch tool.
type DownloadsConfig struct {
	// Binary is the yt-dlp executable name or path.
	Binary string `toml:"binary"`
}

// SchedulerConfig contains intervals for the recurring maintenance jobs, in hours.
type SchedulerConfig struct {
	RefreshIntervalHours  int `toml:"refresh_interval_hours"`
	DownloadIntervalHours int `toml:"download_interval_hours"`
}

// AvatarDir returns the directory where uploader avatars are stored.
func (c *Config) AvatarDir() string {
	return c.Storage.MetadataPath + "/avatars"
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file at %s: %w", path, ErrAlreadyExists)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
