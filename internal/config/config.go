// Package config provides YAML-based configuration loading with environment
// variable expansion for the receipt archiver service.
package config

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	Server     ServerConfig `yaml:"server"`
	Drive      DriveConfig  `yaml:"drive"`
	Model      ModelConfig  `yaml:"model"`
	Image      ImageConfig  `yaml:"image"`
	Categories []string     `yaml:"categories"`
}

// ServerConfig configures the HTTP surface and the local scratch directory
// used for transient upload files.
type ServerConfig struct {
	Port      string `yaml:"port"`
	UploadDir string `yaml:"upload_dir"`
}

// DriveConfig configures the Google Drive archive tree.
type DriveConfig struct {
	// RootFolderID is the fixed folder under which quarter folders are created.
	RootFolderID string `yaml:"root_folder_id"`
	// CredentialsFile is the path to the service account JSON key.
	CredentialsFile string `yaml:"credentials_file"`
}

// ModelConfig configures the categorization model.
type ModelConfig struct {
	Name string `yaml:"name"`
}

// ImageConfig configures receipt image normalization.
type ImageConfig struct {
	MaxDimension int `yaml:"max_dimension"`
	Quality      int `yaml:"quality"`
}

// Default values applied when the config file omits them.
const (
	DefaultPort         = "8080"
	DefaultUploadDir    = "uploads"
	DefaultModelName    = "gemini-2.5-flash"
	DefaultMaxDimension = 1024
	DefaultQuality      = 85
)

// DefaultCategories is the closed label set offered to the model.
func DefaultCategories() []string {
	return []string{"Meals", "Travel", "Events", "Misc"}
}

// Load reads a YAML config file with environment variable expansion,
// applies defaults and validates the result.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expandedData := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = DefaultUploadDir
	}
	if c.Model.Name == "" {
		c.Model.Name = DefaultModelName
	}
	if c.Image.MaxDimension == 0 {
		c.Image.MaxDimension = DefaultMaxDimension
	}
	if c.Image.Quality == 0 {
		c.Image.Quality = DefaultQuality
	}
	if len(c.Categories) == 0 {
		c.Categories = DefaultCategories()
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Categories, validation.Required),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Port, validation.Required),
		validation.Field(&c.Server.UploadDir, validation.Required),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Drive,
		validation.Field(&c.Drive.RootFolderID, validation.Required),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.Image,
		validation.Field(&c.Image.MaxDimension, validation.Min(1)),
		validation.Field(&c.Image.Quality, validation.Min(1), validation.Max(100)),
	)
}
