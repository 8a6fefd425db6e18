package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const (
	// DefaultImageURL is the base cloud image fetched when no override is given
	DefaultImageURL = "https://cloud-images.ubuntu.com/jammy/current/jammy-server-cloudimg-amd64.img"

	// DefaultMemoryMB is the guest memory size when no override is given
	DefaultMemoryMB = 1024

	// DefaultDiskSize is the overlay disk capacity when no override is given
	DefaultDiskSize = "10G"
)

// Config represents the ssh-lab provisioner configuration
type Config struct {
	Workspace string   `mapstructure:"workspace"`
	Image     Image    `mapstructure:"image"`
	SSH       SSH      `mapstructure:"ssh"`
	Defaults  Defaults `mapstructure:"defaults"`
	Log       Log      `mapstructure:"log"`
}

// Image contains base image settings
type Image struct {
	URL    string `mapstructure:"url"`
	SHA256 string `mapstructure:"sha256"` // Optional; empty skips verification
}

// SSH contains guest access settings
type SSH struct {
	PublicKey     string `mapstructure:"public_key"`      // Inline key material
	PublicKeyPath string `mapstructure:"public_key_path"` // Read when PublicKey is empty
}

// Defaults contains default values for instance provisioning
type Defaults struct {
	MemoryMB int    `mapstructure:"memory_mb"`
	DiskSize string `mapstructure:"disk_size"`
}

// Log contains logging settings
type Log struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load loads the configuration from <workspace>/config.yaml or returns defaults.
// An empty workspace argument selects the default workspace under the home
// directory.
func Load(workspace string) (*Config, error) {
	if workspace == "" {
		var err error
		workspace, err = DefaultWorkspace()
		if err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(workspace)

	setDefaults(v, workspace)

	// Try to read config file, but don't fail if it doesn't exist
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// DefaultWorkspace returns the default workspace root under the home directory
func DefaultWorkspace() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".qlab", "ssh-lab"), nil
}

// PublicKey returns the SSH public key to inject into instances, reading it
// from disk when only a path is configured. An empty return with nil error
// means no key was configured at all.
func (c *Config) PublicKey() (string, error) {
	if c.SSH.PublicKey != "" {
		return strings.TrimSpace(c.SSH.PublicKey), nil
	}
	if c.SSH.PublicKeyPath == "" {
		return "", nil
	}

	path, err := homedir.Expand(c.SSH.PublicKeyPath)
	if err != nil {
		return "", fmt.Errorf("failed to expand key path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read public key %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ImageFileName returns the cached file name derived from the image URL
func (c *Config) ImageFileName() string {
	return filepath.Base(c.Image.URL)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper, workspace string) {
	v.SetDefault("workspace", workspace)
	v.SetDefault("image.url", DefaultImageURL)
	v.SetDefault("image.sha256", "")
	v.SetDefault("ssh.public_key", "")
	v.SetDefault("ssh.public_key_path", "~/.ssh/id_rsa.pub")
	v.SetDefault("defaults.memory_mb", DefaultMemoryMB)
	v.SetDefault("defaults.disk_size", DefaultDiskSize)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}
