package config

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultCMSURL = "https://cms.ftiaxesite.gr"
	DefaultTenant = "kallitechnia"
)

type Config struct {
	CMSURL         string      `toml:"cms_url" env:"KALLI_CMS_URL"`
	Tenant         string      `toml:"tenant" env:"KALLI_TENANT"`
	DevMode        bool        `toml:"dev_mode" env:"KALLI_DEV"`
	StorageDir     string      `toml:"storage_dir" env:"KALLI_STORAGE_DIR"`
	RequestTimeout Duration    `toml:"request_timeout"`
	Listen         ListenInfo  `toml:"listen"`
	Cache          CacheConfig `toml:"cache"`
	Site           SiteInfo    `toml:"site"`
}

type ListenInfo struct {
	Host string `toml:"host" env:"KALLI_HOST"`
	Port string `toml:"port" env:"KALLI_PORT"`
}

// CacheConfig holds how long CMS responses are reused, per request kind.
// A zero TTL disables caching for that kind.
type CacheConfig struct {
	Tenant   Duration `toml:"tenant"`
	Homepage Duration `toml:"homepage"`
	Page     Duration `toml:"page"`
	Posts    Duration `toml:"posts"`
}

type SiteInfo struct {
	Name          string `toml:"name"`
	FallbackImage string `toml:"fallback_image"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Addr returns the host:port the web server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Listen.Host, c.Listen.Port)
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{StorageDir: storageDir}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CMSURL == "" {
		c.CMSURL = DefaultCMSURL
	}
	c.CMSURL = strings.TrimRight(c.CMSURL, "/")
	if c.Tenant == "" {
		c.Tenant = DefaultTenant
	}
	if c.RequestTimeout.Duration == 0 {
		c.RequestTimeout = Duration{10 * time.Second}
	}
	if c.Listen.Host == "" {
		c.Listen.Host = "localhost"
	}
	if c.Listen.Port == "" {
		c.Listen.Port = "8080"
	}
	if c.Cache == (CacheConfig{}) {
		c.Cache = CacheConfig{
			Tenant:   Duration{time.Hour},
			Homepage: Duration{time.Minute},
			Posts:    Duration{time.Minute},
		}
	}
	if c.Site.Name == "" {
		c.Site.Name = "Καλλιτεχνία"
	}
	if c.Site.FallbackImage == "" {
		c.Site.FallbackImage = "https://hebbkx1anhila5yf.public.blob.vercel-storage.com/IMG_6341-lYd2EHQV08gx6DxJdWhs3MXKIhJs8l.jpeg"
	}
}

// LoadConfig reads configPath, falling back to defaults when the file does
// not exist, then applies KALLI_* environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	var cfg Config
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}

	if cfg.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		cfg.StorageDir = storageDir
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// ApplyEnv overrides cfg fields from KALLI_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample configuration.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}
	template := strings.Replace(configTemplate, "/home/user/.local/share/kallitechnia", storageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0644)
}

// GetDefaultStorageDir returns the directory for the snapshot database.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "kallitechnia")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory: %w", err)
	}
	return dir, nil
}

// GetDefaultConfigPath returns $XDG_CONFIG_HOME/kallitechnia/config.toml.
func GetDefaultConfigPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "kallitechnia", "config.toml"), nil
}
