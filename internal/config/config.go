package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. PMT_API_BASE_URL
const EnvPrefix = "PMT"

// Config is the full client configuration
type Config struct {
	API     APIConfig     `yaml:"api" mapstructure:"api"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Policy  PolicyConfig  `yaml:"policy" mapstructure:"policy"`
}

// APIConfig configures the backend client
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RateLimit float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 disables
}

// StorageConfig configures the local session store
type StorageConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // sqlite3 (cgo) or sqlite (pure Go)
	Path   string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures the log file
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

// PolicyConfig tunes the client-side permission checks
type PolicyConfig struct {
	// Let any developer start or finish tasks assigned to someone else
	DevelopersActForOthers bool `yaml:"developers_act_for_others" mapstructure:"developers_act_for_others"`
}

// Default returns the default configuration
func Default() *Config {
	dataDir := DataDir()
	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8080/api",
			Timeout:   10 * time.Second,
			RateLimit: 10,
		},
		Storage: StorageConfig{
			Driver: "sqlite3",
			Path:   filepath.Join(dataDir, "pmt.db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "pmt.log"),
		},
	}
}

// Load builds the configuration from defaults, the config file at path (or
// the default path when empty), a .env file in the working directory, and
// PMT_* environment variables, in increasing priority.
func Load(path string) (*Config, error) {
	// Variables already in the environment win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = Path()
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Storage.Path = expandPath(cfg.Storage.Path)
	cfg.Log.File = expandPath(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.rate_limit", d.API.RateLimit)
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("policy.developers_act_for_others", d.Policy.DevelopersActForOthers)
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url: %q is not an http(s) URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout: must be positive, got %s", c.API.Timeout)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit: must not be negative, got %v", c.API.RateLimit)
	}
	switch c.Storage.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("storage.driver: %q is not sqlite3 or sqlite", c.Storage.Driver)
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path: must be set")
	}
	return nil
}

// YAML renders the configuration as it would appear in the config file
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefault writes the default configuration to path. It refuses to
// replace an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	data, err := Default().YAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	content := "# pmt configuration\n" + string(data)
	return os.WriteFile(path, []byte(content), 0600)
}

// Path returns the default config file location
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".pmt", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "pmt", "config.yaml")
}

// DataDir returns the directory for the session store and log file
func DataDir() string {
	// Use XDG data directory or fallback to home directory
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ".pmt"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "pmt")
}

func expandPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}
