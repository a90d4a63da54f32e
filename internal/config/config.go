package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HFAPIConfig holds configuration for the hosted zero-shot classifier.
type HFAPIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Timeout returns the request timeout as a duration.
func (c HFAPIConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// ClassifierConfig selects and configures the zero-shot backend.
type ClassifierConfig struct {
	Type                string       `yaml:"type"`
	ConfidenceThreshold float64      `yaml:"confidence_threshold"`
	HFAPI               *HFAPIConfig `yaml:"hfapi,omitempty"`
}

// RedisConfig contains connection details for a Redis-backed directory.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// DirectoryConfig selects and configures the employee directory.
type DirectoryConfig struct {
	Type  string       `yaml:"type"`
	Path  string       `yaml:"path"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// PolicyConfig points at the access policy file. Empty uses the built-in policy.
type PolicyConfig struct {
	Path string `yaml:"path"`
}

// ModelConfig points at the exported access model. Empty disables the model path.
type ModelConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Classifier ClassifierConfig `yaml:"classifier"`
	Directory  DirectoryConfig  `yaml:"directory"`
	Policy     PolicyConfig     `yaml:"policy"`
	Model      ModelConfig      `yaml:"model"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/corpgate/config.yaml.
// If neither exists, it writes defaults to ~/.config/corpgate/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "corpgate", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Classifier: ClassifierConfig{Type: "lexical", ConfidenceThreshold: 0.45},
		Directory:  DirectoryConfig{Type: "memory", Path: "data.json"},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Classifier.Type == "" {
		cfg.Classifier.Type = "lexical"
	}
	if cfg.Classifier.ConfidenceThreshold == 0 {
		cfg.Classifier.ConfidenceThreshold = 0.45
	}
	if cfg.Classifier.Type == "hfapi" {
		if cfg.Classifier.HFAPI == nil {
			cfg.Classifier.HFAPI = &HFAPIConfig{}
		}
		h := cfg.Classifier.HFAPI
		if h.BaseURL == "" {
			h.BaseURL = "https://api-inference.huggingface.co/models"
		}
		if h.APIKeyEnv == "" {
			h.APIKeyEnv = "HF_API_TOKEN"
		}
		if h.Model == "" {
			h.Model = "facebook/bart-large-mnli"
		}
		if h.TimeoutSecs == 0 {
			h.TimeoutSecs = 30
		}
	}
	if cfg.Directory.Type == "" {
		cfg.Directory.Type = "memory"
	}
	if cfg.Directory.Type == "memory" && cfg.Directory.Path == "" {
		cfg.Directory.Path = "data.json"
	}
	if cfg.Directory.Type == "redis" {
		if cfg.Directory.Redis == nil {
			cfg.Directory.Redis = &RedisConfig{}
		}
		if cfg.Directory.Redis.Addr == "" {
			cfg.Directory.Redis.Addr = "localhost:6379"
		}
		if cfg.Directory.Redis.KeyPrefix == "" {
			cfg.Directory.Redis.KeyPrefix = "corpgate:employee:"
		}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *AppConfig) validate() error {
	if t := c.Classifier.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("classifier.confidence_threshold %v outside [0,1]", t)
	}
	switch c.Classifier.Type {
	case "lexical", "hfapi":
	default:
		return fmt.Errorf("unknown classifier: %s", c.Classifier.Type)
	}
	switch c.Directory.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown directory: %s", c.Directory.Type)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s", c.Log.Format)
	}
	return nil
}
