// Package config loads Carmenta configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all Carmenta core configuration.
type Config struct {
	// SQLite storage
	Storage StorageConfig `yaml:"storage"`

	// LLM provider settings
	LLM LLMConfig `yaml:"llm"`

	// Knowledge retrieval settings
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig configures the SQLite data layer.
type StorageConfig struct {
	// DatabasePath is the SQLite file path; ":memory:" for ephemeral use.
	DatabasePath string `yaml:"database_path"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	Provider         string `yaml:"provider"` // openrouter, google
	OpenRouterAPIKey string `yaml:"openrouter_api_key"`
	OpenRouterModel  string `yaml:"openrouter_model"`
	GoogleAPIKey     string `yaml:"google_api_key"`
	GoogleModel      string `yaml:"google_model"`
}

// RetrievalConfig configures knowledge retrieval.
type RetrievalConfig struct {
	// MaxDocuments caps results per retrieval; 0 uses the built-in default.
	MaxDocuments int `yaml:"max_documents"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: filepath.Join(".carmenta", "carmenta.db"),
		},
		LLM: LLMConfig{
			Provider: "openrouter",
		},
		Retrieval: RetrievalConfig{
			MaxDocuments: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load reads the config file at path, falling back to defaults when the file
// is absent, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values from the environment. Env wins over file.
func (c *Config) applyEnv() {
	if v := os.Getenv("CARMENTA_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("CARMENTA_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.LLM.OpenRouterAPIKey = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		c.LLM.OpenRouterModel = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.LLM.GoogleAPIKey = v
	}
	if v := os.Getenv("GOOGLE_MODEL"); v != "" {
		c.LLM.GoogleModel = v
	}
	if v := os.Getenv("CARMENTA_MAX_DOCUMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.MaxDocuments = n
		}
	}
	if v := os.Getenv("CARMENTA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}
