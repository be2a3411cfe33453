// Package config loads contextd configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/contextd/contextd/internal/privacy"
)

// Config holds all contextd configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Graph      GraphConfig      `yaml:"graph"`
	Prediction PredictionConfig `yaml:"prediction"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Privacy    privacy.Rules    `yaml:"privacy"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // empty: resolved via store.DefaultDBPath
}

type GraphConfig struct {
	Path                string  `yaml:"path"` // empty: alongside the database
	MaxNodes            int     `yaml:"max_nodes"`
	DecayFactor         float64 `yaml:"decay_factor"`
	MaintenanceInterval int     `yaml:"maintenance_interval"` // seconds
}

type PredictionConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
	MaxResults    int     `yaml:"max_results"`
}

type EmbeddingConfig struct {
	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
	MaxTerms    int    `yaml:"max_terms"` // TF-IDF fallback vocabulary size
}

type MonitorConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"` // seconds between process samples
	TopN     int  `yaml:"top_n"`    // processes recorded per sample
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37878,
		},
		Graph: GraphConfig{
			MaxNodes:            10000,
			DecayFactor:         0.95,
			MaintenanceInterval: 300,
		},
		Prediction: PredictionConfig{
			MinConfidence: 0.6,
			MaxResults:    10,
		},
		Embedding: EmbeddingConfig{
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "nomic-embed-text",
			MaxTerms:    512,
		},
		Monitor: MonitorConfig{
			Enabled:  false,
			Interval: 30,
			TopN:     5,
		},
		Privacy: privacy.Rules{
			Enabled: true,
		},
	}
}

// DefaultPath returns ~/.contextd/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".contextd", "config.yaml"), nil
}

// Load reads the config file at path, layered over defaults, then applies
// environment overrides. A missing file is not an error. A .env file in the
// working directory is loaded first so overrides can live there too.
func Load(path string) (Config, error) {
	cfg := Default()

	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults only
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CONTEXTD_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("CONTEXTD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CONTEXTD_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CONTEXTD_GRAPH"); v != "" {
		cfg.Graph.Path = v
	}
	if v := os.Getenv("CONTEXTD_OLLAMA_URL"); v != "" {
		cfg.Embedding.OllamaURL = v
	}
	if v := os.Getenv("CONTEXTD_OLLAMA_MODEL"); v != "" {
		cfg.Embedding.OllamaModel = v
	}
	if v := os.Getenv("CONTEXTD_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Prediction.MinConfidence = f
		}
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
