// Package config loads arena configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Tavily  TavilyConfig  `yaml:"tavily"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	MaxRounds int    `yaml:"max_rounds"`
}

type ModelConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
	Referer   string `yaml:"referer"`
	Title     string `yaml:"title"`
}

type TavilyConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	MaxResults int    `yaml:"max_results"`
}

type SessionConfig struct {
	Dir        string `yaml:"dir"`
	RedisURL   string `yaml:"redis_url"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

type LogConfig struct {
	File string `yaml:"file"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8080",
			MaxRounds: 5,
		},
		Model: ModelConfig{
			Provider: "openai",
		},
		Session: SessionConfig{
			Dir:        "data/sessions",
			TTLMinutes: 60,
		},
		Log: LogConfig{
			File: "data/arena.log",
		},
	}
}

// Load reads the config at path (ARENA_CONFIG, or config.yaml, when empty).
// A missing file is not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("ARENA_CONFIG")
	}
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ARENA_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("ARENA_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("ARENA_MODEL"); v != "" {
		cfg.Model.Model = v
	}
	if v := os.Getenv("ARENA_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Model.Provider == "anthropic" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		cfg.Tavily.APIKey = v
	}
	if v := os.Getenv("ARENA_REDIS_URL"); v != "" {
		cfg.Session.RedisURL = v
	}
	if v := os.Getenv("ARENA_SESSION_DIR"); v != "" {
		cfg.Session.Dir = v
	}
	if v := os.Getenv("ARENA_MAX_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxRounds = n
		}
	}
}
