package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all affect server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Inference InferenceConfig `yaml:"inference"`
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path               string        `yaml:"path"`                // empty: resolved via store.DefaultDBPath()
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"` // 0 disables periodic checkpoints
}

type InferenceConfig struct {
	Provider     string        `yaml:"provider"` // "lexicon", "ollama", "anthropic", "openai", "mock"
	Model        string        `yaml:"model"`
	OllamaURL    string        `yaml:"ollama_url"`
	AnthropicKey string        `yaml:"anthropic_key"`
	OpenAIKey    string        `yaml:"openai_key"`
	OpenAIURL    string        `yaml:"openai_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

type EngineConfig struct {
	// BlendRatio is the share of the raw inference signal in an evaluation
	// response; the remainder comes from the pre-update aggregate.
	BlendRatio float64 `yaml:"blend_ratio"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// Providers accepted by Inference.Provider.
var Providers = map[string]bool{
	"lexicon":   true,
	"ollama":    true,
	"anthropic": true,
	"openai":    true,
	"mock":      true,
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			CheckpointInterval: 5 * time.Minute,
		},
		Inference: InferenceConfig{
			Provider: "lexicon",
			Timeout:  30 * time.Second,
		},
		Engine: EngineConfig{
			BlendRatio: 0.5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML config file over the defaults, then applies environment
// overrides. An empty path or a missing file yields defaults plus env.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("AFFECT_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := os.Getenv("AFFECT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AFFECT_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("AFFECT_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("AFFECT_PROVIDER"); v != "" {
		c.Inference.Provider = v
	}
	if v := os.Getenv("AFFECT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	// API keys only fill gaps; an explicit key in the file wins.
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.Inference.AnthropicKey == "" {
		c.Inference.AnthropicKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Inference.OpenAIKey == "" {
		c.Inference.OpenAIKey = v
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if !Providers[c.Inference.Provider] {
		return fmt.Errorf("unknown inference provider: %q", c.Inference.Provider)
	}
	if r := c.Engine.BlendRatio; !(r > 0 && r <= 1) {
		return fmt.Errorf("engine.blend_ratio %v must be in (0, 1]", r)
	}
	if c.Inference.Timeout < 0 || c.Database.CheckpointInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
