package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Scorer     ScorerConfig     `yaml:"scorer"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
}

type ScorerConfig struct {
	Backend      string       `yaml:"backend,omitempty"` // "inference" or "openai"
	Model        string       `yaml:"model,omitempty"`
	Family       string       `yaml:"family,omitempty"` // tokenizer/model family hint (bert, roberta, gpt2, xlnet)
	InferenceURL string       `yaml:"inference_url,omitempty"`
	OpenAI       OpenAIConfig `yaml:"openai,omitempty"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

type EvaluationConfig struct {
	OutputFormat string `yaml:"output_format,omitempty"` // "table" or "json"
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// LoadOrDefault loads the config at path, falling back to built-in defaults
// when the default config file is absent. An explicit non-default path must
// exist.
func LoadOrDefault(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path != "" && path != DefaultPath {
		return Load(path)
	}

	cfg, err := Load(DefaultPath)
	if err == nil {
		return cfg, nil
	}
	if _, statErr := os.Stat(DefaultPath); os.IsNotExist(statErr) {
		cfg = &Config{}
		applyDefaults(cfg)
		applyEnv(cfg)
		return cfg, nil
	}
	return nil, err
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Scorer.Backend) == "" {
		cfg.Scorer.Backend = "inference"
	}
	if strings.TrimSpace(cfg.Scorer.Model) == "" {
		cfg.Scorer.Model = "bert-base-cased"
	}
	if strings.TrimSpace(cfg.Scorer.InferenceURL) == "" {
		cfg.Scorer.InferenceURL = "http://localhost:8000"
	}
	if strings.TrimSpace(cfg.Evaluation.OutputFormat) == "" {
		cfg.Evaluation.OutputFormat = "table"
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8080"
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.Scorer.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("STEREOBENCH_INFERENCE_URL")); v != "" {
		cfg.Scorer.InferenceURL = v
	}
	if v := strings.TrimSpace(os.Getenv("STEREOBENCH_DB_PATH")); v != "" {
		cfg.Storage.Path = v
	}
}
