// Package config loads the yaml configuration file and validates the
// cross-cutting scoring configuration (weights, thresholds) before any
// evaluation begins.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stellarlinkco/replay-eval/internal/regression"
	"github.com/stellarlinkco/replay-eval/internal/scorer"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	EpisodeStoreURL string             `yaml:"episode_store_url"`
	GatewayURL      string             `yaml:"gateway_url,omitempty"`
	Evaluation      EvaluationConfig   `yaml:"evaluation"`
	Weights         map[string]float64 `yaml:"weights,omitempty"`
	Thresholds      ThresholdsConfig   `yaml:"thresholds"`
	LLM             LLMConfig          `yaml:"llm"`
	Storage         StorageConfig      `yaml:"storage"`
	Report          ReportConfig       `yaml:"report"`
}

type EvaluationConfig struct {
	AgentID     string        `yaml:"agent_id,omitempty"`
	ModelFilter string        `yaml:"model_filter,omitempty"`
	MaxEpisodes int           `yaml:"max_episodes,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// ThresholdsConfig mirrors the default policy table. Delta boundaries
// are written as percentages (20 means +20%) to match how operators
// talk about cost; they are converted to fractions at load time.
type ThresholdsConfig struct {
	Cost        DeltaThreshold `yaml:"cost"`
	Latency     DeltaThreshold `yaml:"latency"`
	Correctness FloorThreshold `yaml:"correctness"`
	Safety      FloorThreshold `yaml:"safety"`
	Overall     FloorThreshold `yaml:"overall"`
}

type DeltaThreshold struct {
	WarnPct *float64 `yaml:"warn_pct,omitempty"`
	CritPct *float64 `yaml:"crit_pct,omitempty"`
}

type FloorThreshold struct {
	Floor *float64 `yaml:"floor,omitempty"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

type ReportConfig struct {
	Dir string `yaml:"dir,omitempty"`
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
	applyEnvOverrides(&cfg)

	// Structural errors in weights or thresholds are fatal here, before
	// any scoring begins.
	if _, err := cfg.ScoreWeights(); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	if _, err := cfg.ThresholdTable(); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}

	return &cfg, nil
}

// Default returns a config usable without a file on disk.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.EpisodeStoreURL) == "" {
		cfg.EpisodeStoreURL = "http://localhost:8100"
	}
	if cfg.Evaluation.MaxEpisodes <= 0 {
		cfg.Evaluation.MaxEpisodes = 100
	}
	if cfg.Evaluation.Concurrency <= 0 {
		cfg.Evaluation.Concurrency = 4
	}
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]ProviderConfig)
	}
	if strings.TrimSpace(cfg.LLM.DefaultProvider) == "" {
		cfg.LLM.DefaultProvider = "claude"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	}

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := cfg.LLM.Providers["openai"]
		p.APIKey = v
		cfg.LLM.Providers["openai"] = p
	}

	if v := strings.TrimSpace(os.Getenv("EPISODE_STORE_URL")); v != "" {
		cfg.EpisodeStoreURL = v
	}
	if v := strings.TrimSpace(os.Getenv("REPLAY_GATEWAY_URL")); v != "" {
		cfg.GatewayURL = v
	}
}

// ScoreWeights returns the validated weight table, or the fixed default
// table when the config omits weights entirely.
func (c *Config) ScoreWeights() (scorer.Weights, error) {
	if c == nil || len(c.Weights) == 0 {
		return scorer.DefaultWeights(), nil
	}

	w := make(scorer.Weights, len(c.Weights))
	for name, v := range c.Weights {
		w[scorer.Dimension(strings.TrimSpace(name))] = v
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// ThresholdTable builds the validated regression table, with every
// unset boundary taken from the default policy.
func (c *Config) ThresholdTable() (regression.Table, error) {
	table := regression.DefaultTable()
	if c == nil {
		return table, nil
	}

	applyDelta := func(dim scorer.Dimension, t DeltaThreshold) {
		rule := table[dim]
		if t.WarnPct != nil {
			rule.Warn = *t.WarnPct / 100
		}
		if t.CritPct != nil {
			rule.Crit = *t.CritPct / 100
		}
		table[dim] = rule
	}
	applyFloor := func(dim scorer.Dimension, t FloorThreshold) {
		rule := table[dim]
		if t.Floor != nil {
			rule.Crit = *t.Floor
		}
		table[dim] = rule
	}

	applyDelta(scorer.DimCost, c.Thresholds.Cost)
	applyDelta(scorer.DimLatency, c.Thresholds.Latency)
	applyFloor(scorer.DimCorrectness, c.Thresholds.Correctness)
	applyFloor(scorer.DimSafety, c.Thresholds.Safety)
	applyFloor(scorer.DimOverall, c.Thresholds.Overall)

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
