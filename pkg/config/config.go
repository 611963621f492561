package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rivalis-ai/rivalis/pkg/llm"
	"gopkg.in/yaml.v3"
)

// Config holds all rivalis configuration.
type Config struct {
	Project     ProjectConfig         `yaml:"project"`
	Budget      BudgetConfig          `yaml:"budget"`
	Retry       RetryConfig           `yaml:"retry"`
	Checkpoints CheckpointConfig      `yaml:"checkpoints"`
	Fetch       FetchConfig           `yaml:"fetch"`
	Output      OutputConfig          `yaml:"output"`
	Tasks       map[string]TaskConfig `yaml:"tasks"`
}

// ProjectConfig describes the analysis target and its competitors.
type ProjectConfig struct {
	Name             string             `yaml:"name"`
	Target           string             `yaml:"target"`
	Industry         string             `yaml:"industry"`
	Competitors      []CompetitorConfig `yaml:"competitors"`
	ParallelResearch bool               `yaml:"parallel_research"`
}

// CompetitorConfig identifies one competitor to research.
type CompetitorConfig struct {
	Name    string   `yaml:"name"`
	Website string   `yaml:"website"`
	Aliases []string `yaml:"aliases"`
}

// BudgetConfig controls cost enforcement.
type BudgetConfig struct {
	MaxUSD    float64 `yaml:"max_usd"`
	AlertPcts []int   `yaml:"alert_pcts"`
}

// RetryConfig controls the executor's retry loop.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BackoffBase float64 `yaml:"backoff_base"`
}

// CheckpointConfig selects and locates the checkpoint store.
// Backend is "file" (default) or "sqlite".
type CheckpointConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Path    string `yaml:"path"`
}

// FetchConfig controls the web fetcher.
type FetchConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
	UserAgent      string `yaml:"user_agent"`
}

// OutputConfig locates run artifacts.
type OutputConfig struct {
	Dir     string `yaml:"dir"`
	LogDir  string `yaml:"log_dir"`
	CostLog string `yaml:"cost_log"`
}

// TaskConfig maps a logical task to a provider and model.
type TaskConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Budget: BudgetConfig{
			MaxUSD:    10.0,
			AlertPcts: []int{50, 75, 90},
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BackoffBase: 2.0,
		},
		Checkpoints: CheckpointConfig{
			Backend: "file",
			Dir:     "checkpoints",
			Path:    "checkpoints.db",
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 30,
			MaxAttempts:    3,
		},
		Output: OutputConfig{
			Dir:     "output",
			LogDir:  "logs",
			CostLog: "cost_log.json",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for errors that would only surface mid-run.
func (c *Config) Validate() error {
	if c.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	if len(c.Project.Competitors) == 0 {
		return fmt.Errorf("project %s: at least one competitor is required", c.Project.Name)
	}
	for i, comp := range c.Project.Competitors {
		if comp.Name == "" {
			return fmt.Errorf("competitor %d: name is required", i)
		}
	}
	if c.Budget.MaxUSD <= 0 {
		return fmt.Errorf("budget.max_usd must be positive, got %.2f", c.Budget.MaxUSD)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	switch c.Checkpoints.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("checkpoints.backend must be file or sqlite, got %q", c.Checkpoints.Backend)
	}
	for task, tc := range c.Tasks {
		if !llm.Supported(tc.Provider) {
			return fmt.Errorf("task %s: unknown provider %q", task, tc.Provider)
		}
		if tc.Model == "" {
			return fmt.Errorf("task %s: model is required", task)
		}
		if tc.APIKeyEnv == "" {
			return fmt.Errorf("task %s: api_key_env is required", task)
		}
	}
	return nil
}

// Slug normalizes a competitor name into a filesystem- and key-safe
// identifier: lowercase with runs of non-alphanumerics collapsed to "_".
func Slug(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
