// Package config loads pulse settings: a JSON file, optional .env and key
// files, environment overrides, and an optional YAML source list.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/abelbrown/pulse/internal/brain"
	"github.com/abelbrown/pulse/internal/store"
)

// Config is the persistent application configuration
type Config struct {
	// Storage and serving
	DataDir  string `json:"data_dir"`
	Addr     string `json:"addr"`
	Timezone string `json:"timezone"` // reference timezone for "today"

	// Scheduling
	RetentionDays    int    `json:"retention_days"`
	FetchInterval    string `json:"fetch_interval"`
	GenerateInterval string `json:"generate_interval"`

	// Optional YAML file replacing the built-in sources
	SourcesFile string `json:"sources_file,omitempty"`

	// AI Models
	Models ModelConfig `json:"models"`
	LLM    LLMConfig   `json:"llm"`

	Limits LimitsConfig `json:"limits"`
	Redis  RedisConfig  `json:"redis"`
	Export ExportConfig `json:"export"`
}

// ModelConfig holds AI model settings
type ModelConfig struct {
	Claude ModelSettings `json:"claude"`
	OpenAI ModelSettings `json:"openai"`
	Gemini ModelSettings `json:"gemini"`
	Grok   ModelSettings `json:"grok"`
	Ollama ModelSettings `json:"ollama"`
}

// ModelSettings for a single AI provider
type ModelSettings struct {
	Enabled  bool   `json:"enabled"`
	APIKey   string `json:"api_key,omitempty"`
	Endpoint string `json:"endpoint,omitempty"` // For Ollama or custom endpoints
	Model    string `json:"model,omitempty"`
	Priority int    `json:"priority"` // Lower = higher priority for fallback
}

// LLMConfig controls how the model is called.
type LLMConfig struct {
	Preferred   string `json:"preferred,omitempty"`
	Timeout     string `json:"timeout"`
	MinInterval string `json:"min_interval"` // spacing between requests per provider
}

// LimitsConfig caps stored article text, in runes.
type LimitsConfig struct {
	Title   int `json:"title"`
	Summary int `json:"summary"`
	Content int `json:"content"`
}

// RedisConfig enables the shared hot tier when Addr is set.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
}

// ExportConfig enables S3 archive export when Bucket is set.
type ExportConfig struct {
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Region string `json:"region,omitempty"`
}

// Defaults
const (
	DefaultAddr             = ":8080"
	DefaultTimezone         = "America/New_York"
	DefaultRetentionDays    = 90
	DefaultFetchInterval    = 5 * time.Minute
	DefaultGenerateInterval = time.Hour
	DefaultLLMTimeout       = 90 * time.Second
	DefaultLLMMinInterval   = 2 * time.Second
)

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir:          filepath.Join(home, ".pulse"),
		Addr:             DefaultAddr,
		Timezone:         DefaultTimezone,
		RetentionDays:    DefaultRetentionDays,
		FetchInterval:    DefaultFetchInterval.String(),
		GenerateInterval: DefaultGenerateInterval.String(),
		Models: ModelConfig{
			Claude: ModelSettings{Enabled: true, Priority: 1, Model: brain.DefaultClaudeModel},
			OpenAI: ModelSettings{Enabled: false, Priority: 2, Model: brain.DefaultOpenAIModel},
			Gemini: ModelSettings{Enabled: false, Priority: 3, Model: brain.DefaultGeminiModel},
			Grok:   ModelSettings{Enabled: false, Priority: 4, Model: brain.DefaultGrokModel},
			Ollama: ModelSettings{Enabled: false, Priority: 5, Endpoint: brain.DefaultOllamaHost},
		},
		LLM: LLMConfig{
			Timeout:     DefaultLLMTimeout.String(),
			MinInterval: DefaultLLMMinInterval.String(),
		},
		Limits: LimitsConfig{
			Title:   store.DefaultTitleLimit,
			Summary: store.DefaultSummaryLimit,
			Content: store.DefaultContentLimit,
		},
		Export: ExportConfig{Prefix: "pulse/"},
	}
}

// ConfigPath returns the path to the config file. PULSE_CONFIG overrides it.
func ConfigPath() string {
	if p := os.Getenv("PULSE_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pulse", "config.json")
}

// Load reads config from ConfigPath and applies environment overrides.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path, or returns defaults if the file does not
// exist. Missing fields keep their defaults. Environment overrides are
// applied last.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.AutoPopulateFromEnv()
	return cfg, nil
}

// Save writes config to ConfigPath.
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for API keys
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored; variables already set are not overwritten.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// AutoPopulateFromEnv fills in keys and overrides from environment variables
func (c *Config) AutoPopulateFromEnv() {
	c.applyEnv(os.Getenv)
}

// LoadKeysFromFile loads keys from a shell-style file (KEY=value or
// export KEY=value lines) without touching the process environment.
func (c *Config) LoadKeysFromFile(path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	c.applyEnv(func(k string) string { return vars[k] })
	return nil
}

func (c *Config) applyEnv(get func(string) string) {
	if key := get("CLAUDE_API_KEY"); key != "" {
		c.Models.Claude.APIKey = key
		c.Models.Claude.Enabled = true
	}
	if key := get("ANTHROPIC_API_KEY"); key != "" {
		c.Models.Claude.APIKey = key
		c.Models.Claude.Enabled = true
	}
	if key := get("OPENAI_API_KEY"); key != "" {
		c.Models.OpenAI.APIKey = key
		c.Models.OpenAI.Enabled = true
	}
	if key := get("GOOGLE_API_KEY"); key != "" {
		c.Models.Gemini.APIKey = key
		c.Models.Gemini.Enabled = true
	}
	if key := get("GEMINI_API_KEY"); key != "" {
		c.Models.Gemini.APIKey = key
		c.Models.Gemini.Enabled = true
	}
	if key := get("XAI_API_KEY"); key != "" {
		c.Models.Grok.APIKey = key
		c.Models.Grok.Enabled = true
	}
	if m := get("OLLAMA_MODEL"); m != "" {
		c.Models.Ollama.Model = m
		c.Models.Ollama.Enabled = true
	}
	if h := get("OLLAMA_HOST"); h != "" {
		c.Models.Ollama.Endpoint = h
	}

	if v := get("PULSE_ADDR"); v != "" {
		c.Addr = v
	}
	if v := get("PULSE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := get("PULSE_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := get("PULSE_SOURCES"); v != "" {
		c.SourcesFile = v
	}
	if v := get("PULSE_LLM_PROVIDER"); v != "" {
		c.LLM.Preferred = v
	}
	if v := get("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := get("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := get("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
	if v := get("PULSE_S3_BUCKET"); v != "" {
		c.Export.Bucket = v
	}
	if v := get("PULSE_S3_PREFIX"); v != "" {
		c.Export.Prefix = v
	}
	if v := get("AWS_REGION"); v != "" && c.Export.Region == "" {
		c.Export.Region = v
	}
}

// GetEnabledModels returns models that are enabled and usable
func (c *Config) GetEnabledModels() []string {
	var names []string
	for _, spec := range c.ProviderSpecs() {
		names = append(names, spec.Name)
	}
	return names
}

// ProviderSpecs returns enabled, usable providers ordered by priority.
func (c *Config) ProviderSpecs() []brain.ProviderSpec {
	type entry struct {
		name string
		s    ModelSettings
	}
	all := []entry{
		{"claude", c.Models.Claude},
		{"openai", c.Models.OpenAI},
		{"gemini", c.Models.Gemini},
		{"grok", c.Models.Grok},
		{"ollama", c.Models.Ollama},
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].s.Priority < all[j].s.Priority })

	var specs []brain.ProviderSpec
	for _, e := range all {
		if !e.s.Enabled {
			continue
		}
		if e.name == "ollama" {
			if e.s.Model == "" {
				continue
			}
		} else if e.s.APIKey == "" {
			continue
		}
		specs = append(specs, brain.ProviderSpec{
			Name:     e.name,
			APIKey:   e.s.APIKey,
			Model:    e.s.Model,
			Endpoint: e.s.Endpoint,
		})
	}
	return specs
}

// Location resolves Timezone, falling back to UTC when it cannot be loaded.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// FetchEvery returns the fetch interval.
func (c *Config) FetchEvery() time.Duration {
	return parseDuration(c.FetchInterval, DefaultFetchInterval)
}

// GenerateEvery returns the proactive generation interval.
func (c *Config) GenerateEvery() time.Duration {
	return parseDuration(c.GenerateInterval, DefaultGenerateInterval)
}

// LLMTimeout returns the per-call model timeout.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, DefaultLLMTimeout)
}

// LLMMinInterval returns the minimum spacing between model requests.
func (c *Config) LLMMinInterval() time.Duration {
	return parseDuration(c.LLM.MinInterval, DefaultLLMMinInterval)
}

// Retention returns the article retention period.
func (c *Config) Retention() time.Duration {
	days := c.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// StoreLimits returns the article content caps, defaulting unset fields.
func (c *Config) StoreLimits() store.Limits {
	l := store.DefaultLimits()
	if c.Limits.Title > 0 {
		l.Title = c.Limits.Title
	}
	if c.Limits.Summary > 0 {
		l.Summary = c.Limits.Summary
	}
	if c.Limits.Content > 0 {
		l.Content = c.Limits.Content
	}
	return l
}

// DBPath returns the SQLite database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "pulse.db")
}

// LogDir returns the event log directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
