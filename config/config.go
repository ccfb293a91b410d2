// Package config loads ragdir settings from YAML or TOML files, .env files
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/ragdir/ai"
	"github.com/poiesic/ragdir/assemble"
	"gopkg.in/yaml.v3"
)

// ModelConfig selects the embedding and chat backends.
type ModelConfig struct {
	Host           string   `yaml:"host,omitempty" toml:"host,omitempty"`
	EmbeddingHost  string   `yaml:"embedding_host,omitempty" toml:"embedding_host,omitempty"`
	ChatHost       string   `yaml:"chat_host,omitempty" toml:"chat_host,omitempty"`
	EmbeddingModel string   `yaml:"embedding_model" toml:"embedding_model"`
	ChatModel      string   `yaml:"chat_model" toml:"chat_model"`
	APIKey         string   `yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	Temperature    *float64 `yaml:"temperature,omitempty" toml:"temperature,omitempty"`
}

// ChunkingConfig controls how documents are split.
type ChunkingConfig struct {
	MaxChunkSize int   `yaml:"max_chunk_size" toml:"max_chunk_size"`
	Overlap      *int  `yaml:"overlap,omitempty" toml:"overlap,omitempty"`
	Lookahead    int   `yaml:"lookahead" toml:"lookahead"`
	Semantic     *bool `yaml:"semantic,omitempty" toml:"semantic,omitempty"`
}

// IndexConfig controls index storage and the embedding workers.
type IndexConfig struct {
	Backend        string  `yaml:"backend" toml:"backend"` // "memory" or "badger"
	Workers        int     `yaml:"workers" toml:"workers"`
	RateLimit      float64 `yaml:"rate_limit,omitempty" toml:"rate_limit,omitempty"` // Embedding calls per second, 0 for none
	Burst          int     `yaml:"burst,omitempty" toml:"burst,omitempty"`
	MaxAttempts    int     `yaml:"max_attempts" toml:"max_attempts"`
	RetryDelay     string  `yaml:"retry_delay" toml:"retry_delay"`
	QueryCacheSize int     `yaml:"query_cache_size" toml:"query_cache_size"`
}

// RetrievalConfig controls ranking and context assembly.
type RetrievalConfig struct {
	TopK            int      `yaml:"top_k" toml:"top_k"`
	MinScore        *float32 `yaml:"min_score,omitempty" toml:"min_score,omitempty"`
	MaxContextChars int      `yaml:"max_context_chars" toml:"max_context_chars"`
	EmptyResult     string   `yaml:"empty_result" toml:"empty_result"` // "refuse" or "forward"
}

// SessionConfig controls the chat loop.
type SessionConfig struct {
	HistoryTurns *int     `yaml:"history_turns,omitempty" toml:"history_turns,omitempty"`
	ExitCommands []string `yaml:"exit_commands,omitempty" toml:"exit_commands,omitempty"`
}

// Config is the root application configuration.
type Config struct {
	Model     ModelConfig     `yaml:"model" toml:"model"`
	Chunking  ChunkingConfig  `yaml:"chunking" toml:"chunking"`
	Index     IndexConfig     `yaml:"index" toml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval" toml:"retrieval"`
	Session   SessionConfig   `yaml:"session" toml:"session"`
}

// Default returns the built-in configuration for a local Ollama server.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file and fills unset
// fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./ragdir.yaml, ./ragdir.toml, then
// ~/.config/ragdir/config.yaml. If none exists it returns the defaults and
// an empty path.
func LoadDefault() (*Config, string, error) {
	candidates := []string{"ragdir.yaml", "ragdir.toml"}
	if userPath, err := defaultUserConfigPath(); err == nil {
		candidates = append(candidates, userPath)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", err
		}
		cfg, err := Load(path)
		return cfg, path, err
	}
	return Default(), "", nil
}

// Save writes cfg to path in the format implied by its extension,
// creating directories as needed.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".toml":
		data, err = toml.Marshal(cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragdir", "config.yaml"), nil
}

func applyDefaults(cfg *Config) {
	defaults := ai.DefaultConfig()

	m := &cfg.Model
	if m.Host == "" {
		m.Host = defaults.ChatHost
	}
	if m.EmbeddingModel == "" {
		m.EmbeddingModel = defaults.EmbeddingModel
	}
	if m.ChatModel == "" {
		m.ChatModel = defaults.ChatModel
	}
	if m.Temperature == nil {
		m.Temperature = ptr(defaults.Temperature)
	}

	c := &cfg.Chunking
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = 1000
	}
	if c.Overlap == nil {
		c.Overlap = ptr(min(200, c.MaxChunkSize/5))
	}
	if c.Lookahead == 0 {
		c.Lookahead = 200
	}
	if c.Semantic == nil {
		c.Semantic = ptr(true)
	}

	i := &cfg.Index
	if i.Backend == "" {
		i.Backend = "memory"
	}
	if i.Workers == 0 {
		i.Workers = 4
	}
	if i.MaxAttempts == 0 {
		i.MaxAttempts = 3
	}
	if i.RetryDelay == "" {
		i.RetryDelay = "500ms"
	}
	if i.QueryCacheSize == 0 {
		i.QueryCacheSize = 256
	}

	r := &cfg.Retrieval
	if r.TopK == 0 {
		r.TopK = 3
	}
	if r.MinScore == nil {
		r.MinScore = ptr(float32(0.3))
	}
	if r.MaxContextChars == 0 {
		r.MaxContextChars = 4000
	}
	if r.EmptyResult == "" {
		r.EmptyResult = "refuse"
	}

	s := &cfg.Session
	if s.HistoryTurns == nil {
		s.HistoryTurns = ptr(4)
	}
}

func ptr[T any](v T) *T {
	return &v
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error

	if c.Chunking.MaxChunkSize <= 0 {
		errs = append(errs, errors.New("chunking.max_chunk_size must be positive"))
	}
	if c.Chunking.Overlap != nil && (*c.Chunking.Overlap < 0 || *c.Chunking.Overlap >= c.Chunking.MaxChunkSize) {
		errs = append(errs, errors.New("chunking.overlap must be at least 0 and below max_chunk_size"))
	}
	if c.Index.Backend != "memory" && c.Index.Backend != "badger" {
		errs = append(errs, fmt.Errorf("index.backend %q must be memory or badger", c.Index.Backend))
	}
	if c.Index.Workers <= 0 {
		errs = append(errs, errors.New("index.workers must be positive"))
	}
	if c.Index.MaxAttempts <= 0 {
		errs = append(errs, errors.New("index.max_attempts must be positive"))
	}
	if _, err := time.ParseDuration(c.Index.RetryDelay); err != nil {
		errs = append(errs, fmt.Errorf("index.retry_delay: %w", err))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, errors.New("retrieval.top_k must be positive"))
	}
	if c.Retrieval.MinScore != nil && (*c.Retrieval.MinScore < -1 || *c.Retrieval.MinScore > 1) {
		errs = append(errs, errors.New("retrieval.min_score must be between -1 and 1"))
	}
	if c.Retrieval.MaxContextChars > 0 && c.Retrieval.MaxContextChars < c.Chunking.MaxChunkSize+assemble.MarkerReserve {
		errs = append(errs, fmt.Errorf("retrieval.max_context_chars must be at least max_chunk_size + %d, or negative for no limit", assemble.MarkerReserve))
	}
	if c.Retrieval.EmptyResult != "refuse" && c.Retrieval.EmptyResult != "forward" {
		errs = append(errs, fmt.Errorf("retrieval.empty_result %q must be refuse or forward", c.Retrieval.EmptyResult))
	}
	if err := c.AIConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// RetryDelay returns the parsed index.retry_delay, or zero if it is invalid.
func (c *Config) RetryDelay() time.Duration {
	d, _ := time.ParseDuration(c.Index.RetryDelay)
	return d
}

// AIConfig converts the model section to an ai.Config. Specific hosts win
// over the shared host.
func (c *Config) AIConfig() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithHost(c.Model.Host),
		ai.WithEmbeddingModel(c.Model.EmbeddingModel),
		ai.WithChatModel(c.Model.ChatModel),
	}
	if c.Model.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.Model.EmbeddingHost))
	}
	if c.Model.ChatHost != "" {
		opts = append(opts, ai.WithChatHost(c.Model.ChatHost))
	}
	if c.Model.APIKey != "" {
		opts = append(opts, ai.WithAPIKey(c.Model.APIKey))
	}
	if c.Model.Temperature != nil {
		opts = append(opts, ai.WithTemperature(*c.Model.Temperature))
	}

	cfg := ai.NewConfig(opts...)
	cfg.Normalize()
	return cfg
}
