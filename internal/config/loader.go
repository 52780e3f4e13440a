package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	DataDir      string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	CaptureDir   string `json:"capture_dir" yaml:"capture_dir" toml:"capture_dir"`

	TopK        int     `json:"top_k" yaml:"top_k" toml:"top_k"`
	TopP        float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`

	GracePeriodMS  int `json:"grace_period_ms" yaml:"grace_period_ms" toml:"grace_period_ms"`
	TextFlushMS    int `json:"text_flush_ms" yaml:"text_flush_ms" toml:"text_flush_ms"`
	ImageFlushMS   int `json:"image_flush_ms" yaml:"image_flush_ms" toml:"image_flush_ms"`
	DebounceMS     int `json:"debounce_ms" yaml:"debounce_ms" toml:"debounce_ms"`
	TextMaxPixels  int `json:"text_max_pixels" yaml:"text_max_pixels" toml:"text_max_pixels"`
	LlamaCtxSize   int `json:"llama_ctx_size" yaml:"llama_ctx_size" toml:"llama_ctx_size"`
	LlamaThreads   int `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`
	LlamaMaxTokens int `json:"llama_max_tokens" yaml:"llama_max_tokens" toml:"llama_max_tokens"`

	SourceLang  string   `json:"source_lang" yaml:"source_lang" toml:"source_lang"`
	TargetLang  string   `json:"target_lang" yaml:"target_lang" toml:"target_lang"`
	LogLevel    string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values that are set but out of range.
func (c Config) Validate() error {
	switch {
	case c.TopK < 0:
		return fmt.Errorf("top_k must be >= 0")
	case c.TopP < 0 || c.TopP > 1:
		return fmt.Errorf("top_p must be within [0,1]")
	case c.Temperature < 0:
		return fmt.Errorf("temperature must be >= 0")
	case c.GracePeriodMS < 0 || c.TextFlushMS < 0 || c.ImageFlushMS < 0 || c.DebounceMS < 0:
		return fmt.Errorf("durations must be >= 0")
	}
	return nil
}

// Millis converts a millisecond config value; 0 stays 0 so callers apply
// their own default.
func Millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
