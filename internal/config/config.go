// Package config handles configuration loading and management for quoteflow.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/quoteflow/internal/cache"
	"github.com/ShayCichocki/quoteflow/internal/optimizer"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrUnknownKey is returned when getting or setting a key with no default.
var ErrUnknownKey = errors.New("unknown configuration key")

// Interpreter modes.
const (
	InterpreterAuto  = "auto"
	InterpreterLLM   = "llm"
	InterpreterRules = "rules"
)

// Config holds all configuration for quoteflow.
type Config struct {
	Anthropic   AnthropicConfig   `mapstructure:"anthropic"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	Executor    ExecutorConfig    `mapstructure:"executor"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Optimizer   OptimizerConfig   `mapstructure:"optimizer"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	State       StateConfig       `mapstructure:"state"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         LogConfig         `mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
	Bedrock    bool   `mapstructure:"bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// InterpreterConfig selects how subtasks become tool calls.
type InterpreterConfig struct {
	// Mode is auto, llm or rules. Auto uses the LLM when a key or Bedrock
	// is configured and falls back to rules otherwise.
	Mode string `mapstructure:"mode"`
	// NativeTools offers tool schemas through the API as well as the prompt.
	NativeTools bool `mapstructure:"native_tools"`
}

// ExecutorConfig holds task executor settings.
type ExecutorConfig struct {
	MaxParallel    int           `mapstructure:"max_parallel"`
	RecentWindow   int           `mapstructure:"recent_window"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
	SubtaskTimeout time.Duration `mapstructure:"subtask_timeout"`
}

// CacheConfig holds quote cache settings.
type CacheConfig struct {
	Scope    string        `mapstructure:"scope"`
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Policy converts the settings to a cache.Policy.
func (c CacheConfig) Policy() (cache.Policy, error) {
	scope, err := cache.ParseScope(c.Scope)
	if err != nil {
		return cache.Policy{}, err
	}
	return cache.Policy{Scope: scope, Capacity: c.Capacity, TTL: c.TTL}, nil
}

// OptimizerConfig holds budget optimizer settings.
type OptimizerConfig struct {
	MaxCombinations int                      `mapstructure:"max_combinations"`
	Room            optimizer.RoomCategories `mapstructure:"room"`
}

// CatalogConfig holds price catalog settings.
type CatalogConfig struct {
	// Path is the catalog YAML file. Empty uses the bundled catalog.
	Path string `mapstructure:"path"`
	// Watch reloads the catalog when the file changes.
	Watch bool `mapstructure:"watch"`
}

// StateConfig holds persistence settings.
type StateConfig struct {
	// DBPath is the SQLite database. Empty uses the global XDG path.
	DBPath string `mapstructure:"db_path"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	// Path writes logs to a file instead of stderr.
	Path string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, QUOTEFLOW_EXECUTOR_MAX_PARALLEL, ...)
// 2. Project config (.quoteflow.yaml in current directory or parent)
// 3. User config (~/.config/quoteflow/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("quoteflow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", "QUOTEFLOW_ANTHROPIC_API_KEY")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Catalog.Path = expandEnv(cfg.Catalog.Path)
	cfg.State.DBPath = expandEnv(cfg.State.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Interpreter.Mode {
	case InterpreterAuto, InterpreterLLM, InterpreterRules:
	default:
		return fmt.Errorf("%w: interpreter.mode %q", ErrInvalidConfig, c.Interpreter.Mode)
	}
	if _, err := c.Cache.Policy(); err != nil {
		return fmt.Errorf("%w: cache.scope: %w", ErrInvalidConfig, err)
	}
	if c.Cache.Capacity < 0 || c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache capacity and ttl must not be negative", ErrInvalidConfig)
	}
	if c.Executor.MaxParallel < 0 || c.Executor.RecentWindow < 0 {
		return fmt.Errorf("%w: executor limits must not be negative", ErrInvalidConfig)
	}
	if c.Optimizer.MaxCombinations <= 0 {
		return fmt.Errorf("%w: optimizer.max_combinations must be positive", ErrInvalidConfig)
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	for key, value := range flatten(cfg) {
		v.Set(key, value)
	}

	return v.WriteConfig()
}

// Keys returns every configuration key, sorted.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// Get returns the value of one key from cfg as a string.
func Get(cfg *Config, key string) (string, error) {
	value, ok := flatten(cfg)[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return fmt.Sprint(value), nil
}

// Set parses value into key of the user config file and saves it.
func Set(key, value string) (*Config, error) {
	if !isKey(key) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if key == "anthropic.api_key" && value != "" && !isEnvReference(value) {
		if err := ValidateAPIKey(value); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)
	path := GetUserConfigPath()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}
	v.Set(key, value)

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := Save(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

func flatten(cfg *Config) map[string]any {
	return map[string]any{
		"anthropic.api_key":          cfg.Anthropic.APIKey,
		"anthropic.model":            cfg.Anthropic.Model,
		"anthropic.max_tokens":       cfg.Anthropic.MaxTokens,
		"anthropic.bedrock":          cfg.Anthropic.Bedrock,
		"anthropic.aws_region":       cfg.Anthropic.AWSRegion,
		"anthropic.aws_profile":      cfg.Anthropic.AWSProfile,
		"interpreter.mode":           cfg.Interpreter.Mode,
		"interpreter.native_tools":   cfg.Interpreter.NativeTools,
		"executor.max_parallel":      cfg.Executor.MaxParallel,
		"executor.recent_window":     cfg.Executor.RecentWindow,
		"executor.run_timeout":       cfg.Executor.RunTimeout.String(),
		"executor.subtask_timeout":   cfg.Executor.SubtaskTimeout.String(),
		"cache.scope":                cfg.Cache.Scope,
		"cache.capacity":             cfg.Cache.Capacity,
		"cache.ttl":                  cfg.Cache.TTL.String(),
		"optimizer.max_combinations": cfg.Optimizer.MaxCombinations,
		"optimizer.room.floor":       cfg.Optimizer.Room.Floor,
		"optimizer.room.ceiling":     cfg.Optimizer.Room.Ceiling,
		"optimizer.room.walls":       cfg.Optimizer.Room.Walls,
		"catalog.path":               cfg.Catalog.Path,
		"catalog.watch":              cfg.Catalog.Watch,
		"state.db_path":              cfg.State.DBPath,
		"metrics.addr":               cfg.Metrics.Addr,
		"log.level":                  cfg.Log.Level,
		"log.json":                   cfg.Log.JSON,
		"log.path":                   cfg.Log.Path,
	}
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()
	for key, value := range flatten(d) {
		v.SetDefault(key, value)
	}
}

// getUserConfigDir returns the XDG config directory for quoteflow.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "quoteflow")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "quoteflow")
	}
	return filepath.Join(home, ".config", "quoteflow")
}

// findProjectConfig searches for .quoteflow.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".quoteflow.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
			AWSRegion: "us-west-2",
		},
		Interpreter: InterpreterConfig{
			Mode: InterpreterAuto,
		},
		Executor: ExecutorConfig{
			MaxParallel:    8,
			RecentWindow:   3,
			RunTimeout:     5 * time.Minute,
			SubtaskTimeout: time.Minute,
		},
		Cache: CacheConfig{
			Scope:    string(cache.ScopeTurn),
			Capacity: 1000,
			TTL:      time.Hour,
		},
		Optimizer: OptimizerConfig{
			MaxCombinations: optimizer.DefaultMaxCombinations,
			Room:            optimizer.DefaultRoomCategories,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}
