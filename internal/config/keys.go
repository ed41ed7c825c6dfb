package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrNoAPIKey is returned when no API key is configured.
	ErrNoAPIKey = errors.New("no Anthropic API key configured")
	// ErrInvalidAPIKey is returned for a key that cannot be an Anthropic key.
	ErrInvalidAPIKey = errors.New("invalid API key format")
)

// apiKeyPrefix starts every Anthropic API key.
const apiKeyPrefix = "sk-ant-"

// GetAPIKey returns the Anthropic API key from the configuration.
// It checks in order: environment variable, config file.
func GetAPIKey(cfg *Config) (string, error) {
	// First check environment variable directly
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}

	// Then check config
	if cfg != nil && cfg.Anthropic.APIKey != "" {
		// Expand any remaining env var references
		key := os.ExpandEnv(cfg.Anthropic.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", ErrNoAPIKey
}

// ValidateAPIKey checks the shape of key. It is checked before the LLM
// interpreter is built and when the key is set with "config", never against
// the API itself.
func ValidateAPIKey(key string) error {
	switch {
	case key == "":
		return ErrNoAPIKey
	case !strings.HasPrefix(key, apiKeyPrefix):
		return fmt.Errorf("%w: expected %q prefix", ErrInvalidAPIKey, apiKeyPrefix)
	case len(key) < 20:
		return fmt.Errorf("%w: key too short", ErrInvalidAPIKey)
	}
	return nil
}

// isEnvReference reports whether value is a ${VAR} reference resolved at load time.
func isEnvReference(value string) bool {
	return strings.Contains(value, "${")
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters (sk-ant-) and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return KeySourceEnv
	}

	if cfg != nil && cfg.Anthropic.APIKey != "" {
		key := os.ExpandEnv(cfg.Anthropic.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}

// UseLLM reports whether the configured interpreter mode resolves to the LLM
// interpreter. Auto mode needs Bedrock or an API key.
func UseLLM(cfg *Config) bool {
	switch cfg.Interpreter.Mode {
	case InterpreterLLM:
		return true
	case InterpreterRules:
		return false
	}
	return cfg.Anthropic.Bedrock || GetAPIKeySource(cfg) != KeySourceNone
}
