package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	precedence ConfigPrecedence
	validator  *Validator
	fs         afero.Fs
	getenv     func(string) string
}

// NewLoader creates a loader over the OS filesystem and environment
func NewLoader(precedence ConfigPrecedence) *Loader {
	return NewLoaderFs(afero.NewOsFs(), precedence, os.Getenv)
}

// NewLoaderFs creates a loader over fsys with a custom environment lookup
func NewLoaderFs(fsys afero.Fs, precedence ConfigPrecedence, getenv func(string) string) *Loader {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	return &Loader{
		precedence: precedence,
		validator:  NewValidator(),
		fs:         fsys,
		getenv:     getenv,
	}
}

// Load applies defaults, then each config file in order, then environment
// overrides, and validates the result. Each file only overrides the keys it
// sets. Missing user and project files are skipped; a missing explicit file
// is an error.
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	sources := []struct {
		path   string
		source ConfigSource
	}{
		{l.precedence.UserConfig, SourceUser},
		{l.precedence.ProjectConfig, SourceProject},
		{l.precedence.ExplicitConfig, SourceExplicit},
	}

	for _, src := range sources {
		if src.path == "" {
			continue
		}
		err := l.loadFileInto(src.path, config)
		if err == nil {
			continue
		}
		if errors.Is(err, fs.ErrNotExist) && src.source != SourceExplicit {
			continue
		}
		return nil, fmt.Errorf("failed to load %s config from %s: %w", src.source, src.path, err)
	}

	if l.precedence.EnvironmentPrefix != "" {
		if err := l.applyEnvironmentOverrides(config); err != nil {
			return nil, err
		}
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFileInto decodes path over config, picking the format by extension.
func (l *Loader) loadFileInto(path string, config *Config) error {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	}
	return nil
}

// SaveFile saves configuration to a file
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := l.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(l.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides applies PREFIX_* variables to config
func (l *Loader) applyEnvironmentOverrides(config *Config) error {
	prefix := l.precedence.EnvironmentPrefix + "_"

	str := func(name string, dst *string) {
		if v := l.getenv(prefix + name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		if v := l.getenv(prefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", prefix, name, err)
			}
			*dst = n
		}
		return nil
	}
	duration := func(name string, dst *Duration) error {
		if v := l.getenv(prefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", prefix, name, err)
			}
			*dst = Duration(d)
		}
		return nil
	}

	str("LISTEN", &config.Server.Listen)
	str("DATA_DIR", &config.Data.Directory)
	str("LOG_LEVEL", &config.Observability.Logging.Level)
	str("LOG_FORMAT", &config.Observability.Logging.Format)
	str("DEBUG_URL", &config.Bridge.DebugURL)
	str("CONTENT_FORMAT", &config.Bridge.ContentFormat)
	str("OPENAI_BASE_URL", &config.Providers.OpenAI.BaseURL)
	str("ANTHROPIC_BASE_URL", &config.Providers.Anthropic.BaseURL)
	str("OPENROUTER_BASE_URL", &config.Providers.OpenRouter.BaseURL)
	str("EMBEDDINGS_PROVIDER", &config.Memory.Embeddings.Provider)
	str("EMBEDDINGS_MODEL", &config.Memory.Embeddings.Model)
	str("EMBEDDINGS_BASE_URL", &config.Memory.Embeddings.BaseURL)
	str("EMBEDDINGS_API_KEY", &config.Memory.Embeddings.APIKey)

	if err := integer("MAX_STEPS", &config.Agent.MaxSteps); err != nil {
		return err
	}
	if err := integer("HISTORY_WINDOW", &config.Agent.HistoryWindow); err != nil {
		return err
	}
	if err := duration("BRIDGE_TIMEOUT", &config.Bridge.Timeout); err != nil {
		return err
	}
	if err := duration("TYPING_DELAY", &config.Bridge.TypingDelay); err != nil {
		return err
	}

	if v := l.getenv(prefix + "MEMORY_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sMEMORY_ENABLED: %w", prefix, err)
		}
		config.Memory.Enabled = enabled
	}

	return nil
}

var projectConfigNames = []string{
	".pagepilot.json",
	".pagepilot.yaml",
	".pagepilot.yml",
}

// FindProjectConfig walks up from startDir looking for a project config file.
// It stops at the filesystem root or the home directory.
func FindProjectConfig(fsys afero.Fs, startDir string) (string, bool) {
	home, _ := os.UserHomeDir()
	currentDir := startDir
	for currentDir != "" {
		for _, name := range projectConfigNames {
			configPath := filepath.Join(currentDir, name)
			if ok, _ := afero.Exists(fsys, configPath); ok {
				return configPath, true
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir || currentDir == home {
			break
		}
		currentDir = parentDir
	}
	return "", false
}

// GetConfigPaths returns the configuration file paths to check
func GetConfigPaths(explicit string) ConfigPrecedence {
	p := ConfigPrecedence{
		UserConfig:        UserConfigPath(afero.NewOsFs()),
		ExplicitConfig:    explicit,
		EnvironmentPrefix: "PAGEPILOT",
	}
	if wd, err := os.Getwd(); err == nil {
		if path, ok := FindProjectConfig(afero.NewOsFs(), wd); ok {
			p.ProjectConfig = path
		}
	}
	return p
}
