// Package config loads ultrathink settings from the [tool.ultrathink] table
// of a TOML project file (normally pyproject.toml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ErrNotConfigured is returned when the project file is absent or carries no
// [tool.ultrathink] table.
var ErrNotConfigured = errors.New("no [tool.ultrathink] table in project file")

// Config is the [tool.ultrathink] table.
type Config struct {
	Enabled         bool             `toml:"enabled"`
	PackageName     string           `toml:"package_name"`
	SourceDirectory string           `toml:"source_directory"`
	Validation      ValidationConfig `toml:"validation"`
	CI              CIConfig         `toml:"ci"`
}

// ValidationConfig is the [tool.ultrathink.validation] table.
type ValidationConfig struct {
	ValidateDoctests      bool    `toml:"validate_doctests"`
	CheckCompleteness     bool    `toml:"check_completeness"`
	CompletenessThreshold float64 `toml:"completeness_threshold"`
	DoctestMode           string  `toml:"doctest_mode"`
}

// CIConfig is the [tool.ultrathink.ci] table.
type CIConfig struct {
	PreCommitValidation      bool `toml:"pre_commit_validation"`
	GitHubActionsIntegration bool `toml:"github_actions_integration"`
	GateOnIncompleteDocs     bool `toml:"gate_on_incomplete_docs"`
	GateOnFailedDoctests     bool `toml:"gate_on_failed_doctests"`
}

// Doctest modes.
const (
	DoctestModeExecute = "execute"
	DoctestModeStatic  = "static"
)

// Default returns the configuration written by `ultrathink setup`.
func Default(packageName string) Config {
	return Config{
		Enabled:         true,
		PackageName:     packageName,
		SourceDirectory: filepath.ToSlash(filepath.Join("src", packageName)),
		Validation: ValidationConfig{
			ValidateDoctests:      true,
			CheckCompleteness:     true,
			CompletenessThreshold: 0.95,
			DoctestMode:           DoctestModeExecute,
		},
		CI: CIConfig{
			PreCommitValidation:      true,
			GitHubActionsIntegration: true,
			GateOnIncompleteDocs:     true,
			GateOnFailedDoctests:     true,
		},
	}
}

// Load reads the [tool.ultrathink] table from path. A missing file or missing
// table returns ErrNotConfigured so callers can tell "not set up" apart from
// a malformed file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, ErrNotConfigured
		}
		return Config{}, fmt.Errorf("read project file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a TOML document and extracts [tool.ultrathink].
func Parse(data []byte) (Config, error) {
	var doc struct {
		Tool struct {
			Ultrathink *Config `toml:"ultrathink"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("parse project file: %w", err)
	}
	if doc.Tool.Ultrathink == nil {
		return Config{}, ErrNotConfigured
	}
	cfg := *doc.Tool.Ultrathink
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SourceDirectory == "" && c.PackageName != "" {
		c.SourceDirectory = filepath.ToSlash(filepath.Join("src", c.PackageName))
	}
	if c.Validation.CompletenessThreshold == 0 {
		c.Validation.CompletenessThreshold = 0.95
	}
	if c.Validation.DoctestMode == "" {
		c.Validation.DoctestMode = DoctestModeExecute
	}
}

// Validate rejects configurations the rest of the pipeline cannot honor.
func (c Config) Validate() error {
	if c.Enabled && c.PackageName == "" {
		return errors.New("package_name is required when ultrathink is enabled")
	}
	if t := c.Validation.CompletenessThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("completeness_threshold must be in (0, 1], got %v", t)
	}
	switch c.Validation.DoctestMode {
	case DoctestModeExecute, DoctestModeStatic:
	default:
		return fmt.Errorf("doctest_mode must be %q or %q, got %q",
			DoctestModeExecute, DoctestModeStatic, c.Validation.DoctestMode)
	}
	return nil
}

// WriteInto inserts or replaces the [tool.ultrathink] table in the project
// file at path, keeping every other table when the file already exists.
func WriteInto(path string, cfg Config) error {
	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse existing project file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read project file: %w", err)
	}

	tool, _ := doc["tool"].(map[string]any)
	if tool == nil {
		tool = map[string]any{}
	}
	tool["ultrathink"] = cfg
	doc["tool"] = tool

	out, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode project file: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write project file: %w", err)
	}
	return nil
}
