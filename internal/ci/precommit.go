package ci

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const hookScript = `#!/bin/sh
# Installed by ultrathink. Validates documentation of staged Python files.
exec ultrathink check-staged-files
`

// preCommitConfig mirrors the .pre-commit-config.yaml schema subset we emit.
type preCommitConfig struct {
	Repos []preCommitRepo `yaml:"repos"`
}

type preCommitRepo struct {
	Repo  string          `yaml:"repo"`
	Hooks []preCommitHook `yaml:"hooks"`
}

type preCommitHook struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Entry    string   `yaml:"entry"`
	Language string   `yaml:"language"`
	Files    string   `yaml:"files"`
	Types    []string `yaml:"types,omitempty"`
}

// PreCommit installs and serves the git pre-commit integration.
type PreCommit struct {
	projectRoot string
	logger      *zap.Logger
}

// NewPreCommit anchors the integration at the project root.
func NewPreCommit(projectRoot string, logger *zap.Logger) *PreCommit {
	return &PreCommit{projectRoot: projectRoot, logger: logger}
}

// InstallHook writes .git/hooks/pre-commit. An existing hook not written by
// ultrathink is left untouched and reported as an error.
func (p *PreCommit) InstallHook() (string, error) {
	hooksDir := filepath.Join(p.projectRoot, ".git", "hooks")
	if _, err := os.Stat(filepath.Dir(hooksDir)); err != nil {
		return "", fmt.Errorf("no .git directory under %s: %w", p.projectRoot, err)
	}
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return "", fmt.Errorf("create hooks dir: %w", err)
	}

	path := filepath.Join(hooksDir, "pre-commit")
	if existing, err := os.ReadFile(path); err == nil {
		if !strings.Contains(string(existing), "ultrathink") {
			return "", fmt.Errorf("pre-commit hook already exists at %s; remove it first", path)
		}
	}
	if err := os.WriteFile(path, []byte(hookScript), 0o755); err != nil {
		return "", fmt.Errorf("write hook: %w", err)
	}
	p.logger.Info("installed pre-commit hook", zap.String("path", path))
	return path, nil
}

// WriteConfig writes .pre-commit-config.yaml with the ultrathink local hook,
// preserving an existing file's other repos.
func (p *PreCommit) WriteConfig() (string, error) {
	path := filepath.Join(p.projectRoot, ".pre-commit-config.yaml")

	cfg := preCommitConfig{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return "", fmt.Errorf("parse existing %s: %w", path, err)
		}
	}

	hook := preCommitRepo{
		Repo: "local",
		Hooks: []preCommitHook{{
			ID:       "ultrathink-docs",
			Name:     "ultrathink documentation validation",
			Entry:    "ultrathink check-staged-files",
			Language: "system",
			Files:    `\.py$`,
		}},
	}

	replaced := false
	for i, repo := range cfg.Repos {
		for _, h := range repo.Hooks {
			if h.ID == "ultrathink-docs" {
				cfg.Repos[i] = hook
				replaced = true
			}
		}
	}
	if !replaced {
		cfg.Repos = append(cfg.Repos, hook)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	enc.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// StagedPythonFiles lists staged .py files (added, copied, or modified),
// project-relative with forward slashes.
func (p *PreCommit) StagedPythonFiles(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--name-only", "--diff-filter=ACM")
	cmd.Dir = p.projectRoot
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff --cached: %w", err)
	}
	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(line, ".py") {
			files = append(files, filepath.ToSlash(line))
		}
	}
	return files, nil
}
