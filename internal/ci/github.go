package ci

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Workflow file names written under .github/workflows.
const (
	ValidationWorkflowFile = "documentation.yml"
	ReleaseWorkflowFile    = "documentation-release.yml"
)

// workflow mirrors the GitHub Actions schema subset we emit. Structs keep the
// YAML field order stable.
type workflow struct {
	Name string       `yaml:"name"`
	On   workflowOn   `yaml:"on"`
	Jobs workflowJobs `yaml:"jobs"`
}

type workflowOn struct {
	PullRequest *branchFilter `yaml:"pull_request,omitempty"`
	Push        *pushFilter   `yaml:"push,omitempty"`
}

type branchFilter struct {
	Branches []string `yaml:"branches"`
}

type pushFilter struct {
	Branches []string `yaml:"branches,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
}

type workflowJobs struct {
	Docs workflowJob `yaml:"docs"`
}

type workflowJob struct {
	RunsOn string         `yaml:"runs-on"`
	Steps  []workflowStep `yaml:"steps"`
}

type workflowStep struct {
	Name string            `yaml:"name,omitempty"`
	Uses string            `yaml:"uses,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
	Run  string            `yaml:"run,omitempty"`
}

// WorkflowGenerator writes the GitHub Actions integration.
type WorkflowGenerator struct {
	projectRoot string
	logger      *zap.Logger
}

// NewWorkflowGenerator anchors a generator at the project root.
func NewWorkflowGenerator(projectRoot string, logger *zap.Logger) *WorkflowGenerator {
	return &WorkflowGenerator{projectRoot: projectRoot, logger: logger}
}

// Install writes both workflows, overwriting previous ultrathink-managed
// files and leaving everything else in .github/workflows alone.
func (w *WorkflowGenerator) Install(packageName string) ([]string, error) {
	dir := filepath.Join(w.projectRoot, ".github", "workflows")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workflows dir: %w", err)
	}

	var written []string
	for name, wf := range map[string]workflow{
		ValidationWorkflowFile: validationWorkflow(packageName),
		ReleaseWorkflowFile:    releaseWorkflow(packageName),
	} {
		data, err := yaml.Marshal(wf)
		if err != nil {
			return written, fmt.Errorf("encode workflow %s: %w", name, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write workflow %s: %w", name, err)
		}
		written = append(written, path)
	}
	w.logger.Info("installed GitHub Actions workflows", zap.Strings("files", written))
	return written, nil
}

func validationWorkflow(packageName string) workflow {
	return workflow{
		Name: "Documentation validation",
		On: workflowOn{
			PullRequest: &branchFilter{Branches: []string{"main"}},
			Push:        &pushFilter{Branches: []string{"main"}},
		},
		Jobs: workflowJobs{
			Docs: workflowJob{
				RunsOn: "ubuntu-latest",
				Steps: []workflowStep{
					{Uses: "actions/checkout@v4"},
					{
						Name: "Set up Python",
						Uses: "actions/setup-python@v5",
						With: map[string]string{"python-version": "3.12"},
					},
					{Name: "Install package", Run: "pip install -e ."},
					{
						Name: "Validate documentation",
						Run:  fmt.Sprintf("ultrathink validate --package %s --fail-on-incomplete", packageName),
					},
					{
						Name: "Generate PR report",
						Run:  "ultrathink generate-pr-report --output gate-report.md",
					},
				},
			},
		},
	}
}

func releaseWorkflow(packageName string) workflow {
	return workflow{
		Name: "Documentation release",
		On: workflowOn{
			Push: &pushFilter{Tags: []string{"v*"}},
		},
		Jobs: workflowJobs{
			Docs: workflowJob{
				RunsOn: "ubuntu-latest",
				Steps: []workflowStep{
					{Uses: "actions/checkout@v4"},
					{
						Name: "Set up Python",
						Uses: "actions/setup-python@v5",
						With: map[string]string{"python-version": "3.12"},
					},
					{Name: "Install package", Run: "pip install -e ."},
					{
						Name: "Snapshot API",
						Run:  fmt.Sprintf("ultrathink snapshot --package %s --version ${GITHUB_REF_NAME#v}", packageName),
					},
					{
						Name: "Build documentation",
						Run:  fmt.Sprintf("ultrathink build --package %s --version ${GITHUB_REF_NAME#v}", packageName),
					},
				},
			},
		},
	}
}
