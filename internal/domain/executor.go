package domain

import "errors"

var (
	ErrInvalidExecutorType = errors.New("executor type must be one of shell, batch, python, external")
	ErrInvalidExecutorBody = errors.New("executor is missing its required script/code/command field")
	ErrInvalidVenvPath     = errors.New("environment.venv_path may only be set when environment.type is venv")
)

// ExecutorType discriminates the four job execution strategies §4.8 defines.
type ExecutorType string

const (
	ExecutorShell    ExecutorType = "shell"
	ExecutorBatch    ExecutorType = "batch"
	ExecutorPython   ExecutorType = "python"
	ExecutorExternal ExecutorType = "external"
)

// PythonEnvType selects how a python executor prepares its interpreter.
type PythonEnvType string

const (
	PythonEnvSystem PythonEnvType = "system"
	PythonEnvVenv   PythonEnvType = "venv"
	PythonEnvUV     PythonEnvType = "uv"
)

// PythonEnv describes how to obtain the interpreter for a python executor.
type PythonEnv struct {
	Type         PythonEnvType `json:"type"`
	VenvPath     string        `json:"venvPath,omitempty"`
	Requirements []string      `json:"requirements,omitempty"`
}

// GitSource optionally checks out a repository before execution. WorkDir on
// the Executor is resolved relative to Path (or the checkout root if Path
// is empty).
type GitSource struct {
	URL string `json:"url"`
	Ref string `json:"ref"`
	// Path is a subdirectory of the checkout treated as the execution base.
	Path string `json:"path,omitempty"`
}

// Executor is the recipe for one run attempt.
type Executor struct {
	Type ExecutorType `json:"type"`

	Script  string `json:"script,omitempty"`  // shell/batch
	Code    string `json:"code,omitempty"`    // python
	Command string `json:"command,omitempty"` // external

	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	WorkDir string            `json:"workDir,omitempty"`

	Environment *PythonEnv `json:"environment,omitempty"`
	Source      *GitSource `json:"source,omitempty"`
}

// Body returns the non-empty required field for the executor's type.
func (e Executor) Body() string {
	switch e.Type {
	case ExecutorShell, ExecutorBatch:
		return e.Script
	case ExecutorPython:
		return e.Code
	case ExecutorExternal:
		return e.Command
	default:
		return ""
	}
}

// Validate checks the static shape of an Executor, independent of the
// job-level validation in internal/validation.
func (e Executor) Validate() error {
	switch e.Type {
	case ExecutorShell, ExecutorBatch, ExecutorPython, ExecutorExternal:
	default:
		return ErrInvalidExecutorType
	}
	if e.Body() == "" {
		return ErrInvalidExecutorBody
	}
	if e.Type == ExecutorPython && e.Environment != nil {
		if e.Environment.VenvPath != "" && e.Environment.Type != PythonEnvVenv {
			return ErrInvalidVenvPath
		}
	}
	return nil
}
