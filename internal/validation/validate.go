// Package validation implements the §4.10 API→core contract: the checks a
// JobDefinition must pass before the API is allowed to insert or update it.
package validation

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/scheduleengine"
)

// Error collects every validation failure for a job definition, so the API
// boundary can return a structured list (§7: "Rejected at API boundary
// with structured error list").
type Error struct {
	Fields []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("job definition failed validation: %v", e.Fields)
}

func (e *Error) add(format string, args ...any) {
	e.Fields = append(e.Fields, fmt.Sprintf(format, args...))
}

func (e *Error) ok() bool {
	return len(e.Fields) == 0
}

// Job validates a JobDefinition per §4.10. It mutates job in-place to apply
// defaults (ExitCodes -> [0], Schedule.NextRunAt via SE.Initialize) the way
// the API layer is expected to before persisting.
func Job(job *domain.JobDefinition) error {
	verr := &Error{}

	if err := job.Executor.Validate(); err != nil {
		verr.add("executor: %s", err)
	} else if job.Executor.Type == domain.ExecutorPython {
		if err := pythonSyntaxCheck(job.Executor.Code); err != nil {
			verr.add("executor.code: %s", err)
		}
	}

	if job.Priority < 1 || job.Priority > 10 {
		verr.add("priority must be in [1,10], got %d", job.Priority)
	}
	if job.Retries < 0 {
		verr.add("retries must be >= 0, got %d", job.Retries)
	}
	if job.TimeoutSeconds < 0 {
		verr.add("timeout_seconds must be >= 0, got %d", job.TimeoutSeconds)
	}

	if len(job.Completion.ExitCodes) == 0 {
		job.Completion.ExitCodes = []int{0}
	}

	advanced, err := scheduleengine.Initialize(job.Schedule, timeNow())
	if err != nil {
		verr.add("schedule: %s", err)
	} else {
		job.Schedule = advanced
	}

	if !verr.ok() {
		return verr
	}
	return nil
}

// timeNow is a seam so tests can pin "now" without reaching into the
// scheduleengine package's own clock.
var timeNow = defaultNow

// pythonSyntaxCheck rejects a python executor's code at submission time if
// it doesn't even parse, the way original_source's
// test_validate_job_definition_catches_python_syntax expects
// (JobDefinition(executor=PythonExecutor(code="print('oops'")) fails
// validation). It shells out to the same interpreter family the Python
// executor adapter runs jobs with, asking it to parse without executing.
var pythonSyntaxCheck = func(code string) error {
	cmd := exec.Command("python3", "-c", "import ast, sys; ast.parse(sys.stdin.read())")
	cmd.Stdin = bytes.NewBufferString(code)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("syntax error: %s", msg)
	}
	return nil
}
