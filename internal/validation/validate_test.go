package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/hydra-scheduler/hydra/internal/domain"
)

func withFixedClock(t *testing.T, now time.Time) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = orig })
}

func withStubPythonCheck(t *testing.T, fn func(string) error) {
	t.Helper()
	orig := pythonSyntaxCheck
	pythonSyntaxCheck = fn
	t.Cleanup(func() { pythonSyntaxCheck = orig })
}

func baseJob() *domain.JobDefinition {
	return &domain.JobDefinition{
		Name:     "test",
		User:     "alice",
		Priority: 5,
		Executor: domain.Executor{Type: domain.ExecutorShell, Script: "echo hi"},
		Schedule: domain.Schedule{Mode: domain.ScheduleImmediate, Enabled: true},
	}
}

func TestJob_ShellPassesWithoutPythonCheck(t *testing.T) {
	withFixedClock(t, time.Now())
	withStubPythonCheck(t, func(string) error {
		t.Fatal("python syntax check must not run for a shell executor")
		return nil
	})

	if err := Job(baseJob()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJob_PythonValidSyntaxPasses(t *testing.T) {
	withFixedClock(t, time.Now())
	withStubPythonCheck(t, func(code string) error { return nil })

	job := baseJob()
	job.Executor = domain.Executor{Type: domain.ExecutorPython, Code: "print('hello')"}
	if err := Job(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestJob_PythonSyntaxErrorFails matches original_source's
// test_validate_job_definition_catches_python_syntax: a python executor
// whose code doesn't parse is rejected at the API boundary.
func TestJob_PythonSyntaxErrorFails(t *testing.T) {
	withFixedClock(t, time.Now())
	withStubPythonCheck(t, func(code string) error {
		return errors.New("syntax error: unexpected EOF while parsing")
	})

	job := baseJob()
	job.Executor = domain.Executor{Type: domain.ExecutorPython, Code: "print('oops'"}

	err := Job(job)
	if err == nil {
		t.Fatal("expected validation error for unparseable python")
	}
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	found := false
	for _, f := range verr.Fields {
		if f == "executor.code: syntax error: unexpected EOF while parsing" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected executor.code field in %v", verr.Fields)
	}
}

func TestJob_PriorityOutOfRange(t *testing.T) {
	withFixedClock(t, time.Now())
	job := baseJob()
	job.Priority = 0
	if err := Job(job); err == nil {
		t.Fatal("expected error for out-of-range priority")
	}
}
