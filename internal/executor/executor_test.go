package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hydra-scheduler/hydra/internal/domain"
)

func TestRun_ShellSuccess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var lines []string
	res, err := Run(ctx, domain.Executor{
		Type:   domain.ExecutorShell,
		Script: "echo hello; echo world 1>&2",
	}, func(stream, line string) {
		lines = append(lines, stream+":"+line)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "hello") {
		t.Fatalf("stdout = %q, want to contain hello", res.Stdout)
	}
	if !strings.Contains(res.Stderr, "world") {
		t.Fatalf("stderr = %q, want to contain world", res.Stderr)
	}
	if len(lines) == 0 {
		t.Fatal("expected streamed output lines")
	}
}

func TestRun_ShellExitCode(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := Run(ctx, domain.Executor{
		Type:   domain.ExecutorShell,
		Script: "exit 7",
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 7 {
		t.Fatalf("exit code = %d, want 7", res.ExitCode)
	}
}

func TestRun_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := Run(ctx, domain.Executor{
		Type:   domain.ExecutorShell,
		Script: "sleep 5",
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected TimedOut = true")
	}
}

func TestRun_External(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := Run(ctx, domain.Executor{
		Type:    domain.ExecutorExternal,
		Command: "/bin/echo",
		Args:    []string{"external-ok"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 || !strings.Contains(res.Stdout, "external-ok") {
		t.Fatalf("unexpected result: %+v", res)
	}
}
