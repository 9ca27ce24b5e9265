package completion_test

import (
	"strings"
	"testing"

	"github.com/hydra-scheduler/hydra/internal/completion"
	"github.com/hydra-scheduler/hydra/internal/domain"
)

func TestEvaluate_DefaultExitCodesIsZero(t *testing.T) {
	ok, reason := completion.Evaluate(0, "", "", domain.Completion{})
	if !ok {
		t.Fatalf("expected ok, got reason %q", reason)
	}

	ok, _ = completion.Evaluate(1, "", "", domain.Completion{})
	if ok {
		t.Fatal("expected exit code 1 to fail default [0] criteria")
	}
}

func TestEvaluate_ExitCodeMembership(t *testing.T) {
	crit := domain.Completion{ExitCodes: []int{0, 2}}
	if ok, _ := completion.Evaluate(2, "", "", crit); !ok {
		t.Fatal("expected exit code 2 to satisfy criteria")
	}
	ok, reason := completion.Evaluate(1, "", "", crit)
	if ok || !strings.Contains(reason, "exit code 1") {
		t.Fatalf("expected failure mentioning exit code 1, got ok=%v reason=%q", ok, reason)
	}
}

func TestEvaluate_StdoutContainsAllRequired(t *testing.T) {
	crit := domain.Completion{ExitCodes: []int{0}, StdoutContains: []string{"ok", "done"}}
	if ok, _ := completion.Evaluate(0, "ok done", "", crit); !ok {
		t.Fatal("expected both substrings present to satisfy criteria")
	}
	ok, reason := completion.Evaluate(0, "ok", "", crit)
	if ok || !strings.Contains(reason, "done") {
		t.Fatalf("expected failure mentioning missing 'done', got ok=%v reason=%q", ok, reason)
	}
}

func TestEvaluate_StdoutNotContainsForbidden(t *testing.T) {
	crit := domain.Completion{ExitCodes: []int{0}, StdoutNotContains: []string{"panic"}}
	ok, reason := completion.Evaluate(0, "it panicked", "", crit)
	if ok || !strings.Contains(reason, "panic") {
		t.Fatalf("expected failure mentioning 'panic', got ok=%v reason=%q", ok, reason)
	}
}

func TestEvaluate_StderrChecks(t *testing.T) {
	crit := domain.Completion{
		ExitCodes:         []int{0},
		StderrContains:    []string{"warn"},
		StderrNotContains: []string{"fatal"},
	}
	if ok, _ := completion.Evaluate(0, "", "warn: low disk", crit); !ok {
		t.Fatal("expected stderr criteria to be satisfied")
	}
	ok, _ := completion.Evaluate(0, "", "fatal error", crit)
	if ok {
		t.Fatal("expected forbidden stderr substring to fail")
	}
}

func TestEvaluate_AllGreenReason(t *testing.T) {
	ok, reason := completion.Evaluate(0, "", "", domain.Completion{})
	if !ok || reason != "criteria satisfied" {
		t.Fatalf("expected (true, \"criteria satisfied\"), got (%v, %q)", ok, reason)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	crit := domain.Completion{ExitCodes: []int{0}, StdoutContains: []string{"x"}}
	ok1, reason1 := completion.Evaluate(0, "x", "", crit)
	ok2, reason2 := completion.Evaluate(0, "x", "", crit)
	if ok1 != ok2 || reason1 != reason2 {
		t.Fatalf("expected identical results across calls, got (%v,%q) vs (%v,%q)", ok1, reason1, ok2, reason2)
	}
}
