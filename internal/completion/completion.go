// Package completion implements the Completion Evaluator (§4.9): a pure
// function deciding whether a run's exit code and captured output satisfy
// its success criteria.
//
// Grounded line-for-line on original_source/worker/utils/completion.py.
package completion

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hydra-scheduler/hydra/internal/domain"
)

// Evaluate checks exit code membership, then each contains/not-contains
// list in order, short-circuiting on the first failing check.
func Evaluate(exitCode int, stdout, stderr string, criteria domain.Completion) (ok bool, reason string) {
	exitCodes := criteria.ExitCodes
	if len(exitCodes) == 0 {
		exitCodes = []int{0}
	}

	if !slices.Contains(exitCodes, exitCode) {
		return false, fmt.Sprintf("exit code %d not in allowed set %v", exitCode, exitCodes)
	}

	if missing := firstMissing(stdout, criteria.StdoutContains); missing != "" {
		return false, fmt.Sprintf("stdout missing required substring %q", missing)
	}
	if present := firstPresent(stdout, criteria.StdoutNotContains); present != "" {
		return false, fmt.Sprintf("stdout contains forbidden substring %q", present)
	}
	if missing := firstMissing(stderr, criteria.StderrContains); missing != "" {
		return false, fmt.Sprintf("stderr missing required substring %q", missing)
	}
	if present := firstPresent(stderr, criteria.StderrNotContains); present != "" {
		return false, fmt.Sprintf("stderr contains forbidden substring %q", present)
	}

	return true, "criteria satisfied"
}

func firstMissing(text string, required []string) string {
	for _, s := range required {
		if !strings.Contains(text, s) {
			return s
		}
	}
	return ""
}

func firstPresent(text string, forbidden []string) string {
	for _, s := range forbidden {
		if strings.Contains(text, s) {
			return s
		}
	}
	return ""
}
