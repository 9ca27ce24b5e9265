// Package affinity implements the §4.6 eligibility predicate and the §4.7
// least-load worker selection.
//
// Grounded on original_source/scheduler/utils/affinity.py and selectors.py,
// extended with the hostname/subnet/deployment-type predicates §4.6 adds
// beyond the original.
package affinity

import (
	"strings"

	"github.com/hydra-scheduler/hydra/internal/domain"
)

// Passes reports whether worker is an eligible candidate for job. An empty
// allow-list on either side of a dimension is a wildcard. All comparisons
// are case-insensitive except subnet, which is a literal prefix string.
//
// The user check is worker-owned: §4.6 "Job user allowed (empty worker
// allow-list ⇒ wildcard)" means worker.AllowedUsers is the allow-list and
// job.User is the value being checked against it, matching
// original_source/scheduler/utils/affinity.py's
// user_allowed(job.user, worker.allowed_users).
func Passes(job domain.JobDefinition, worker domain.Worker) bool {
	if !osMatches(job.Affinity.OS, worker.OS) {
		return false
	}
	if !tagsMatch(job.Affinity.Tags, worker.Tags) {
		return false
	}
	if !userAllowed(worker.AllowedUsers, job.User) {
		return false
	}
	if !listAllows(job.Affinity.Hostnames, worker.Host) {
		return false
	}
	if !subnetAllows(job.Affinity.Subnets, worker.Subnet) {
		return false
	}
	if !listAllows(job.Affinity.DeploymentTypes, worker.DeploymentType) {
		return false
	}
	return true
}

func osMatches(required []string, workerOS string) bool {
	if len(required) == 0 {
		return true
	}
	for _, os := range required {
		if strings.EqualFold(os, workerOS) {
			return true
		}
	}
	return false
}

func tagsMatch(required []string, workerTags []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(workerTags))
	for _, t := range workerTags {
		have[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range required {
		if _, ok := have[strings.ToLower(t)]; !ok {
			return false
		}
	}
	return true
}

func userAllowed(allowList []string, jobUser string) bool {
	if len(allowList) == 0 {
		return true
	}
	for _, u := range allowList {
		if strings.EqualFold(u, jobUser) {
			return true
		}
	}
	return false
}

func listAllows(allowList []string, value string) bool {
	if len(allowList) == 0 {
		return true
	}
	for _, v := range allowList {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

func subnetAllows(allowList []string, subnet string) bool {
	if len(allowList) == 0 {
		return true
	}
	for _, prefix := range allowList {
		if strings.HasPrefix(subnet, prefix) {
			return true
		}
	}
	return false
}

// SelectBest returns the candidate with the smallest (utilization, running
// count) tuple, or nil if candidates is empty. Ties among equal load are
// broken by input order, which callers should preserve as store iteration
// order (§4.7: "unspecified — tests must tolerate either among equals").
func SelectBest(candidates []domain.Worker) *domain.Worker {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	bestUtil, bestRunning := best.Load()
	for _, w := range candidates[1:] {
		util, running := w.Load()
		if util < bestUtil || (util == bestUtil && running < bestRunning) {
			best, bestUtil, bestRunning = w, util, running
		}
	}
	return &best
}
