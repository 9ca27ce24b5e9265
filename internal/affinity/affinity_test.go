package affinity_test

import (
	"testing"

	"github.com/hydra-scheduler/hydra/internal/affinity"
	"github.com/hydra-scheduler/hydra/internal/domain"
)

func TestPasses_EmptyAffinityAllowsAny(t *testing.T) {
	w := domain.Worker{OS: "linux", Host: "h1", Subnet: "10.0.0.0/24", DeploymentType: "prod"}
	job := domain.JobDefinition{User: "alice"}
	if !affinity.Passes(job, w) {
		t.Fatal("expected empty affinity to pass any worker")
	}
}

func TestPasses_OSMismatch(t *testing.T) {
	w := domain.Worker{OS: "windows"}
	job := domain.JobDefinition{Affinity: domain.Affinity{OS: []string{"linux", "darwin"}}}
	if affinity.Passes(job, w) {
		t.Fatal("expected OS mismatch to fail")
	}
}

func TestPasses_TagsRequiresAllPresent(t *testing.T) {
	w := domain.Worker{Tags: []string{"gpu", "fast"}}
	if !affinity.Passes(domain.JobDefinition{Affinity: domain.Affinity{Tags: []string{"gpu"}}}, w) {
		t.Fatal("expected subset tag requirement to pass")
	}
	if affinity.Passes(domain.JobDefinition{Affinity: domain.Affinity{Tags: []string{"gpu", "slow"}}}, w) {
		t.Fatal("expected missing tag to fail")
	}
}

// TestPasses_AllowedUsers matches original_source's test_scheduler.py
// worker_bad_user case: the allow-list lives on the worker, and it's the
// job's submitting user that's checked against it.
func TestPasses_AllowedUsers(t *testing.T) {
	w := domain.Worker{AllowedUsers: []string{"alice", "Bob"}}
	if !affinity.Passes(domain.JobDefinition{User: "bob"}, w) {
		t.Fatal("expected case-insensitive user match to pass")
	}
	if affinity.Passes(domain.JobDefinition{User: "carol"}, w) {
		t.Fatal("expected user not in worker's allow-list to fail")
	}
}

func TestPasses_EmptyWorkerAllowListIsWildcard(t *testing.T) {
	w := domain.Worker{}
	if !affinity.Passes(domain.JobDefinition{User: "anyone"}, w) {
		t.Fatal("expected empty worker allow-list to accept any job user")
	}
}

func TestPasses_HostnameSubnetDeploymentType(t *testing.T) {
	w := domain.Worker{Host: "web-1", Subnet: "10.1.2.0/24", DeploymentType: "staging"}
	job := domain.JobDefinition{Affinity: domain.Affinity{
		Hostnames:       []string{"web-1", "web-2"},
		Subnets:         []string{"10.1."},
		DeploymentTypes: []string{"staging"},
	}}
	if !affinity.Passes(job, w) {
		t.Fatal("expected all three dimensions to pass")
	}

	job.Affinity.Subnets = []string{"10.9."}
	if affinity.Passes(job, w) {
		t.Fatal("expected subnet prefix mismatch to fail")
	}
}

func TestSelectBest_PicksLowestUtilization(t *testing.T) {
	candidates := []domain.Worker{
		{WorkerID: "w1", MaxConcurrency: 10, CurrentRunning: 8},
		{WorkerID: "w2", MaxConcurrency: 10, CurrentRunning: 2},
		{WorkerID: "w3", MaxConcurrency: 10, CurrentRunning: 5},
	}
	best := affinity.SelectBest(candidates)
	if best == nil || best.WorkerID != "w2" {
		t.Fatalf("expected w2 to have lowest utilization, got %+v", best)
	}
}

func TestSelectBest_TiesBrokenByRunningCount(t *testing.T) {
	candidates := []domain.Worker{
		{WorkerID: "w1", MaxConcurrency: 20, CurrentRunning: 10},
		{WorkerID: "w2", MaxConcurrency: 10, CurrentRunning: 5},
	}
	// both at 50% utilization; w2 has fewer running jobs
	best := affinity.SelectBest(candidates)
	if best == nil || best.WorkerID != "w2" {
		t.Fatalf("expected w2 to win the running-count tiebreak, got %+v", best)
	}
}

func TestSelectBest_EmptyReturnsNil(t *testing.T) {
	if affinity.SelectBest(nil) != nil {
		t.Fatal("expected nil for no candidates")
	}
}
