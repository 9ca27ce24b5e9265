package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/eventbus"
)

// fakeJobRepo is a minimal in-memory repository.JobRepository, in the style
// of the teacher's fakeUserRepo in usecase/auth_test.go.
type fakeJobRepo struct {
	jobs map[string]*domain.JobDefinition
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*domain.JobDefinition)}
}

func (f *fakeJobRepo) Create(ctx context.Context, job *domain.JobDefinition) (*domain.JobDefinition, error) {
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, domainName, id string) (*domain.JobDefinition, error) {
	job, ok := f.jobs[id]
	if !ok || job.Domain != domainName {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobRepo) GetByIDAnyDomain(ctx context.Context, id string) (*domain.JobDefinition, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobRepo) List(ctx context.Context, domainName string, limit int) ([]*domain.JobDefinition, error) {
	var out []*domain.JobDefinition
	for _, j := range f.jobs {
		if j.Domain == domainName {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) Update(ctx context.Context, job *domain.JobDefinition) (*domain.JobDefinition, error) {
	if _, ok := f.jobs[job.ID]; !ok {
		return nil, domain.ErrJobNotFound
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobRepo) DueForSchedule(ctx context.Context, domainName string, now time.Time, limit int) ([]*domain.JobDefinition, error) {
	return nil, nil
}

func (f *fakeJobRepo) AdvanceSchedule(ctx context.Context, id string, previousNextRunAt *time.Time, advanced domain.Schedule) (bool, error) {
	return false, nil
}

type fakeRunRepo struct {
	runs map[string][]*domain.JobRun
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[string][]*domain.JobRun)}
}

func (f *fakeRunRepo) Create(ctx context.Context, run *domain.JobRun) (*domain.JobRun, error) {
	f.runs[run.JobID] = append(f.runs[run.JobID], run)
	return run, nil
}

func (f *fakeRunRepo) Update(ctx context.Context, run *domain.JobRun) (*domain.JobRun, error) {
	return run, nil
}

func (f *fakeRunRepo) GetByID(ctx context.Context, id string) (*domain.JobRun, error) {
	for _, runs := range f.runs {
		for _, r := range runs {
			if r.ID == id {
				return r, nil
			}
		}
	}
	return nil, domain.ErrRunNotFound
}

func (f *fakeRunRepo) ListByJobID(ctx context.Context, jobID string) ([]*domain.JobRun, error) {
	return f.runs[jobID], nil
}

func (f *fakeRunRepo) ListStaleRunning(ctx context.Context, domainName, workerID string, cutoff time.Time) ([]*domain.JobRun, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventbusForTest() *eventbus.Bus {
	return eventbus.New()
}

func cronJob() *domain.JobDefinition {
	return &domain.JobDefinition{
		Name: "nightly-report",
		User: "alice",
		Executor: domain.Executor{
			Type:   domain.ExecutorShell,
			Script: "echo hi",
		},
		Schedule: domain.Schedule{
			Mode:     domain.ScheduleCron,
			CronExpr: "0 2 * * *",
			Enabled:  true,
		},
		Priority: 5,
	}
}

func TestJobUsecase_SubmitCronDoesNotEnqueue(t *testing.T) {
	jobs := newFakeJobRepo()
	runs := newFakeRunRepo()
	uc := NewJobUsecase(jobs, runs, nil, eventbusForTest(), testLogger())

	created, err := uc.Submit(context.Background(), "acme", cronJob())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if created.Domain != "acme" {
		t.Errorf("domain = %q, want acme", created.Domain)
	}
	if created.Schedule.NextRunAt == nil {
		t.Error("expected NextRunAt to be initialized for a cron schedule")
	}
}

func TestJobUsecase_SubmitRejectsInvalidJob(t *testing.T) {
	jobs := newFakeJobRepo()
	runs := newFakeRunRepo()
	uc := NewJobUsecase(jobs, runs, nil, eventbusForTest(), testLogger())

	bad := cronJob()
	bad.Priority = 99

	if _, err := uc.Submit(context.Background(), "acme", bad); err == nil {
		t.Fatal("expected validation error for out-of-range priority")
	}
}

func TestJobUsecase_GetAndList(t *testing.T) {
	jobs := newFakeJobRepo()
	runs := newFakeRunRepo()
	uc := NewJobUsecase(jobs, runs, nil, eventbusForTest(), testLogger())

	created, err := uc.Submit(context.Background(), "acme", cronJob())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got, err := uc.Get(context.Background(), "acme", created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("got ID %q, want %q", got.ID, created.ID)
	}

	if _, err := uc.Get(context.Background(), "other-domain", created.ID); err == nil {
		t.Error("expected ErrJobNotFound when scoped to the wrong domain")
	}

	list, err := uc.List(context.Background(), "acme", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List returned %d jobs, want 1", len(list))
	}
}

func TestJobUsecase_Update(t *testing.T) {
	jobs := newFakeJobRepo()
	runs := newFakeRunRepo()
	uc := NewJobUsecase(jobs, runs, nil, eventbusForTest(), testLogger())

	created, err := uc.Submit(context.Background(), "acme", cronJob())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	patch := cronJob()
	patch.Name = "renamed"
	patch.Priority = 9

	updated, err := uc.Update(context.Background(), "acme", created.ID, patch)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "renamed" || updated.Priority != 9 {
		t.Errorf("update did not apply: %+v", updated)
	}
}

func TestJobUsecase_ListRuns_Tails(t *testing.T) {
	jobs := newFakeJobRepo()
	runs := newFakeRunRepo()
	uc := NewJobUsecase(jobs, runs, nil, eventbusForTest(), testLogger())

	created, _ := uc.Submit(context.Background(), "acme", cronJob())

	longOutput := make([]byte, TailLen+500)
	for i := range longOutput {
		longOutput[i] = 'x'
	}
	start := time.Now().Add(-time.Minute)
	end := time.Now()
	runs.Create(context.Background(), &domain.JobRun{
		ID:      "run-1",
		JobID:   created.ID,
		Domain:  "acme",
		Status:  domain.RunSuccess,
		StartTS: &start,
		EndTS:   &end,
		Stdout:  string(longOutput),
	})

	summaries, err := uc.ListRuns(context.Background(), "acme", created.ID)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	if len(summaries[0].StdoutTail) != TailLen {
		t.Errorf("StdoutTail length = %d, want %d", len(summaries[0].StdoutTail), TailLen)
	}
	if summaries[0].DurationMS <= 0 {
		t.Error("expected positive duration")
	}
}
