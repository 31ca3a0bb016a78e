package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	jobsrepo "github.com/openlingo/openlingo-backend/internal/data/repos/jobs"
	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	jobrt "github.com/openlingo/openlingo-backend/internal/jobs/runtime"
	"github.com/openlingo/openlingo-backend/internal/pkg/dbctx"
	"github.com/openlingo/openlingo-backend/internal/platform/apierr"
	"github.com/openlingo/openlingo-backend/internal/services/notify"
)

type progressRecorder struct {
	pcts []int
}

func (r *progressRecorder) JobProgress(_ *domain.ImportJob, _ string, pct int, _ string) {
	r.pcts = append(r.pcts, pct)
}
func (r *progressRecorder) JobFailed(*domain.ImportJob, string, string) {}
func (r *progressRecorder) JobDone(job *domain.ImportJob)               { r.pcts = append(r.pcts, job.Progress) }

var _ notify.JobNotifier = (*progressRecorder)(nil)

func fastEngine() *Engine {
	e := NewEngine()
	e.MinPollInterval = time.Millisecond
	e.MaxPollInterval = 2 * time.Millisecond
	return e
}

func newJob(t *testing.T, store *jobsrepo.MemoryStore) *domain.ImportJob {
	t.Helper()
	job := &domain.ImportJob{
		JobType: "content_import",
		Status:  domain.StatusQueued,
		Stage:   domain.StageExtract,
	}
	if _, err := store.Create(dbctx.New(context.Background()), []*domain.ImportJob{job}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

// runToSettled drives the engine the way the claim loop would: repeated runs
// over a fresh row snapshot until the job reaches a terminal status.
func runToSettled(t *testing.T, e *Engine, store *jobsrepo.MemoryStore, job *domain.ImportJob, stages []Stage, rec notify.JobNotifier) *domain.ImportJob {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		row, err := store.GetByID(dbctx.New(context.Background()), job.ID)
		if err != nil || row == nil {
			t.Fatalf("get job: %v", err)
		}
		if row.Terminal() {
			return row
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never settled: status=%s stage=%s", row.Status, row.Stage)
		}
		ctx := jobrt.NewContext(context.Background(), row, store, rec)
		if err := e.Run(ctx, stages, nil); err != nil {
			t.Fatalf("engine run: %v", err)
		}
	}
}

func TestEngineRunsStagesInOrder(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	job := newJob(t, store)
	rec := &progressRecorder{}

	var order []string
	stages := []Stage{
		{Name: domain.StageExtract, StartPct: 0, EndPct: 15, Run: func(c *jobrt.Context, st *State) (map[string]any, error) {
			order = append(order, domain.StageExtract)
			return map[string]any{"text": "hello"}, nil
		}},
		{Name: domain.StageAnalyze, StartPct: 15, EndPct: 35, Run: func(c *jobrt.Context, st *State) (map[string]any, error) {
			order = append(order, domain.StageAnalyze)
			if st.Output(domain.StageExtract, "text") != "hello" {
				t.Errorf("earlier stage output not visible")
			}
			return nil, nil
		}},
	}

	ctx := jobrt.NewContext(context.Background(), job, store, rec)
	err := fastEngine().Run(ctx, stages, func(c *jobrt.Context, st *State) (map[string]any, error) {
		return map[string]any{"echo": st.Output(domain.StageExtract, "text")}, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(order) != 2 || order[0] != domain.StageExtract || order[1] != domain.StageAnalyze {
		t.Fatalf("stage order = %v", order)
	}
	row, _ := store.GetByID(dbctx.New(context.Background()), job.ID)
	if row.Status != domain.StatusSucceeded {
		t.Fatalf("status = %q (%s)", row.Status, row.Error)
	}
	if row.Progress != 100 || row.Stage != domain.StageComplete {
		t.Fatalf("progress=%d stage=%q", row.Progress, row.Stage)
	}
	var result map[string]any
	if err := json.Unmarshal(row.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result["echo"] != "hello" {
		t.Fatalf("finalize output missing: %v", result)
	}

	for i := 1; i < len(rec.pcts); i++ {
		if rec.pcts[i] < rec.pcts[i-1] {
			t.Fatalf("progress went backwards: %v", rec.pcts)
		}
	}
}

func TestEngineRetriesCollaboratorFailure(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	job := newJob(t, store)

	calls := 0
	stages := []Stage{{
		Name: domain.StageExtract, StartPct: 0, EndPct: 15,
		Retry: RetryPolicy{MaxAttempts: 3, MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
		Run: func(c *jobrt.Context, st *State) (map[string]any, error) {
			calls++
			if calls < 3 {
				return nil, apierr.Extraction("url_fetch", errors.New("connection refused"))
			}
			return map[string]any{"text": "finally"}, nil
		},
	}}

	row := runToSettled(t, fastEngine(), store, job, stages, nil)
	if row.Status != domain.StatusSucceeded {
		t.Fatalf("status = %q error=%q", row.Status, row.Error)
	}
	if calls != 3 {
		t.Fatalf("stage ran %d times, want 3", calls)
	}
}

func TestEngineRetryBudgetExhausted(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	job := newJob(t, store)

	calls := 0
	stages := []Stage{{
		Name: domain.StageExtract, StartPct: 0, EndPct: 15,
		Retry: RetryPolicy{MaxAttempts: 2, MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
		Run: func(c *jobrt.Context, st *State) (map[string]any, error) {
			calls++
			return nil, apierr.Extraction("url_fetch", errors.New("still down"))
		},
	}}

	row := runToSettled(t, fastEngine(), store, job, stages, nil)
	if row.Status != domain.StatusFailed {
		t.Fatalf("status = %q", row.Status)
	}
	if calls != 2 {
		t.Fatalf("stage ran %d times, want 2", calls)
	}
	if row.ErrorKind != string(apierr.KindExtraction) {
		t.Fatalf("error kind = %q", row.ErrorKind)
	}
}

func TestEngineDeterministicFailureNeverRetries(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	job := newJob(t, store)

	calls := 0
	stages := []Stage{{
		Name: domain.StageAnalyze, StartPct: 15, EndPct: 35,
		Retry: RetryPolicy{MaxAttempts: 5},
		Run: func(c *jobrt.Context, st *State) (map[string]any, error) {
			calls++
			return nil, apierr.Internal("heuristic_bug", errors.New("boom"))
		},
	}}

	ctx := jobrt.NewContext(context.Background(), job, store, nil)
	_ = fastEngine().Run(ctx, stages, nil)

	row, _ := store.GetByID(dbctx.New(context.Background()), job.ID)
	if row.Status != domain.StatusFailed {
		t.Fatalf("status = %q", row.Status)
	}
	if calls != 1 {
		t.Fatalf("deterministic failure ran %d times, want 1", calls)
	}
	if row.ErrorKind != string(apierr.KindInternal) {
		t.Fatalf("error kind = %q", row.ErrorKind)
	}
	if row.Stage != domain.StageAnalyze {
		t.Fatalf("failed stage = %q", row.Stage)
	}
	if row.PublicStage() != domain.StageError {
		t.Fatalf("public stage = %q", row.PublicStage())
	}
}

func TestEngineResumesAfterSucceededStages(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	job := newJob(t, store)

	extractCalls, analyzeCalls := 0, 0
	failAnalyze := true
	stages := []Stage{
		{Name: domain.StageExtract, StartPct: 0, EndPct: 15, Run: func(c *jobrt.Context, st *State) (map[string]any, error) {
			extractCalls++
			return map[string]any{"text": "kept"}, nil
		}},
		{Name: domain.StageAnalyze, StartPct: 15, EndPct: 35, Run: func(c *jobrt.Context, st *State) (map[string]any, error) {
			analyzeCalls++
			if failAnalyze {
				return nil, apierr.Internal("transient_bug", errors.New("bad deploy"))
			}
			return nil, nil
		}},
	}

	e := fastEngine()
	ctx := jobrt.NewContext(context.Background(), job, store, nil)
	_ = e.Run(ctx, stages, nil)

	row, _ := store.GetByID(dbctx.New(context.Background()), job.ID)
	if row.Status != domain.StatusFailed {
		t.Fatalf("first run: status = %q", row.Status)
	}

	// Restart semantics: requeue while keeping the snapshot in the result
	// column.
	err := store.UpdateFields(dbctx.New(context.Background()), job.ID, map[string]interface{}{
		"status": domain.StatusQueued, "attempts": 0, "error": "", "error_kind": "",
	})
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	failAnalyze = false

	row, _ = store.GetByID(dbctx.New(context.Background()), job.ID)
	ctx = jobrt.NewContext(context.Background(), row, store, nil)
	_ = e.Run(ctx, stages, nil)

	row, _ = store.GetByID(dbctx.New(context.Background()), job.ID)
	if row.Status != domain.StatusSucceeded {
		t.Fatalf("second run: status = %q error=%q", row.Status, row.Error)
	}
	if extractCalls != 1 {
		t.Fatalf("extract ran %d times, want 1 (succeeded stage must not rerun)", extractCalls)
	}
	if analyzeCalls != 2 {
		t.Fatalf("analyze ran %d times, want 2", analyzeCalls)
	}
}

func TestEngineRejectsOutOfOrderStages(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	job := newJob(t, store)

	stages := []Stage{
		{Name: domain.StageAlign, StartPct: 50, EndPct: 75, Run: func(*jobrt.Context, *State) (map[string]any, error) { return nil, nil }},
		{Name: domain.StageExtract, StartPct: 0, EndPct: 15, Run: func(*jobrt.Context, *State) (map[string]any, error) { return nil, nil }},
	}
	ctx := jobrt.NewContext(context.Background(), job, store, nil)
	_ = fastEngine().Run(ctx, stages, nil)

	row, _ := store.GetByID(dbctx.New(context.Background()), job.ID)
	if row.Status != domain.StatusFailed {
		t.Fatalf("status = %q", row.Status)
	}
	if row.ErrorKind != string(apierr.KindInternal) {
		t.Fatalf("error kind = %q", row.ErrorKind)
	}
}

func TestEngineStageTimeout(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	job := newJob(t, store)

	stages := []Stage{{
		Name: domain.StageExtract, StartPct: 0, EndPct: 15,
		Timeout: 10 * time.Millisecond,
		Run: func(*jobrt.Context, *State) (map[string]any, error) {
			time.Sleep(200 * time.Millisecond)
			return nil, nil
		},
	}}
	ctx := jobrt.NewContext(context.Background(), job, store, nil)
	_ = fastEngine().Run(ctx, stages, nil)

	row, _ := store.GetByID(dbctx.New(context.Background()), job.ID)
	if row.Status != domain.StatusFailed {
		t.Fatalf("status = %q", row.Status)
	}
	if row.ErrorKind != string(apierr.KindTimeout) {
		t.Fatalf("error kind = %q", row.ErrorKind)
	}
}

func TestEngineStagePanicBecomesInternal(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	job := newJob(t, store)

	stages := []Stage{{
		Name: domain.StageExtract, StartPct: 0, EndPct: 15,
		Run: func(*jobrt.Context, *State) (map[string]any, error) {
			panic("unexpected")
		},
	}}
	ctx := jobrt.NewContext(context.Background(), job, store, nil)
	_ = fastEngine().Run(ctx, stages, nil)

	row, _ := store.GetByID(dbctx.New(context.Background()), job.ID)
	if row.Status != domain.StatusFailed || row.ErrorKind != string(apierr.KindInternal) {
		t.Fatalf("status=%q kind=%q", row.Status, row.ErrorKind)
	}
}

func TestValidateStageNames(t *testing.T) {
	cases := []struct {
		name  string
		in    []string
		out   []string
		valid bool
	}{
		{"full pipeline", []string{"extract", "analyze", "transform", "align", "split", "tag"}, []string{"extract", "analyze", "transform", "align", "split", "tag"}, true},
		{"ordered subset", []string{"extract", "align", "tag"}, []string{"extract", "align", "tag"}, true},
		{"trailing complete tolerated", []string{"extract", "analyze", "complete"}, []string{"extract", "analyze"}, true},
		{"mixed case trimmed", []string{" Extract ", "ANALYZE"}, []string{"extract", "analyze"}, true},
		{"out of order", []string{"align", "extract"}, nil, false},
		{"duplicate", []string{"extract", "extract"}, nil, false},
		{"unknown", []string{"extract", "publish"}, nil, false},
		{"complete not last", []string{"complete", "extract"}, nil, false},
		{"empty list", nil, []string{}, true},
	}
	for _, c := range cases {
		got, err := ValidateStageNames(c.in)
		if c.valid && err != nil {
			t.Fatalf("%s: unexpected error %v", c.name, err)
		}
		if !c.valid {
			if err == nil {
				t.Fatalf("%s: expected error, got %v", c.name, got)
			}
			continue
		}
		if len(got) != len(c.out) {
			t.Fatalf("%s: got %v, want %v", c.name, got, c.out)
		}
		for i := range got {
			if got[i] != c.out[i] {
				t.Fatalf("%s: got %v, want %v", c.name, got, c.out)
			}
		}
	}
}

func TestValidateStages(t *testing.T) {
	ok := []Stage{
		{Name: domain.StageExtract, StartPct: 0, EndPct: 15},
		{Name: domain.StageAlign, StartPct: 50, EndPct: 75},
	}
	if err := ValidateStages(ok); err != nil {
		t.Fatalf("valid subset rejected: %v", err)
	}

	bad := []Stage{
		{Name: domain.StageExtract, StartPct: 0, EndPct: 50},
		{Name: domain.StageAnalyze, StartPct: 15, EndPct: 35},
	}
	if err := ValidateStages(bad); err == nil {
		t.Fatalf("shrinking EndPct accepted")
	}

	if err := ValidateStages([]Stage{{Name: domain.StageExtract, StartPct: 20, EndPct: 10}}); err == nil {
		t.Fatalf("EndPct < StartPct accepted")
	}
}
