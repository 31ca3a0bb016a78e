package imports

import (
	"context"
	"testing"

	"github.com/google/uuid"

	jobsrepo "github.com/openlingo/openlingo-backend/internal/data/repos/jobs"
	"github.com/openlingo/openlingo-backend/internal/domain/content"
	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/ingestion/pipeline"
	"github.com/openlingo/openlingo-backend/internal/pkg/dbctx"
	"github.com/openlingo/openlingo-backend/internal/platform/apierr"
	"gorm.io/datatypes"
)

func validSource() content.RawSource {
	return content.RawSource{
		Kind:           content.SourceText,
		Payload:        "Some importable text. It has two sentences.",
		SourceLanguage: "en",
		TargetLanguage: "es",
	}
}

func TestSubmit(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	job, err := svc.Submit(ctx, validSource(), nil, pipeline.Options{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != domain.StatusQueued {
		t.Fatalf("status = %q", job.Status)
	}
	if job.Stage != domain.StageExtract {
		t.Fatalf("stage = %q", job.Stage)
	}
	if job.JobType != pipeline.JobTypeContentImport {
		t.Fatalf("job type = %q", job.JobType)
	}
	if len(job.Payload) == 0 {
		t.Fatalf("payload empty")
	}

	got, err := svc.Get(ctx, job.ID)
	if err != nil || got == nil {
		t.Fatalf("Get: %v %v", got, err)
	}
}

func TestSubmitStageSubsetSetsFirstStage(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	svc := NewService(store, nil)

	job, err := svc.Submit(context.Background(), validSource(), []string{"analyze", "split"}, pipeline.Options{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Stage != domain.StageAnalyze {
		t.Fatalf("stage = %q, want analyze", job.Stage)
	}
}

func TestSubmitRejectsInvalidSource(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	svc := NewService(store, nil)

	_, err := svc.Submit(context.Background(), content.RawSource{Kind: content.SourceText, Payload: " "}, nil, pipeline.Options{})
	if apierr.KindOf(err) != apierr.KindInput {
		t.Fatalf("err = %v, want input error", err)
	}
}

func TestCancel(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	job, err := svc.Submit(ctx, validSource(), nil, pipeline.Options{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ok, err := svc.Cancel(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("Cancel: ok=%v err=%v", ok, err)
	}
	row, _ := svc.Get(ctx, job.ID)
	if row.Status != domain.StatusCanceled {
		t.Fatalf("status = %q", row.Status)
	}
	if row.Message == "" {
		t.Fatalf("cancel should leave a message")
	}

	// Terminal jobs cannot be canceled again.
	ok, err = svc.Cancel(ctx, job.ID)
	if err != nil || ok {
		t.Fatalf("second Cancel: ok=%v err=%v", ok, err)
	}
}

func TestCancelKeepsPartialResult(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	job, _ := svc.Submit(ctx, validSource(), nil, pipeline.Options{})
	err := store.UpdateFields(dbctx.New(ctx), job.ID, map[string]interface{}{
		"result": datatypes.JSON(`{"orchestrator":{"version":1}}`),
	})
	if err != nil {
		t.Fatalf("seed result: %v", err)
	}

	if ok, err := svc.Cancel(ctx, job.ID); err != nil || !ok {
		t.Fatalf("Cancel: ok=%v err=%v", ok, err)
	}
	row, _ := svc.Get(ctx, job.ID)
	if len(row.Result) == 0 {
		t.Fatalf("cancel dropped the stored result")
	}
}

func TestRestart(t *testing.T) {
	store := jobsrepo.NewMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	job, _ := svc.Submit(ctx, validSource(), nil, pipeline.Options{})

	// Queued jobs are not restartable.
	_, err := svc.Restart(ctx, job.ID)
	if apierr.KindOf(err) != apierr.KindInput {
		t.Fatalf("restart queued: err = %v", err)
	}

	err = store.UpdateFields(dbctx.New(ctx), job.ID, map[string]interface{}{
		"status":     domain.StatusFailed,
		"attempts":   3,
		"error":      "translate failed",
		"error_kind": "translation_error",
		"result":     datatypes.JSON(`{"orchestrator":{"version":1}}`),
	})
	if err != nil {
		t.Fatalf("seed failure: %v", err)
	}

	ok, err := svc.Restart(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("Restart: ok=%v err=%v", ok, err)
	}
	row, _ := svc.Get(ctx, job.ID)
	if row.Status != domain.StatusQueued {
		t.Fatalf("status = %q", row.Status)
	}
	if row.Attempts != 0 || row.Error != "" || row.ErrorKind != "" {
		t.Fatalf("error fields not reset: %+v", row)
	}
	// The snapshot survives so the pipeline resumes rather than restarts.
	if len(row.Result) == 0 {
		t.Fatalf("restart dropped the orchestrator snapshot")
	}
}

func TestRestartUnknownJob(t *testing.T) {
	svc := NewService(jobsrepo.NewMemoryStore(), nil)
	ok, err := svc.Restart(context.Background(), uuid.New())
	if ok || err != nil {
		t.Fatalf("unknown job: ok=%v err=%v", ok, err)
	}
}
