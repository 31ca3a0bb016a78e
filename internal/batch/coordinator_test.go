package batch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	jobsrepo "github.com/openlingo/openlingo-backend/internal/data/repos/jobs"
	"github.com/openlingo/openlingo-backend/internal/domain/content"
	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/ingestion/analyzer"
	"github.com/openlingo/openlingo-backend/internal/ingestion/pipeline"
	"github.com/openlingo/openlingo-backend/internal/pkg/dbctx"
	"github.com/openlingo/openlingo-backend/internal/platform/apierr"
	"github.com/openlingo/openlingo-backend/internal/services/imports"
)

func newTestCoordinator() (*Coordinator, *jobsrepo.MemoryStore) {
	store := jobsrepo.NewMemoryStore()
	svc := imports.NewService(store, nil)
	checker := NewChecker(analyzer.New(analyzer.Config{}), 2, 0.6, nil)
	return NewCoordinator(store, store.Batches(), svc, checker, nil), store
}

func textSource(payload string) content.RawSource {
	return content.RawSource{
		Kind:           content.SourceText,
		Payload:        payload,
		SourceLanguage: "en",
		TargetLanguage: "es",
	}
}

func TestSubmitBatchCreatesMembers(t *testing.T) {
	coord, store := newTestCoordinator()
	ctx := context.Background()

	batch, members, err := coord.SubmitBatch(ctx, []content.RawSource{
		textSource("First source text for the batch."),
		textSource("Second source text for the batch."),
	}, nil, pipeline.Options{})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	for _, m := range members {
		if m.BatchID == nil || *m.BatchID != batch.ID {
			t.Fatalf("member %s missing batch id", m.ID)
		}
		if m.Status != domain.StatusQueued {
			t.Fatalf("member status = %q", m.Status)
		}
	}
	listed, err := store.ListByBatch(dbctx.New(ctx), batch.ID)
	if err != nil || len(listed) != 2 {
		t.Fatalf("ListByBatch: %v (%d rows)", err, len(listed))
	}
}

func TestSubmitBatchRejectsEmptyAndInvalid(t *testing.T) {
	coord, _ := newTestCoordinator()
	ctx := context.Background()

	if _, _, err := coord.SubmitBatch(ctx, nil, nil, pipeline.Options{}); apierr.KindOf(err) != apierr.KindInput {
		t.Fatalf("empty batch: err = %v", err)
	}

	// One bad source rejects the whole submission; nothing is created.
	_, _, err := coord.SubmitBatch(ctx, []content.RawSource{
		textSource("A valid source."),
		{Kind: content.SourceText, Payload: "  "},
	}, nil, pipeline.Options{})
	if apierr.KindOf(err) != apierr.KindInput {
		t.Fatalf("invalid member: err = %v", err)
	}
}

func TestBatchStatusAggregation(t *testing.T) {
	coord, store := newTestCoordinator()
	ctx := context.Background()

	batch, members, err := coord.SubmitBatch(ctx, []content.RawSource{
		textSource("Source one."),
		textSource("Source two."),
	}, nil, pipeline.Options{})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	st, err := coord.BatchStatus(ctx, batch.ID)
	if err != nil {
		t.Fatalf("BatchStatus: %v", err)
	}
	if st.AggregateStatus != domain.BatchPending {
		t.Fatalf("aggregate = %q, want pending", st.AggregateStatus)
	}
	if len(st.Members) != 2 {
		t.Fatalf("got %d member views", len(st.Members))
	}

	setStatus(t, store, members[0].ID, domain.StatusSucceeded)
	st, _ = coord.BatchStatus(ctx, batch.ID)
	if st.AggregateStatus != domain.BatchPartial {
		t.Fatalf("aggregate = %q, want partial", st.AggregateStatus)
	}

	setStatus(t, store, members[1].ID, domain.StatusSucceeded)
	st, _ = coord.BatchStatus(ctx, batch.ID)
	if st.AggregateStatus != domain.BatchComplete {
		t.Fatalf("aggregate = %q, want complete", st.AggregateStatus)
	}

	// Rereads are idempotent; nothing is cached or mutated.
	again, _ := coord.BatchStatus(ctx, batch.ID)
	if again.AggregateStatus != st.AggregateStatus {
		t.Fatalf("status drifted between reads")
	}
}

func TestBatchStatusUnknownBatch(t *testing.T) {
	coord, _ := newTestCoordinator()
	st, err := coord.BatchStatus(context.Background(), uuid.New())
	if err != nil || st != nil {
		t.Fatalf("unknown batch: st=%v err=%v", st, err)
	}
}

func TestRunChecksRejectsUnsettledBatch(t *testing.T) {
	coord, _ := newTestCoordinator()
	ctx := context.Background()

	batch, _, err := coord.SubmitBatch(ctx, []content.RawSource{textSource("Still running.")}, nil, pipeline.Options{})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	_, err = coord.RunChecks(ctx, batch.ID, false)
	if apierr.KindOf(err) != apierr.KindInput {
		t.Fatalf("unsettled batch: err = %v", err)
	}
}

func TestRunChecksScoresAndClustersDuplicates(t *testing.T) {
	coord, store := newTestCoordinator()
	ctx := context.Background()

	batch, members, err := coord.SubmitBatch(ctx, []content.RawSource{
		textSource("Source one."),
		textSource("Source two."),
		textSource("Source three."),
	}, nil, pipeline.Options{})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	dupCourse := content.CourseOutput{
		Title:       "City Guide",
		Description: "a walking tour of the old town center",
		Lessons: []content.LessonDraft{
			{Title: "Lesson 1", RawContent: "The old town square teh morning light. Visitors gather near the fountain before the tour begins."},
		},
	}
	otherCourse := content.CourseOutput{
		Title:       "Recipe Collection",
		Description: "weeknight pasta dishes for busy cooks",
		Lessons: []content.LessonDraft{
			{Title: "Lesson 1", RawContent: "Boil the pasta until tender. Meanwhile warm the sauce gently in a wide pan."},
		},
	}
	finishWithCourse(t, store, members[0].ID, dupCourse)
	finishWithCourse(t, store, members[1].ID, dupCourse)
	finishWithCourse(t, store, members[2].ID, otherCourse)

	rep, err := coord.RunChecks(ctx, batch.ID, true)
	if err != nil {
		t.Fatalf("RunChecks: %v", err)
	}
	if len(rep.Members) != 3 {
		t.Fatalf("got %d member reports, want 3", len(rep.Members))
	}
	for i := 1; i < len(rep.Members); i++ {
		if rep.Members[i-1].JobID.String() > rep.Members[i].JobID.String() {
			t.Fatalf("member reports not sorted by job id")
		}
	}
	fixedSeen := false
	for _, m := range rep.Members {
		if m.QualityScore < 0 || m.QualityScore > 100 {
			t.Fatalf("quality score %d out of range", m.QualityScore)
		}
		if m.FixedCount > 0 {
			fixedSeen = true
		}
	}
	if !fixedSeen {
		t.Fatalf("auto fix should have corrected the seeded misspelling")
	}
	if len(rep.Duplicates) != 1 {
		t.Fatalf("got %d duplicate clusters, want 1: %+v", len(rep.Duplicates), rep.Duplicates)
	}
	if len(rep.Duplicates[0].JobIDs) != 2 {
		t.Fatalf("cluster size = %d, want 2", len(rep.Duplicates[0].JobIDs))
	}
}

func TestRunChecksSkipsUnreadableResult(t *testing.T) {
	coord, store := newTestCoordinator()
	ctx := context.Background()

	batch, members, err := coord.SubmitBatch(ctx, []content.RawSource{textSource("Source one.")}, nil, pipeline.Options{})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	// Succeeded but with no stored result.
	setStatus(t, store, members[0].ID, domain.StatusSucceeded)

	rep, err := coord.RunChecks(ctx, batch.ID, false)
	if err != nil {
		t.Fatalf("RunChecks: %v", err)
	}
	if len(rep.Members) != 0 {
		t.Fatalf("unreadable result should be skipped, got %+v", rep.Members)
	}
}

func setStatus(t *testing.T, store *jobsrepo.MemoryStore, id uuid.UUID, status string) {
	t.Helper()
	if err := store.UpdateFields(dbctx.New(context.Background()), id, map[string]interface{}{"status": status}); err != nil {
		t.Fatalf("set status: %v", err)
	}
}

func finishWithCourse(t *testing.T, store *jobsrepo.MemoryStore, id uuid.UUID, course content.CourseOutput) {
	t.Helper()
	b, err := json.Marshal(map[string]any{"course": course})
	if err != nil {
		t.Fatalf("marshal course: %v", err)
	}
	err = store.UpdateFields(dbctx.New(context.Background()), id, map[string]interface{}{
		"status": domain.StatusSucceeded,
		"result": datatypes.JSON(b),
	})
	if err != nil {
		t.Fatalf("finish member: %v", err)
	}
}
