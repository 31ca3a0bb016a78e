package jobs

import (
	"context"
	"testing"
	"time"

	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/pkg/dbctx"
)

func dbc() dbctx.Context { return dbctx.New(context.Background()) }

func seed(t *testing.T, store *MemoryStore, j *domain.ImportJob) *domain.ImportJob {
	t.Helper()
	if _, err := store.Create(dbc(), []*domain.ImportJob{j}); err != nil {
		t.Fatalf("create: %v", err)
	}
	return j
}

func TestClaimQueuedJob(t *testing.T) {
	store := NewMemoryStore()
	job := seed(t, store, &domain.ImportJob{JobType: "content_import", Status: domain.StatusQueued})

	claimed, err := store.ClaimNextRunnable(dbc(), 5, time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("claimed = %v", claimed)
	}
	if claimed.Status != domain.StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("claimed row: status=%q attempts=%d", claimed.Status, claimed.Attempts)
	}
	if claimed.LockedAt == nil || claimed.HeartbeatAt == nil {
		t.Fatalf("claim did not set lock/heartbeat")
	}

	// The claim is the lock: nothing else is runnable.
	again, err := store.ClaimNextRunnable(dbc(), 5, time.Minute, time.Hour)
	if err != nil || again != nil {
		t.Fatalf("second claim = %v, %v", again, err)
	}
}

func TestClaimOldestFirst(t *testing.T) {
	store := NewMemoryStore()
	older := seed(t, store, &domain.ImportJob{Status: domain.StatusQueued, CreatedAt: time.Now().Add(-time.Hour)})
	seed(t, store, &domain.ImportJob{Status: domain.StatusQueued, CreatedAt: time.Now()})

	claimed, err := store.ClaimNextRunnable(dbc(), 5, time.Minute, time.Hour)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}
	if claimed.ID != older.ID {
		t.Fatalf("claimed the newer job")
	}
}

func TestClaimRetryableFailure(t *testing.T) {
	store := NewMemoryStore()
	past := time.Now().Add(-time.Hour)
	job := seed(t, store, &domain.ImportJob{
		Status:      domain.StatusFailed,
		ErrorKind:   "translation_error",
		Attempts:    1,
		LastErrorAt: &past,
	})

	claimed, err := store.ClaimNextRunnable(dbc(), 3, time.Minute, time.Hour)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}
	if claimed.ID != job.ID || claimed.Attempts != 2 {
		t.Fatalf("claimed = %+v", claimed)
	}
}

func TestClaimRespectsRetryDelay(t *testing.T) {
	store := NewMemoryStore()
	justNow := time.Now()
	seed(t, store, &domain.ImportJob{
		Status:      domain.StatusFailed,
		ErrorKind:   "extraction_error",
		Attempts:    1,
		LastErrorAt: &justNow,
	})

	claimed, err := store.ClaimNextRunnable(dbc(), 3, time.Minute, time.Hour)
	if err != nil || claimed != nil {
		t.Fatalf("failure inside the retry delay was claimed: %v %v", claimed, err)
	}
}

func TestClaimSkipsDeterministicFailures(t *testing.T) {
	store := NewMemoryStore()
	past := time.Now().Add(-time.Hour)
	for _, kind := range []string{"internal_error", "input_error", "timeout_error", "alignment_low_confidence"} {
		seed(t, store, &domain.ImportJob{
			Status:      domain.StatusFailed,
			ErrorKind:   kind,
			LastErrorAt: &past,
		})
	}

	claimed, err := store.ClaimNextRunnable(dbc(), 5, time.Minute, time.Hour)
	if err != nil || claimed != nil {
		t.Fatalf("deterministic failure was claimed: %v %v", claimed, err)
	}
}

func TestClaimExhaustedAttempts(t *testing.T) {
	store := NewMemoryStore()
	past := time.Now().Add(-time.Hour)
	seed(t, store, &domain.ImportJob{
		Status:      domain.StatusFailed,
		ErrorKind:   "translation_error",
		Attempts:    3,
		LastErrorAt: &past,
	})

	claimed, err := store.ClaimNextRunnable(dbc(), 3, time.Minute, time.Hour)
	if err != nil || claimed != nil {
		t.Fatalf("exhausted job was claimed: %v %v", claimed, err)
	}
}

func TestClaimReclaimsStaleRunning(t *testing.T) {
	store := NewMemoryStore()
	stale := time.Now().Add(-time.Hour)
	job := seed(t, store, &domain.ImportJob{
		Status:      domain.StatusRunning,
		HeartbeatAt: &stale,
	})

	claimed, err := store.ClaimNextRunnable(dbc(), 5, time.Minute, 30*time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("stale running job not reclaimed: %v %v", claimed, err)
	}
	if claimed.ID != job.ID {
		t.Fatalf("claimed wrong job")
	}

	// A live heartbeat keeps the job locked.
	fresh := time.Now()
	_ = store.UpdateFields(dbc(), job.ID, map[string]interface{}{"heartbeat_at": fresh, "status": domain.StatusRunning})
	claimed, err = store.ClaimNextRunnable(dbc(), 5, time.Minute, 30*time.Minute)
	if err != nil || claimed != nil {
		t.Fatalf("live running job was reclaimed: %v %v", claimed, err)
	}
}

func TestUpdateFieldsUnlessStatusGuard(t *testing.T) {
	store := NewMemoryStore()
	job := seed(t, store, &domain.ImportJob{Status: domain.StatusCanceled})

	ok, err := store.UpdateFieldsUnlessStatus(dbc(), job.ID, []string{domain.StatusCanceled}, map[string]interface{}{
		"status": domain.StatusRunning,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok {
		t.Fatalf("guard let a canceled job transition")
	}
	row, _ := store.GetByID(dbc(), job.ID)
	if row.Status != domain.StatusCanceled {
		t.Fatalf("status = %q", row.Status)
	}
}

func TestUpdateFieldsUnknownJob(t *testing.T) {
	store := NewMemoryStore()
	job := &domain.ImportJob{}
	ok, err := store.UpdateFieldsUnlessStatus(dbc(), job.ID, nil, map[string]interface{}{"status": "x"})
	if err != nil || ok {
		t.Fatalf("unknown id: ok=%v err=%v", ok, err)
	}
}

func TestGetByIDReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	job := seed(t, store, &domain.ImportJob{Status: domain.StatusQueued, Stage: domain.StageExtract})

	a, _ := store.GetByID(dbc(), job.ID)
	a.Status = domain.StatusFailed

	b, _ := store.GetByID(dbc(), job.ID)
	if b.Status != domain.StatusQueued {
		t.Fatalf("mutation through a read copy leaked into the store")
	}
}
