package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/pkg/dbctx"
)

// MemoryStore is an in-memory ImportJobRepo + BatchJobRepo. It backs unit
// tests and the JOB_STORE=memory mode; semantics mirror the gorm repos,
// including the unless-status guard and column-name updates.
type MemoryStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*domain.ImportJob
	batches map[uuid.UUID]*domain.BatchJob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    map[uuid.UUID]*domain.ImportJob{},
		batches: map[uuid.UUID]*domain.BatchJob{},
	}
}

var _ ImportJobRepo = (*MemoryStore)(nil)
var _ BatchJobRepo = (*memoryBatchRepo)(nil)

func cloneJob(j *domain.ImportJob) *domain.ImportJob {
	if j == nil {
		return nil
	}
	cp := *j
	return &cp
}

func (s *MemoryStore) Create(dbc dbctx.Context, jobs []*domain.ImportJob) ([]*domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, j := range jobs {
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
		if j.CreatedAt.IsZero() {
			j.CreatedAt = now
		}
		j.UpdatedAt = now
		s.jobs[j.ID] = cloneJob(j)
	}
	return jobs, nil
}

func (s *MemoryStore) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneJob(s.jobs[id]), nil
}

func (s *MemoryStore) ListByBatch(dbc dbctx.Context, batchID uuid.UUID) ([]*domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ImportJob
	for _, j := range s.jobs {
		if j.BatchID != nil && *j.BatchID == batchID {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay, staleRunning time.Duration) (*domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)

	var pick *domain.ImportJob
	for _, j := range s.jobs {
		runnable := j.Status == domain.StatusQueued ||
			(j.Status == domain.StatusFailed && retryableKind(j.ErrorKind) && j.Attempts < maxAttempts &&
				(j.LastErrorAt == nil || j.LastErrorAt.Before(retryCutoff))) ||
			(j.Status == domain.StatusRunning && j.HeartbeatAt != nil && j.HeartbeatAt.Before(staleCutoff))
		if !runnable {
			continue
		}
		if pick == nil || j.CreatedAt.Before(pick.CreatedAt) {
			pick = j
		}
	}
	if pick == nil {
		return nil, nil
	}
	pick.Status = domain.StatusRunning
	pick.Attempts++
	pick.LockedAt = &now
	pick.HeartbeatAt = &now
	pick.UpdatedAt = now
	return cloneJob(pick), nil
}

func (s *MemoryStore) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	_, err := s.UpdateFieldsUnlessStatus(dbc, id, nil, updates)
	return err
}

func (s *MemoryStore) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []string, updates map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, nil
	}
	for _, st := range disallowed {
		if j.Status == st {
			return false, nil
		}
	}
	applyJobUpdates(j, updates)
	return true, nil
}

// applyJobUpdates mirrors column-name updates onto the struct. Unknown keys
// are ignored, matching gorm's behavior for absent columns being a bug the
// repo tests would catch.
func applyJobUpdates(j *domain.ImportJob, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "status":
			j.Status, _ = v.(string)
		case "stage":
			j.Stage, _ = v.(string)
		case "progress":
			if i, ok := toInt(v); ok {
				j.Progress = i
			}
		case "attempts":
			if i, ok := toInt(v); ok {
				j.Attempts = i
			}
		case "message":
			j.Message, _ = v.(string)
		case "error":
			j.Error, _ = v.(string)
		case "error_kind":
			j.ErrorKind, _ = v.(string)
		case "result":
			switch rv := v.(type) {
			case datatypes.JSON:
				j.Result = rv
			case []byte:
				j.Result = datatypes.JSON(rv)
			case nil:
				j.Result = nil
			}
		case "locked_at":
			j.LockedAt = toTimePtr(v)
		case "heartbeat_at":
			j.HeartbeatAt = toTimePtr(v)
		case "last_error_at":
			j.LastErrorAt = toTimePtr(v)
		case "updated_at":
			if t := toTimePtr(v); t != nil {
				j.UpdatedAt = *t
			}
		}
	}
}

func retryableKind(kind string) bool {
	for _, k := range retryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toTimePtr(v interface{}) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	}
	return nil
}

// ---- BatchJobRepo ----

// Batches exposes the store under the BatchJobRepo interface. The method
// names clash with ImportJobRepo, so a thin adapter carries them.
func (s *MemoryStore) Batches() BatchJobRepo { return &memoryBatchRepo{s: s} }

type memoryBatchRepo struct{ s *MemoryStore }

func (r *memoryBatchRepo) Create(dbc dbctx.Context, batch *domain.BatchJob) (*domain.BatchJob, error) {
	return r.s.createBatch(batch)
}

func (r *memoryBatchRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.BatchJob, error) {
	return r.s.getBatchByID(id)
}

func (s *MemoryStore) createBatch(batch *domain.BatchJob) (*domain.BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	now := time.Now()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now
	cp := *batch
	s.batches[batch.ID] = &cp
	return batch, nil
}

func (s *MemoryStore) getBatchByID(id uuid.UUID) (*domain.BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}
