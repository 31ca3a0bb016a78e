package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/pkg/dbctx"
	"github.com/openlingo/openlingo-backend/internal/platform/apierr"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
)

// retryableKinds lists the error_kind values the claim loop may re-run.
var retryableKinds = []string{
	string(apierr.KindExtraction),
	string(apierr.KindTranslation),
}

// ImportJobRepo is the only write path to import_job rows. The worker claims
// through it, the runtime context mutates through it, poll handlers read
// through it.
type ImportJobRepo interface {
	Create(dbc dbctx.Context, jobs []*domain.ImportJob) ([]*domain.ImportJob, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ImportJob, error)
	ListByBatch(dbc dbctx.Context, batchID uuid.UUID) ([]*domain.ImportJob, error)
	ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay, staleRunning time.Duration) (*domain.ImportJob, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []string, updates map[string]interface{}) (bool, error)
}

type importJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImportJobRepo(db *gorm.DB, baseLog *logger.Logger) ImportJobRepo {
	return &importJobRepo{
		db:  db,
		log: baseLog.With("repo", "ImportJobRepo"),
	}
}

func (r *importJobRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *importJobRepo) Create(dbc dbctx.Context, jobs []*domain.ImportJob) ([]*domain.ImportJob, error) {
	if len(jobs) == 0 {
		return []*domain.ImportJob{}, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *importJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ImportJob, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var job domain.ImportJob
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *importJobRepo) ListByBatch(dbc dbctx.Context, batchID uuid.UUID) ([]*domain.ImportJob, error) {
	var out []*domain.ImportJob
	if batchID == uuid.Nil {
		return out, nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimNextRunnable atomically picks the oldest runnable job and marks it
// running. Runnable means queued, or failed on a retryable collaborator error
// with attempts left past the retry delay, or running with a heartbeat stale
// enough to assume a dead worker. Deterministic failures (internal, input,
// timeout kinds) are never re-claimed; only an explicit restart requeues them.
func (r *importJobRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay, staleRunning time.Duration) (*domain.ImportJob, error) {
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *domain.ImportJob
	err := r.handle(dbc).WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var job domain.ImportJob
		q := tx.Where(`
      (
        status = ?
        OR (
          status = ?
          AND error_kind IN ?
          AND attempts < ?
          AND (last_error_at IS NULL OR last_error_at < ?)
        )
        OR (
          status = ?
          AND heartbeat_at IS NOT NULL
          AND heartbeat_at < ?
        )
      )
    `, domain.StatusQueued, domain.StatusFailed, retryableKinds, maxAttempts, retryCutoff, domain.StatusRunning, staleCutoff).
			Order("created_at ASC")
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := tx.Model(&domain.ImportJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       domain.StatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *importJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.ImportJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateFieldsUnlessStatus applies updates only while the row is not in one
// of the disallowed statuses. Returns false when the guard rejected the
// write, which is how cancellation wins races against a running pipeline.
func (r *importJobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil || len(updates) == 0 {
		return false, nil
	}
	q := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.ImportJob{}).
		Where("id = ?", id)
	if len(disallowed) > 0 {
		q = q.Where("status NOT IN ?", disallowed)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
