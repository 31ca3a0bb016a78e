package jobs

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/pkg/dbctx"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
)

type BatchJobRepo interface {
	Create(dbc dbctx.Context, batch *domain.BatchJob) (*domain.BatchJob, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.BatchJob, error)
}

type batchJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchJobRepo(db *gorm.DB, baseLog *logger.Logger) BatchJobRepo {
	return &batchJobRepo{
		db:  db,
		log: baseLog.With("repo", "BatchJobRepo"),
	}
}

func (r *batchJobRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *batchJobRepo) Create(dbc dbctx.Context, batch *domain.BatchJob) (*domain.BatchJob, error) {
	if batch == nil {
		return nil, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(batch).Error; err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *batchJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.BatchJob, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var batch domain.BatchJob
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&batch).Error
	if err != nil {
		return nil, err
	}
	if batch.ID == uuid.Nil {
		return nil, nil
	}
	return &batch, nil
}
