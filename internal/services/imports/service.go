package imports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	jobsrepo "github.com/openlingo/openlingo-backend/internal/data/repos/jobs"
	"github.com/openlingo/openlingo-backend/internal/domain/content"
	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/ingestion/pipeline"
	"github.com/openlingo/openlingo-backend/internal/pkg/dbctx"
	"github.com/openlingo/openlingo-backend/internal/platform/apierr"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
)

// Service is the submit/poll/cancel/restart surface for single import jobs.
// All validation happens here, before any row exists; the worker pool picks
// up whatever this service enqueues.
type Service struct {
	jobs jobsrepo.ImportJobRepo
	log  *logger.Logger
}

func NewService(jobs jobsrepo.ImportJobRepo, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{jobs: jobs, log: log.With("service", "imports")}
}

// Submit validates and enqueues one import. Invalid input returns an input
// error and no job is created.
func (s *Service) Submit(ctx context.Context, src content.RawSource, stages []string, opts pipeline.Options) (*domain.ImportJob, error) {
	return s.submit(ctx, src, stages, opts, nil)
}

// SubmitForBatch enqueues a member job carrying its batch id. Validation is
// identical to Submit.
func (s *Service) SubmitForBatch(ctx context.Context, src content.RawSource, stages []string, opts pipeline.Options, batchID uuid.UUID) (*domain.ImportJob, error) {
	return s.submit(ctx, src, stages, opts, &batchID)
}

func (s *Service) submit(ctx context.Context, src content.RawSource, stages []string, opts pipeline.Options, batchID *uuid.UUID) (*domain.ImportJob, error) {
	cleaned, err := pipeline.ValidateSubmit(src, stages)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(pipeline.Payload{Source: src, Stages: cleaned, Options: opts})
	if err != nil {
		return nil, apierr.Input("encode_payload", fmt.Errorf("encode payload: %w", err))
	}

	firstStage := domain.StageExtract
	if len(cleaned) > 0 {
		firstStage = cleaned[0]
	}
	now := time.Now()
	job := &domain.ImportJob{
		ID:         uuid.New(),
		BatchID:    batchID,
		JobType:    pipeline.JobTypeContentImport,
		SourceKind: src.Kind,
		Status:     domain.StatusQueued,
		Stage:      firstStage,
		Payload:    datatypes.JSON(payload),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created, err := s.jobs.Create(dbctx.New(ctx), []*domain.ImportJob{job})
	if err != nil {
		return nil, err
	}
	s.log.Info("import submitted", "job_id", job.ID, "source_kind", src.Kind)
	return created[0], nil
}

// Get returns the job row, or nil when unknown. Read-only; safe to poll.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error) {
	return s.jobs.GetByID(dbctx.New(ctx), id)
}

// Cancel stops further stage execution while keeping the row and whatever
// partial result the last completed stage left. Returns false when the job
// was already terminal.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	return s.jobs.UpdateFieldsUnlessStatus(dbctx.New(ctx), id,
		[]string{domain.StatusSucceeded, domain.StatusFailed, domain.StatusCanceled},
		map[string]interface{}{
			"status":     domain.StatusCanceled,
			"message":    "canceled by request",
			"locked_at":  nil,
			"updated_at": now,
		})
}

// Restart requeues a failed or canceled job. The orchestrator snapshot in the
// result column is kept, so execution resumes after the last succeeded stage
// instead of starting over. Attempts reset so the retry budget is fresh.
func (s *Service) Restart(ctx context.Context, id uuid.UUID) (bool, error) {
	job, err := s.jobs.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if job.Status != domain.StatusFailed && job.Status != domain.StatusCanceled {
		return false, apierr.Input("not_restartable", fmt.Errorf("job %s is %s, only failed or canceled jobs restart", id, job.Status))
	}
	now := time.Now()
	err = s.jobs.UpdateFields(dbctx.New(ctx), id, map[string]interface{}{
		"status":        domain.StatusQueued,
		"attempts":      0,
		"message":       "",
		"error":         "",
		"error_kind":    "",
		"last_error_at": nil,
		"locked_at":     nil,
		"updated_at":    now,
	})
	if err != nil {
		return false, err
	}
	s.log.Info("import restarted", "job_id", id)
	return true, nil
}
