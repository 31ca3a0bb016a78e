package batch

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
	"github.com/openlingo/openlingo-backend/internal/services/imports"
)

// Coordinator fans a batch of sources out to independent import jobs and
// derives the batch view from its members. It never caches aggregate state:
// every status read recomputes from the member rows.
type Coordinator struct {
	jobs    jobsrepo.ImportJobRepo
	batches jobsrepo.BatchJobRepo
	imports *imports.Service
	checker *Checker
	log     *logger.Logger
}

func NewCoordinator(jobs jobsrepo.ImportJobRepo, batches jobsrepo.BatchJobRepo, imp *imports.Service, checker *Checker, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Coordinator{
		jobs:    jobs,
		batches: batches,
		imports: imp,
		checker: checker,
		log:     log.With("service", "batch"),
	}
}

// MemberView is the per-job slice of a batch status response.
type MemberView struct {
	JobID    uuid.UUID `json:"job_id"`
	Stage    string    `json:"stage"`
	Progress int       `json:"progress"`
	Error    string    `json:"error,omitempty"`
}

type Status struct {
	BatchID         uuid.UUID    `json:"batch_id"`
	AggregateStatus string       `json:"aggregate_status"`
	Members         []MemberView `json:"members"`
}

// SubmitBatch validates every source up front, then creates the batch row and
// one member job per source. Validation is all-or-nothing: one bad source
// rejects the whole submission and nothing is created.
func (c *Coordinator) SubmitBatch(ctx context.Context, sources []content.RawSource, stages []string, opts pipeline.Options) (*domain.BatchJob, []*domain.ImportJob, error) {
	if len(sources) == 0 {
		return nil, nil, apierr.Input("empty_batch", fmt.Errorf("batch has no sources"))
	}
	for i, src := range sources {
		if _, err := pipeline.ValidateSubmit(src, stages); err != nil {
			return nil, nil, apierr.Input("invalid_batch_source", fmt.Errorf("source %d: %w", i, err))
		}
	}

	optsJSON, _ := json.Marshal(opts)
	now := time.Now()
	batch := &domain.BatchJob{
		ID:        uuid.New(),
		Options:   datatypes.JSON(optsJSON),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := c.batches.Create(dbctx.New(ctx), batch); err != nil {
		return nil, nil, err
	}

	members := make([]*domain.ImportJob, 0, len(sources))
	for i, src := range sources {
		job, err := c.imports.SubmitForBatch(ctx, src, stages, opts, batch.ID)
		if err != nil {
			// Validation already passed; this is a store failure. Sibling jobs
			// already created stay; the caller sees the error.
			return nil, nil, fmt.Errorf("create member %d: %w", i, err)
		}
		members = append(members, job)
	}
	c.log.Info("batch submitted", "batch_id", batch.ID, "members", len(members))
	return batch, members, nil
}

// BatchStatus recomputes the derived status from a fresh member snapshot.
func (c *Coordinator) BatchStatus(ctx context.Context, batchID uuid.UUID) (*Status, error) {
	batch, err := c.batches.GetByID(dbctx.New(ctx), batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}
	members, err := c.jobs.ListByBatch(dbctx.New(ctx), batchID)
	if err != nil {
		return nil, err
	}
	st := &Status{
		BatchID:         batchID,
		AggregateStatus: domain.AggregateStatus(members),
		Members:         make([]MemberView, 0, len(members)),
	}
	for _, m := range members {
		st.Members = append(st.Members, MemberView{
			JobID:    m.ID,
			Stage:    m.PublicStage(),
			Progress: m.Progress,
			Error:    m.Error,
		})
	}
	return st, nil
}

// RunChecks executes the cross-batch quality and duplicate passes over the
// successful member outputs. The batch must have settled: any member still
// running or queued rejects the request.
func (c *Coordinator) RunChecks(ctx context.Context, batchID uuid.UUID, autoFix bool) (*Report, error) {
	batch, err := c.batches.GetByID(dbctx.New(ctx), batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, apierr.Input("batch_not_found", fmt.Errorf("batch %s not found", batchID))
	}
	members, err := c.jobs.ListByBatch(dbctx.New(ctx), batchID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if !m.Terminal() {
			return nil, apierr.Input("batch_not_settled", fmt.Errorf("batch %s has not settled; job %s is %s", batchID, m.ID, m.Status))
		}
	}

	succeeded := make([]*domain.ImportJob, 0, len(members))
	for _, m := range members {
		if m.Status == domain.StatusSucceeded {
			succeeded = append(succeeded, m)
		}
	}
	return c.checker.Run(ctx, succeeded, autoFix)
}
