package worker

import (
	"context"
	"fmt"
	"time"

	repos "github.com/openlingo/openlingo-backend/internal/data/repos/jobs"
	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/jobs/runtime"
	"github.com/openlingo/openlingo-backend/internal/pkg/dbctx"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
	"github.com/openlingo/openlingo-backend/internal/services/notify"
)

// Options bound the claim loop. MaxAttempts caps automatic re-claims of
// retryably-failed jobs; StaleRunning reclaims jobs whose worker died.
type Options struct {
	Concurrency  int
	PollInterval time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
	StaleRunning time.Duration
}

func (o *Options) defaults() {
	if o.Concurrency < 1 {
		o.Concurrency = 4
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 1 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 30 * time.Second
	}
	if o.StaleRunning <= 0 {
		o.StaleRunning = 30 * time.Minute
	}
}

// Worker owns the pool of claim loops. Jobs within a batch run concurrently
// up to Concurrency; a single job is only ever executed by one loop at a
// time (the claim is the lock).
type Worker struct {
	log      *logger.Logger
	repo     repos.ImportJobRepo
	registry *runtime.Registry
	notify   notify.JobNotifier
	opts     Options
}

func New(baseLog *logger.Logger, repo repos.ImportJobRepo, registry *runtime.Registry, notifier notify.JobNotifier, opts Options) *Worker {
	opts.defaults()
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notifier,
		opts:     opts,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("starting job worker pool", "concurrency", w.opts.Concurrency)
	for i := 0; i < w.opts.Concurrency; i++ {
		go w.runLoop(ctx, i+1)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			job, err := w.repo.ClaimNextRunnable(dbctx.New(ctx), w.opts.MaxAttempts, w.opts.RetryDelay, w.opts.StaleRunning)
			if err != nil {
				w.log.Warn("claim next runnable failed", "worker_id", workerID, "error", err)
				continue
			}
			if job == nil {
				continue
			}
			w.dispatch(ctx, workerID, job)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, workerID int, job *domain.ImportJob) {
	h, ok := w.registry.Get(job.JobType)
	jc := runtime.NewContext(ctx, job, w.repo, w.notify)
	if !ok {
		w.log.Warn("no handler registered for job_type",
			"worker_id", workerID,
			"job_type", job.JobType,
			"job_id", job.ID,
		)
		jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job handler panic",
				"worker_id", workerID,
				"job_id", job.ID,
				"job_type", job.JobType,
				"panic", r,
			)
			jc.Fail("panic", fmt.Errorf("panic: %v", r))
		}
	}()
	if runErr := h.Run(jc); runErr != nil {
		// Pipelines normally terminate the job themselves; this is the
		// safety net for handlers that return instead.
		jc.Fail("run", runErr)
	}
}
