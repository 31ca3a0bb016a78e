package runtime

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/google/uuid"

	repos "github.com/openlingo/openlingo-backend/internal/data/repos/jobs"
	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/pkg/dbctx"
	"github.com/openlingo/openlingo-backend/internal/platform/apierr"
	"github.com/openlingo/openlingo-backend/internal/services/notify"
)

// Context is the execution contract between the job system and pipeline code.
// It wraps the claimed import_job row and the only sanctioned ways to report
// progress or terminate the run. Pipelines never write the row directly; all
// writes go through here and are guarded so a canceled job is not overwritten.
type Context struct {
	Ctx    context.Context
	Job    *domain.ImportJob
	Repo   repos.ImportJobRepo
	Notify notify.JobNotifier

	payload map[string]any
}

// NewContext builds a Context for a claimed job and eagerly decodes its
// payload. A malformed payload yields an empty map; stage code validates the
// fields it needs.
func NewContext(ctx context.Context, job *domain.ImportJob, repo repos.ImportJobRepo, notifier notify.JobNotifier) *Context {
	c := &Context{
		Ctx:    ctx,
		Job:    job,
		Repo:   repo,
		Notify: notifier,
	}
	c.decodePayload()
	return c
}

func (c *Context) decodePayload() {
	c.payload = map[string]any{}
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err == nil && m != nil {
		c.payload = m
	}
}

// Payload returns the decoded payload map. Never nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// Update applies raw field updates to the job row, skipped when the job has
// been canceled. Used by the orchestrator for state snapshots; lifecycle
// transitions go through Progress/Fail/Succeed.
func (c *Context) Update(updates map[string]interface{}) error {
	if c.Job == nil || c.Job.ID == uuid.Nil || c.Repo == nil {
		return nil
	}
	_, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.New(c.ctx()), c.Job.ID, []string{domain.StatusCanceled}, updates)
	return err
}

// Progress publishes a non-terminal status update: persists stage, percent
// and message with a heartbeat, mirrors them in memory, and notifies.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now()
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.New(c.ctx()), c.Job.ID, []string{domain.StatusCanceled}, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"message":      msg,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.Message = msg
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobProgress(c.Job, stage, pct, msg)
	}
}

// Fail marks the run terminally failed, recording the error message and its
// taxonomy kind, and releases the lock so the row stays inspectable.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	kind := string(apierr.KindOf(err))
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.New(c.ctx()), c.Job.ID, []string{domain.StatusCanceled}, map[string]interface{}{
			"status":        domain.StatusFailed,
			"stage":         stage,
			"message":       "",
			"error":         msg,
			"error_kind":    kind,
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		})
		if !ok {
			return
		}
	}
	c.Job.Status = domain.StatusFailed
	c.Job.Stage = stage
	c.Job.Message = ""
	c.Job.Error = msg
	c.Job.ErrorKind = kind
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobFailed(c.Job, stage, msg)
	}
}

// Succeed marks the run terminally succeeded with progress pinned at 100 and
// the serialized result stored on the row.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.New(c.ctx()), c.Job.ID, []string{domain.StatusCanceled}, map[string]interface{}{
			"status":       domain.StatusSucceeded,
			"stage":        finalStage,
			"progress":     100,
			"message":      "",
			"error":        "",
			"error_kind":   "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}
	c.Job.Status = domain.StatusSucceeded
	c.Job.Stage = finalStage
	c.Job.Progress = 100
	c.Job.Message = ""
	c.Job.Error = ""
	c.Job.ErrorKind = ""
	c.Job.Result = res
	c.Job.LockedAt = nil
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobDone(c.Job)
	}
}

func (c *Context) ctx() context.Context {
	if c.Ctx != nil {
		return c.Ctx
	}
	return context.Background()
}
