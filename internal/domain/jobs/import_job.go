package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job status values. Status says whether the row is runnable; Stage says how
// far the pipeline got.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Canonical pipeline stage order. Transitions are strictly forward; "error"
// is a poll-view marker for failed jobs, not a stage that executes.
const (
	StageExtract   = "extract"
	StageAnalyze   = "analyze"
	StageTransform = "transform"
	StageAlign     = "align"
	StageSplit     = "split"
	StageTag       = "tag"
	StageComplete  = "complete"
	StageError     = "error"
)

// CanonicalStages lists the executable stages in pipeline order.
var CanonicalStages = []string{
	StageExtract, StageAnalyze, StageTransform, StageAlign, StageSplit, StageTag,
}

// StageIndex returns the canonical position of a stage, or -1.
func StageIndex(stage string) int {
	for i, s := range CanonicalStages {
		if s == stage {
			return i
		}
	}
	return -1
}

// ImportJob is one pipeline execution for a single raw source. Payload holds
// the immutable submitted source; Result holds the orchestrator snapshot while
// running and the final CourseOutput once succeeded.
type ImportJob struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	BatchID     *uuid.UUID     `gorm:"type:uuid;column:batch_id;index" json:"batch_id,omitempty"`
	JobType     string         `gorm:"column:job_type;not null;index" json:"job_type"`
	SourceKind  string         `gorm:"column:source_kind;not null" json:"source_kind"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Stage       string         `gorm:"column:stage;not null;index" json:"stage"`
	Progress    int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Message     string         `gorm:"column:message" json:"message,omitempty"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	ErrorKind   string         `gorm:"column:error_kind" json:"error_kind,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload"`
	Result      datatypes.JSON `gorm:"column:result" json:"result"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ImportJob) TableName() string { return "import_job" }

// PublicStage maps internal status+stage onto the stage vocabulary callers
// poll on: a failed job reads as "error", a succeeded one as "complete".
func (j *ImportJob) PublicStage() string {
	switch j.Status {
	case StatusFailed:
		return StageError
	case StatusSucceeded:
		return StageComplete
	}
	return j.Stage
}

// Terminal reports whether the job can make no further stage progress.
func (j *ImportJob) Terminal() bool {
	switch j.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Batch aggregate status values, derived from member jobs on every read.
const (
	BatchPending  = "pending"
	BatchPartial  = "partial"
	BatchComplete = "complete"
	BatchFailed   = "failed"
)

// BatchJob groups ImportJobs submitted together. Members carry the batch id;
// aggregate status is never stored.
type BatchJob struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Options   datatypes.JSON `gorm:"column:options" json:"options"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (BatchJob) TableName() string { return "batch_job" }

// AggregateStatus derives the batch status from its members: complete iff all
// succeeded, failed iff all failed, pending iff none terminal, else partial.
func AggregateStatus(members []*ImportJob) string {
	if len(members) == 0 {
		return BatchPending
	}
	succeeded, failed, terminal := 0, 0, 0
	for _, m := range members {
		if m.Terminal() {
			terminal++
		}
		switch m.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		}
	}
	switch {
	case succeeded == len(members):
		return BatchComplete
	case failed == len(members):
		return BatchFailed
	case terminal == 0:
		return BatchPending
	}
	return BatchPartial
}
