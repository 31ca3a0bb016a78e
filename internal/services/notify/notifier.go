package notify

import (
	"sync"

	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
)

// JobNotifier receives job lifecycle events as they happen. The external
// contract stays poll-based; this side channel exists for internal callers
// (logging, the batch coordinator's settle watcher, tests).
type JobNotifier interface {
	JobProgress(job *domain.ImportJob, stage string, pct int, msg string)
	JobFailed(job *domain.ImportJob, stage string, msg string)
	JobDone(job *domain.ImportJob)
}

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(baseLog *logger.Logger) *LogNotifier {
	return &LogNotifier{log: baseLog.With("component", "JobNotifier")}
}

func (n *LogNotifier) JobProgress(job *domain.ImportJob, stage string, pct int, msg string) {
	n.log.Debug("job progress", "job_id", job.ID, "stage", stage, "progress", pct, "message", msg)
}

func (n *LogNotifier) JobFailed(job *domain.ImportJob, stage string, msg string) {
	n.log.Warn("job failed", "job_id", job.ID, "stage", stage, "error", msg)
}

func (n *LogNotifier) JobDone(job *domain.ImportJob) {
	n.log.Info("job done", "job_id", job.ID)
}

// Event is one lifecycle notification for channel subscribers.
type Event struct {
	JobID    string
	Kind     string // progress|failed|done
	Stage    string
	Progress int
	Message  string
}

// ChannelNotifier fans events out to subscribed channels without blocking
// the job runtime: slow subscribers drop events rather than stall a worker.
type ChannelNotifier struct {
	mu   sync.Mutex
	subs []chan Event
	next JobNotifier
}

// NewChannelNotifier wraps another notifier (usually the log notifier) and
// adds channel subscriptions on top.
func NewChannelNotifier(next JobNotifier) *ChannelNotifier {
	return &ChannelNotifier{next: next}
}

func (n *ChannelNotifier) Subscribe(buffer int) <-chan Event {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}

func (n *ChannelNotifier) emit(ev Event) {
	n.mu.Lock()
	subs := n.subs
	n.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (n *ChannelNotifier) JobProgress(job *domain.ImportJob, stage string, pct int, msg string) {
	if n.next != nil {
		n.next.JobProgress(job, stage, pct, msg)
	}
	n.emit(Event{JobID: job.ID.String(), Kind: "progress", Stage: stage, Progress: pct, Message: msg})
}

func (n *ChannelNotifier) JobFailed(job *domain.ImportJob, stage string, msg string) {
	if n.next != nil {
		n.next.JobFailed(job, stage, msg)
	}
	n.emit(Event{JobID: job.ID.String(), Kind: "failed", Stage: stage, Message: msg})
}

func (n *ChannelNotifier) JobDone(job *domain.ImportJob) {
	if n.next != nil {
		n.next.JobDone(job)
	}
	n.emit(Event{JobID: job.ID.String(), Kind: "done", Stage: domain.StageComplete, Progress: 100})
}
