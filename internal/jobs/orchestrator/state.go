package orchestrator

import (
	"time"
)

type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageState is the persisted record of one stage's execution within a job.
type StageState struct {
	Name       string         `json:"name"`
	Status     StageStatus    `json:"status"`
	Attempts   int            `json:"attempts"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	NextRunAt  *time.Time     `json:"next_run_at,omitempty"`
}

// State is the orchestrator snapshot serialized into the job row's result
// column while the job runs. A requeued job resumes from it, skipping stages
// already succeeded. LastProgress enforces monotonic progress across
// requeues.
type State struct {
	Version      int                    `json:"version"`
	Stages       map[string]*StageState `json:"stages"`
	WaitUntil    *time.Time             `json:"wait_until,omitempty"`
	LastProgress int                    `json:"last_progress"`
	Warnings     []string               `json:"warnings,omitempty"`
	Meta         map[string]any         `json:"meta,omitempty"`
}

func (s *State) ensure() {
	if s.Version <= 0 {
		s.Version = 1
	}
	if s.Stages == nil {
		s.Stages = map[string]*StageState{}
	}
	if s.Meta == nil {
		s.Meta = map[string]any{}
	}
}

func (s *State) EnsureStage(name string) *StageState {
	s.ensure()
	ss := s.Stages[name]
	if ss == nil {
		ss = &StageState{
			Name:    name,
			Status:  StagePending,
			Outputs: map[string]any{},
		}
		s.Stages[name] = ss
	}
	if ss.Outputs == nil {
		ss.Outputs = map[string]any{}
	}
	return ss
}

// Warn appends a non-fatal warning carried into the final result.
func (s *State) Warn(msg string) {
	if msg == "" {
		return
	}
	s.Warnings = append(s.Warnings, msg)
}

// Output fetches a named output of a previously-run stage, or nil.
func (s *State) Output(stage, key string) any {
	if s == nil || s.Stages == nil {
		return nil
	}
	ss := s.Stages[stage]
	if ss == nil || ss.Outputs == nil {
		return nil
	}
	return ss.Outputs[key]
}
