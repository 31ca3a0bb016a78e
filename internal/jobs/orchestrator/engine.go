package orchestrator

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"gorm.io/datatypes"

	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	jobrt "github.com/openlingo/openlingo-backend/internal/jobs/runtime"
	"github.com/openlingo/openlingo-backend/internal/pkg/dbctx"
	"github.com/openlingo/openlingo-backend/internal/platform/apierr"
)

// RetryPolicy bounds stage re-execution. Only collaborator failures
// (apierr.Retryable) are retried; deterministic heuristic failures fail the
// job on the first attempt regardless of MaxAttempts.
type RetryPolicy struct {
	MaxAttempts int

	MinBackoff time.Duration // default 1s
	MaxBackoff time.Duration // default 30s
	JitterFrac float64       // default 0.20
}

// Stage is one step of the fixed pipeline. Progress moves through
// [StartPct, EndPct] while the stage runs; Run returns named outputs merged
// into the persisted stage state for later stages to read.
type Stage struct {
	Name     string
	Timeout  time.Duration
	StartPct int
	EndPct   int
	StartMsg string
	DoneMsg  string
	Retry    RetryPolicy
	Run      func(ctx *jobrt.Context, st *State) (map[string]any, error)
}

// Engine drives an ordered stage list for a single job. Execution is strictly
// forward: a stage runs only after every earlier stage succeeded, and a
// failure moves the job to its terminal error state. Stage state snapshots
// land in the job row so a requeued job resumes where it left off.
type Engine struct {
	MinPollInterval time.Duration // default 2s
	MaxPollInterval time.Duration // default 10s
	StateVersion    int
}

func NewEngine() *Engine {
	return &Engine{
		MinPollInterval: 2 * time.Second,
		MaxPollInterval: 10 * time.Second,
		StateVersion:    1,
	}
}

// Run executes the stage list and finishes the job. finalResult is merged
// into the terminal result payload alongside per-stage outputs.
func (e *Engine) Run(ctx *jobrt.Context, stages []Stage, finalize func(ctx *jobrt.Context, st *State) (map[string]any, error)) error {
	if ctx == nil || ctx.Job == nil {
		return nil
	}
	if len(stages) == 0 {
		ctx.Succeed(domain.StageComplete, nil)
		return nil
	}
	if err := ValidateStages(stages); err != nil {
		ctx.Fail("validate", apierr.Internal("invalid_stage_list", err))
		return nil
	}
	st, _ := LoadState(ctx, e.StateVersion)
	if e.waitGate(ctx, st) {
		return nil
	}
	for i := range stages {
		def := stages[i]
		ss := st.EnsureStage(def.Name)
		if ss.Status == StageSucceeded || ss.Status == StageSkipped {
			continue
		}
		if e.retryGate(ctx, st, def, ss) {
			return nil
		}
		e.startStage(ctx, st, def, ss)
		if e.runStage(ctx, st, def, ss) {
			return nil
		}
	}
	e.succeed(ctx, st, stages, finalize)
	return nil
}

// waitGate holds a requeued job back until its backoff window passes. The
// sleep is clamped so a long window costs many short claims instead of one
// parked worker.
func (e *Engine) waitGate(ctx *jobrt.Context, st *State) bool {
	if st == nil || st.WaitUntil == nil {
		return false
	}
	now := time.Now()
	if now.Before(*st.WaitUntil) {
		sleep := clampDuration(st.WaitUntil.Sub(now), e.MinPollInterval, e.MaxPollInterval)
		if sleep > 0 {
			time.Sleep(sleep)
		}
		_ = SaveState(ctx, st)
		_ = requeue(ctx, "waiting", st.LastProgress)
		return true
	}
	st.WaitUntil = nil
	_ = SaveState(ctx, st)
	return false
}

func (e *Engine) retryGate(ctx *jobrt.Context, st *State, def Stage, ss *StageState) bool {
	if ss == nil || ss.NextRunAt == nil {
		return false
	}
	if time.Now().Before(*ss.NextRunAt) {
		sleep := clampDuration(time.Until(*ss.NextRunAt), e.MinPollInterval, e.MaxPollInterval)
		if sleep > 0 {
			time.Sleep(sleep)
		}
		_ = SaveState(ctx, st)
		_ = requeue(ctx, "retry_"+def.Name, st.LastProgress)
		return true
	}
	ss.NextRunAt = nil
	return false
}

func (e *Engine) startStage(ctx *jobrt.Context, st *State, def Stage, ss *StageState) {
	e.setProgress(ctx, st, def.Name, def.StartPct, msgOr(def.StartMsg, "Starting "+def.Name))
	ss.Status = StageRunning
	if ss.StartedAt == nil {
		now := time.Now().UTC()
		ss.StartedAt = &now
	}
	_ = SaveState(ctx, st)
}

// runStage executes one stage body. Returns true when the engine should stop
// (failure or requeue for retry).
func (e *Engine) runStage(ctx *jobrt.Context, st *State, def Stage, ss *StageState) bool {
	outs, err := e.safeRun(ctx, st, def)
	if err != nil {
		return e.handleStageErr(ctx, st, ss, def, err)
	}
	if outs != nil {
		mergeOutputs(ss, outs)
	}
	ss.Status = StageSucceeded
	markFinished(ss, "")
	e.setProgress(ctx, st, def.Name, def.EndPct, msgOr(def.DoneMsg, "Done "+def.Name))
	_ = SaveState(ctx, st)
	return false
}

// safeRun wraps the stage body with panic recovery and the stage timeout.
// A timeout becomes a fatal timeout-kind error; a panic becomes internal.
func (e *Engine) safeRun(ctx *jobrt.Context, st *State, def Stage) (outs map[string]any, err error) {
	if def.Run == nil {
		return nil, apierr.Internal("nil_stage_run", fmt.Errorf("stage %q has no Run", def.Name))
	}
	run := func() (m map[string]any, rerr error) {
		defer func() {
			if r := recover(); r != nil {
				rerr = apierr.Internal("stage_panic", fmt.Errorf("stage %q panicked: %v", def.Name, r))
			}
		}()
		return def.Run(ctx, st)
	}
	if def.Timeout <= 0 {
		return run()
	}
	type out struct {
		m map[string]any
		e error
	}
	timer := time.NewTimer(def.Timeout)
	defer timer.Stop()
	ch := make(chan out, 1)
	go func() {
		m, rerr := run()
		ch <- out{m: m, e: rerr}
	}()
	select {
	case <-timer.C:
		return nil, apierr.Timeout("stage_timeout", fmt.Errorf("stage %q exceeded %s", def.Name, def.Timeout))
	case o := <-ch:
		return o.m, o.e
	}
}

// handleStageErr decides between bounded retry (collaborator failures only)
// and terminal failure. The orchestrator is the single place errors become
// job state.
func (e *Engine) handleStageErr(ctx *jobrt.Context, st *State, ss *StageState, def Stage, err error) bool {
	ss.Attempts++
	ss.LastError = err.Error()
	ss.Status = StageFailed
	markFinished(ss, ss.LastError)
	if apierr.Retryable(err) && ss.Attempts < maxAttemptsOr(def.Retry) {
		delay := computeBackoff(def.Retry, ss.Attempts)
		when := time.Now().Add(delay)
		ss.NextRunAt = &when
		ss.Status = StagePending
		st.WaitUntil = &when
		_ = SaveState(ctx, st)
		_ = requeue(ctx, "retry_"+def.Name, st.LastProgress)
		return true
	}
	_ = SaveState(ctx, st)
	ctx.Fail(def.Name, err)
	return true
}

func (e *Engine) succeed(ctx *jobrt.Context, st *State, stages []Stage, finalize func(ctx *jobrt.Context, st *State) (map[string]any, error)) {
	final := map[string]any{}
	if finalize != nil {
		out, err := finalize(ctx, st)
		if err != nil {
			ctx.Fail("finalize", err)
			return
		}
		for k, v := range out {
			final[k] = v
		}
	}
	if len(st.Warnings) > 0 {
		final["warnings"] = st.Warnings
	}
	ctx.Succeed(domain.StageComplete, final)
}

// -------------------- state persistence --------------------

// LoadState reads the orchestrator snapshot out of the job's result column.
// Missing or unreadable state yields a fresh one: the pipeline restarts from
// the first stage rather than failing on a corrupt snapshot.
func LoadState(ctx *jobrt.Context, version int) (*State, error) {
	st := &State{Version: version, Stages: map[string]*StageState{}, Meta: map[string]any{}}
	if ctx == nil || ctx.Job == nil {
		st.ensure()
		return st, nil
	}
	raw := ctx.Job.Result
	if len(raw) == 0 || string(raw) == "null" {
		st.ensure()
		return st, nil
	}
	var probe struct {
		Orchestrator json.RawMessage `json:"orchestrator"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && len(probe.Orchestrator) > 0 {
		_ = json.Unmarshal(probe.Orchestrator, st)
		st.ensure()
		return st, nil
	}
	if err := json.Unmarshal(raw, st); err != nil {
		st.Meta["state_unmarshal_error"] = err.Error()
	}
	st.ensure()
	return st, nil
}

func SaveState(ctx *jobrt.Context, st *State) error {
	if ctx == nil || ctx.Job == nil || st == nil {
		return nil
	}
	st.ensure()
	b, _ := json.Marshal(map[string]any{"orchestrator": st})
	if err := ctx.Update(map[string]interface{}{"result": datatypes.JSON(b)}); err != nil {
		return err
	}
	ctx.Job.Result = datatypes.JSON(b)
	return nil
}

// requeue hands the job back to the claim loop without losing progress.
func requeue(ctx *jobrt.Context, stage string, progress int) error {
	if ctx == nil || ctx.Job == nil || ctx.Repo == nil {
		return nil
	}
	now := time.Now()
	_, err := ctx.Repo.UpdateFieldsUnlessStatus(dbctx.New(ctx.Ctx), ctx.Job.ID, []string{domain.StatusCanceled}, map[string]interface{}{
		"status":       domain.StatusQueued,
		"stage":        stage,
		"progress":     progress,
		"locked_at":    nil,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	return err
}

// -------------------- validation --------------------

// ValidateStages enforces the pipeline contract: unique names, each one a
// canonical stage, listed in canonical order (subsequences are fine, reorders
// are not), with monotonically non-decreasing progress windows.
func ValidateStages(stages []Stage) error {
	seen := map[string]bool{}
	lastIdx := -1
	lastEnd := -1
	for _, s := range stages {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("stage missing Name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate stage %q", name)
		}
		seen[name] = true
		idx := domain.StageIndex(name)
		if idx < 0 {
			return fmt.Errorf("unknown stage %q", name)
		}
		if idx <= lastIdx {
			return fmt.Errorf("stage %q out of canonical order", name)
		}
		lastIdx = idx
		if s.StartPct < 0 || s.StartPct > 100 || s.EndPct < 0 || s.EndPct > 100 {
			return fmt.Errorf("stage %q: progress must be 0..100", name)
		}
		if s.EndPct < s.StartPct {
			return fmt.Errorf("stage %q: EndPct must be >= StartPct", name)
		}
		if s.EndPct < lastEnd {
			return fmt.Errorf("stage %q: EndPct must be >= previous stage EndPct", name)
		}
		lastEnd = s.EndPct
	}
	return nil
}

// ValidateStageNames checks a submitted stage subset before a job exists.
// "complete" is tolerated as a trailing marker since callers often include
// the terminal state in the list they want to observe.
func ValidateStageNames(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := map[string]bool{}
	lastIdx := -1
	for i, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == domain.StageComplete {
			if i != len(names)-1 {
				return nil, fmt.Errorf("stage %q may only appear last", domain.StageComplete)
			}
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate stage %q", name)
		}
		seen[name] = true
		idx := domain.StageIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("unknown stage %q", name)
		}
		if idx <= lastIdx {
			return nil, fmt.Errorf("stage %q out of canonical order", name)
		}
		lastIdx = idx
		out = append(out, name)
	}
	return out, nil
}

// -------------------- progress + helpers --------------------

// setProgress clamps the reported percent so observed progress never
// decreases for a job, across stages and requeues alike.
func (e *Engine) setProgress(ctx *jobrt.Context, st *State, stage string, pct int, msg string) {
	if ctx == nil || st == nil {
		return
	}
	if pct < st.LastProgress {
		pct = st.LastProgress
	} else {
		st.LastProgress = pct
	}
	ctx.Progress(stage, pct, msg)
}

func markFinished(ss *StageState, lastErr string) {
	if ss == nil {
		return
	}
	now := time.Now().UTC()
	ss.FinishedAt = &now
	if strings.TrimSpace(lastErr) != "" {
		ss.LastError = lastErr
	}
}

func mergeOutputs(ss *StageState, outs map[string]any) {
	if ss.Outputs == nil {
		ss.Outputs = map[string]any{}
	}
	for k, v := range outs {
		ss.Outputs[k] = v
	}
}

func maxAttemptsOr(r RetryPolicy) int {
	if r.MaxAttempts <= 0 {
		return 3
	}
	return r.MaxAttempts
}

func computeBackoff(r RetryPolicy, attempts int) time.Duration {
	minB := r.MinBackoff
	maxB := r.MaxBackoff
	jitter := r.JitterFrac
	if minB <= 0 {
		minB = 1 * time.Second
	}
	if maxB <= 0 {
		maxB = 30 * time.Second
	}
	if jitter <= 0 {
		jitter = 0.20
	}
	if attempts < 1 {
		attempts = 1
	}
	d := time.Duration(float64(minB) * math.Pow(2, float64(attempts-1)))
	if d > maxB {
		d = maxB
	}
	delta := float64(d) * jitter
	low := float64(d) - delta
	if low < 0 {
		low = 0
	}
	return time.Duration(low + rand.Float64()*2*delta)
}

func clampDuration(d, minD, maxD time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if minD > 0 && d < minD {
		return minD
	}
	if maxD > 0 && d > maxD {
		return maxD
	}
	return d
}

func msgOr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
