package cron

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/stockroom/internal/alerts"
	"github.com/angelmondragon/stockroom/pkg/logger"
	"github.com/angelmondragon/stockroom/pkg/metrics"
)

// SchedulerParams configure the scheduler.
type SchedulerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Metrics  *metrics.TaskMetrics
	Alerts   alerts.Sink
	// Locks is optional; without it only the in-process guard applies.
	Locks LockFactory
	Clock func() time.Time
}

// Scheduler runs each registered task on its own ticker. A task never
// overlaps with itself.
type Scheduler struct {
	logg    *logger.Logger
	metrics *metrics.TaskMetrics
	alerts  alerts.Sink
	now     func() time.Time
	tasks   []*taskState

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

type taskState struct {
	task     Task
	lock     Lock
	inFlight atomic.Bool

	mu       sync.Mutex
	nextRun  *time.Time
	lastRun  *time.Time
	lastDur  time.Duration
	lastErr  string
	runs     int64
	failures int64
	skips    int64
}

// TaskStatus is the observable state of one task.
type TaskStatus struct {
	Name           string     `json:"name"`
	Interval       string     `json:"interval"`
	Running        bool       `json:"running"`
	NextRun        *time.Time `json:"nextRun,omitempty"`
	LastRun        *time.Time `json:"lastRun,omitempty"`
	LastDurationMs int64      `json:"lastDurationMs"`
	LastError      string     `json:"lastError,omitempty"`
	Runs           int64      `json:"runs"`
	Failures       int64      `json:"failures"`
	Skips          int64      `json:"skips"`
}

// Report is the scheduler status snapshot.
type Report struct {
	Running bool         `json:"running"`
	Tasks   []TaskStatus `json:"tasks"`
}

// NewScheduler builds a stopped scheduler.
func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Registry == nil || len(params.Registry.Tasks()) == 0 {
		return nil, fmt.Errorf("at least one task required")
	}
	sink := params.Alerts
	if sink == nil {
		sink = alerts.NewLogSink(params.Logger)
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Scheduler{
		logg:    params.Logger,
		metrics: params.Metrics,
		alerts:  sink,
		now:     clock,
	}
	seen := map[string]bool{}
	for _, task := range params.Registry.Tasks() {
		name := task.Job.Name()
		if seen[name] {
			return nil, fmt.Errorf("duplicate task %q", name)
		}
		seen[name] = true

		state := &taskState{task: task}
		if params.Locks != nil {
			lock, err := params.Locks(name)
			if err != nil {
				return nil, fmt.Errorf("lock for %s: %w", name, err)
			}
			state.lock = lock
		}
		s.tasks = append(s.tasks, state)
	}
	return s, nil
}

// Start launches every task loop. Ticks run with ctx; cancelling it stops the
// loops and is visible to in-flight ticks. Start on a running scheduler is a
// no-op and returns false.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.stop = make(chan struct{})
	now := s.now()
	for _, st := range s.tasks {
		st.setNextRun(now.Add(st.task.Interval))
		s.wg.Add(1)
		go s.loop(ctx, st, s.stop)
	}
	s.logg.Info(s.logg.WithField(ctx, "tasks", len(s.tasks)), "scheduler started")
	return true
}

// Stop prevents new ticks. A tick already running finishes on its own; use
// Wait to block until it does. Returns false when already stopped.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.running = false
	close(s.stop)
	for _, st := range s.tasks {
		st.mu.Lock()
		st.nextRun = nil
		st.mu.Unlock()
	}
	s.logg.Info(context.Background(), "scheduler stopped")
	return true
}

// Wait blocks until all loops and in-flight ticks have returned or ctx ends.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of every task.
func (s *Scheduler) Status() Report {
	report := Report{Running: s.Running(), Tasks: make([]TaskStatus, 0, len(s.tasks))}
	for _, st := range s.tasks {
		st.mu.Lock()
		status := TaskStatus{
			Name:           st.task.Job.Name(),
			Interval:       st.task.Interval.String(),
			Running:        st.inFlight.Load(),
			NextRun:        copyTime(st.nextRun),
			LastRun:        copyTime(st.lastRun),
			LastDurationMs: st.lastDur.Milliseconds(),
			LastError:      st.lastErr,
			Runs:           st.runs,
			Failures:       st.failures,
			Skips:          st.skips,
		}
		st.mu.Unlock()
		report.Tasks = append(report.Tasks, status)
	}
	return report
}

// RunNow triggers one tick of the named task outside its schedule. It honors
// the same overlap guard as scheduled ticks.
func (s *Scheduler) RunNow(ctx context.Context, name string) (bool, error) {
	for _, st := range s.tasks {
		if st.task.Job.Name() == name {
			return s.runTask(ctx, st), nil
		}
	}
	return false, fmt.Errorf("unknown task %q", name)
}

func (s *Scheduler) loop(ctx context.Context, st *taskState, stop <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(st.task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.admitTick(st, stop) {
				return
			}
			go func() {
				defer s.wg.Done()
				s.runTask(ctx, st)
			}()
		}
	}
}

// admitTick registers a tick unless Stop has already closed stop. Holding mu
// orders it against Stop, so no tick starts after Stop returns.
func (s *Scheduler) admitTick(st *taskState, stop <-chan struct{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-stop:
		return false
	default:
	}
	st.setNextRun(s.now().Add(st.task.Interval))
	s.wg.Add(1)
	return true
}

// runTask executes one tick and reports whether the job actually ran.
func (s *Scheduler) runTask(ctx context.Context, st *taskState) bool {
	name := st.task.Job.Name()
	taskCtx := s.logg.WithTask(ctx, name)

	if !st.inFlight.CompareAndSwap(false, true) {
		s.logg.Warn(taskCtx, "previous run still in progress; skipping tick")
		s.recordSkip(st)
		return false
	}
	defer st.inFlight.Store(false)

	if st.lock != nil {
		locked, err := st.lock.Acquire(taskCtx)
		if err != nil {
			s.recordResult(taskCtx, st, 0, fmt.Errorf("lock acquire: %w", err))
			return false
		}
		if !locked {
			s.logg.Info(taskCtx, "task locked by another instance; skipping tick")
			s.recordSkip(st)
			return false
		}
		defer func() {
			if err := st.lock.Release(context.WithoutCancel(taskCtx)); err != nil {
				s.logg.Error(taskCtx, "failed to release task lock", err)
			}
		}()
	}

	s.logg.Info(taskCtx, "task start")
	start := s.now()
	st.mu.Lock()
	st.lastRun = &start
	st.mu.Unlock()

	err := st.task.Job.Run(taskCtx)
	s.recordResult(taskCtx, st, s.now().Sub(start), err)
	return true
}

func (s *Scheduler) recordSkip(st *taskState) {
	st.mu.Lock()
	st.skips++
	st.mu.Unlock()
	s.metrics.IncSkipped(st.task.Job.Name())
}

func (s *Scheduler) recordResult(ctx context.Context, st *taskState, duration time.Duration, err error) {
	name := st.task.Job.Name()
	s.metrics.ObserveDuration(name, duration)

	st.mu.Lock()
	st.runs++
	st.lastDur = duration
	st.lastErr = ""
	if err != nil {
		st.failures++
		st.lastErr = err.Error()
	}
	st.mu.Unlock()

	ctx = s.logg.WithField(ctx, "duration_ms", duration.Milliseconds())
	if err == nil {
		s.metrics.IncSuccess(name)
		s.logg.Info(ctx, "task completed")
		return
	}
	s.metrics.IncFailure(name)
	s.logg.Error(ctx, "task failed", err)
	if alertErr := s.alerts.Send(context.WithoutCancel(ctx), alerts.TaskFailed(name, err, s.now().UTC())); alertErr != nil {
		s.logg.Error(ctx, "failed to send task alert", alertErr)
	}
}

func (st *taskState) setNextRun(t time.Time) {
	st.mu.Lock()
	st.nextRun = &t
	st.mu.Unlock()
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
