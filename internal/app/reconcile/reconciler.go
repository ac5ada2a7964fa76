// Package reconcile schedules bounded, identity-keyed retries for tracks
// that an event says should exist but have not arrived yet.
package reconcile

import (
	"slices"
	"time"

	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/rs/zerolog"
)

// Policy describes the retry schedule: attempt i (0-based) fires Base + i*Step
// after the previous one.
type Policy struct {
	Base        time.Duration
	Step        time.Duration
	MaxAttempts int
}

// DefaultPolicy yields 200, 300, 400, 500 and 600ms.
func DefaultPolicy() Policy {
	return Policy{
		Base:        200 * time.Millisecond,
		Step:        100 * time.Millisecond,
		MaxAttempts: 5,
	}
}

func (p Policy) Delay(attempt int) time.Duration {
	return p.Base + time.Duration(attempt)*p.Step
}

// Probe runs once per attempt (1-based). Returning true ends the sequence.
type Probe func(attempt int) bool

// Task is the state of one retry sequence.
type Task struct {
	Target      domain.Identity
	Attempt     int
	MaxAttempts int
	ScheduledAt time.Time

	probe     Probe
	exhausted func()
	timer     core.Timer
	done      bool
}

// Reconciler keeps at most one Task per identity. It is not goroutine-safe:
// all calls, including timer callbacks, must come from the same loop.
type Reconciler struct {
	sched  core.Scheduler
	policy Policy
	tasks  map[domain.Identity]*Task
	logger zerolog.Logger
}

func New(sched core.Scheduler, policy Policy, logger zerolog.Logger) *Reconciler {
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}
	return &Reconciler{
		sched:  sched,
		policy: policy,
		tasks:  make(map[domain.Identity]*Task),
		logger: logger.With().Str("module", "reconcile").Logger(),
	}
}

func (r *Reconciler) Policy() Policy { return r.policy }

// Schedule starts a retry sequence for target, replacing any pending one.
// exhausted runs once if every attempt's probe returns false.
func (r *Reconciler) Schedule(target domain.Identity, probe Probe, exhausted func()) {
	r.Cancel(target)
	t := &Task{
		Target:      target,
		MaxAttempts: r.policy.MaxAttempts,
		probe:       probe,
		exhausted:   exhausted,
	}
	r.tasks[target] = t
	r.arm(t)
	r.logger.Debug().Str("target", string(target)).Int("max_attempts", t.MaxAttempts).Msg("retry scheduled")
}

func (r *Reconciler) arm(t *Task) {
	d := r.policy.Delay(t.Attempt)
	t.ScheduledAt = r.sched.Now().Add(d)
	t.timer = r.sched.AfterFunc(d, func() { r.fire(t) })
}

func (r *Reconciler) fire(t *Task) {
	// A callback may already be queued when the task is cancelled.
	if t.done || r.tasks[t.Target] != t {
		return
	}
	t.Attempt++
	ok := t.probe(t.Attempt)
	if t.done {
		return
	}
	if ok {
		r.finish(t)
		r.logger.Debug().Str("target", string(t.Target)).Int("attempt", t.Attempt).Msg("retry satisfied")
		return
	}
	if t.Attempt >= t.MaxAttempts {
		r.finish(t)
		r.logger.Info().Str("target", string(t.Target)).Int("attempts", t.Attempt).Msg("retry exhausted")
		if t.exhausted != nil {
			t.exhausted()
		}
		return
	}
	r.arm(t)
}

func (r *Reconciler) finish(t *Task) {
	t.done = true
	if t.timer != nil {
		t.timer.Stop()
	}
	if r.tasks[t.Target] == t {
		delete(r.tasks, t.Target)
	}
}

// Cancel stops the sequence for target. Cancelling an unknown, fired or
// already cancelled task is a no-op that returns false.
func (r *Reconciler) Cancel(target domain.Identity) bool {
	t, ok := r.tasks[target]
	if !ok {
		return false
	}
	r.finish(t)
	r.logger.Debug().Str("target", string(target)).Int("attempt", t.Attempt).Msg("retry cancelled")
	return true
}

// CancelAll stops every pending sequence.
func (r *Reconciler) CancelAll() {
	for id := range r.tasks {
		r.Cancel(id)
	}
}

// Pending returns a copy of the task for target, if one is running.
func (r *Reconciler) Pending(target domain.Identity) (Task, bool) {
	t, ok := r.tasks[target]
	if !ok {
		return Task{}, false
	}
	return Task{Target: t.Target, Attempt: t.Attempt, MaxAttempts: t.MaxAttempts, ScheduledAt: t.ScheduledAt}, true
}

func (r *Reconciler) Len() int { return len(r.tasks) }

// Targets lists identities with a running sequence, sorted.
func (r *Reconciler) Targets() []domain.Identity {
	out := make([]domain.Identity, 0, len(r.tasks))
	for id := range r.tasks {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
