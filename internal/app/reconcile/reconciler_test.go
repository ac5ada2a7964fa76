package reconcile

import (
	"reflect"
	"testing"
	"time"

	"github.com/dkeye/Spotlight/internal/core/coretest"
	"github.com/rs/zerolog"
)

func newReconciler() (*Reconciler, *coretest.FakeScheduler) {
	sched := coretest.NewFakeScheduler()
	return New(sched, DefaultPolicy(), zerolog.Nop()), sched
}

func TestPolicy_Delay(t *testing.T) {
	p := DefaultPolicy()
	want := []time.Duration{200, 300, 400, 500, 600}
	for i, w := range want {
		if got := p.Delay(i); got != w*time.Millisecond {
			t.Errorf("Delay(%d): expected %v, got %v", i, w*time.Millisecond, got)
		}
	}
}

func TestReconciler_exhaustsAfterExactlyMaxAttempts(t *testing.T) {
	r, sched := newReconciler()
	var attempts []int
	exhausted := 0
	r.Schedule("a", func(n int) bool { attempts = append(attempts, n); return false }, func() { exhausted++ })

	sched.Advance(10 * time.Second)

	if !reflect.DeepEqual(attempts, []int{1, 2, 3, 4, 5}) {
		t.Errorf("expected attempts 1..5, got %v", attempts)
	}
	if exhausted != 1 {
		t.Errorf("expected exhausted once, got %d", exhausted)
	}
	wantDelays := []time.Duration{200 * time.Millisecond, 300 * time.Millisecond, 400 * time.Millisecond, 500 * time.Millisecond, 600 * time.Millisecond}
	if got := sched.Delays(); !reflect.DeepEqual(got, wantDelays) {
		t.Errorf("expected delays %v, got %v", wantDelays, got)
	}
	if r.Len() != 0 {
		t.Errorf("expected no pending tasks, got %d", r.Len())
	}
}

func TestReconciler_stopsEarlyOnSuccess(t *testing.T) {
	r, sched := newReconciler()
	calls := 0
	r.Schedule("a", func(n int) bool { calls++; return n == 2 }, func() { t.Error("unexpected exhaustion") })

	sched.Advance(10 * time.Second)

	if calls != 2 {
		t.Errorf("expected 2 probes, got %d", calls)
	}
	if sched.Pending() != 0 {
		t.Errorf("expected no armed timers, got %d", sched.Pending())
	}
}

func TestReconciler_cancelIsIdempotent(t *testing.T) {
	r, sched := newReconciler()
	calls := 0
	r.Schedule("a", func(int) bool { calls++; return false }, nil)
	sched.Advance(250 * time.Millisecond)

	if !r.Cancel("a") {
		t.Fatal("expected first cancel to report true")
	}
	if r.Cancel("a") {
		t.Error("expected second cancel to be a no-op")
	}
	if r.Cancel("unknown") {
		t.Error("expected cancelling an unknown target to be a no-op")
	}
	sched.Advance(10 * time.Second)
	if calls != 1 {
		t.Errorf("expected 1 probe before cancel, got %d", calls)
	}
}

func TestReconciler_cancelFromInsideProbe(t *testing.T) {
	r, sched := newReconciler()
	calls := 0
	r.Schedule("a", func(int) bool { calls++; r.Cancel("a"); return false }, func() { t.Error("unexpected exhaustion") })
	sched.Advance(10 * time.Second)
	if calls != 1 {
		t.Errorf("expected 1 probe, got %d", calls)
	}
}

func TestReconciler_scheduleReplacesPendingTask(t *testing.T) {
	r, sched := newReconciler()
	first, second := 0, 0
	r.Schedule("a", func(int) bool { first++; return false }, nil)
	r.Schedule("a", func(int) bool { second++; return true }, nil)
	sched.Advance(10 * time.Second)
	if first != 0 || second != 1 {
		t.Errorf("expected only the replacement to run, first=%d second=%d", first, second)
	}
}

func TestReconciler_staleCallbackAfterCancel(t *testing.T) {
	r, _ := newReconciler()
	calls := 0
	r.Schedule("a", func(int) bool { calls++; return false }, nil)
	stale := r.tasks["a"]
	r.Cancel("a")
	r.fire(stale)
	if calls != 0 {
		t.Errorf("fired-after-cancel callback must be a no-op, got %d probes", calls)
	}
}

func TestReconciler_pendingReportsProgress(t *testing.T) {
	r, sched := newReconciler()
	r.Schedule("a", func(int) bool { return false }, nil)
	task, ok := r.Pending("a")
	if !ok || task.Attempt != 0 || task.MaxAttempts != 5 {
		t.Fatalf("unexpected task %+v ok=%v", task, ok)
	}
	if want := sched.Now().Add(200 * time.Millisecond); !task.ScheduledAt.Equal(want) {
		t.Errorf("expected ScheduledAt %v, got %v", want, task.ScheduledAt)
	}
	sched.Advance(200 * time.Millisecond)
	task, _ = r.Pending("a")
	if task.Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", task.Attempt)
	}
	r.CancelAll()
	if _, ok := r.Pending("a"); ok {
		t.Error("expected no task after CancelAll")
	}
}
