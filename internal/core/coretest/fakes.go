// Package coretest provides deterministic fakes for core interfaces.
package coretest

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
)

// FakeScheduler is a manual clock. Callbacks run synchronously from Advance.
type FakeScheduler struct {
	now    time.Time
	seq    int
	timers []*FakeTimer
}

func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{now: time.Unix(0, 0)}
}

type FakeTimer struct {
	At      time.Time
	Delay   time.Duration
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (t *FakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *FakeScheduler) Now() time.Time { return s.now }

func (s *FakeScheduler) AfterFunc(d time.Duration, fn func()) core.Timer {
	s.seq++
	t := &FakeTimer{At: s.now.Add(d), Delay: d, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward, firing due timers in deadline order.
// Timers scheduled by callbacks fire too if they fall inside the window.
func (s *FakeScheduler) Advance(d time.Duration) {
	end := s.now.Add(d)
	for {
		t := s.next(end)
		if t == nil {
			break
		}
		s.now = t.At
		t.fired = true
		t.fn()
	}
	s.now = end
}

func (s *FakeScheduler) next(end time.Time) *FakeTimer {
	pending := make([]*FakeTimer, 0, len(s.timers))
	for _, t := range s.timers {
		if !t.stopped && !t.fired && !t.At.After(end) {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].At.Equal(pending[j].At) {
			return pending[i].seq < pending[j].seq
		}
		return pending[i].At.Before(pending[j].At)
	})
	return pending[0]
}

// Pending returns the number of timers that are neither stopped nor fired.
func (s *FakeScheduler) Pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Delays returns the delay of every timer ever scheduled, in order.
func (s *FakeScheduler) Delays() []time.Duration {
	out := make([]time.Duration, 0, len(s.timers))
	for _, t := range s.timers {
		out = append(out, t.Delay)
	}
	return out
}

type CommandKind string

const (
	CmdShow   CommandKind = "show"
	CmdClear  CommandKind = "clear"
	CmdNotify CommandKind = "notify"
)

type Command struct {
	Kind     CommandKind
	Track    *domain.Track
	Label    string
	Screen   bool
	Message  string
	Severity core.Severity
}

// RecordingSink records every render command.
type RecordingSink struct {
	mu   sync.Mutex
	cmds []Command
}

func (r *RecordingSink) ShowOnStage(track *domain.Track, label string, isScreenShare bool) {
	r.add(Command{Kind: CmdShow, Track: track, Label: label, Screen: isScreenShare})
}

func (r *RecordingSink) ClearStage() { r.add(Command{Kind: CmdClear}) }

func (r *RecordingSink) Notify(message string, severity core.Severity) {
	r.add(Command{Kind: CmdNotify, Message: message, Severity: severity})
}

func (r *RecordingSink) add(c Command) {
	r.mu.Lock()
	r.cmds = append(r.cmds, c)
	r.mu.Unlock()
}

func (r *RecordingSink) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.cmds...)
}

// Stage returns commands that touch the stage, skipping notices.
func (r *RecordingSink) Stage() []Command {
	var out []Command
	for _, c := range r.Commands() {
		if c.Kind != CmdNotify {
			out = append(out, c)
		}
	}
	return out
}

// Notices returns the notify commands only.
func (r *RecordingSink) Notices() []Command {
	var out []Command
	for _, c := range r.Commands() {
		if c.Kind == CmdNotify {
			out = append(out, c)
		}
	}
	return out
}

// Last returns the latest stage command, or a zero Command.
func (r *RecordingSink) Last() Command {
	st := r.Stage()
	if len(st) == 0 {
		return Command{}
	}
	return st[len(st)-1]
}

func (r *RecordingSink) Reset() {
	r.mu.Lock()
	r.cmds = nil
	r.mu.Unlock()
}

// EventRecorder is an EventSink that keeps everything it is given.
type EventRecorder struct {
	mu      sync.Mutex
	events  []core.Event
	Stopped bool
}

func (e *EventRecorder) Post(ev core.Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Stopped {
		return false
	}
	e.events = append(e.events, ev)
	return true
}

func (e *EventRecorder) Events() []core.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.Event(nil), e.events...)
}

// Names returns EventName of every recorded event.
func (e *EventRecorder) Names() []string {
	evs := e.Events()
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.EventName()
	}
	return out
}
