package spotlight

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Spotlight/internal/core"
	"github.com/rs/zerolog"
)

var ErrLoopStopped = errors.New("stage loop stopped")

const DefaultInboxSize = 256

// Loop serializes everything that touches a Controller: events, retry timer
// callbacks and snapshot reads all run one at a time on the Run goroutine.
// It implements core.EventSink and core.Scheduler.
type Loop struct {
	ctl    *Controller
	inbox  chan func()
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

// NewLoop builds a Controller whose timers are delivered through the loop.
// opts.Scheduler is ignored.
func NewLoop(opts Options, inboxSize int) *Loop {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	l := &Loop{
		inbox:  make(chan func(), inboxSize),
		done:   make(chan struct{}),
		logger: opts.Logger.With().Str("module", "spotlight.loop").Str("local", string(opts.Local)).Logger(),
	}
	opts.Scheduler = l
	l.ctl = New(opts)
	return l
}

// Run processes work until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer l.ctl.Close()
	l.logger.Debug().Msg("stage loop started")
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			l.logger.Debug().Msg("stage loop ctx done")
			return
		case <-l.done:
			l.logger.Debug().Msg("stage loop stopped")
			return
		case fn := <-l.inbox:
			fn()
		}
	}
}

func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed once the loop stops accepting work.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) submit(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.inbox <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Post queues ev for dispatch, in arrival order.
func (l *Loop) Post(ev core.Event) bool {
	return l.submit(func() { l.ctl.Dispatch(ev) })
}

// AfterFunc runs fn on the loop goroutine after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) core.Timer {
	return time.AfterFunc(d, func() { l.submit(fn) })
}

func (l *Loop) Now() time.Time { return time.Now() }

// Snapshot reads the controller state from the loop goroutine.
func (l *Loop) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if !l.submit(func() { reply <- l.ctl.Snapshot() }) {
		return Snapshot{}, ErrLoopStopped
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-l.done:
		return Snapshot{}, ErrLoopStopped
	}
}
