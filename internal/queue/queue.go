// Package queue throttles outbound calls per account.
//
// Each account gets one FIFO queue that bounds how many units of work run at once
// and enforces a minimum spacing between the starts of consecutive dispatches.
package queue

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/GoWebProd/obsidian-jira-master/internal/transport"
)

// Work is a unit of work admitted to a queue.
type Work func(ctx context.Context) (*transport.Response, error)

type result struct {
	resp *transport.Response
	err  error
}

type entry struct {
	ctx  context.Context
	work Work
	done chan result
}

type Queue struct {
	alias   domain.AccountAlias
	enabled bool
	delay   time.Duration
	slots   chan struct{}
	sleep   transport.SleepFunc
	now     func() time.Time
	logger  *slog.Logger

	mu           sync.Mutex
	pending      []*entry
	draining     bool
	waiting      int
	running      int
	lastDispatch time.Time
}

type Option func(*Queue)

func WithSleep(sleep transport.SleepFunc) Option {
	return func(q *Queue) {
		if sleep != nil {
			q.sleep = sleep
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func New(alias domain.AccountAlias, policy domain.RateLimit, opts ...Option) *Queue {
	q := &Queue{
		alias:   alias,
		enabled: policy.Enabled,
		delay:   policy.Delay,
		slots:   make(chan struct{}, policy.Slots()),
		sleep:   transport.SleepContext,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add runs work once a slot is free and the spacing delay has elapsed, in submission order.
// With rate limiting disabled the work runs immediately on the caller's goroutine.
func (q *Queue) Add(ctx context.Context, work Work) (*transport.Response, error) {
	if !q.enabled {
		return work(ctx)
	}

	e := &entry{ctx: ctx, work: work, done: make(chan result, 1)}

	q.mu.Lock()
	q.pending = append(q.pending, e)
	if !q.draining {
		q.draining = true
		go q.drain()
	}
	q.mu.Unlock()

	select {
	case res := <-e.done:
		return res.resp, res.err
	case <-ctx.Done():
		if q.abandon(e) {
			return nil, ctx.Err()
		}
		// Already taken by drain; dispatch observes the same ctx and answers promptly.
		res := <-e.done
		return res.resp, res.err
	}
}

// abandon drops e from the FIFO if drain has not taken it yet.
func (q *Queue) abandon(e *entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, pending := range q.pending {
		if pending == e {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// drain dispatches pending entries until the FIFO is empty.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		e := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.waiting = 1
		q.mu.Unlock()

		q.dispatch(e)
	}
}

func (q *Queue) dispatch(e *entry) {
	if err := e.ctx.Err(); err != nil {
		q.reject(e, err)
		return
	}

	select {
	case q.slots <- struct{}{}:
	case <-e.ctx.Done():
		q.reject(e, e.ctx.Err())
		return
	}

	q.mu.Lock()
	last := q.lastDispatch
	q.mu.Unlock()

	if !last.IsZero() && q.delay > 0 {
		if wait := q.delay - q.now().Sub(last); wait > 0 {
			if err := q.sleep(e.ctx, wait); err != nil {
				<-q.slots
				q.reject(e, err)
				return
			}
		}
	}

	q.mu.Lock()
	q.lastDispatch = q.now()
	q.waiting = 0
	q.running++
	q.mu.Unlock()

	q.logger.Debug("queue dispatch", "account", q.alias)

	go func() {
		resp, err := e.work(e.ctx)

		q.mu.Lock()
		q.running--
		q.mu.Unlock()
		<-q.slots

		e.done <- result{resp: resp, err: err}
	}()
}

func (q *Queue) reject(e *entry, err error) {
	q.mu.Lock()
	q.waiting = 0
	q.mu.Unlock()

	e.done <- result{err: err}
}

type Stats struct {
	Alias   domain.AccountAlias
	Enabled bool
	Pending int
	Running int
	Slots   int
	Delay   time.Duration
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Alias:   q.alias,
		Enabled: q.enabled,
		Pending: len(q.pending) + q.waiting,
		Running: q.running,
		Slots:   cap(q.slots),
		Delay:   q.delay,
	}
}
