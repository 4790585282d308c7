package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/GoWebProd/obsidian-jira-master/internal/backoff"
)

// MaxRetries bounds how many times a throttled exchange is repeated.
const MaxRetries = 5

type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier wraps one exchange with bounded retry on HTTP 429.
// It knows nothing about accounts or queues.
type Retrier struct {
	exchanger  Exchanger
	maxRetries int
	schedule   backoff.Schedule
	sleep      SleepFunc
	now        func() time.Time
	logger     *slog.Logger
}

type RetrierOption func(*Retrier)

func WithMaxRetries(n int) RetrierOption {
	return func(r *Retrier) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

func WithSchedule(schedule backoff.Schedule) RetrierOption {
	return func(r *Retrier) { r.schedule = schedule }
}

func WithSleep(sleep SleepFunc) RetrierOption {
	return func(r *Retrier) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

func WithNow(now func() time.Time) RetrierOption {
	return func(r *Retrier) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) RetrierOption {
	return func(r *Retrier) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRetrier(exchanger Exchanger, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		exchanger:  exchanger,
		maxRetries: MaxRetries,
		schedule:   backoff.DefaultSchedule,
		sleep:      SleepContext,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// outcome folds transport failures and HTTP responses into one shape.
type outcome struct {
	resp *Response
	err  error
}

func (o outcome) status() int {
	if o.resp == nil {
		return 0
	}
	return o.resp.StatusCode
}

// Send performs the exchange, sleeping and retrying while the server answers 429.
// Any other result, or the last 429 once retries are exhausted, is returned unchanged.
func (r *Retrier) Send(ctx context.Context, req *Request) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := r.exchanger.Exchange(ctx, req)
		result := outcome{resp: resp, err: err}

		if result.status() != http.StatusTooManyRequests || attempt >= r.maxRetries {
			return result.resp, result.err
		}

		wait := r.waitFor(result.resp, attempt)
		r.logger.Debug("request throttled, retrying",
			"url", req.URL,
			"attempt", attempt+1,
			"max_retries", r.maxRetries,
			"wait", wait,
		)

		if err := r.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (r *Retrier) waitFor(resp *Response, attempt int) time.Duration {
	if resp != nil && resp.Header != nil {
		if wait, ok := backoff.ParseRetryAfter(resp.Header.Get("Retry-After"), r.now()); ok {
			return wait
		}
	}
	return r.schedule.ComputeDelay(attempt)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
