// Package backoff computes how long to wait before retrying a throttled request.
//
// The exponential schedule is delay = Base * 2^attempt, capped at Max.
// A server-supplied Retry-After header takes precedence when it parses.
package backoff

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBase = time.Second
	DefaultMax  = 30 * time.Second
)

type Schedule struct {
	Base time.Duration
	Max  time.Duration
}

var DefaultSchedule = Schedule{Base: DefaultBase, Max: DefaultMax}

// ComputeDelay returns the wait before retry number attempt (0-based) on the default schedule.
func ComputeDelay(attempt int) time.Duration {
	return DefaultSchedule.ComputeDelay(attempt)
}

func (s Schedule) ComputeDelay(attempt int) time.Duration {
	base := s.Base
	if base <= 0 {
		base = DefaultBase
	}
	limit := s.Max
	if limit <= 0 {
		limit = DefaultMax
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	if delay > limit {
		return limit
	}

	return delay
}

// ParseRetryAfter reads a Retry-After value given either as delta-seconds or as an HTTP-date.
// Dates in the past yield zero. The second result is false when the value cannot be parsed.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}

	wait := at.Sub(now)
	if wait < 0 {
		return 0, true
	}

	return wait, true
}
