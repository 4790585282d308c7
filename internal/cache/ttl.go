package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// ParseTTL reads compact durations such as "15m", "24h", "7d" or "2w".
// An empty string yields DefaultTTL.
func ParseTTL(raw string) (time.Duration, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return DefaultTTL, nil
	}

	var (
		ttl time.Duration
		err error
	)
	switch {
	case strings.HasSuffix(value, "w"):
		ttl, err = scaled(strings.TrimSuffix(value, "w"), week)
	case strings.HasSuffix(value, "d"):
		ttl, err = scaled(strings.TrimSuffix(value, "d"), day)
	case strings.IndexFunc(value, isUnitRune) < 0:
		err = fmt.Errorf("missing unit")
	default:
		ttl, err = cast.ToDurationE(value)
	}
	if err != nil {
		return 0, fmt.Errorf("parse cache ttl %q: %w", raw, err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("parse cache ttl %q: must be positive", raw)
	}

	return ttl, nil
}

func scaled(count string, unit time.Duration) (time.Duration, error) {
	n, err := cast.ToIntE(count)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * unit, nil
}

func isUnitRune(r rune) bool {
	return r < '0' || r > '9'
}
