package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidTTL is returned for a ttl expression that is not <integer><unit>
// with unit one of s, m, h or d. It is a configuration error.
var ErrInvalidTTL = errors.New("invalid token ttl expression")

// ParseTTL converts a compact duration such as "90s", "60m", "12h" or "7d"
// into a time.Duration. A leading minus sign is accepted so that already
// expired tokens can be minted in tests.
func ParseTTL(expr string) (time.Duration, error) {
	if len(expr) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTTL, expr)
	}

	var unit time.Duration
	switch expr[len(expr)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTTL, expr)
	}

	digits := expr[:len(expr)-1]
	if digits[0] == '+' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTTL, expr)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTTL, expr)
	}

	limit := int64(1<<63-1) / int64(unit)
	if n > limit || n < -limit {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidTTL, expr)
	}
	return time.Duration(n) * unit, nil
}
