package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate is at most Limit events per Window.
type Rate struct {
	Limit  int64
	Window time.Duration
}

func (r Rate) IsZero() bool { return r.Limit == 0 && r.Window == 0 }

func (r Rate) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d/%s", r.Limit, r.Window)
}

// ParseRate parses "<limit>/<duration>", e.g. "20/1m". The window must be
// a whole number of seconds. An empty string is the zero Rate.
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rate{}, nil
	}
	limitStr, windowStr, ok := strings.Cut(s, "/")
	if !ok {
		return Rate{}, fmt.Errorf("unexpected rate format: %s", s)
	}
	limit, err := strconv.ParseInt(strings.TrimSpace(limitStr), 10, 64)
	if err != nil || limit <= 0 {
		return Rate{}, fmt.Errorf("unexpected rate limit: %s", s)
	}
	window, err := time.ParseDuration(strings.TrimSpace(windowStr))
	if err != nil {
		return Rate{}, fmt.Errorf("unexpected time format: %s", windowStr)
	}
	if window < time.Second || window%time.Second != 0 {
		return Rate{}, fmt.Errorf("rate window must be whole seconds: %s", windowStr)
	}
	return Rate{Limit: limit, Window: window}, nil
}
