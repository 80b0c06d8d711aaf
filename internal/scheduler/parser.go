package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// Parser with seconds support for sub-minute sweep ticks
	tickParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	// Regex for human-readable interval format: "every 5m", "every 2h", "every 30s"
	intervalRegex = regexp.MustCompile(`^every\s+(\d+)\s*(s|sec|second|seconds|m|min|minute|minutes|h|hour|hours)$`)
)

// ParseTick parses how often the sweeper runs.
// Supports:
// - Go durations: "30s", "1m"
// - Human-readable intervals: "every 30s", "every 5m"
// - Cron expressions and descriptors: "*/30 * * * * *", "@every 1m", "@hourly"
func ParseTick(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("sweep interval cannot be empty")
	}

	if d, err := time.ParseDuration(expr); err == nil {
		return every(d)
	}

	if strings.HasPrefix(strings.ToLower(expr), "every ") {
		schedule, err := parseInterval(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid interval expression %q: %w", expr, err)
		}
		return schedule, nil
	}

	schedule, err := tickParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep interval %q: %w", expr, err)
	}
	return schedule, nil
}

// parseInterval parses human-readable interval expressions like "every 5m".
func parseInterval(expr string) (cron.Schedule, error) {
	matches := intervalRegex.FindStringSubmatch(strings.ToLower(expr))
	if len(matches) != 3 {
		return nil, fmt.Errorf("invalid format, expected 'every <number> <unit>' (e.g., 'every 30s')")
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil || value <= 0 {
		return nil, fmt.Errorf("invalid interval value: must be a positive integer")
	}

	var unit time.Duration
	switch matches[2] {
	case "s", "sec", "second", "seconds":
		unit = time.Second
	case "m", "min", "minute", "minutes":
		unit = time.Minute
	case "h", "hour", "hours":
		unit = time.Hour
	}
	return every(time.Duration(value) * unit)
}

func every(d time.Duration) (cron.Schedule, error) {
	if d < time.Second {
		return nil, fmt.Errorf("sweep interval must be at least 1 second")
	}
	if d > 24*time.Hour {
		return nil, fmt.Errorf("sweep interval cannot exceed 24h")
	}
	return cron.Every(d), nil
}
