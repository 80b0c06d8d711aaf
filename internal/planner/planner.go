// Package planner computes when a schedule should next fire.
package planner

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/caevv/suiteboard/internal/domain"
)

// CronPlaceholder is how far ahead a cron schedule's next run is placed.
// Cron expressions are syntax-checked but not evaluated.
const CronPlaceholder = 24 * time.Hour

var clockRegex = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// NextRun returns the next fire time of s strictly after now.
func NextRun(s domain.ScheduleSpec, now time.Time) (time.Time, error) {
	switch s.ScheduleType {
	case domain.ScheduleCron:
		return now.Add(CronPlaceholder), nil
	case domain.ScheduleInterval:
		return nextInterval(s, now)
	default:
		return time.Time{}, fmt.Errorf("%w: unknown schedule type %q", domain.ErrInvalidScheduleConfig, s.ScheduleType)
	}
}

func nextInterval(s domain.ScheduleSpec, now time.Time) (time.Time, error) {
	hour, minute, err := ParseClock(s.Time)
	if err != nil {
		return time.Time{}, err
	}

	loc, err := location(s.Timezone)
	if err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if candidate.After(now) {
		return candidate, nil
	}

	switch s.Interval {
	case domain.IntervalDaily:
		return candidate.AddDate(0, 0, 1), nil
	case domain.IntervalWeekly:
		return candidate.AddDate(0, 0, 7), nil
	case domain.IntervalMonthly:
		return candidate.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown interval %q", domain.ErrInvalidScheduleConfig, s.Interval)
	}
}

// ParseClock parses "H:MM" or "HH:MM" into hour and minute.
func ParseClock(v string) (hour, minute int, err error) {
	m := clockRegex.FindStringSubmatch(v)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: time %q is not HH:MM", domain.ErrInvalidScheduleConfig, v)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time %q out of range", domain.ErrInvalidScheduleConfig, v)
	}
	return hour, minute, nil
}

func location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", domain.ErrInvalidScheduleConfig, name, err)
	}
	return loc, nil
}
