package domain

import (
	"strings"
	"time"
)

// ScheduleType selects how a schedule's next run is computed.
type ScheduleType string

const (
	ScheduleCron     ScheduleType = "cron"
	ScheduleInterval ScheduleType = "interval"
)

// Interval is the recurrence unit of an interval schedule.
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// ScheduleSpec holds the user-editable attributes of a schedule.
type ScheduleSpec struct {
	Name           string       `json:"name" validate:"required"`
	Products       []string     `json:"products" validate:"min=1,dive,oneof=MDM CAI TASKFLOW ANALYTICS PLATFORM"`
	CloudProviders []string     `json:"cloud_providers" validate:"dive,oneof=AWS AZURE GCP ORACLE"`
	Environments   []string     `json:"environments" validate:"min=1,dive,oneof=PROD STAGING PREVIEW DEV"`
	PodNames       []string     `json:"pod_names" validate:"dive,oneof=usw1 usw3 usw5 use2 use4 use6 apse1"`
	TestSuiteType  string       `json:"test_suite_type,omitempty" validate:"omitempty,oneof=health-check functional full-test"`
	ScheduleType   ScheduleType `json:"schedule_type" validate:"required,oneof=cron interval"`
	CronExpression string       `json:"cron_expression,omitempty"`
	Interval       Interval     `json:"interval,omitempty"`
	Time           string       `json:"time,omitempty"`
	Timezone       string       `json:"timezone,omitempty"`
}

// Normalize trims free-text fields and applies the scheduler form defaults.
func (s *ScheduleSpec) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.CronExpression = strings.TrimSpace(s.CronExpression)
	s.Time = strings.TrimSpace(s.Time)
	s.Timezone = strings.TrimSpace(s.Timezone)
	if s.ScheduleType == "" {
		s.ScheduleType = ScheduleCron
	}
	if s.ScheduleType == ScheduleInterval && s.Interval == "" {
		s.Interval = IntervalDaily
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
}

// Schedule is a recurring trigger definition.
type Schedule struct {
	ID string `json:"id"`
	ScheduleSpec
	Active    bool       `json:"active"`
	NextRun   time.Time  `json:"next_run"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Clone returns a deep copy.
func (s Schedule) Clone() Schedule {
	s.Products = cloneStrings(s.Products)
	s.CloudProviders = cloneStrings(s.CloudProviders)
	s.Environments = cloneStrings(s.Environments)
	s.PodNames = cloneStrings(s.PodNames)
	s.LastRun = cloneTime(s.LastRun)
	return s
}

// Due reports whether an active schedule should fire at now.
func (s Schedule) Due(now time.Time) bool {
	return s.Active && !s.NextRun.IsZero() && !s.NextRun.After(now)
}

// SchedulePatch is a partial update of a schedule.
type SchedulePatch struct {
	Name           *string       `json:"name,omitempty"`
	Products       *[]string     `json:"products,omitempty"`
	CloudProviders *[]string     `json:"cloud_providers,omitempty"`
	Environments   *[]string     `json:"environments,omitempty"`
	PodNames       *[]string     `json:"pod_names,omitempty"`
	TestSuiteType  *string       `json:"test_suite_type,omitempty"`
	ScheduleType   *ScheduleType `json:"schedule_type,omitempty"`
	CronExpression *string       `json:"cron_expression,omitempty"`
	Interval       *Interval     `json:"interval,omitempty"`
	Time           *string       `json:"time,omitempty"`
	Timezone       *string       `json:"timezone,omitempty"`
	Active         *bool         `json:"active,omitempty"`
	LastRun        *time.Time    `json:"-"`
}

// Apply merges the present fields of p into s.
func (p SchedulePatch) Apply(s *Schedule) {
	setString(&s.Name, p.Name)
	setStrings(&s.Products, p.Products)
	setStrings(&s.CloudProviders, p.CloudProviders)
	setStrings(&s.Environments, p.Environments)
	setStrings(&s.PodNames, p.PodNames)
	setString(&s.TestSuiteType, p.TestSuiteType)
	if p.ScheduleType != nil {
		s.ScheduleType = *p.ScheduleType
	}
	setString(&s.CronExpression, p.CronExpression)
	if p.Interval != nil {
		s.Interval = *p.Interval
	}
	setString(&s.Time, p.Time)
	setString(&s.Timezone, p.Timezone)
	if p.Active != nil {
		s.Active = *p.Active
	}
	if p.LastRun != nil {
		s.LastRun = cloneTime(p.LastRun)
	}
}
