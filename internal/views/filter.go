package views

import (
	"time"

	"github.com/caevv/suiteboard/internal/domain"
)

// ExecutionFilter selects executions by equality. Empty fields match all.
type ExecutionFilter struct {
	Product     string
	Environment string
	Status      domain.ExecutionStatus
	// Since drops executions started before it when non-zero.
	Since time.Time
}

func (f ExecutionFilter) match(e domain.Execution) bool {
	if f.Product != "" && e.Product != f.Product {
		return false
	}
	if f.Environment != "" && e.Environment != f.Environment {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.Since.IsZero() && e.StartTime.Before(f.Since) {
		return false
	}
	return true
}

// FilterExecutions returns the executions matching f, preserving order.
func FilterExecutions(executions []domain.Execution, f ExecutionFilter) []domain.Execution {
	out := make([]domain.Execution, 0, len(executions))
	for _, e := range executions {
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out
}

// ExecutionOptions lists the distinct values present in the history.
type ExecutionOptions struct {
	Products     []string                 `json:"products"`
	Environments []string                 `json:"environments"`
	Statuses     []domain.ExecutionStatus `json:"statuses"`
}

// ExecutionFilterOptions returns distinct products, environments and
// statuses in first-seen order.
func ExecutionFilterOptions(executions []domain.Execution) ExecutionOptions {
	opts := ExecutionOptions{
		Products:     []string{},
		Environments: []string{},
		Statuses:     []domain.ExecutionStatus{},
	}
	products := newDistinct(&opts.Products)
	envs := newDistinct(&opts.Environments)
	seenStatus := make(map[domain.ExecutionStatus]bool)

	for _, e := range executions {
		products.add(e.Product)
		envs.add(e.Environment)
		if e.Status != "" && !seenStatus[e.Status] {
			seenStatus[e.Status] = true
			opts.Statuses = append(opts.Statuses, e.Status)
		}
	}
	return opts
}

// SuiteFilter selects suites. Agent and Type match exactly; each non-empty
// list needs at least one value in common with the suite.
type SuiteFilter struct {
	Agent          string   `json:"agent,omitempty"`
	Products       []string `json:"products,omitempty"`
	CloudProviders []string `json:"cloud_providers,omitempty"`
	Environments   []string `json:"environments,omitempty"`
	PodNames       []string `json:"pod_names,omitempty"`
	Type           string   `json:"test_suite_type,omitempty"`
}

// IsEmpty reports whether f imposes no constraint.
func (f SuiteFilter) IsEmpty() bool {
	return f.Agent == "" && f.Type == "" &&
		len(f.Products) == 0 && len(f.CloudProviders) == 0 &&
		len(f.Environments) == 0 && len(f.PodNames) == 0
}

func (f SuiteFilter) match(s domain.TestSuite) bool {
	if f.Agent != "" && s.Agent != f.Agent {
		return false
	}
	if f.Type != "" && s.TestSuiteType != f.Type {
		return false
	}
	return intersects(s.Products, f.Products) &&
		intersects(s.CloudProviders, f.CloudProviders) &&
		intersects(s.Environments, f.Environments) &&
		intersects(s.PodNames, f.PodNames)
}

// FilterSuites returns the suites matching f, preserving order.
func FilterSuites(suites []domain.TestSuite, f SuiteFilter) []domain.TestSuite {
	out := make([]domain.TestSuite, 0, len(suites))
	for _, s := range suites {
		if f.match(s) {
			out = append(out, s)
		}
	}
	return out
}

// SuitesForSchedule returns the suites a schedule would trigger.
func SuitesForSchedule(suites []domain.TestSuite, s domain.Schedule) []domain.TestSuite {
	return FilterSuites(suites, SuiteFilter{
		Products:       s.Products,
		CloudProviders: s.CloudProviders,
		Environments:   s.Environments,
		PodNames:       s.PodNames,
		Type:           s.TestSuiteType,
	})
}

// SuiteOptions lists the distinct values present across suites.
type SuiteOptions struct {
	Agents         []string `json:"agents"`
	Products       []string `json:"products"`
	CloudProviders []string `json:"cloud_providers"`
	Environments   []string `json:"environments"`
	PodNames       []string `json:"pod_names"`
	Types          []string `json:"test_suite_types"`
}

// SuiteFilterOptions returns distinct suite attribute values in first-seen
// order.
func SuiteFilterOptions(suites []domain.TestSuite) SuiteOptions {
	opts := SuiteOptions{
		Agents:         []string{},
		Products:       []string{},
		CloudProviders: []string{},
		Environments:   []string{},
		PodNames:       []string{},
		Types:          []string{},
	}
	agents := newDistinct(&opts.Agents)
	products := newDistinct(&opts.Products)
	clouds := newDistinct(&opts.CloudProviders)
	envs := newDistinct(&opts.Environments)
	pods := newDistinct(&opts.PodNames)
	types := newDistinct(&opts.Types)

	for _, s := range suites {
		agents.add(s.Agent)
		types.add(s.TestSuiteType)
		products.add(s.Products...)
		clouds.add(s.CloudProviders...)
		envs.add(s.Environments...)
		pods.add(s.PodNames...)
	}
	return opts
}

func intersects(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

type distinct struct {
	seen map[string]bool
	out  *[]string
}

func newDistinct(out *[]string) *distinct {
	return &distinct{seen: make(map[string]bool), out: out}
}

func (d *distinct) add(values ...string) {
	for _, v := range values {
		if v == "" || d.seen[v] {
			continue
		}
		d.seen[v] = true
		*d.out = append(*d.out, v)
	}
}
