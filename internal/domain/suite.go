package domain

import (
	"strings"
	"time"
)

// DefaultTimeoutMinutes is applied when a suite is created without a timeout.
const DefaultTimeoutMinutes = 30

// SuiteSpec holds the user-editable attributes of a test suite.
type SuiteSpec struct {
	Name                   string   `json:"name" validate:"required"`
	Agent                  string   `json:"agent" validate:"required,oneof=harness-delegator temporal-agent default-agent"`
	TargetURL              string   `json:"target_url" validate:"required,httpurl"`
	Products               []string `json:"products" validate:"min=1,dive,oneof=MDM CAI TASKFLOW ANALYTICS PLATFORM"`
	CloudProviders         []string `json:"cloud_providers" validate:"dive,oneof=AWS AZURE GCP ORACLE"`
	Environments           []string `json:"environments" validate:"min=1,dive,oneof=PROD STAGING PREVIEW DEV"`
	PodNames               []string `json:"pod_names" validate:"dive,oneof=usw1 usw3 usw5 use2 use4 use6 apse1"`
	TestSuiteType          string   `json:"test_suite_type" validate:"required,oneof=health-check functional full-test"`
	NotificationEmails     []string `json:"notification_emails" validate:"dive,basic_email"`
	NotificationConditions []string `json:"notification_conditions" validate:"dive,oneof=success failure on-trigger all"`
	RetryCount             int      `json:"retry_count" validate:"gte=0,lte=10"`
	TimeoutMinutes         int      `json:"timeout_minutes" validate:"gte=1,lte=120"`
	DocumentationURL       string   `json:"documentation_url,omitempty"`
}

// Normalize trims free-text fields and splits the email list.
func (s *SuiteSpec) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.TargetURL = strings.TrimSpace(s.TargetURL)
	s.DocumentationURL = strings.TrimSpace(s.DocumentationURL)
	s.NotificationEmails = splitEmails(s.NotificationEmails)
}

// ApplyDefaults fills the values the onboarding form pre-populates. It is
// only used on creation; updates validate what they are given.
func (s *SuiteSpec) ApplyDefaults() {
	if s.TimeoutMinutes == 0 {
		s.TimeoutMinutes = DefaultTimeoutMinutes
	}
}

// splitEmails accepts both list entries and comma-separated strings and
// drops empty entries.
func splitEmails(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, e := range strings.Split(entry, ",") {
			if e = strings.TrimSpace(e); e != "" {
				out = append(out, e)
			}
		}
	}
	return out
}

// TestSuite is a registered trigger target.
type TestSuite struct {
	ID string `json:"id"`
	SuiteSpec
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrimaryProduct returns the first product or "Unknown".
func (s TestSuite) PrimaryProduct() string {
	if len(s.Products) > 0 {
		return s.Products[0]
	}
	return "Unknown"
}

// PrimaryEnvironment returns the first environment or "Unknown".
func (s TestSuite) PrimaryEnvironment() string {
	if len(s.Environments) > 0 {
		return s.Environments[0]
	}
	return "Unknown"
}

// Clone returns a deep copy so callers cannot alias registry state.
func (s TestSuite) Clone() TestSuite {
	s.Products = cloneStrings(s.Products)
	s.CloudProviders = cloneStrings(s.CloudProviders)
	s.Environments = cloneStrings(s.Environments)
	s.PodNames = cloneStrings(s.PodNames)
	s.NotificationEmails = cloneStrings(s.NotificationEmails)
	s.NotificationConditions = cloneStrings(s.NotificationConditions)
	return s
}

// SuitePatch is a partial update. Nil fields are left untouched.
type SuitePatch struct {
	Name                   *string   `json:"name,omitempty"`
	Agent                  *string   `json:"agent,omitempty"`
	TargetURL              *string   `json:"target_url,omitempty"`
	Products               *[]string `json:"products,omitempty"`
	CloudProviders         *[]string `json:"cloud_providers,omitempty"`
	Environments           *[]string `json:"environments,omitempty"`
	PodNames               *[]string `json:"pod_names,omitempty"`
	TestSuiteType          *string   `json:"test_suite_type,omitempty"`
	NotificationEmails     *[]string `json:"notification_emails,omitempty"`
	NotificationConditions *[]string `json:"notification_conditions,omitempty"`
	RetryCount             *int      `json:"retry_count,omitempty"`
	TimeoutMinutes         *int      `json:"timeout_minutes,omitempty"`
	DocumentationURL       *string   `json:"documentation_url,omitempty"`
}

// Apply merges the present fields of p into spec.
func (p SuitePatch) Apply(spec *SuiteSpec) {
	setString(&spec.Name, p.Name)
	setString(&spec.Agent, p.Agent)
	setString(&spec.TargetURL, p.TargetURL)
	setStrings(&spec.Products, p.Products)
	setStrings(&spec.CloudProviders, p.CloudProviders)
	setStrings(&spec.Environments, p.Environments)
	setStrings(&spec.PodNames, p.PodNames)
	setString(&spec.TestSuiteType, p.TestSuiteType)
	setStrings(&spec.NotificationEmails, p.NotificationEmails)
	setStrings(&spec.NotificationConditions, p.NotificationConditions)
	if p.RetryCount != nil {
		spec.RetryCount = *p.RetryCount
	}
	if p.TimeoutMinutes != nil {
		spec.TimeoutMinutes = *p.TimeoutMinutes
	}
	setString(&spec.DocumentationURL, p.DocumentationURL)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setStrings(dst *[]string, v *[]string) {
	if v != nil {
		*dst = cloneStrings(*v)
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
