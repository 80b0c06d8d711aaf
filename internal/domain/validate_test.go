package domain

import (
	"errors"
	"reflect"
	"testing"
)

func validSuiteSpec() SuiteSpec {
	return SuiteSpec{
		Name:          "checkout smoke",
		Agent:         "harness-delegator",
		TargetURL:     "https://a.b/c",
		Products:      []string{"MDM"},
		Environments:  []string{"PROD"},
		TestSuiteType: "health-check",
	}
}

func TestValidateSuite_Valid(t *testing.T) {
	spec := validSuiteSpec()
	spec.Normalize()
	spec.ApplyDefaults()
	if err := ValidateSuite(spec); err != nil {
		t.Fatalf("ValidateSuite() error = %v", err)
	}
	if spec.TimeoutMinutes != DefaultTimeoutMinutes {
		t.Errorf("TimeoutMinutes = %d, want default %d", spec.TimeoutMinutes, DefaultTimeoutMinutes)
	}
}

func TestValidateSuite_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SuiteSpec)
		wantKey []string
	}{
		{name: "name", mutate: func(s *SuiteSpec) { s.Name = "  " }, wantKey: []string{"name"}},
		{name: "agent", mutate: func(s *SuiteSpec) { s.Agent = "" }, wantKey: []string{"agent"}},
		{name: "target url", mutate: func(s *SuiteSpec) { s.TargetURL = "" }, wantKey: []string{"target_url"}},
		{name: "products", mutate: func(s *SuiteSpec) { s.Products = nil }, wantKey: []string{"products"}},
		{name: "environments", mutate: func(s *SuiteSpec) { s.Environments = []string{} }, wantKey: []string{"environments"}},
		{name: "type", mutate: func(s *SuiteSpec) { s.TestSuiteType = "" }, wantKey: []string{"test_suite_type"}},
		{
			name: "everything",
			mutate: func(s *SuiteSpec) {
				*s = SuiteSpec{}
			},
			wantKey: []string{"agent", "environments", "name", "products", "target_url", "test_suite_type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSuiteSpec()
			tt.mutate(&spec)
			spec.Normalize()
			spec.ApplyDefaults()

			err := ValidateSuite(spec)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("ValidateSuite() error = %v, want *ValidationError", err)
			}
			if got := ve.Keys(); !reflect.DeepEqual(got, tt.wantKey) {
				t.Errorf("keys = %v, want %v", got, tt.wantKey)
			}
		})
	}
}

func TestValidateSuite_TargetURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://a.b/c", false},
		{"http://localhost:8080/hook", false},
		{"ftp://a.b/c", true},
		{"a.b/c", true},
		{"https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			spec := validSuiteSpec()
			spec.TargetURL = tt.url
			spec.Normalize()
			spec.ApplyDefaults()
			err := ValidateSuite(spec)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSuite(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSuite_Emails(t *testing.T) {
	spec := validSuiteSpec()
	spec.NotificationEmails = []string{"ops@example.com, qa@example.org"}
	spec.Normalize()
	spec.ApplyDefaults()
	if err := ValidateSuite(spec); err != nil {
		t.Fatalf("ValidateSuite() error = %v", err)
	}
	if len(spec.NotificationEmails) != 2 {
		t.Errorf("NotificationEmails = %v, want 2 entries", spec.NotificationEmails)
	}

	spec.NotificationEmails = []string{"ops@example.com", "not-an-email"}
	var ve *ValidationError
	if err := ValidateSuite(spec); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := ve.Fields["notification_emails"]; !ok {
		t.Errorf("fields = %v, want notification_emails", ve.Fields)
	}
}

func TestValidateSuite_Ranges(t *testing.T) {
	spec := validSuiteSpec()
	spec.RetryCount = 11
	spec.TimeoutMinutes = 121

	var ve *ValidationError
	if err := ValidateSuite(spec); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := ve.Keys(); !reflect.DeepEqual(got, []string{"retry_count", "timeout_minutes"}) {
		t.Errorf("keys = %v", got)
	}
}

func TestValidateSuite_UnknownEnum(t *testing.T) {
	spec := validSuiteSpec()
	spec.Products = []string{"MDM", "NOPE"}
	var ve *ValidationError
	if err := ValidateSuite(spec); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := ve.Fields["products"]; !ok {
		t.Errorf("fields = %v, want products", ve.Fields)
	}
}

func TestValidateSchedule(t *testing.T) {
	base := func() ScheduleSpec {
		return ScheduleSpec{
			Name:           "nightly",
			Products:       []string{"CAI"},
			Environments:   []string{"STAGING"},
			ScheduleType:   ScheduleCron,
			CronExpression: "0 9 * * 1",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ScheduleSpec)
		wantKey []string
	}{
		{name: "valid cron", mutate: func(*ScheduleSpec) {}},
		{name: "descriptor", mutate: func(s *ScheduleSpec) { s.CronExpression = "@daily" }},
		{name: "missing cron", mutate: func(s *ScheduleSpec) { s.CronExpression = "" }, wantKey: []string{"cron_expression"}},
		{name: "bad cron", mutate: func(s *ScheduleSpec) { s.CronExpression = "every tuesday" }, wantKey: []string{"cron_expression"}},
		{
			name: "interval without time",
			mutate: func(s *ScheduleSpec) {
				s.ScheduleType = ScheduleInterval
				s.CronExpression = ""
			},
			wantKey: []string{"time"},
		},
		{
			name: "valid interval",
			mutate: func(s *ScheduleSpec) {
				s.ScheduleType = ScheduleInterval
				s.Interval = IntervalWeekly
				s.Time = "09:00"
				s.Timezone = "America/New_York"
			},
		},
		{name: "bad timezone", mutate: func(s *ScheduleSpec) { s.Timezone = "Mars/Olympus" }, wantKey: []string{"timezone"}},
		{
			name: "missing name and filters",
			mutate: func(s *ScheduleSpec) {
				s.Name = ""
				s.Products = nil
				s.Environments = nil
			},
			wantKey: []string{"environments", "name", "products"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := base()
			tt.mutate(&spec)
			spec.Normalize()

			err := ValidateSchedule(spec)
			if len(tt.wantKey) == 0 {
				if err != nil {
					t.Fatalf("ValidateSchedule() error = %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("ValidateSchedule() error = %v, want *ValidationError", err)
			}
			if got := ve.Keys(); !reflect.DeepEqual(got, tt.wantKey) {
				t.Errorf("keys = %v, want %v", got, tt.wantKey)
			}
		})
	}
}
