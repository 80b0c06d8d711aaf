package domain

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var (
	httpURLPattern = regexp.MustCompile(`^https?://.+`)
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// Standard five-field cron plus descriptors such as @daily.
	cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()

		// Report fields by their JSON names so API clients can map errors
		// back onto their payload.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
			return httpURLPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("basic_email", func(fl validator.FieldLevel) bool {
			return emailPattern.MatchString(fl.Field().String())
		})

		validate = v
	})
	return validate
}

// ValidateSuite checks a normalized suite spec. It returns a
// *ValidationError listing every failing field, or nil.
func ValidateSuite(spec SuiteSpec) error {
	ve := &ValidationError{}
	collect(validatorInstance().Struct(spec), ve)
	return ve.orNil()
}

// ValidateSchedule checks a normalized schedule spec, including the
// fields that are only required for one schedule type.
func ValidateSchedule(spec ScheduleSpec) error {
	ve := &ValidationError{}
	collect(validatorInstance().Struct(spec), ve)

	switch spec.ScheduleType {
	case ScheduleCron:
		if spec.CronExpression == "" {
			ve.add("cron_expression", "cron expression is required")
		} else if err := ValidateCronExpression(spec.CronExpression); err != nil {
			ve.add("cron_expression", err.Error())
		}
	case ScheduleInterval:
		if spec.Time == "" {
			ve.add("time", "time is required for interval scheduling")
		}
		switch spec.Interval {
		case IntervalDaily, IntervalWeekly, IntervalMonthly:
		default:
			ve.add("interval", "must be one of: daily weekly monthly")
		}
	}

	if spec.Timezone != "" {
		if _, err := time.LoadLocation(spec.Timezone); err != nil {
			ve.add("timezone", fmt.Sprintf("unknown time zone %q", spec.Timezone))
		}
	}

	return ve.orNil()
}

// ValidateCronExpression checks the syntax of a five-field cron expression.
func ValidateCronExpression(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

func collect(err error, ve *ValidationError) {
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		ve.add("_", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		key := fieldKey(fe.Field())
		ve.add(key, message(key, fe))
	}
}

// fieldKey strips the element index from dive errors ("products[1]").
func fieldKey(field string) string {
	if i := strings.IndexByte(field, '['); i >= 0 {
		return field[:i]
	}
	return field
}

func message(key string, fe validator.FieldError) string {
	label := strings.ReplaceAll(key, "_", " ")
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "at least one value must be selected"
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "httpurl":
		return "please enter a valid URL"
	case "basic_email":
		return "please enter valid email addresses"
	}
	return fmt.Sprintf("%s failed %q validation", label, fe.Tag())
}
