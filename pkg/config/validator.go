package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Validator validates configuration
type Validator interface {
	Validate(config interface{}) error
}

// ValidatorFunc is a function that validates configuration
type ValidatorFunc func(config interface{}) error

func (f ValidatorFunc) Validate(config interface{}) error {
	return f(config)
}

// Validate runs validators in order and stops at the first failure
func Validate(config interface{}, validators ...Validator) error {
	for _, validator := range validators {
		if err := validator.Validate(config); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// DefaultValidators are the checks File.Validate applies
func DefaultValidators() []Validator {
	return []Validator{
		RangeValidator("Engine.Slots", 0, 4096),
		DurationValidator("Engine.SchedulePeriod"),
		DurationValidator("Engine.ResultPollPeriod"),
		OneOfValidator("Engine.Mode", "", "signal", "legacy", "polling"),
		OneOfValidator("Log.Level", "", "debug", "info", "warn", "warning", "error"),
		OneOfValidator("Log.Format", "", "text", "json"),
		ValidatorFunc(func(config interface{}) error {
			f, ok := config.(*File)
			if ok && f.Metrics.Enabled && strings.TrimSpace(f.Metrics.Addr) == "" {
				return fmt.Errorf("metrics.addr is required when metrics are enabled")
			}
			return nil
		}),
	}
}

// RangeValidator checks that an integer field lies in [min, max].
// Fields are addressed with dot paths of Go names, e.g. "Engine.Slots".
func RangeValidator(fieldPath string, min, max int64) Validator {
	return ValidatorFunc(func(config interface{}) error {
		fieldVal, err := lookup(config, fieldPath)
		if err != nil {
			return err
		}

		switch fieldVal.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		default:
			return fmt.Errorf("field %s is not an integer", fieldPath)
		}

		if n := fieldVal.Int(); n < min || n > max {
			return fmt.Errorf("field %s value %d is out of range [%d, %d]", fieldPath, n, min, max)
		}
		return nil
	})
}

// DurationValidator checks that a string field is empty or a positive duration
func DurationValidator(fieldPath string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		fieldVal, err := lookup(config, fieldPath)
		if err != nil {
			return err
		}
		if fieldVal.Kind() != reflect.String {
			return fmt.Errorf("field %s is not a string", fieldPath)
		}

		raw := strings.TrimSpace(fieldVal.String())
		if raw == "" {
			return nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("field %s: %w", fieldPath, err)
		}
		if d <= 0 {
			return fmt.Errorf("field %s must be positive, got %v", fieldPath, d)
		}
		return nil
	})
}

// OneOfValidator checks that a string field equals one of allowed (case-insensitive)
func OneOfValidator(fieldPath string, allowed ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		fieldVal, err := lookup(config, fieldPath)
		if err != nil {
			return err
		}
		if fieldVal.Kind() != reflect.String {
			return fmt.Errorf("field %s is not a string", fieldPath)
		}

		got := strings.TrimSpace(fieldVal.String())
		for _, a := range allowed {
			if strings.EqualFold(got, a) {
				return nil
			}
		}
		return fmt.Errorf("field %s value %q is not one of %q", fieldPath, got, allowed)
	})
}

func lookup(config interface{}, fieldPath string) (reflect.Value, error) {
	current := reflect.ValueOf(config)
	for _, part := range strings.Split(fieldPath, ".") {
		if current.Kind() == reflect.Ptr {
			current = current.Elem()
		}
		if current.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field %s not found in config struct", fieldPath)
		}
		current = current.FieldByName(part)
		if !current.IsValid() {
			return reflect.Value{}, fmt.Errorf("field %s not found in config struct", fieldPath)
		}
	}
	return current, nil
}
