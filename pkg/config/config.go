// Package config loads slotengine process configuration from YAML or JSON
// files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/fluxorio/slotengine/pkg/core"
	"github.com/fluxorio/slotengine/pkg/engine"
)

// DefaultEnvPrefix prefixes environment overrides, e.g. SLOTENGINE_ENGINE_SLOTS
const DefaultEnvPrefix = "SLOTENGINE"

// File is the configuration of a slotengine process
type File struct {
	Engine  EngineSection  `yaml:"engine" json:"engine"`
	Log     LogSection     `yaml:"log" json:"log"`
	Metrics MetricsSection `yaml:"metrics" json:"metrics"`
	Tracing TracingSection `yaml:"tracing" json:"tracing"`
}

// EngineSection mirrors engine.Config with durations as strings ("250ms")
type EngineSection struct {
	Slots            int    `yaml:"slots" json:"slots"`
	SchedulePeriod   string `yaml:"schedule_period" json:"schedule_period"`
	ResultPollPeriod string `yaml:"result_poll_period" json:"result_poll_period"`
	Mode             string `yaml:"mode" json:"mode"`
}

type LogSection struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type MetricsSection struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

type TracingSection struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Default returns the configuration used when no file is given
func Default() *File {
	return &File{
		Engine: EngineSection{
			Slots:            5,
			SchedulePeriod:   engine.DefaultSchedulePeriod.String(),
			ResultPollPeriod: engine.DefaultResultPollPeriod.String(),
			Mode:             engine.ModeSignal.String(),
		},
		Log: LogSection{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsSection{
			Addr: ":9090",
		},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .json is JSON, anything else is YAML.
func Load(path string) (*File, error) {
	f := Default()
	if err := decodeFile(path, f); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadWithEnv loads path (skipped when empty), applies environment overrides
// and validates the result.
func LoadWithEnv(path string, prefix string) (*File, error) {
	f := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		f = loaded
	}

	if err := ApplyEnvOverrides(prefix, f); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the file with DefaultValidators
func (f *File) Validate() error {
	return Validate(f, DefaultValidators()...)
}

// EngineConfig converts the engine section into an engine.Config.
// Empty durations take the engine defaults.
func (f *File) EngineConfig() (engine.Config, error) {
	schedule, err := parseDuration("engine.schedule_period", f.Engine.SchedulePeriod)
	if err != nil {
		return engine.Config{}, err
	}
	poll, err := parseDuration("engine.result_poll_period", f.Engine.ResultPollPeriod)
	if err != nil {
		return engine.Config{}, err
	}
	mode, err := engine.ParseMode(f.Engine.Mode)
	if err != nil {
		return engine.Config{}, err
	}

	return engine.Config{
		Slots:            f.Engine.Slots,
		SchedulePeriod:   schedule,
		ResultPollPeriod: poll,
		Mode:             mode,
	}, nil
}

// LoggerConfig converts the log section into a core.LoggerConfig
func (f *File) LoggerConfig() core.LoggerConfig {
	return core.LoggerConfig{
		Level:  f.Log.Level,
		Format: f.Log.Format,
	}
}

func parseDuration(name, s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// ApplyEnvOverrides sets struct fields from environment variables named
// PREFIX_SECTION_FIELD, where each part is the field's yaml tag (or Go name)
// upper-cased: SLOTENGINE_ENGINE_SCHEDULE_PERIOD=250ms.
func ApplyEnvOverrides(prefix string, target interface{}) error {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to a struct")
	}

	return applyEnvToStruct(prefix, val.Elem())
}

func applyEnvToStruct(prefix string, val reflect.Value) error {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !field.CanSet() {
			continue
		}

		envKey := prefix + "_" + envName(fieldType)

		if field.Kind() == reflect.Struct {
			if err := applyEnvToStruct(envKey, field); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("env %s: %w", envKey, err)
		}
	}

	return nil
}

func envName(f reflect.StructField) string {
	name := f.Name
	if tag := strings.Split(f.Tag.Get("yaml"), ",")[0]; tag != "" && tag != "-" {
		name = tag
	}
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func setField(field reflect.Value, raw string) error {
	raw = strings.TrimSpace(raw)
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer value %q", raw)
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean value %q", raw)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}
