package engine

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how the scheduler and result handles wait for each other.
type Mode int

const (
	// ModeSignal wakes the scheduler on submit and on slot release, assigns
	// every free slot per pass, and lets Get wait on a per-task completion
	// signal. The periodic pass still runs as a backstop.
	ModeSignal Mode = iota

	// ModeLegacy is the coarse polling behavior: passes only run on
	// the schedule period, each pass assigns at most one task, Get polls every
	// ResultPollPeriod, and GetTimeout sleeps the full timeout before checking.
	ModeLegacy
)

func (m Mode) String() string {
	switch m {
	case ModeSignal:
		return "signal"
	case ModeLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "signal" or "legacy" (case-insensitive). Empty means signal.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "signal":
		return ModeSignal, nil
	case "legacy", "polling":
		return ModeLegacy, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
	}
}

// Config configures an Engine
type Config struct {
	// Slots is the fixed number of execution slots. Zero is accepted: tasks
	// are queued but never scheduled.
	Slots int

	// SchedulePeriod is the interval between scheduling passes.
	SchedulePeriod time.Duration

	// ResultPollPeriod is how often a blocking Get re-checks completion in
	// ModeLegacy. Unused in ModeSignal.
	ResultPollPeriod time.Duration

	Mode Mode
}

const (
	DefaultSchedulePeriod   = 500 * time.Millisecond
	DefaultResultPollPeriod = 100 * time.Millisecond
)

// DefaultConfig returns a signal-mode configuration with the given slot count
func DefaultConfig(slots int) Config {
	return Config{
		Slots:            slots,
		SchedulePeriod:   DefaultSchedulePeriod,
		ResultPollPeriod: DefaultResultPollPeriod,
		Mode:             ModeSignal,
	}
}

// withDefaults fills zero periods; negative values are left for validate.
func (c Config) withDefaults() Config {
	if c.SchedulePeriod == 0 {
		c.SchedulePeriod = DefaultSchedulePeriod
	}
	if c.ResultPollPeriod == 0 {
		c.ResultPollPeriod = DefaultResultPollPeriod
	}
	return c
}

func (c Config) validate() error {
	if c.Slots < 0 {
		return fmt.Errorf("%w: slots must be >= 0, got %d", ErrInvalidConfig, c.Slots)
	}
	if c.SchedulePeriod <= 0 {
		return fmt.Errorf("%w: schedule period must be > 0, got %v", ErrInvalidConfig, c.SchedulePeriod)
	}
	if c.ResultPollPeriod <= 0 {
		return fmt.Errorf("%w: result poll period must be > 0, got %v", ErrInvalidConfig, c.ResultPollPeriod)
	}
	if c.Mode != ModeSignal && c.Mode != ModeLegacy {
		return fmt.Errorf("%w: unknown mode %v", ErrInvalidConfig, c.Mode)
	}
	return nil
}
