// Package config holds the sampling configuration of the simulated sensor:
// period, alert threshold and generation mode, with validation and loading
// from a device-tree style YAML file.
package config

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// MinPeriod is the smallest accepted sampling period.
	MinPeriod = 10 * time.Millisecond

	DefaultPeriod         = 100 * time.Millisecond
	DefaultThresholdMilli = 45000
)

var (
	// ErrInvalidConfig is matched by every validation error.
	ErrInvalidConfig = errors.New("invalid configuration")

	ErrInvalidPeriod    = errors.Wrap(ErrInvalidConfig, "period below minimum")
	ErrInvalidThreshold = errors.Wrap(ErrInvalidConfig, "threshold must be positive")
	ErrInvalidMode      = errors.Wrap(ErrInvalidConfig, "unknown mode")
)

// Mode selects how samples are generated.
type Mode uint8

const (
	// ModeNormal produces random values below the threshold.
	ModeNormal Mode = iota
	// ModeRamp periodically forces a run of values above the threshold.
	ModeRamp
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeRamp:
		return "ramp"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeNormal || m == ModeRamp
}

// ParseMode accepts "normal", "ramp" or their numeric values "0" and "1".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "0":
		return ModeNormal, nil
	case "ramp", "1":
		return ModeRamp, nil
	}
	return 0, errors.Wrapf(ErrInvalidMode, "%q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, errors.Wrapf(ErrInvalidMode, "%d", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Config is one complete, consistent configuration.
type Config struct {
	Period         time.Duration
	ThresholdMilli int32
	Mode           Mode
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Period:         DefaultPeriod,
		ThresholdMilli: DefaultThresholdMilli,
		Mode:           ModeNormal,
	}
}

// Validate checks every field and returns the first violation.
func (c Config) Validate() error {
	if err := validatePeriod(c.Period); err != nil {
		return err
	}
	if err := validateThreshold(c.ThresholdMilli); err != nil {
		return err
	}
	if !c.Mode.Valid() {
		return errors.Wrapf(ErrInvalidMode, "%d", c.Mode)
	}
	return nil
}

func validatePeriod(p time.Duration) error {
	if p < MinPeriod {
		return errors.Wrapf(ErrInvalidPeriod, "%v < %v", p, MinPeriod)
	}
	return nil
}

// maxMillis is the largest millisecond count a time.Duration can hold.
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

// PeriodFromMillis converts a sampling_ms value to a period. Counts that
// do not fit a time.Duration fail with ErrInvalidPeriod instead of
// wrapping around.
func PeriodFromMillis(ms int64) (time.Duration, error) {
	if ms < 0 || ms > maxMillis {
		return 0, errors.Wrapf(ErrInvalidPeriod, "%d ms out of range", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ThresholdFromMilli narrows a threshold_mC value, failing with
// ErrInvalidThreshold when it does not fit an int32.
func ThresholdFromMilli(mc int64) (int32, error) {
	if mc < math.MinInt32 || mc > math.MaxInt32 {
		return 0, errors.Wrapf(ErrInvalidThreshold, "%d mC out of range", mc)
	}
	return int32(mc), nil
}

func validateThreshold(t int32) error {
	if t <= 0 {
		return errors.Wrapf(ErrInvalidThreshold, "%d mC", t)
	}
	return nil
}

// Update is a partial configuration change. Nil fields are left untouched.
type Update struct {
	Period         *time.Duration
	ThresholdMilli *int32
	Mode           *Mode
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Period == nil && u.ThresholdMilli == nil && u.Mode == nil
}

// Apply returns c with u applied. Nothing is applied unless the result is
// valid as a whole.
func (u Update) Apply(c Config) (Config, error) {
	next := c
	if u.Period != nil {
		next.Period = *u.Period
	}
	if u.ThresholdMilli != nil {
		next.ThresholdMilli = *u.ThresholdMilli
	}
	if u.Mode != nil {
		next.Mode = *u.Mode
	}
	if err := next.Validate(); err != nil {
		return c, err
	}
	return next, nil
}

// Millis renders a period the way the sampling_ms attribute reports it.
func Millis(d time.Duration) int64 {
	return d.Milliseconds()
}
