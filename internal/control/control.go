// Package control exposes a device's configuration as named text
// attributes, plus the combined "ms:mC:mode" form that sets everything at
// once.
package control

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/luki/simtemp/internal/config"
	"github.com/luki/simtemp/internal/device"
)

// Attribute names.
const (
	SamplingMs  = "sampling_ms"
	ThresholdMC = "threshold_mC"
	Mode        = "mode"
	Stats       = "stats"
)

var (
	// ErrUnknownAttribute is returned for a name not in Names.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrReadOnly is returned when writing a read-only attribute.
	ErrReadOnly = errors.New("attribute is read-only")
)

// Names lists every attribute in display order.
var Names = []string{SamplingMs, ThresholdMC, Mode, Stats}

// Attribute renders the named attribute of dev.
func Attribute(dev *device.Device, name string) (string, error) {
	cfg := dev.Config()
	switch name {
	case SamplingMs:
		return strconv.FormatInt(config.Millis(cfg.Period), 10), nil
	case ThresholdMC:
		return strconv.FormatInt(int64(cfg.ThresholdMilli), 10), nil
	case Mode:
		return cfg.Mode.String(), nil
	case Stats:
		return FormatStats(dev.Stats()), nil
	}
	return "", errors.Wrap(ErrUnknownAttribute, name)
}

// SetAttribute parses value and applies it to dev. Surrounding whitespace,
// including a trailing newline, is ignored.
func SetAttribute(dev *device.Device, name, value string) error {
	value = strings.TrimSpace(value)
	switch name {
	case SamplingMs:
		p, err := parsePeriod(value)
		if err != nil {
			return err
		}
		return dev.SetPeriod(p)
	case ThresholdMC:
		mc, err := parseThreshold(value)
		if err != nil {
			return err
		}
		return dev.SetThreshold(mc)
	case Mode:
		m, err := config.ParseMode(value)
		if err != nil {
			return err
		}
		return dev.SetMode(m)
	case Stats:
		return errors.Wrap(ErrReadOnly, name)
	}
	return errors.Wrap(ErrUnknownAttribute, name)
}

// ParseSetAll parses "ms:mC:mode" into a validated configuration. mode is
// 0, 1 or a mode name.
func ParseSetAll(s string) (config.Config, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return config.Config{}, errors.Wrapf(config.ErrInvalidConfig, "want ms:mC:mode, got %q", s)
	}
	period, err := parsePeriod(parts[0])
	if err != nil {
		return config.Config{}, err
	}
	mc, err := parseThreshold(parts[1])
	if err != nil {
		return config.Config{}, err
	}
	mode, err := config.ParseMode(parts[2])
	if err != nil {
		return config.Config{}, err
	}
	c := config.Config{
		Period:         period,
		ThresholdMilli: mc,
		Mode:           mode,
	}
	if err := c.Validate(); err != nil {
		return config.Config{}, err
	}
	return c, nil
}

// SetAll parses s like ParseSetAll and applies it to dev in one update.
func SetAll(dev *device.Device, s string) error {
	c, err := ParseSetAll(s)
	if err != nil {
		return err
	}
	return dev.SetConfig(c)
}

// FormatStats renders the counters as space separated key=value pairs.
func FormatStats(st device.Stats) string {
	return fmt.Sprintf("samples=%d alerts=%d overruns=%d missed=%d buffered=%d",
		st.SamplesTaken, st.AlertsRaised, st.Overruns, st.Missed, st.Buffered)
}

func parsePeriod(s string) (time.Duration, error) {
	ms, err := parseInt(s)
	if err != nil {
		return 0, errors.Wrap(config.ErrInvalidPeriod, err.Error())
	}
	return config.PeriodFromMillis(ms)
}

func parseThreshold(s string) (int32, error) {
	mc, err := parseInt(s)
	if err != nil {
		return 0, errors.Wrap(config.ErrInvalidThreshold, err.Error())
	}
	return config.ThresholdFromMilli(mc)
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Errorf("%q is not an integer", s)
	}
	return n, nil
}
