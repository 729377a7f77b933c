// Package sample defines the temperature sample produced by the simulated
// sensor and its fixed-size binary record.
package sample

import (
	"fmt"
	"strings"
	"time"
)

// Flags is the status bit set carried by every sample.
type Flags uint16

const (
	// FlagNew is set on every produced sample.
	FlagNew Flags = 1 << 0
	// FlagThresholdCrossed is set when the value is at or above the threshold.
	FlagThresholdCrossed Flags = 1 << 1
)

// Has reports whether all bits of f are set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

func (fl Flags) String() string {
	var parts []string
	if fl.Has(FlagNew) {
		parts = append(parts, "new")
	}
	if fl.Has(FlagThresholdCrossed) {
		parts = append(parts, "threshold_crossed")
	}
	if rest := fl &^ (FlagNew | FlagThresholdCrossed); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint16(rest)))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Sample is a single timestamped reading. It is a value type and is never
// mutated after production.
type Sample struct {
	Timestamp  time.Time
	ValueMilli int32 // milli-degrees Celsius, e.g. 44123 = 44.123°C
	Flags      Flags
}

// Alert reports whether the sample crossed the threshold it was produced with.
func (s Sample) Alert() bool {
	return s.Flags.Has(FlagThresholdCrossed)
}

// Celsius returns the value in degrees Celsius.
func (s Sample) Celsius() float64 {
	return float64(s.ValueMilli) / 1000.0
}

// FormatTimestamp renders t as ISO-8601 in UTC with millisecond precision,
// e.g. 2025-10-01T12:00:00.123Z.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// String renders the sample the way the poll client prints it.
func (s Sample) String() string {
	alert := 0
	if s.Alert() {
		alert = 1
	}
	return fmt.Sprintf("%s temp=%.3fC alert=%d", FormatTimestamp(s.Timestamp), s.Celsius(), alert)
}
