package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"default", Default(), nil},
		{"min period", Config{Period: MinPeriod, ThresholdMilli: 1, Mode: ModeRamp}, nil},
		{"short period", Config{Period: 5 * time.Millisecond, ThresholdMilli: 1000}, ErrInvalidPeriod},
		{"zero threshold", Config{Period: time.Second, ThresholdMilli: 0}, ErrInvalidThreshold},
		{"negative threshold", Config{Period: time.Second, ThresholdMilli: -5}, ErrInvalidThreshold},
		{"bad mode", Config{Period: time.Second, ThresholdMilli: 1, Mode: 7}, ErrInvalidMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestUpdateAllOrNothing(t *testing.T) {
	base := Config{Period: time.Second, ThresholdMilli: 1000, Mode: ModeNormal}

	short := 5 * time.Millisecond
	thr := int32(2000)
	ramp := ModeRamp
	got, err := Update{Period: &short, ThresholdMilli: &thr, Mode: &ramp}.Apply(base)
	require.ErrorIs(t, err, ErrInvalidPeriod)
	assert.Equal(t, base, got)

	period := 50 * time.Millisecond
	got, err = Update{Period: &period, ThresholdMilli: &thr, Mode: &ramp}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, Config{Period: period, ThresholdMilli: thr, Mode: ModeRamp}, got)

	got, err = Update{ThresholdMilli: &thr}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, Config{Period: time.Second, ThresholdMilli: thr, Mode: ModeNormal}, got)

	assert.True(t, Update{}.Empty())
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"normal": ModeNormal, "RAMP": ModeRamp, "0": ModeNormal, " 1 ": ModeRamp} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("sawtooth")
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, "mode(9)", Mode(9).String())
}

func TestParseProperties(t *testing.T) {
	c, err := Parse([]byte("sampling-ms: 250\nthreshold-mC: 42000\nmode: ramp\n"))
	require.NoError(t, err)
	assert.Equal(t, Config{Period: 250 * time.Millisecond, ThresholdMilli: 42000, Mode: ModeRamp}, c)

	c, err = Parse([]byte("mode: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, ModeRamp, c.Mode)
	assert.Equal(t, DefaultPeriod, c.Period)

	c, err = Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	_, err = Parse([]byte("sampling-ms: 5\n"))
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = Parse([]byte("sampling_ms: 100\n"))
	assert.Error(t, err)

	// 18446744073809 ms wraps to about 99ms when multiplied naively
	_, err = Parse([]byte("sampling-ms: 18446744073809\n"))
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = Parse([]byte("threshold-mC: 4294968296\n"))
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestRangeConversions(t *testing.T) {
	p, err := PeriodFromMillis(250)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, p)

	p, err = PeriodFromMillis(maxMillis)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(maxMillis)*time.Millisecond, p)

	for _, ms := range []int64{maxMillis + 1, 18446744073809, -1} {
		_, err := PeriodFromMillis(ms)
		assert.ErrorIs(t, err, ErrInvalidPeriod, ms)
	}

	mc, err := ThresholdFromMilli(45000)
	require.NoError(t, err)
	assert.Equal(t, int32(45000), mc)

	for _, v := range []int64{4294968296, math.MaxInt32 + 1, math.MinInt32 - 1} {
		_, err := ThresholdFromMilli(v)
		assert.ErrorIs(t, err, ErrInvalidThreshold, v)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simtemp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threshold-mC: 30000\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int32(30000), c.ThresholdMilli)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
