// Package generator produces synthetic temperature values for the simulated
// sensor.
package generator

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/luki/simtemp/internal/config"
	"github.com/luki/simtemp/internal/sample"
)

const (
	// RampStart is the number of baseline samples at the start of a ramp cycle.
	RampStart = 10
	// RampStop is the counter value at which a ramp cycle restarts.
	RampStop = RampStart + 5
)

// Generator computes sample values. It is safe for concurrent use, although
// the device only calls it from the producer.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithSource replaces the random source, e.g. with a seeded one in tests.
func WithSource(src rand.Source) Option {
	return func(g *Generator) {
		g.rnd = rand.New(src)
	}
}

// New returns a generator backed by a randomly seeded PCG source.
func New(opts ...Option) *Generator {
	g := &Generator{
		rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Produce returns the next value, its flags and the next counter.
//
// In normal mode the counter is returned unchanged and the value is a
// uniform baseline in [0, threshold). In ramp mode the counter advances on
// every call; once it passes RampStart the value is forced to
// threshold+counter, and at RampStop the counter wraps to 0.
//
// A non-positive threshold yields a baseline of 0; Produce never fails.
func (g *Generator) Produce(thresholdMilli int32, mode config.Mode, counter uint32) (int32, sample.Flags, uint32) {
	value := g.baseline(thresholdMilli)
	next := counter

	if mode == config.ModeRamp {
		next = counter + 1
		if next > RampStart {
			value = saturatingAdd(thresholdMilli, next)
		}
		if next >= RampStop {
			next = 0
		}
	}

	flags := sample.FlagNew
	if value >= thresholdMilli {
		flags |= sample.FlagThresholdCrossed
	}
	return value, flags, next
}

func (g *Generator) baseline(thresholdMilli int32) int32 {
	if thresholdMilli <= 0 {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Int32N(thresholdMilli)
}

func saturatingAdd(a int32, b uint32) int32 {
	sum := int64(a) + int64(b)
	if sum > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(sum)
}
