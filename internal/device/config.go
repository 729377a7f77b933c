package device

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/luki/simtemp/internal/config"
)

// Config returns the configuration the producer is currently running with.
func (d *Device) Config() config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// SetConfig replaces the whole configuration. Nothing changes unless c is
// valid.
func (d *Device) SetConfig(c config.Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return d.Update(config.Update{
		Period:         &c.Period,
		ThresholdMilli: &c.ThresholdMilli,
		Mode:           &c.Mode,
	})
}

// SetPeriod changes the sampling period.
func (d *Device) SetPeriod(p time.Duration) error {
	return d.Update(config.Update{Period: &p})
}

// SetThreshold changes the alert threshold.
func (d *Device) SetThreshold(milli int32) error {
	return d.Update(config.Update{ThresholdMilli: &milli})
}

// SetMode changes the generation mode.
func (d *Device) SetMode(m config.Mode) error {
	return d.Update(config.Update{Mode: &m})
}

// Update applies u atomically with respect to production and other
// updates. A new period takes effect from now: the next sample is produced
// one new period after the update. A new mode restarts the ramp cycle. An
// empty update changes nothing and leaves the tick grid alone.
// Samples already buffered keep the flags they were produced with.
func (d *Device) Update(u config.Update) error {
	d.mu.Lock()
	prev := d.cfg
	next, err := d.updateLocked(u)
	d.mu.Unlock()

	if err != nil {
		return err
	}
	if next != prev {
		d.logger.Info("configuration changed",
			zap.Duration("period", next.Period),
			zap.Int32("threshold_mC", next.ThresholdMilli),
			zap.Stringer("mode", next.Mode),
		)
	}
	return nil
}

func (d *Device) updateLocked(u config.Update) (config.Config, error) {
	if d.stopped {
		return d.cfg, ErrStopped
	}
	if u.Empty() {
		return d.cfg, nil
	}
	next, err := u.Apply(d.cfg)
	if err != nil {
		return d.cfg, err
	}
	if next.Period != d.cfg.Period {
		if err := d.sched.Reconfigure(next.Period); err != nil {
			return d.cfg, errors.Wrap(err, "reschedule")
		}
	}
	if next.Mode != d.cfg.Mode {
		d.counter = 0
	}
	d.cfg = next
	return next, nil
}
