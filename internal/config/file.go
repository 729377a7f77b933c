package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileProps mirrors the device-tree properties of the sensor node:
//
//	sampling-ms: 100
//	threshold-mC: 45000
//	mode: ramp
type fileProps struct {
	SamplingMs  *int64 `yaml:"sampling-ms"`
	ThresholdMC *int64 `yaml:"threshold-mC"`
	Mode        *Mode  `yaml:"mode"`
}

// Load reads a YAML property file. Keys that are absent keep their
// defaults. The result is validated.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return c, nil
}

// Parse decodes YAML properties on top of Default.
func Parse(data []byte) (Config, error) {
	c := Default()

	var props fileProps
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&props); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "decode properties")
	}

	var err error
	if props.SamplingMs != nil {
		if c.Period, err = PeriodFromMillis(*props.SamplingMs); err != nil {
			return Config{}, err
		}
	}
	if props.ThresholdMC != nil {
		if c.ThresholdMilli, err = ThresholdFromMilli(*props.ThresholdMC); err != nil {
			return Config{}, err
		}
	}
	if props.Mode != nil {
		c.Mode = *props.Mode
	}
	return c, c.Validate()
}

// UnmarshalYAML accepts both the name and the numeric value of a mode.
func (m *Mode) UnmarshalYAML(n *yaml.Node) error {
	return m.UnmarshalText([]byte(n.Value))
}
