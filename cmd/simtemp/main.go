// Package main is the simtemp command line client. It runs a simulated
// temperature sensor in process and consumes it the way a device client
// would: polling, reading records, and changing attributes at runtime.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luki/simtemp/internal/config"
	"github.com/luki/simtemp/internal/device"
	"github.com/luki/simtemp/internal/history"
	"github.com/luki/simtemp/internal/logging"
	"github.com/luki/simtemp/internal/store"
)

const (
	// Global flags.
	flagConfig     = "config"
	flagSamplingMs = "sampling-ms"
	flagThreshold  = "threshold-mc"
	flagMode       = "mode"
	flagCapacity   = "capacity"
	flagLogLevel   = "log-level"
	flagRecord     = "record"

	// Command flags.
	flagCount    = "count"
	flagOut      = "out"
	flagDuration = "duration"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "simtemp:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var logger *zap.Logger

	countFlag := &cli.IntFlag{
		Name:    flagCount,
		Aliases: []string{"n"},
		Usage:   "stop after `N` samples (0 runs until interrupted)",
	}

	return &cli.App{
		Name:  "simtemp",
		Usage: "run and exercise a simulated temperature sensor",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load initial properties from YAML `FILE`",
				EnvVars: []string{"SIMTEMP_CONFIG"},
			},
			&cli.Int64Flag{
				Name:    flagSamplingMs,
				Aliases: []string{"s"},
				Usage:   "sampling period in milliseconds",
				EnvVars: []string{"SIMTEMP_SAMPLING_MS"},
			},
			&cli.Int64Flag{
				Name:    flagThreshold,
				Aliases: []string{"t"},
				Usage:   "alert threshold in milli-degrees Celsius",
				EnvVars: []string{"SIMTEMP_THRESHOLD_MC"},
			},
			&cli.StringFlag{
				Name:    flagMode,
				Aliases: []string{"m"},
				Usage:   "generation mode: normal or ramp",
				EnvVars: []string{"SIMTEMP_MODE"},
			},
			&cli.IntFlag{
				Name:    flagCapacity,
				Usage:   "sample buffer capacity",
				Value:   history.DefaultCapacity,
				EnvVars: []string{"SIMTEMP_CAPACITY"},
			},
			&cli.StringFlag{
				Name:    flagLogLevel,
				Usage:   "log level: debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"SIMTEMP_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    flagRecord,
				Usage:   "append consumed samples to daily CSV files in `DIR`",
				EnvVars: []string{"SIMTEMP_RECORD"},
			},
		},
		Before: func(c *cli.Context) error {
			l, err := logging.New(c.String(flagLogLevel))
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "poll",
				Usage:  "wait for samples and print them with alert markers",
				Flags:  []cli.Flag{countFlag},
				Action: func(c *cli.Context) error { return withSession(c, logger, pollAction) },
			},
			{
				Name:      "set",
				Usage:     "change attributes on the running sensor, then stream samples",
				ArgsUsage: "<name=value>...",
				Flags:     []cli.Flag{countFlag},
				Action:    func(c *cli.Context) error { return withSession(c, logger, setAction) },
			},
			{
				Name:      "set-all",
				Usage:     "apply period, threshold and mode at once, then stream samples",
				ArgsUsage: "<ms:mC:mode>",
				Flags:     []cli.Flag{countFlag},
				Action:    func(c *cli.Context) error { return withSession(c, logger, setAllAction) },
			},
			{
				Name:   "monitor",
				Usage:  "live sparkline view of the sensor",
				Action: func(c *cli.Context) error { return withSession(c, logger, monitorAction) },
			},
			{
				Name:  "dump",
				Usage: "write raw 16-byte sample records",
				Flags: []cli.Flag{
					countFlag,
					&cli.StringFlag{
						Name:    flagOut,
						Aliases: []string{"o"},
						Usage:   "output `FILE` (- for stdout)",
						Value:   "-",
					},
				},
				Action: func(c *cli.Context) error { return withSession(c, logger, dumpAction) },
			},
			{
				Name:      "decode",
				Usage:     "print the samples in a raw record file",
				ArgsUsage: "<file>",
				Action:    decodeAction,
			},
			{
				Name:  "stats",
				Usage: "run the sensor for a while and print its attributes",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  flagDuration,
						Usage: "how long to run before printing",
						Value: time.Second,
					},
				},
				Action: func(c *cli.Context) error { return withSession(c, logger, statsAction) },
			},
			{
				Name:  "history",
				Usage: "inspect recorded captures",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list recorded days, newest first",
						Action: historyListAction,
					},
					{
						Name:      "show",
						Usage:     "summarize one recorded day",
						ArgsUsage: "<YYYY-MM-DD>",
						Action:    historyShowAction,
					},
					{
						Name:   "browse",
						Usage:  "scrub through recorded days interactively",
						Action: historyBrowseAction,
					},
				},
			},
		},
	}
}

// session is a running sensor plus the optional capture log.
type session struct {
	logger *zap.Logger
	dev    *device.Device
	store  *store.DiskStore
}

func (s *session) Close() error {
	err := s.dev.Stop()
	if s.store != nil {
		err = multierr.Append(err, s.store.Close())
	}
	return err
}

func withSession(c *cli.Context, logger *zap.Logger, action func(context.Context, *cli.Context, *session) error) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	s := &session{logger: logger}
	if dir := c.String(flagRecord); dir != "" {
		if s.store, err = store.New(dir); err != nil {
			return err
		}
	}
	s.dev, err = device.Start(cfg,
		device.WithLogger(logger),
		device.WithCapacity(c.Int(flagCapacity)),
	)
	if err != nil {
		if s.store != nil {
			err = multierr.Append(err, s.store.Close())
		}
		return err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return action(ctx, c, s)
}

// loadConfig layers the defaults, the config file and explicit flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	var u config.Update
	if c.IsSet(flagSamplingMs) {
		p, err := config.PeriodFromMillis(c.Int64(flagSamplingMs))
		if err != nil {
			return config.Config{}, errors.Wrap(err, "flags")
		}
		u.Period = &p
	}
	if c.IsSet(flagThreshold) {
		t, err := config.ThresholdFromMilli(c.Int64(flagThreshold))
		if err != nil {
			return config.Config{}, errors.Wrap(err, "flags")
		}
		u.ThresholdMilli = &t
	}
	if c.IsSet(flagMode) {
		m, err := config.ParseMode(c.String(flagMode))
		if err != nil {
			return config.Config{}, err
		}
		u.Mode = &m
	}
	cfg, err := u.Apply(cfg)
	return cfg, errors.Wrap(err, "flags")
}
