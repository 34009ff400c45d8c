package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/proxals/cmd/proxals/console"
	"github.com/mklimuk/proxals/config"
	"github.com/mklimuk/proxals/monitor"
	"github.com/mklimuk/proxals/tmd2771"
)

var readCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "initialize the sensor and take a single reading",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{
			Name:  "settle",
			Usage: "wait after initialization before reading",
		},
	}, connFlags...),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		drv, cleanup, err := startDriver(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		select {
		case <-time.After(cfg.Settle):
		case <-ctx.Done():
			return nil
		}
		r, err := drv.Poll(ctx)
		if err != nil {
			return console.Exit(1, "%s", console.Red(monitor.PollFailureStatus(err)))
		}
		console.Update(monitor.Update{At: time.Now(), Reading: &r, Status: monitor.StatusRunning})
		return nil
	},
}

var watchCmd = cli.Command{
	Name:  "watch",
	Usage: "poll the sensor on a fixed interval until interrupted",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "polling interval",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fault",
			Usage: "exit on the first failed reading",
		},
	}, connFlags...),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		drv, cleanup, err := startDriver(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		opts := []monitor.Option{monitor.WithInterval(cfg.Interval)}
		if c.Bool("stop-on-fault") {
			opts = append(opts, monitor.StopOnFault())
		}
		updates := make(chan monitor.Update)
		errc := make(chan error, 1)
		go func() {
			errc <- monitor.New(drv, opts...).Run(ctx, updates)
			close(updates)
		}()
		for u := range updates {
			console.Printf("\n%s\n", console.Cyan(u.At.Format(time.DateTime)))
			console.Update(u)
		}
		err = <-errc
		if err != nil && !errors.Is(err, context.Canceled) {
			return console.Exit(1, "%s", console.Red(err))
		}
		return nil
	},
}

// startDriver acquires the bus and initializes the sensor. Acquisition and
// initialization failures are rendered with the sensor page status messages.
func startDriver(ctx context.Context, cfg config.Config) (*tmd2771.Driver, func(), error) {
	conn, controller, release, err := openConn(ctx, cfg)
	if err != nil {
		return nil, nil, console.Exit(1, "%s", console.Red(monitor.StartupStatus(err, cfg.Address, controller)))
	}
	console.Infof("I2C Address of the Proximity and Light Sensor TMD2771: %#x on %s", cfg.Address, controller)
	drv, err := tmd2771.Initialize(ctx, conn)
	if err != nil {
		_ = conn.Close()
		release()
		return nil, nil, console.Exit(1, "%s", console.Red(monitor.StartupStatus(err, cfg.Address, controller)))
	}
	return drv, func() {
		if err := drv.Close(); err != nil {
			console.Errorf("error closing bus: %s", console.Red(err))
		}
		release()
	}, nil
}
