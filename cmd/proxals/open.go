package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/proxals"
	"github.com/mklimuk/proxals/adapter"
	"github.com/mklimuk/proxals/config"
	"github.com/mklimuk/proxals/i2c"
)

var connFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Usage:   "bus adapter: periph, mcp2221 or nanopi",
	},
	&cli.StringFlag{
		Name:    "bus",
		Aliases: []string{"b"},
		Usage:   "I2C controller name, alias or number (periph) or bus number (nanopi)",
	},
	&cli.StringFlag{
		Name:  "addr",
		Usage: "sensor address",
	},
}

// loadConfig reads the config file given with --config and applies command
// line overrides on top of it.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}
	if c.IsSet("adapter") {
		cfg.Adapter = c.String("adapter")
	}
	if c.IsSet("bus") {
		cfg.Bus = c.String("bus")
	}
	if c.IsSet("addr") {
		addr, err := strconv.ParseUint(c.String("addr"), 0, 7)
		if err != nil {
			return cfg, fmt.Errorf("invalid address %q: %w", c.String("addr"), err)
		}
		cfg.Address = uint16(addr)
	}
	if c.IsSet("interval") {
		cfg.Interval = c.Duration("interval")
	}
	if c.IsSet("settle") {
		cfg.Settle = c.Duration("settle")
	}
	return cfg, cfg.Validate()
}

// openConn returns a connection to the sensor and a label for the controller
// used in status messages. The returned cleanup must be called after the
// connection is closed.
func openConn(ctx context.Context, cfg config.Config) (proxals.Conn, string, func(), error) {
	switch cfg.Adapter {
	case config.AdapterMCP2221:
		label := fmt.Sprintf("MCP2221 #%d", cfg.MCP2221.Index)
		ad := adapter.NewMCP2221(adapter.WithDeviceIndex(cfg.MCP2221.Index))
		conn, err := ad.Open(ctx, byte(cfg.Address))
		return conn, label, func() {}, err
	case config.AdapterNanoPi:
		bus := cfg.NanoPi.Bus
		if cfg.Bus != "" {
			n, err := strconv.Atoi(cfg.Bus)
			if err != nil {
				return nil, cfg.Bus, nil, fmt.Errorf("invalid nanopi bus %q: %w", cfg.Bus, err)
			}
			bus = n
		}
		label := fmt.Sprintf("nanopi i2c-%d", bus)
		npi := nanopi.NewNeoAdaptor()
		if err := npi.Connect(); err != nil {
			return nil, label, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		finalize := func() { _ = npi.Finalize() }
		conn, err := adapter.NewGobot(npi, bus).Open(ctx, byte(cfg.Address))
		if err != nil {
			finalize()
			return nil, label, nil, err
		}
		return conn, label, finalize, nil
	default:
		label := cfg.Bus
		if label == "" {
			label = "default"
		}
		mgr := i2c.NewManager(i2c.WithSpeed(physic.Frequency(cfg.SpeedHz) * physic.Hertz))
		conn, err := mgr.Acquire(ctx, cfg.Bus, cfg.Address)
		if err != nil {
			return nil, label, nil, err
		}
		return conn, conn.Controller(), func() {}, nil
	}
}
