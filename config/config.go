package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/a8m/envsubst"
	"gopkg.in/yaml.v3"
)

const (
	AdapterPeriph  = "periph"
	AdapterMCP2221 = "mcp2221"
	AdapterNanoPi  = "nanopi"
)

type Config struct {
	// Adapter selects the bus implementation: periph, mcp2221 or nanopi.
	Adapter string `yaml:"adapter"`
	// Bus is the controller selector; empty picks the first controller found.
	Bus      string        `yaml:"bus"`
	Address  uint16        `yaml:"address"`
	Interval time.Duration `yaml:"interval"`
	// SpeedHz is the bus clock; 0 keeps the controller default.
	SpeedHz int64         `yaml:"speed_hz"`
	Settle  time.Duration `yaml:"settle"`
	MCP2221 MCP2221       `yaml:"mcp2221"`
	NanoPi  NanoPi        `yaml:"nanopi"`
}

type MCP2221 struct {
	// Index picks the device when more than one bridge is plugged in.
	Index int `yaml:"index"`
}

type NanoPi struct {
	Bus int `yaml:"bus"`
}

func Default() Config {
	return Config{
		Adapter:  AdapterPeriph,
		Address:  0x39,
		Interval: 900 * time.Millisecond,
		SpeedHz:  400_000,
		Settle:   500 * time.Millisecond,
		NanoPi:   NanoPi{Bus: 0},
	}
}

// Load reads a YAML config file, expanding ${VAR} references from the
// environment, over the defaults.
func Load(path string) (Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config %s: %w", path, err)
	}
	cfg, err := Decode(bytes.NewReader(buf))
	if err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Adapter {
	case AdapterPeriph, AdapterMCP2221, AdapterNanoPi:
	default:
		return fmt.Errorf("unknown adapter %q", c.Adapter)
	}
	if c.Address == 0 || c.Address > 0x7F {
		return fmt.Errorf("address %#x is not a valid 7-bit address", c.Address)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("polling interval must be positive, got %s", c.Interval)
	}
	if c.SpeedHz < 0 {
		return fmt.Errorf("bus speed must not be negative, got %d", c.SpeedHz)
	}
	return nil
}
