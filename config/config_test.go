package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Empty(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDecode_Overrides(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
adapter: mcp2221
address: 0x39
interval: 2s
speed_hz: 100000
mcp2221:
  index: 1
`))
	require.NoError(t, err)
	assert.Equal(t, AdapterMCP2221, cfg.Adapter)
	assert.Equal(t, uint16(0x39), cfg.Address)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, int64(100_000), cfg.SpeedHz)
	assert.Equal(t, 1, cfg.MCP2221.Index)
	assert.Equal(t, 500*time.Millisecond, cfg.Settle)
}

func TestDecode_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown field":   "colour: blue\n",
		"unknown adapter": "adapter: spi\n",
		"address range":   "address: 0x80\n",
		"zero interval":   "interval: 0s\n",
	}
	for name, given := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(given))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("PROXALS_BUS", "/dev/i2c-3")
	path := filepath.Join(t.TempDir(), "proxals.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bus: ${PROXALS_BUS}\ninterval: 900ms\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/i2c-3", cfg.Bus)
	assert.Equal(t, 900*time.Millisecond, cfg.Interval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
