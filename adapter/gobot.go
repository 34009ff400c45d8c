package adapter

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/proxals"
)

// blockConn is the part of a gobot i2c.Connection used for register access.
type blockConn interface {
	io.Writer
	ReadBlockData(reg uint8, b []byte) error
	Close() error
}

// Gobot opens device connections through a gobot I2C connector such as the
// NanoPi NEO adaptor.
type Gobot struct {
	mx        sync.Mutex
	connector i2c.Connector
	bus       int
	claims    map[byte]struct{}
}

// NewGobot binds to bus on the given connector; a negative bus selects the
// connector default.
func NewGobot(connector i2c.Connector, bus int) *Gobot {
	if bus < 0 {
		bus = connector.DefaultI2cBus()
	}
	return &Gobot{
		connector: connector,
		bus:       bus,
		claims:    make(map[byte]struct{}),
	}
}

func (g *Gobot) Open(ctx context.Context, addr byte) (proxals.Conn, error) {
	g.mx.Lock()
	defer g.mx.Unlock()
	if _, taken := g.claims[addr]; taken {
		return nil, fmt.Errorf("address %#x on bus %d: %w", addr, g.bus, proxals.ErrAddressInUse)
	}
	conn, err := g.connector.GetI2cConnection(int(addr), g.bus)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus %d: %w", g.bus, err)
	}
	g.claims[addr] = struct{}{}
	return newGobotConn(conn, addr, func() { g.release(addr) }), nil
}

func (g *Gobot) release(addr byte) {
	g.mx.Lock()
	defer g.mx.Unlock()
	delete(g.claims, addr)
}

var _ proxals.Conn = &gobotConn{}

type gobotConn struct {
	conn    blockConn
	addr    byte
	release func()
	once    sync.Once
	err     error
}

func newGobotConn(conn blockConn, addr byte, release func()) *gobotConn {
	return &gobotConn{conn: conn, addr: addr, release: release}
}

func (c *gobotConn) Write(ctx context.Context, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return proxals.NewTransferError("write", uint16(c.addr), err)
	}
	n, err := c.conn.Write(buffer)
	if err != nil {
		return proxals.NewTransferError("write", uint16(c.addr), err)
	}
	if n != len(buffer) {
		return proxals.NewTransferError("write", uint16(c.addr), fmt.Errorf("short write: %d of %d", n, len(buffer)))
	}
	return nil
}

// WriteRead supports a single register byte as the write phase, which is
// sent as an SMBus block read with a repeated start.
func (c *gobotConn) WriteRead(ctx context.Context, w []byte, readLen int) ([]byte, error) {
	if len(w) != 1 {
		return nil, proxals.NewTransferError("write-read", uint16(c.addr), fmt.Errorf("expected 1 register byte, got %d", len(w)))
	}
	if err := ctx.Err(); err != nil {
		return nil, proxals.NewTransferError("write-read", uint16(c.addr), err)
	}
	res := make([]byte, readLen)
	if err := c.conn.ReadBlockData(w[0], res); err != nil {
		return nil, proxals.NewTransferError("write-read", uint16(c.addr), err)
	}
	return res, nil
}

func (c *gobotConn) Close() error {
	c.once.Do(func() {
		c.err = c.conn.Close()
		if c.release != nil {
			c.release()
		}
	})
	return c.err
}
