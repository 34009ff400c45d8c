package i2c

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/proxals"
)

// FastMode is the I2C fast-mode clock.
const FastMode = 400 * physic.KiloHertz

// Enumerator lists the I2C controllers available on the host.
type Enumerator func() ([]*i2creg.Ref, error)

// Controller describes an enumerated I2C controller.
type Controller struct {
	Name    string
	Aliases []string
	Number  int
}

type claim struct {
	controller string
	addr       uint16
}

// Manager hands out exclusive connections to addressed devices. An address on
// a controller can be held by one Conn at a time.
type Manager struct {
	mx        sync.Mutex
	claims    map[claim]struct{}
	enumerate Enumerator
	speed     physic.Frequency
}

type Option func(*Manager)

func WithEnumerator(e Enumerator) Option {
	return func(m *Manager) {
		m.enumerate = e
	}
}

func WithSpeed(f physic.Frequency) Option {
	return func(m *Manager) {
		m.speed = f
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		claims:    make(map[claim]struct{}),
		enumerate: hostEnumerator,
		speed:     FastMode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func hostEnumerator() ([]*i2creg.Ref, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	return i2creg.All(), nil
}

func (m *Manager) Controllers() ([]Controller, error) {
	refs, err := m.enumerate()
	if err != nil {
		return nil, err
	}
	res := make([]Controller, 0, len(refs))
	for _, ref := range refs {
		res = append(res, Controller{Name: ref.Name, Aliases: ref.Aliases, Number: ref.Number})
	}
	return res, nil
}

// Acquire opens a connection to addr on the first controller matching
// selector. An empty selector matches any controller; otherwise it is
// compared against the controller name, its aliases and its bus number.
func (m *Manager) Acquire(ctx context.Context, selector string, addr uint16) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	refs, err := m.enumerate()
	if err != nil {
		return nil, fmt.Errorf("could not enumerate i2c controllers: %w", err)
	}
	var ref *i2creg.Ref
	for _, r := range refs {
		if matches(r, selector) {
			ref = r
			break
		}
	}
	if ref == nil {
		return nil, proxals.ErrNoControllerFound
	}
	key := claim{controller: ref.Name, addr: addr}
	m.mx.Lock()
	defer m.mx.Unlock()
	if _, taken := m.claims[key]; taken {
		return nil, fmt.Errorf("address %#x on controller %s: %w", addr, ref.Name, proxals.ErrAddressInUse)
	}
	bus, err := ref.Open()
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus %s: %w", ref.Name, err)
	}
	if m.speed > 0 {
		if err := bus.SetSpeed(m.speed); err != nil {
			_ = bus.Close()
			return nil, fmt.Errorf("could not set i2c bus %s speed to %s: %w", ref.Name, m.speed, err)
		}
	}
	m.claims[key] = struct{}{}
	slog.Debug("i2c device acquired", "controller", ref.Name, "addr", fmt.Sprintf("%#x", addr))
	return &Conn{
		mgr: m,
		key: key,
		bus: bus,
		dev: &i2c.Dev{Addr: addr, Bus: bus},
	}, nil
}

func (m *Manager) release(key claim) {
	m.mx.Lock()
	defer m.mx.Unlock()
	delete(m.claims, key)
}

func matches(ref *i2creg.Ref, selector string) bool {
	if selector == "" || ref.Name == selector {
		return true
	}
	for _, alias := range ref.Aliases {
		if alias == selector {
			return true
		}
	}
	return ref.Number >= 0 && strconv.Itoa(ref.Number) == selector
}

var _ proxals.Conn = &Conn{}

// Conn is an exclusive connection to one device address.
type Conn struct {
	mgr  *Manager
	key  claim
	bus  i2c.BusCloser
	dev  *i2c.Dev
	once sync.Once
	err  error
}

// Controller returns the name of the controller the connection was opened on.
func (c *Conn) Controller() string {
	return c.key.controller
}

func (c *Conn) Addr() uint16 {
	return c.key.addr
}

func (c *Conn) Write(ctx context.Context, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return proxals.NewTransferError("write", c.key.addr, err)
	}
	if err := c.dev.Tx(buffer, nil); err != nil {
		return proxals.NewTransferError("write", c.key.addr, err)
	}
	return nil
}

// WriteRead writes w and reads readLen bytes back in a single combined
// transaction (repeated start).
func (c *Conn) WriteRead(ctx context.Context, w []byte, readLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, proxals.NewTransferError("write-read", c.key.addr, err)
	}
	r := make([]byte, readLen)
	if err := c.dev.Tx(w, r); err != nil {
		return nil, proxals.NewTransferError("write-read", c.key.addr, err)
	}
	return r, nil
}

func (c *Conn) Close() error {
	c.once.Do(func() {
		c.mgr.release(c.key)
		c.err = c.bus.Close()
	})
	return c.err
}
