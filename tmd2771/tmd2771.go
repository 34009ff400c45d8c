// Package tmd2771 drives the AMS/TAOS TMD2771 ambient light and proximity
// sensor in polled mode.
//
// Typical usage:
//
//	d, err := tmd2771.Initialize(ctx, conn)
//	if err != nil { ... }
//	defer d.Close()
//	r, err := d.Poll(ctx)
package tmd2771

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mklimuk/proxals"
)

var ErrAlreadyInitialized = fmt.Errorf("tmd2771: already initialized")
var ErrClosed = fmt.Errorf("tmd2771: driver closed")

type State int

const (
	Uninitialized State = iota
	Ready
	Faulted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sensor is anything producing light/proximity readings on demand.
type Sensor interface {
	Poll(ctx context.Context) (Reading, error)
}

var _ Sensor = &Driver{}

// Driver owns the bus connection to one TMD2771. Once faulted it never
// touches the bus again.
type Driver struct {
	mx    sync.Mutex
	conn  proxals.Conn
	state State
	fault error
}

func New(conn proxals.Conn) *Driver {
	return &Driver{conn: conn}
}

// Initialize creates a driver on conn and writes the init profile. On
// failure no driver is returned; the connection is left to the caller.
func Initialize(ctx context.Context, conn proxals.Conn) (*Driver, error) {
	d := New(conn)
	if err := d.Initialize(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Initialize writes the init profile register by register and aborts on the
// first failed write.
func (d *Driver) Initialize(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	switch d.state {
	case Ready:
		return ErrAlreadyInitialized
	case Faulted:
		return fmt.Errorf("%w: %w", proxals.ErrNotReady, d.fault)
	}
	for _, s := range initProfile {
		err := d.conn.Write(ctx, []byte{s.Command(), s.Value})
		if err != nil {
			d.setFault(fmt.Errorf("tmd2771: could not write %s register: %w", s.Name, err))
			return d.fault
		}
	}
	d.state = Ready
	slog.Debug("tmd2771 initialized")
	return nil
}

// Poll reads one sample. Polling a driver that is not ready returns
// ErrNotReady without any bus transaction.
func (d *Driver) Poll(ctx context.Context) (Reading, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	switch d.state {
	case Uninitialized:
		return Reading{}, proxals.ErrNotReady
	case Faulted:
		return Reading{}, fmt.Errorf("%w: %w", proxals.ErrNotReady, d.fault)
	}
	raw, err := d.conn.WriteRead(ctx, []byte{sampleCommand}, sampleLen)
	if err != nil {
		d.setFault(fmt.Errorf("tmd2771: could not read sample: %w", err))
		return Reading{}, d.fault
	}
	r, err := decodeReading(raw)
	if err != nil {
		d.setFault(fmt.Errorf("tmd2771: %w", proxals.NewTransferError("write-read", Address, err)))
		return Reading{}, d.fault
	}
	return r, nil
}

func (d *Driver) State() State {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.state
}

// Fault returns the error that moved the driver to Faulted, if any.
func (d *Driver) Fault() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.fault
}

// Close releases the bus connection. A closed driver is faulted.
func (d *Driver) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.state != Faulted {
		d.setFault(ErrClosed)
	}
	return d.conn.Close()
}

func (d *Driver) setFault(err error) {
	d.state = Faulted
	d.fault = err
	slog.Debug("tmd2771 faulted", "error", err)
}
