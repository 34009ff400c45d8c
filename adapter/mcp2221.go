package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/proxals"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const reportSize = 64

// maxPayload is what fits in one report after the 4 header bytes.
const maxPayload = reportSize - 4

// MCP2221 HID commands
const (
	cmdStatus            = 0x10
	cmdI2CWrite          = 0x90
	cmdI2CWriteNoStop    = 0x94
	cmdI2CReadRepeated   = 0x93
	cmdI2CGetData        = 0x40
	statusCancelTransfer = 0x10
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")
var ErrCommandFailed = errors.New("command failed")
var ErrPayloadTooLarge = fmt.Errorf("payload does not fit in a single %d byte report", maxPayload)

// HIDDevice is the part of a HID handle the bridge uses.
type HIDDevice interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// HIDOpener opens the index-th MCP2221 found on USB. It returns
// proxals.ErrNoControllerFound when no bridge is plugged in.
type HIDOpener func(index int) (HIDDevice, error)

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

// MCP2221 is a Microchip MCP2221 USB to I2C bridge. The HID device is opened
// for every report exchange so the bridge can be unplugged between polls.
type MCP2221 struct {
	mx           sync.Mutex
	open         HIDOpener
	index        int
	request      []byte
	response     []byte
	responseWait time.Duration
	claims       map[byte]struct{}
}

type MCP2221Opt func(*MCP2221)

func WithDeviceIndex(index int) MCP2221Opt {
	return func(d *MCP2221) {
		d.index = index
	}
}

func WithResponseWait(wait time.Duration) MCP2221Opt {
	return func(d *MCP2221) {
		d.responseWait = wait
	}
}

func WithHIDOpener(open HIDOpener) MCP2221Opt {
	return func(d *MCP2221) {
		d.open = open
	}
}

func NewMCP2221(opts ...MCP2221Opt) *MCP2221 {
	d := &MCP2221{
		open:         openHID,
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
		claims:       make(map[byte]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func openHID(index int) (HIDDevice, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return nil, proxals.ErrNoControllerFound
	}
	if index < 0 || index >= len(devs) {
		return nil, fmt.Errorf("no MCP2221 with index %d (%d found)", index, len(devs))
	}
	dev, err := devs[index].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return dev, nil
}

// Open checks the bridge is present and claims addr. The returned connection
// releases the claim on Close.
func (d *MCP2221) Open(ctx context.Context, addr byte) (proxals.Conn, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if _, taken := d.claims[addr]; taken {
		return nil, fmt.Errorf("address %#x on MCP2221 %d: %w", addr, d.index, proxals.ErrAddressInUse)
	}
	dev, err := d.open(d.index)
	if err != nil {
		return nil, err
	}
	_ = dev.Close()
	d.claims[addr] = struct{}{}
	return &mcp2221Conn{bridge: d, addr: addr}, nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	if err := d.send(ctx); err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

// ReleaseBus cancels the current I2C transfer and frees the bus.
func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = statusCancelTransfer
	if err := d.send(ctx); err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) write(ctx context.Context, cmd byte, addr byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = addr << 1
	copy(d.request[4:], buffer)
	if err := d.send(ctx); err != nil {
		return err
	}
	if d.response[1] != 0x00 {
		return ErrBusBusy
	}
	return nil
}

func (d *MCP2221) read(ctx context.Context, cmd byte, addr byte, n int) ([]byte, error) {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(n))
	d.request[3] = addr<<1 | 1
	if err := d.send(ctx); err != nil {
		return nil, err
	}
	if d.response[1] != 0x00 {
		return nil, ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdI2CGetData
	if err := d.send(ctx); err != nil {
		return nil, fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] != 0x00 {
		return nil, fmt.Errorf("error reading the I2C slave data from the I2C engine: %w", ErrCommandFailed)
	}
	if int(d.response[3]) != n {
		return nil, fmt.Errorf("invalid data size byte; expected %d, got %d", n, d.response[3])
	}
	res := make([]byte, n)
	copy(res, d.response[4:4+n])
	return res, nil
}

func (d *MCP2221) send(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dev, err := d.open(d.index)
	if err != nil {
		return err
	}
	defer func() {
		_ = dev.Close()
	}()
	slog.Debug("sending message to adapter", "request", hex.EncodeToString(d.request[:8]))
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	if d.responseWait > 0 {
		time.Sleep(d.responseWait)
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if d.response[0] != d.request[0] {
		return fmt.Errorf("response to command %#x echoes %#x", d.request[0], d.response[0])
	}
	return nil
}

func (d *MCP2221) release(addr byte) {
	d.mx.Lock()
	defer d.mx.Unlock()
	delete(d.claims, addr)
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9-10: requested I2C transfer length (LE)
		11-12: already transferred number of bytes (LE)
		13: internal I2C data buffer counter
		14: current I2C communication speed divider value
		15: current I2C timeout value
		16-17: I2C address being used
		25: read pending
	*/
	return &MCP2221Status{
		I2CDataBufferCounter:   int(buffer[13]),
		I2CSpeedDivider:        int(buffer[14]),
		I2CTimeout:             int(buffer[15]),
		CurrentAddress:         hex.EncodeToString(buffer[16:18]),
		LastWriteRequestedSize: binary.LittleEndian.Uint16(buffer[9:11]),
		LastWriteSentSize:      binary.LittleEndian.Uint16(buffer[11:13]),
		ReadPending:            int(buffer[25]),
	}
}

var _ proxals.Conn = &mcp2221Conn{}

type mcp2221Conn struct {
	bridge *MCP2221
	addr   byte
	once   sync.Once
}

func (c *mcp2221Conn) Write(ctx context.Context, buffer []byte) error {
	if len(buffer) > maxPayload {
		return proxals.NewTransferError("write", uint16(c.addr), fmt.Errorf("%w: write of %d bytes", ErrPayloadTooLarge, len(buffer)))
	}
	c.bridge.mx.Lock()
	defer c.bridge.mx.Unlock()
	if err := c.bridge.write(ctx, cmdI2CWrite, c.addr, buffer); err != nil {
		return proxals.NewTransferError("write", uint16(c.addr), err)
	}
	return nil
}

// WriteRead writes w without a STOP condition and reads back with a repeated
// START, so no other master can take the bus in between.
func (c *mcp2221Conn) WriteRead(ctx context.Context, w []byte, readLen int) ([]byte, error) {
	if len(w) > maxPayload || readLen < 0 || readLen > maxPayload {
		return nil, proxals.NewTransferError("write-read", uint16(c.addr),
			fmt.Errorf("%w: write of %d bytes, read of %d bytes", ErrPayloadTooLarge, len(w), readLen))
	}
	c.bridge.mx.Lock()
	defer c.bridge.mx.Unlock()
	if err := c.bridge.write(ctx, cmdI2CWriteNoStop, c.addr, w); err != nil {
		return nil, proxals.NewTransferError("write-read", uint16(c.addr), err)
	}
	res, err := c.bridge.read(ctx, cmdI2CReadRepeated, c.addr, readLen)
	if err != nil {
		return nil, proxals.NewTransferError("write-read", uint16(c.addr), err)
	}
	return res, nil
}

func (c *mcp2221Conn) Close() error {
	c.once.Do(func() {
		c.bridge.release(c.addr)
	})
	return nil
}
