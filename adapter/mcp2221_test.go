package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/proxals"
)

// fakeBridge emulates the MCP2221 HID report exchange
type fakeBridge struct {
	requests [][]byte
	last     []byte
	readData []byte
	busy     map[byte]bool
	opens    int
	closes   int
}

func (f *fakeBridge) Write(b []byte) (int, error) {
	f.last = append([]byte(nil), b...)
	f.requests = append(f.requests, f.last)
	return len(b), nil
}

func (f *fakeBridge) Read(b []byte) (int, error) {
	clear(b)
	b[0] = f.last[0]
	if f.busy[f.last[0]] {
		b[1] = 0x01
	}
	switch f.last[0] {
	case cmdI2CGetData:
		b[3] = byte(len(f.readData))
		copy(b[4:], f.readData)
	case cmdStatus:
		b[9], b[10] = 0x02, 0x00
		b[11], b[12] = 0x02, 0x00
		b[14] = 0x1B
		b[16], b[17] = 0x72, 0x00
	}
	return len(b), nil
}

func (f *fakeBridge) Close() error {
	f.closes++
	return nil
}

func newTestBridge(f *fakeBridge) *MCP2221 {
	return NewMCP2221(WithResponseWait(0), WithHIDOpener(func(index int) (HIDDevice, error) {
		f.opens++
		return f, nil
	}))
}

func TestMCP2221_OpenNoDevice(t *testing.T) {
	d := NewMCP2221(WithResponseWait(0), WithHIDOpener(func(index int) (HIDDevice, error) {
		return nil, proxals.ErrNoControllerFound
	}))
	_, err := d.Open(context.Background(), 0x39)
	assert.ErrorIs(t, err, proxals.ErrNoControllerFound)
}

func TestMCP2221_OpenAddressInUse(t *testing.T) {
	f := &fakeBridge{}
	d := newTestBridge(f)
	ctx := context.Background()

	conn, err := d.Open(ctx, 0x39)
	require.NoError(t, err)
	_, err = d.Open(ctx, 0x39)
	assert.ErrorIs(t, err, proxals.ErrAddressInUse)

	require.NoError(t, conn.Close())
	conn, err = d.Open(ctx, 0x39)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.Equal(t, f.opens, f.closes)
}

func TestMCP2221_Write(t *testing.T) {
	f := &fakeBridge{}
	conn, err := newTestBridge(f).Open(context.Background(), 0x39)
	require.NoError(t, err)
	f.requests = nil

	require.NoError(t, conn.Write(context.Background(), []byte{0xA0, 0x0F}))
	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Len(t, req, reportSize)
	assert.Equal(t, []byte{cmdI2CWrite, 0x02, 0x00, 0x39 << 1, 0xA0, 0x0F}, req[:6])
}

func TestMCP2221_WriteRead(t *testing.T) {
	f := &fakeBridge{readData: []byte{0xE8, 0x03, 0x64, 0x00, 0x34, 0x12}}
	conn, err := newTestBridge(f).Open(context.Background(), 0x39)
	require.NoError(t, err)
	f.requests = nil

	data, err := conn.WriteRead(context.Background(), []byte{0xB4}, 6)
	require.NoError(t, err)
	assert.Equal(t, f.readData, data)

	require.Len(t, f.requests, 3)
	assert.Equal(t, []byte{cmdI2CWriteNoStop, 0x01, 0x00, 0x72, 0xB4}, f.requests[0][:5])
	assert.Equal(t, []byte{cmdI2CReadRepeated, 0x06, 0x00, 0x73}, f.requests[1][:4])
	assert.Equal(t, byte(cmdI2CGetData), f.requests[2][0])
}

func TestMCP2221_WriteReadBusy(t *testing.T) {
	f := &fakeBridge{busy: map[byte]bool{cmdI2CWriteNoStop: true}}
	conn, err := newTestBridge(f).Open(context.Background(), 0x39)
	require.NoError(t, err)

	_, err = conn.WriteRead(context.Background(), []byte{0xB4}, 6)
	var terr *proxals.TransferError
	require.ErrorAs(t, err, &terr)
	assert.True(t, errors.Is(err, ErrBusBusy))
}

func TestMCP2221_WriteReadSizeMismatch(t *testing.T) {
	f := &fakeBridge{readData: []byte{0x01, 0x02}}
	conn, err := newTestBridge(f).Open(context.Background(), 0x39)
	require.NoError(t, err)

	_, err = conn.WriteRead(context.Background(), []byte{0xB4}, 6)
	var terr *proxals.TransferError
	assert.ErrorAs(t, err, &terr)
}

func TestMCP2221_PayloadTooLarge(t *testing.T) {
	f := &fakeBridge{}
	conn, err := newTestBridge(f).Open(context.Background(), 0x39)
	require.NoError(t, err)
	f.requests = nil
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"write", func() error { return conn.Write(ctx, make([]byte, 100)) }},
		{"write-read long write", func() error {
			_, err := conn.WriteRead(ctx, make([]byte, maxPayload+1), 6)
			return err
		}},
		{"write-read long read", func() error {
			_, err := conn.WriteRead(ctx, []byte{0xB4}, maxPayload+1)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var terr *proxals.TransferError
			require.ErrorAs(t, err, &terr)
			assert.ErrorIs(t, err, ErrPayloadTooLarge)
		})
	}
	assert.Empty(t, f.requests)
}

func TestMCP2221_WriteReadMaxPayload(t *testing.T) {
	f := &fakeBridge{readData: make([]byte, maxPayload)}
	conn, err := newTestBridge(f).Open(context.Background(), 0x39)
	require.NoError(t, err)

	data, err := conn.WriteRead(context.Background(), []byte{0xB4}, maxPayload)
	require.NoError(t, err)
	assert.Len(t, data, maxPayload)
}

func TestMCP2221_Status(t *testing.T) {
	f := &fakeBridge{}
	status, err := newTestBridge(f).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &MCP2221Status{
		I2CSpeedDivider:        0x1B,
		CurrentAddress:         "7200",
		LastWriteRequestedSize: 2,
		LastWriteSentSize:      2,
	}, status)
}

func TestMCP2221_ReleaseBus(t *testing.T) {
	f := &fakeBridge{}
	_, err := newTestBridge(f).ReleaseBus(context.Background())
	require.NoError(t, err)
	require.Len(t, f.requests, 1)
	assert.Equal(t, []byte{cmdStatus, 0x00, statusCancelTransfer}, f.requests[0][:3])
}
