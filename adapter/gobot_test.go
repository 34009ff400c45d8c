package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/proxals"
)

type fakeBlockConn struct {
	written [][]byte
	reg     uint8
	data    []byte
	err     error
	closed  int
}

func (f *fakeBlockConn) Write(b []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.written = append(f.written, append([]byte(nil), b...))
	return len(b), nil
}

func (f *fakeBlockConn) ReadBlockData(reg uint8, b []byte) error {
	if f.err != nil {
		return f.err
	}
	f.reg = reg
	copy(b, f.data)
	return nil
}

func (f *fakeBlockConn) Close() error {
	f.closed++
	return nil
}

func TestGobotConn_Transactions(t *testing.T) {
	f := &fakeBlockConn{data: []byte{1, 2, 3, 4, 5, 6}}
	released := 0
	conn := newGobotConn(f, 0x39, func() { released++ })
	ctx := context.Background()

	require.NoError(t, conn.Write(ctx, []byte{0xA0, 0x0F}))
	data, err := conn.WriteRead(ctx, []byte{0xB4}, 6)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0xA0, 0x0F}}, f.written)
	assert.Equal(t, uint8(0xB4), f.reg)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, data)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, 1, f.closed)
	assert.Equal(t, 1, released)
}

func TestGobotConn_Errors(t *testing.T) {
	f := &fakeBlockConn{err: errors.New("i2c: no ack")}
	conn := newGobotConn(f, 0x39, nil)
	var terr *proxals.TransferError

	err := conn.Write(context.Background(), []byte{0xA0, 0x0F})
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "write", terr.Op)

	_, err = conn.WriteRead(context.Background(), []byte{0xB4}, 6)
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "write-read", terr.Op)

	_, err = conn.WriteRead(context.Background(), []byte{0xB4, 0x00}, 6)
	assert.ErrorAs(t, err, &terr)
}
