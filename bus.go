package proxals

import (
	"context"
)

type Writer interface {
	Write(ctx context.Context, buffer []byte) error
}

type WriteReader interface {
	WriteRead(ctx context.Context, w []byte, readLen int) ([]byte, error)
}

// Conn is an exclusive handle to one addressed device on a two-wire bus.
// Close releases the handle and must be safe to call more than once.
type Conn interface {
	Writer
	WriteReader
	Close() error
}
