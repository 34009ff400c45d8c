package proxals

import (
	"fmt"
)

var ErrNoControllerFound = fmt.Errorf("no I2C controller found")
var ErrAddressInUse = fmt.Errorf("address already in use")
var ErrNotReady = fmt.Errorf("device not ready")

// TransferError is returned by every bus connection when a transaction fails
// at the bus level. Transactions are never retried.
type TransferError struct {
	Op   string
	Addr uint16
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %#x: %v", e.Op, e.Addr, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func NewTransferError(op string, addr uint16, err error) *TransferError {
	return &TransferError{Op: op, Addr: addr, Err: err}
}
