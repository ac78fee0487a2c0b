package arq

import "errors"

var (
	// ErrBusy indicates an exchange is still pending.
	ErrBusy = errors.New("exchange pending")
	// ErrExhausted indicates the attempt ceiling was hit without ACK.
	ErrExhausted = errors.New("retries exhausted")
)
