package link

import (
	"errors"

	"github.com/robotalks/framelink/pkg/arq"
)

var (
	// ErrExhausted indicates the payload was not acknowledged.
	ErrExhausted = arq.ErrExhausted
	// ErrWrongRole indicates the operation is not supported by the role.
	ErrWrongRole = errors.New("wrong role")
	// ErrClosed indicates the endpoint stopped before the payload was sent.
	ErrClosed = errors.New("endpoint closed")
)
