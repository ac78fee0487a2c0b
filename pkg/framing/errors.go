package framing

import "errors"

var (
	// ErrPayloadTooLarge indicates the payload exceeds MaxPayload of the variant.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrLengthOverflow indicates the declared length exceeds the receive buffer.
	ErrLengthOverflow = errors.New("declared length overflow")
	// ErrBufferOverrun indicates more data bytes than declared were received.
	ErrBufferOverrun = errors.New("buffer overrun")
	// ErrChecksumMismatch indicates the received checksum is wrong.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrFraming indicates the end marker is missing.
	ErrFraming = errors.New("framing error")
	// ErrUnknownVariant indicates an unknown variant name.
	ErrUnknownVariant = errors.New("unknown variant")
)
