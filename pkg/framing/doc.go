// Package framing provides the STX/ETX byte framing protocol.
//
// A frame is delimited by fixed start/end markers and carries a one-byte
// length, the payload and a one-byte checksum:
//
//   STX(1) | LEN(1) | DATA(LEN) | CHK(1) | ETX(1)
//
// Everything here is driven one byte at a time and never blocks. The
// Framer emits at most one byte per step and the Parser consumes exactly
// one byte per call, so both can run under a cooperative scheduler.
//
// The checksum algorithm and receive topology are selected by a Variant.
// Both ends of a link must use the same Variant.
package framing
