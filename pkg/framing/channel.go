package framing

// ByteSink accepts one byte if there is room.
type ByteSink interface {
	TryPut(byte) bool
}

// ByteSource delivers one byte if available.
type ByteSource interface {
	TryGet() (byte, bool)
}

// Slot is a single-slot mailbox holding at most one byte in flight.
// The producer may put only when the slot is empty, and the consumer
// empties it when reading. It is meant to be used by tasks of the same
// cooperative loop and is not safe for concurrent goroutines.
type Slot struct {
	b    byte
	full bool
}

// TryPut implements ByteSink.
func (s *Slot) TryPut(b byte) bool {
	if s.full {
		return false
	}
	s.b, s.full = b, true
	return true
}

// TryGet implements ByteSource.
func (s *Slot) TryGet() (byte, bool) {
	if !s.full {
		return 0, false
	}
	s.full = false
	return s.b, true
}

// Peek returns the byte without consuming it.
func (s *Slot) Peek() (byte, bool) {
	return s.b, s.full
}

// HasData indicates a byte is waiting.
func (s *Slot) HasData() bool {
	return s.full
}

// Reset drops the byte in flight.
func (s *Slot) Reset() {
	s.b, s.full = 0, false
}
