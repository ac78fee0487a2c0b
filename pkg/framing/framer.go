package framing

// FramerState is the state of a Framer.
type FramerState int

// Framer states in emission order.
const (
	FramerIdle FramerState = iota
	FramerSendStart
	FramerSendLength
	FramerSendData
	FramerSendChecksum
	FramerSendEnd
	FramerDone
)

var framerStateNames = [...]string{
	"idle", "send-start", "send-length", "send-data", "send-checksum", "send-end", "done",
}

// String implements fmt.Stringer.
func (s FramerState) String() string {
	if s >= 0 && int(s) < len(framerStateNames) {
		return framerStateNames[s]
	}
	return "invalid"
}

// Framer serializes one payload into a frame, one byte per step.
// The payload is referenced, not copied, and must stay unchanged until
// the frame is fully emitted.
type Framer struct {
	variant Variant
	state   FramerState
	payload []byte
	idx     int
	chk     uint16
}

// NewFramer creates a Framer for the variant.
func NewFramer(v Variant) *Framer {
	return &Framer{variant: v.orDefault()}
}

// Variant returns the variant in use.
func (f *Framer) Variant() Variant {
	return f.variant.orDefault()
}

// State returns the current state.
func (f *Framer) State() FramerState {
	return f.state
}

// Idle indicates no frame is being emitted.
func (f *Framer) Idle() bool {
	return f.state == FramerIdle
}

// Done indicates the last byte of the frame has been emitted.
func (f *Framer) Done() bool {
	return f.state == FramerDone
}

// Begin starts emitting a frame for payload. A frame in progress is
// abandoned. If the payload exceeds MaxPayload, nothing changes and
// ErrPayloadTooLarge is returned.
func (f *Framer) Begin(payload []byte) error {
	v := f.Variant()
	if len(payload) > v.MaxPayload {
		return ErrPayloadTooLarge
	}
	f.variant = v
	f.payload, f.idx = payload, 0
	f.chk = v.Checksum.Seed(byte(len(payload)))
	f.state = FramerSendStart
	return nil
}

// Peek returns the byte the current state emits, without advancing.
func (f *Framer) Peek() (byte, bool) {
	switch f.state {
	case FramerSendStart:
		return STX, true
	case FramerSendLength:
		return byte(len(f.payload)), true
	case FramerSendData:
		return f.payload[f.idx], true
	case FramerSendChecksum:
		return f.variant.Checksum.Final(f.chk), true
	case FramerSendEnd:
		return ETX, true
	}
	return 0, false
}

// Step emits one byte if ready is set. It returns false when nothing is
// produced: not ready, idle, or the frame is complete, in which case the
// Framer goes back to idle.
func (f *Framer) Step(ready bool) (byte, bool) {
	if !ready {
		return 0, false
	}
	b, ok := f.Peek()
	if !ok {
		f.finish()
		return 0, false
	}
	f.advance()
	return b, true
}

// Pump offers the next byte to sink and advances only when it is accepted.
func (f *Framer) Pump(sink ByteSink) bool {
	b, ok := f.Peek()
	if !ok {
		f.finish()
		return false
	}
	if !sink.TryPut(b) {
		return false
	}
	f.advance()
	return true
}

func (f *Framer) advance() {
	switch f.state {
	case FramerSendStart:
		f.state = FramerSendLength
	case FramerSendLength:
		if len(f.payload) == 0 {
			f.state = FramerSendChecksum
		} else {
			f.state = FramerSendData
		}
	case FramerSendData:
		f.chk = f.variant.Checksum.Fold(f.chk, f.payload[f.idx])
		if f.idx++; f.idx >= len(f.payload) {
			f.state = FramerSendChecksum
		}
	case FramerSendChecksum:
		f.state = FramerSendEnd
	case FramerSendEnd:
		f.state = FramerDone
	}
}

func (f *Framer) finish() {
	if f.state == FramerDone {
		f.state, f.payload, f.idx = FramerIdle, nil, 0
	}
}
