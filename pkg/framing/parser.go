package framing

// ParseState is the state of a Parser.
type ParseState int

// Parser states.
const (
	StateWaitStart ParseState = iota
	StateReadLength
	StateReadData
	StateReadChecksum
	StateWaitEnd
	StateReady
	StateError
)

var parseStateNames = [...]string{
	"wait-start", "read-length", "read-data", "read-checksum", "wait-end", "ready", "error",
}

// String implements fmt.Stringer.
func (s ParseState) String() string {
	if s >= 0 && int(s) < len(parseStateNames) {
		return parseStateNames[s]
	}
	return "invalid"
}

// ParseResult is the outcome of feeding one byte.
type ParseResult struct {
	State ParseState
	// Err is set when this byte moved the parser into StateError.
	Err error
}

// Stats counts what a Parser has seen.
type Stats struct {
	Frames             uint64
	Discarded          uint64
	LengthOverflows    uint64
	BufferOverruns     uint64
	ChecksumMismatches uint64
	FramingErrors      uint64
}

// Errors is the total number of rejected frames.
func (s Stats) Errors() uint64 {
	return s.LengthOverflows + s.BufferOverruns + s.ChecksumMismatches + s.FramingErrors
}

// Parser reconstructs frames from a byte stream, one byte per Feed.
// Leading noise is discarded and any error is recovered from at the next
// start marker. A decoded payload is held until it is taken.
// The zero value parses the Standard variant.
type Parser struct {
	variant Variant
	state   ParseState
	buf     []byte
	length  int
	idx     int
	chk     uint16
	claimed byte
	stats   Stats
}

// NewParser creates a Parser for the variant.
func NewParser(v Variant) *Parser {
	v = v.orDefault()
	return &Parser{variant: v, buf: make([]byte, v.MaxPayload)}
}

// Variant returns the variant in use.
func (p *Parser) Variant() Variant {
	return p.variant.orDefault()
}

// State returns the current state.
func (p *Parser) State() ParseState {
	return p.state
}

// Stats returns the counters.
func (p *Parser) Stats() Stats {
	return p.stats
}

// Reset abandons any frame in progress, including a ready one.
func (p *Parser) Reset() {
	p.state, p.length, p.idx, p.chk, p.claimed = StateWaitStart, 0, 0, 0, 0
}

// Feed consumes one byte.
func (p *Parser) Feed(b byte) (pr ParseResult) {
	pr.Err = p.parseByte(b)
	pr.State = p.state
	return
}

// Payload returns the decoded payload while in StateReady.
// The slice is only valid until the next Take or Reset.
func (p *Parser) Payload() []byte {
	if p.state != StateReady {
		return nil
	}
	return p.buf[:p.length]
}

// Take copies the decoded payload into out and resets the parser for the
// next frame. It fails without side effects if no frame is ready or out
// is too small.
func (p *Parser) Take(out []byte) (int, bool) {
	if p.state != StateReady || len(out) < p.length {
		return 0, false
	}
	n := copy(out, p.buf[:p.length])
	p.Reset()
	return n, true
}

func (p *Parser) parseByte(b byte) error {
	switch p.state {
	case StateWaitStart, StateError:
		if b == STX {
			p.state = StateReadLength
		} else {
			p.stats.Discarded++
		}
	case StateReadLength:
		v := p.Variant()
		if p.buf == nil {
			p.variant, p.buf = v, make([]byte, v.MaxPayload)
		}
		if int(b) > v.MaxPayload || int(b) > len(p.buf) {
			return p.fail(ErrLengthOverflow)
		}
		p.length, p.idx = int(b), 0
		p.chk = v.Checksum.Seed(b)
		if p.length == 0 {
			p.state = StateReadChecksum
		} else {
			p.state = StateReadData
		}
	case StateReadData:
		if p.idx >= p.length {
			return p.fail(ErrBufferOverrun)
		}
		p.buf[p.idx] = b
		p.chk = p.variant.Checksum.Fold(p.chk, b)
		if p.idx++; p.idx >= p.length {
			p.state = StateReadChecksum
		}
	case StateReadChecksum:
		p.claimed = b
		if p.variant.CheckMode == CheckImmediate && b != p.variant.Checksum.Final(p.chk) {
			return p.fail(ErrChecksumMismatch)
		}
		p.state = StateWaitEnd
	case StateWaitEnd:
		if b != ETX {
			return p.fail(ErrFraming)
		}
		if p.variant.CheckMode == CheckAtEnd && p.claimed != p.variant.Checksum.Final(p.chk) {
			return p.fail(ErrChecksumMismatch)
		}
		p.state = StateReady
		p.stats.Frames++
	case StateReady:
		// waiting for Take
		p.stats.Discarded++
	}
	return nil
}

func (p *Parser) fail(err error) error {
	switch err {
	case ErrLengthOverflow:
		p.stats.LengthOverflows++
	case ErrBufferOverrun:
		p.stats.BufferOverruns++
	case ErrChecksumMismatch:
		p.stats.ChecksumMismatches++
	case ErrFraming:
		p.stats.FramingErrors++
	}
	p.state, p.length, p.idx = StateError, 0, 0
	return err
}
