package framing

import "strings"

// Wire constants.
const (
	STX byte = 0x02
	ETX byte = 0x03
	ACK byte = 0x06

	// FrameOverhead is the number of bytes framing adds to a payload.
	FrameOverhead = 4
	// LengthLimit is the largest length LEN can carry.
	LengthLimit = 255
)

// CheckMode defines when the receiver validates the checksum.
type CheckMode int

const (
	// CheckImmediate validates when the CHK byte arrives.
	CheckImmediate CheckMode = iota
	// CheckAtEnd validates when the end marker arrives.
	CheckAtEnd
)

// String implements fmt.Stringer.
func (m CheckMode) String() string {
	if m == CheckAtEnd {
		return "at-end"
	}
	return "immediate"
}

// Variant is one deployed version of the protocol.
type Variant struct {
	Name       string
	MaxPayload int
	Checksum   Checksum
	CheckMode  CheckMode
}

var (
	// Standard is the default variant.
	Standard = Variant{
		Name:       "standard",
		MaxPayload: 200,
		Checksum:   ChecksumXOR,
		CheckMode:  CheckImmediate,
	}
	// Extended carries up to 255 bytes with an additive checksum.
	Extended = Variant{
		Name:       "extended",
		MaxPayload: LengthLimit,
		Checksum:   ChecksumSum,
		CheckMode:  CheckAtEnd,
	}
)

// VariantByName looks up a predefined variant.
func VariantByName(name string) (Variant, error) {
	switch strings.ToLower(name) {
	case "", Standard.Name:
		return Standard, nil
	case Extended.Name:
		return Extended, nil
	}
	return Variant{}, ErrUnknownVariant
}

// String implements fmt.Stringer.
func (v Variant) String() string {
	return v.Name
}

// FrameSize returns the wire size of a frame carrying n bytes.
func (v Variant) FrameSize(n int) int {
	return n + FrameOverhead
}

// Encode serializes a complete frame.
func (v Variant) Encode(payload []byte) ([]byte, error) {
	f := NewFramer(v)
	if err := f.Begin(payload); err != nil {
		return nil, err
	}
	out := make([]byte, 0, v.FrameSize(len(payload)))
	for {
		b, ok := f.Step(true)
		if !ok {
			break
		}
		out = append(out, b)
	}
	return out, nil
}

// the zero Variant behaves as Standard.
func (v Variant) orDefault() Variant {
	if v.MaxPayload <= 0 {
		return Standard
	}
	if v.MaxPayload > LengthLimit {
		v.MaxPayload = LengthLimit
	}
	return v
}
