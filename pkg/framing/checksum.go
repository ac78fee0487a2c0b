package framing

// Checksum selects the algorithm computing the CHK byte.
type Checksum int

const (
	// ChecksumXOR starts with STX^LEN and XORs every payload byte.
	ChecksumXOR Checksum = iota
	// ChecksumSum starts with LEN and adds every payload byte,
	// keeping the low 8 bits.
	ChecksumSum
)

// String implements fmt.Stringer.
func (c Checksum) String() string {
	switch c {
	case ChecksumXOR:
		return "xor"
	case ChecksumSum:
		return "sum"
	}
	return "unknown"
}

// Seed returns the accumulator before any payload byte is folded in.
func (c Checksum) Seed(length byte) uint16 {
	if c == ChecksumSum {
		return uint16(length)
	}
	return uint16(STX ^ length)
}

// Fold folds one payload byte into the accumulator.
func (c Checksum) Fold(acc uint16, b byte) uint16 {
	if c == ChecksumSum {
		return acc + uint16(b)
	}
	return acc ^ uint16(b)
}

// Final reduces the accumulator to the CHK byte.
func (c Checksum) Final(acc uint16) byte {
	return byte(acc & 0xff)
}

// Of computes the CHK byte for a payload.
// The payload must not be longer than 255 bytes.
func (c Checksum) Of(payload []byte) byte {
	acc := c.Seed(byte(len(payload)))
	for _, b := range payload {
		acc = c.Fold(acc, b)
	}
	return c.Final(acc)
}
