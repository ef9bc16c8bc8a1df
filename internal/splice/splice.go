// Package splice performs single-point crossover of equal-length byte genomes
// at bit granularity.
package splice

// lowMask[k] has the k lowest bits set
var lowMask = [8]byte{
	0b00000000, 0b00000001, 0b00000011, 0b00000111,
	0b00001111, 0b00011111, 0b00111111, 0b01111111,
}

// Splice writes into out the crossover of a and b at bit r % (len(a)*8).
// Bytes below the crossover byte come from a, bytes above it from b.
func Splice(out, a, b []byte, r uint32) {
	checkLengths(out, a, b)
	At(out, a, b, int(r%uint32(len(a)*8)))
}

// At writes into out the crossover of a and b at the given bit offset.
// In the transition byte the bits at and above bit%8 come from a and the
// lower bits come from b.
func At(out, a, b []byte, bit int) {
	checkLengths(out, a, b)
	if bit < 0 || bit >= len(a)*8 {
		panic("splice: bit offset out of range")
	}

	i := bit / 8
	copy(out[:i], a[:i])
	mask := lowMask[bit&7]
	out[i] = (a[i] &^ mask) | (b[i] & mask)
	copy(out[i+1:], b[i+1:])
}

func checkLengths(out, a, b []byte) {
	if len(a) == 0 || len(a) != len(b) || len(out) != len(a) {
		panic("splice: buffers must be non-empty and of equal length")
	}
}
