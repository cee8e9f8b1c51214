package codec

// Pack7 packs 8-bit data into MIDI-safe bytes. Each group of up to 7 bytes is
// written as a bits byte followed by the group with high bits cleared; bit j of
// the bits byte holds the high bit of byte j. A short trailing group is written
// as bits byte + remaining bytes.
func Pack7(data []byte) []byte {
	out := make([]byte, 0, PackedLen(len(data)))
	for i := 0; i < len(data); i += 7 {
		end := i + 7
		if end > len(data) {
			end = len(data)
		}
		var bits byte
		for j, b := range data[i:end] {
			bits |= (b >> 7) << j
		}
		out = append(out, bits)
		for _, b := range data[i:end] {
			out = append(out, b&0x7F)
		}
	}
	return out
}

// Unpack7 reverses Pack7, producing exactly n bytes. Bytes missing from the
// source are zero.
func Unpack7(packed []byte, n int) []byte {
	out := make([]byte, n)
	o := 0
	for i := 0; o < n; i += 8 {
		var bits byte
		if i < len(packed) {
			bits = packed[i]
		}
		for j := 0; j < 7 && o < n; j++ {
			var b byte
			if k := i + 1 + j; k < len(packed) {
				b = packed[k] & 0x7F
			}
			out[o] = b | (bits>>j&1)<<7
			o++
		}
	}
	return out
}

// PackedLen is the length of Pack7 output for n data bytes
func PackedLen(n int) int {
	return n + (n+6)/7
}
