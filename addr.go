package dwarfinc

// encodeAddrWidth little-endian-encodes v using exactly width bytes, the
// shape every DW_FORM_addr value takes in this emitter (width is always the
// target's pointer width).
func encodeAddrWidth(v uint64, width int) []byte {
	buf := make([]byte, width)
	for i := range buf {
		buf[i] = byte(v >> (8 * uint(i)))
	}
	return buf
}

func encodeData8(v uint64) []byte {
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = byte(v >> (8 * uint(i)))
	}
	return buf
}
