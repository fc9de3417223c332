package media

import (
	"encoding/binary"
	"math"
)

// putInt stores the low size bytes of v little-endian.
func putInt(dst []byte, v, size int) {
	for i := range size {
		dst[i] = byte(v >> (8 * i))
	}
}

// getInt reads a little-endian signed sample of size bytes.
func getInt(src []byte, size int) int {
	var u uint32
	for i := range size {
		u |= uint32(src[i]) << (8 * i)
	}
	shift := 32 - 8*size
	return int(int32(u<<shift) >> shift)
}

func putFloat32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
