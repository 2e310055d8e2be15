package vectorcache

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
)

// hashKey derives a fixed-size storage key so arbitrarily long texts can be stored.
func hashKey(namespace, text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, namespace)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

// encodeVector writes a little-endian length prefix followed by the float32 bits.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4+len(vec)*4)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec)))
	off := 4
	for _, v := range vec {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptVector, len(data))
	}
	length := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != length*4 {
		return nil, fmt.Errorf("%w: length %d does not match %d payload bytes", ErrCorruptVector, length, len(data))
	}
	vec := make([]float32, length)
	for i := 0; i < length; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return vec, nil
}
