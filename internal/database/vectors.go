package database

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// vectorToString converts a float32 array to libSQL vector text format.
// Values are written in shortest round-trip form so nothing is lost.
func vectorToString(numbers []float32) (string, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i, n := range numbers {
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return "", fmt.Errorf("vector value at index %d is not finite", i)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(float64(n), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String(), nil
}

// decodeVector extracts a vector from the F32_BLOB little-endian layout.
func decodeVector(blob []byte, dims int) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) != dims*4 {
		return nil, fmt.Errorf("invalid embedding size: expected %d bytes for %d-dimensional vector, got %d", dims*4, dims, len(blob))
	}
	vector := make([]float32, dims)
	for i := range dims {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : (i+1)*4]))
	}
	return vector, nil
}
