package idhash

import (
	"encoding/binary"
	"fmt"

	"lukechampine.com/blake3"
)

// DeriveSeed derives an independent stream seed from a base seed.
// Formula: first 8 bytes (little endian) of BLAKE3(base|label|index)
// Distinct (label, index) pairs yield uncorrelated streams for the same base.
func DeriveSeed(base uint64, label string, index int) uint64 {
	data := fmt.Sprintf("%d|%s|%d", base, label, index)
	hash := blake3.Sum256([]byte(data))
	return binary.LittleEndian.Uint64(hash[:8])
}
