// Package random draws high-entropy seeds from the operating system.
//
// Sessions replay deterministically from a single int64 seed, so the only
// cryptographic step is picking that seed; everything after it runs on
// math/rand.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// NewSeed returns an int64 seed read from crypto/rand.
func NewSeed() (int64, error) {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}
