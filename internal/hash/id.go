package hash

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// seed randomizes value hashing per process so that hash values cannot
// be used to mount collision attacks across processes.
var seed = func() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand.Read does not fail on supported platforms.
		panic("hash: reading random seed: " + err.Error())
	}
	return binary.LittleEndian.Uint64(b[:])
}()

// NewDigest returns an xxHash64 digest seeded with the per-process seed.
func NewDigest() *xxhash.Digest {
	return xxhash.NewWithSeed(seed)
}

// Sum computes the seeded xxHash64 of the given bytes.
func Sum(data []byte) uint64 {
	d := NewDigest()
	_, _ = d.Write(data)
	return d.Sum64()
}

// SumString computes the seeded xxHash64 of the given string.
func SumString(data string) uint64 {
	d := NewDigest()
	_, _ = d.WriteString(data)
	return d.Sum64()
}
