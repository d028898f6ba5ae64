// Package xhash provides the one hashing primitive the rest of the module
// builds keys and display names from: a 128-bit xxHash3 digest.
package xhash

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// Size is the byte length of a Hash128 result.
const Size = 16

// Hash128 computes a 128-bit xxh3 hash of data, big-endian encoding the
// Hi/Lo halves xxh3.Hash128 returns into a fixed-size array.
func Hash128(data string) [Size]byte {
	h := xxh3.Hash128([]byte(data))
	var out [Size]byte
	binary.BigEndian.PutUint64(out[0:8], h.Hi)
	binary.BigEndian.PutUint64(out[8:16], h.Lo)
	return out
}

// Hex returns Hash128(data) as a lowercase hex string.
func Hex(data string) string {
	h := Hash128(data)
	return hex.EncodeToString(h[:])
}

// Key builds the fixed-size badger key a PrepareCache stores a prepared
// query's outcome under. queryText and datasetTag are joined with a NUL
// separator before hashing so ("ab", "c") and ("a", "bc") never collide.
func Key(queryText, datasetTag string) [Size]byte {
	return Hash128(queryText + "\x00" + datasetTag)
}

// CanonicalizeBlankLabel deterministically renames a blank-node label
// against scope, so that two inputs parsed independently under different
// scopes but reusing the same surface label (two query files both writing
// "_:b0", say) get distinct, stable names when reported together. The same
// (scope, label) pair always renames to the same output.
func CanonicalizeBlankLabel(scope, label string) string {
	h := Hash128(scope + "\x00" + label)
	return "b" + hex.EncodeToString(h[:6])
}
