// Package cryptox holds the hashing used to detect tampered or half-written
// session records.
package cryptox

import (
	"crypto/subtle"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Digest returns a BLAKE2b-256 sum over parts. Each part is length-prefixed
// so ("ab","c") and ("a","bc") hash differently.
func Digest(parts ...[]byte) []byte {
	h, _ := blake2b.New256(nil)
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return h.Sum(nil)
}

// Verify reports whether sum is the digest of parts, in constant time.
func Verify(sum []byte, parts ...[]byte) bool {
	return subtle.ConstantTimeCompare(sum, Digest(parts...)) == 1
}
