// Package hashtofield implements the domain-separated SHA-256 expansion
// that maps arbitrary bytes to a field element (spec.md §4.8).
package hashtofield

import (
	"crypto/sha256"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

const (
	prefix   = "rln_hash_to_field"
	suffixLo = "rln_hash_to_field_lo"
	suffixHi = "rln_hash_to_field_hi"
)

// Hash maps data to a field element. It computes H0 = SHA256(prefix||data),
// then lo = SHA256(H0||suffixLo) and hi = SHA256(H0||suffixHi), each
// interpreted as a little-endian 256-bit integer, combines them as
// lo + 2^256*hi, and reduces modulo the field characteristic.
func Hash(data []byte) fr.Element {
	h0 := sha256.Sum256(append([]byte(prefix), data...))

	loDigest := sha256.Sum256(append(h0[:], []byte(suffixLo)...))
	hiDigest := sha256.Sum256(append(h0[:], []byte(suffixHi)...))

	lo := leBytesToBigInt(loDigest[:])
	hi := leBytesToBigInt(hiDigest[:])

	shift := new(big.Int).Lsh(big.NewInt(1), 256)
	combined := new(big.Int).Mul(hi, shift)
	combined.Add(combined, lo)

	var e fr.Element
	e.SetBigInt(combined) // reduces modulo the field characteristic
	return e
}

func leBytesToBigInt(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, n := 0, len(b); i < n; i++ {
		be[i] = b[n-1-i]
	}
	return new(big.Int).SetBytes(be)
}
