// Package poseidon implements the classic Poseidon permutation and its
// sponge-mode hash over the BN254 scalar field: deterministic parameter
// generation from a domain-separated seed (this file) and the native
// permutation itself (poseidon.go). The in-circuit gadget mirroring this
// permutation lives in circuits/gadget.
package poseidon

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/blake2s"
)

// Params is an immutable record of a Poseidon instance's shape: state width
// t, full-round count rf (even, split rf/2 before and after the partial
// rounds), partial-round count rp, a flat (rf+rp)*t sequence of round
// constants indexed round*t+column, and a row-major t*t MDS matrix.
type Params struct {
	T  int
	Rf int
	Rp int

	Constants []fr.Element // len == (Rf+Rp)*T
	MDS       []fr.Element // len == T*T
}

// GenerateParams derives round constants and an MDS matrix deterministically
// from persona and seed, per spec.md §4.2. Two distinct personas are used
// internally for the constants stream and the MDS stream so that the two
// don't share state despite starting from the same seed.
func GenerateParams(constantsPersona, mdsPersona, seed []byte, t, rf, rp int) (*Params, error) {
	if rf%2 != 0 {
		return nil, fmt.Errorf("poseidon: rf must be even, got %d", rf)
	}

	constants, err := generateConstants(constantsPersona, seed, (rf+rp)*t)
	if err != nil {
		return nil, fmt.Errorf("poseidon: generate round constants: %w", err)
	}

	mds, err := generateMDSMatrix(mdsPersona, seed, t)
	if err != nil {
		return nil, fmt.Errorf("poseidon: generate MDS matrix: %w", err)
	}

	return &Params{
		T:         t,
		Rf:        rf,
		Rp:        rp,
		Constants: constants,
		MDS:       mds,
	}, nil
}

// generateConstants runs a Blake2s rejection-sampling stream keyed by
// persona over an evolving source (initially seed), producing exactly n
// canonical field elements. Each 32-byte Blake2s block is interpreted as a
// little-endian candidate; blocks that are non-canonical (>= the field
// modulus) are rejected and the stream continues.
func generateConstants(persona, seed []byte, n int) ([]fr.Element, error) {
	out := make([]fr.Element, 0, n)
	source := append([]byte(nil), seed...)

	for len(out) < n {
		h, err := blake2s.New256(persona)
		if err != nil {
			return nil, fmt.Errorf("blake2s: %w", err)
		}
		h.Write(source)
		source = h.Sum(nil)

		if candidate, ok := canonicalFromLE(source); ok {
			out = append(out, candidate)
		}
	}
	return out, nil
}

// generateMDSMatrix generates 2t field elements by the same rejection
// process, splits them into xs[0..t) and ys[0..t), and builds the Cauchy
// matrix M[i][j] = (xs[i]+ys[j])^-1. It is an error for any xs[i]+ys[j] to
// be zero (the element would have no inverse).
func generateMDSMatrix(persona, seed []byte, t int) ([]fr.Element, error) {
	v, err := generateConstants(persona, seed, 2*t)
	if err != nil {
		return nil, err
	}
	xs, ys := v[:t], v[t:]

	matrix := make([]fr.Element, t*t)
	for i := 0; i < t; i++ {
		for j := 0; j < t; j++ {
			var sum fr.Element
			sum.Add(&xs[i], &ys[j])
			if sum.IsZero() {
				return nil, fmt.Errorf("poseidon: xs[%d]+ys[%d] is zero, matrix entry not invertible", i, j)
			}
			matrix[i*t+j].Inverse(&sum)
		}
	}
	return matrix, nil
}

// canonicalFromLE interprets b as a little-endian integer and returns the
// corresponding field element, ok=false if b (as an integer) is >= modulus.
func canonicalFromLE(b []byte) (fr.Element, bool) {
	be := make([]byte, len(b))
	for i, n := 0, len(b); i < n; i++ {
		be[i] = b[n-1-i]
	}
	var e fr.Element
	e.SetBytes(be)
	reencoded := e.Bytes()
	for i := range reencoded {
		if reencoded[i] != be[i] {
			return fr.Element{}, false
		}
	}
	return e, true
}
