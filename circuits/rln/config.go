// Package rln defines the RLN relation circuit of spec.md §4.7 (component H):
// Merkle membership of an identity commitment plus the per-epoch linear
// share relation, and the witness preparation that turns an identity, a
// tree, an epoch and a signal into a circuit assignment.
package rln

import (
	"fmt"

	"github.com/rln-labs/go-rln/pkg/poseidon"
)

// width2Params and width3Params are computed once at package init, mirroring
// circuits/fsp's init()-computed zero-subtree constants in the teacher repo.
var (
	width2Params *poseidon.Params
	width3Params *poseidon.Params
)

func init() {
	var err error
	width2Params, err = poseidon.Width2Params()
	if err != nil {
		panic(fmt.Sprintf("rln: generate width-2 poseidon params: %v", err))
	}
	width3Params, err = poseidon.Width3Params()
	if err != nil {
		panic(fmt.Sprintf("rln: generate width-3 poseidon params: %v", err))
	}
}

// Width2Params returns the package's width-2 Poseidon parameters (used for
// single-input absorptions: id_commitment, nullifier).
func Width2Params() *poseidon.Params { return width2Params }

// Width3Params returns the package's width-3 Poseidon parameters (used for
// two-input absorptions: a1, Merkle sibling-pair combination).
func Width3Params() *poseidon.Params { return width3Params }
