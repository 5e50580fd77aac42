package rln

import (
	"github.com/consensys/gnark/frontend"

	"github.com/rln-labs/go-rln/circuits/gadget"
)

// Circuit is the RLN relation: the prover knows an id_key whose commitment
// lies in the membership tree under Root, and (ShareX, ShareY) is the
// correctly-evaluated point on that identity's per-epoch line (spec.md §4.7).
type Circuit struct {
	// Public inputs, in this order (spec.md §3, §6).
	Root      frontend.Variable `gnark:"root,public"`
	Epoch     frontend.Variable `gnark:"epoch,public"`
	ShareX    frontend.Variable `gnark:"shareX,public"`
	ShareY    frontend.Variable `gnark:"shareY,public"`
	Nullifier frontend.Variable `gnark:"nullifier,public"`

	// Private witness.
	IDKey      frontend.Variable   `gnark:"idKey"`
	Siblings   []frontend.Variable `gnark:"siblings"`
	Directions []frontend.Variable `gnark:"directions"`
}

// NewCircuit returns an uninitialized circuit template sized for the given
// Merkle depth, suitable for frontend.Compile.
func NewCircuit(depth int) *Circuit {
	return &Circuit{
		Siblings:   make([]frontend.Variable, depth),
		Directions: make([]frontend.Variable, depth),
	}
}

// Define implements the five constraints of spec.md §4.7.
func (c *Circuit) Define(api frontend.API) error {
	// 1. id_commitment = Poseidon(id_key) (width-2 sponge, one absorb).
	idCommitment := gadget.Permute(api, width2Params, []frontend.Variable{c.IDKey})

	// 2. Merkle inclusion of id_commitment under root.
	gadget.CheckMerkleInclusion(api, width3Params, idCommitment, c.Siblings, c.Directions, c.Root)

	// 3. a1 = Poseidon(id_key, epoch) (width-3 sponge, two absorbs).
	a1 := gadget.Permute(api, width3Params, []frontend.Variable{c.IDKey, c.Epoch})

	// 4. share_y = a1 * share_x + id_key.
	shareY := api.Add(api.Mul(a1, c.ShareX), c.IDKey)
	api.AssertIsEqual(shareY, c.ShareY)

	// 5. nullifier = Poseidon(a1).
	nullifier := gadget.Permute(api, width2Params, []frontend.Variable{a1})
	api.AssertIsEqual(nullifier, c.Nullifier)

	return nil
}
