package gadget

import (
	"github.com/consensys/gnark/frontend"

	"github.com/rln-labs/go-rln/pkg/poseidon"
)

// CheckMerkleInclusion hashes leaf upward through depth levels using the
// witnessed siblings and direction bits, asserts each direction bit is
// boolean, and asserts the final accumulator equals root (spec.md §4.6).
// directions[i] == 1 means the current node is a right child at level i
// (sibling on the left), mirroring pkg/merkle.PathStep.IsRight.
func CheckMerkleInclusion(api frontend.API, params *poseidon.Params, leaf frontend.Variable, siblings, directions []frontend.Variable, root frontend.Variable) {
	depth := len(siblings)
	if len(directions) != depth {
		panic("gadget: siblings and directions length mismatch")
	}

	acc := leaf
	for i := 0; i < depth; i++ {
		api.AssertIsBoolean(directions[i])

		sibling := siblings[i]
		isRight := directions[i]

		left := api.Select(isRight, sibling, acc)
		right := api.Select(isRight, acc, sibling)

		acc = Permute(api, params, []frontend.Variable{left, right})
	}

	api.AssertIsEqual(acc, root)
}
