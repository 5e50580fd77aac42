package rln

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"

	"github.com/rln-labs/go-rln/pkg/codec"
	"github.com/rln-labs/go-rln/pkg/hashtofield"
	"github.com/rln-labs/go-rln/pkg/merkle"
	"github.com/rln-labs/go-rln/pkg/poseidon"
)

// MembershipTree is the subset of *merkle.SparseMerkleTree (and, by
// embedding, *merkle.IncrementalMerkleTree) PrepareWitness needs.
type MembershipTree interface {
	Witness(index int) ([]merkle.PathStep, error)
	Root() fr.Element
}

// PrepareWitness builds a Circuit assignment and its matching public inputs
// for the identity idKey registered at idIndex in tree, the given epoch, and
// raw signal bytes. It computes a1, share_x, share_y and nullifier exactly as
// spec.md §4.7/§4.9 define generate_proof; id_commitment is not computed here
// (the circuit derives it from IDKey).
func PrepareWitness(idKey fr.Element, idIndex int, epoch fr.Element, signal []byte, tree MembershipTree) (*Circuit, codec.PublicInputs, error) {
	path, err := tree.Witness(idIndex)
	if err != nil {
		return nil, codec.PublicInputs{}, fmt.Errorf("rln: witness at %d: %w", idIndex, err)
	}

	w2 := poseidon.New(width2Params)
	w3 := poseidon.New(width3Params)

	a1, err := w3.Hash([]fr.Element{idKey, epoch})
	if err != nil {
		return nil, codec.PublicInputs{}, fmt.Errorf("rln: compute a1: %w", err)
	}

	shareX := hashtofield.Hash(signal)

	var shareY fr.Element
	shareY.Mul(&a1, &shareX)
	shareY.Add(&shareY, &idKey)

	nullifier, err := w2.Hash([]fr.Element{a1})
	if err != nil {
		return nil, codec.PublicInputs{}, fmt.Errorf("rln: compute nullifier: %w", err)
	}

	root := tree.Root()

	circuit := NewCircuit(len(path))
	circuit.IDKey = toVar(idKey)
	for i, step := range path {
		circuit.Siblings[i] = toVar(step.Sibling)
		circuit.Directions[i] = boolVar(step.IsRight)
	}
	circuit.Root = toVar(root)
	circuit.Epoch = toVar(epoch)
	circuit.ShareX = toVar(shareX)
	circuit.ShareY = toVar(shareY)
	circuit.Nullifier = toVar(nullifier)

	public := codec.PublicInputs{
		Root:      root,
		Epoch:     epoch,
		ShareX:    shareX,
		ShareY:    shareY,
		Nullifier: nullifier,
	}
	return circuit, public, nil
}

// IDCommitment computes Poseidon(idKey), the tree-leaf commitment for an
// identity (spec.md §3).
func IDCommitment(idKey fr.Element) (fr.Element, error) {
	w2 := poseidon.New(width2Params)
	return w2.Hash([]fr.Element{idKey})
}

func toVar(e fr.Element) frontend.Variable {
	return frontend.Variable(e.BigInt(new(big.Int)))
}

func boolVar(b bool) frontend.Variable {
	if b {
		return frontend.Variable(1)
	}
	return frontend.Variable(0)
}
