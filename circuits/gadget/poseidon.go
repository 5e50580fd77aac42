// Package gadget holds the R1CS circuit gadgets that must compute bit-
// identical results to their native counterparts in pkg/poseidon and
// pkg/merkle: the Poseidon permutation (this file) and Merkle inclusion
// (merkle.go).
package gadget

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"

	"github.com/rln-labs/go-rln/pkg/poseidon"
)

// Permute emits constraints computing the same permutation as
// (*poseidon.Hasher).Hash for the given parameters, over allocated
// variables right-padded with zero constants to width T, and returns
// state[0] as the digest. len(inputs) must be < params.T.
func Permute(api frontend.API, params *poseidon.Params, inputs []frontend.Variable) frontend.Variable {
	t := params.T
	state := make([]frontend.Variable, t)
	for i := 0; i < t; i++ {
		if i < len(inputs) {
			state[i] = inputs[i]
		} else {
			state[i] = frontend.Variable(0)
		}
	}

	fullHalf := params.Rf / 2
	partialEnd := fullHalf + params.Rp
	total := params.Rf + params.Rp

	for round := 0; round < total; round++ {
		switch {
		case round < fullHalf:
			state = fullRound(api, params, state, round)
		case round < partialEnd:
			state = partialRound(api, params, state, round)
		default:
			state = fullRound(api, params, state, round)
		}
	}
	return state[0]
}

// fullRound adds the round's constants, applies the quintic S-box to every
// state element, then multiplies by the MDS matrix. MDS is always applied,
// including in the last full round, matching pkg/poseidon exactly.
func fullRound(api frontend.API, params *poseidon.Params, state []frontend.Variable, round int) []frontend.Variable {
	state = addRoundConstants(api, params, state, round)
	for i := range state {
		state[i] = sbox(api, state[i])
	}
	return mulMDS(api, params, state)
}

// partialRound is identical to fullRound except the S-box is applied only
// to the first state element.
func partialRound(api frontend.API, params *poseidon.Params, state []frontend.Variable, round int) []frontend.Variable {
	state = addRoundConstants(api, params, state, round)
	state[0] = sbox(api, state[0])
	return mulMDS(api, params, state)
}

func addRoundConstants(api frontend.API, params *poseidon.Params, state []frontend.Variable, round int) []frontend.Variable {
	t := params.T
	next := make([]frontend.Variable, t)
	for j := 0; j < t; j++ {
		next[j] = api.Add(state[j], constant(params.Constants[round*t+j]))
	}
	return next
}

// sbox computes x^5 as two squarings and a multiply: x^2 = x*x, x^4 = x^2*x^2,
// x^5 = x^4*x -- three multiplication constraints, matching spec.md §4.5.
func sbox(api frontend.API, x frontend.Variable) frontend.Variable {
	x2 := api.Mul(x, x)
	x4 := api.Mul(x2, x2)
	return api.Mul(x4, x)
}

func mulMDS(api frontend.API, params *poseidon.Params, state []frontend.Variable) []frontend.Variable {
	t := params.T
	next := make([]frontend.Variable, t)
	for i := 0; i < t; i++ {
		terms := make([]frontend.Variable, t)
		for j := 0; j < t; j++ {
			terms[j] = api.Mul(state[j], constant(params.MDS[i*t+j]))
		}
		next[i] = api.Add(terms[0], terms[1], terms[2:]...)
	}
	return next
}

// constant converts a native field element to a circuit constant.
func constant(e fr.Element) frontend.Variable {
	return frontend.Variable(e.BigInt(new(big.Int)))
}
