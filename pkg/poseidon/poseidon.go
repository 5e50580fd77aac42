package poseidon

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Hasher is a reusable Poseidon sponge instance bound to a single Params.
// It is not safe for concurrent use by multiple goroutines, matching the
// single-threaded synchronous contract of the rest of this module.
type Hasher struct {
	params *Params
	state  []fr.Element
	round  int
}

// New returns a Hasher for the given parameters.
func New(params *Params) *Hasher {
	return &Hasher{params: params}
}

// Hash runs the full permutation over inputs right-padded with zeros to
// width T and returns state[0] as the digest. len(inputs) must be < T;
// hashing more than T-1 elements is a domain error. The hasher's internal
// state is reset before returning, so repeated calls with the same inputs
// on the same instance always agree (spec.md §8 property 1).
func (h *Hasher) Hash(inputs []fr.Element) (fr.Element, error) {
	t := h.params.T
	if len(inputs) >= t {
		return fr.Element{}, fmt.Errorf("poseidon: %d inputs exceeds maximum of %d", len(inputs), t-1)
	}

	h.state = make([]fr.Element, t)
	copy(h.state, inputs)
	h.round = 0

	fullHalf := h.params.Rf / 2
	partialEnd := fullHalf + h.params.Rp
	total := h.params.Rf + h.params.Rp

	for h.round < total {
		switch {
		case h.round < fullHalf:
			h.fullRound(h.round)
		case h.round < partialEnd:
			h.partialRound(h.round)
		default:
			h.fullRound(h.round)
		}
		h.round++
	}

	out := h.state[0]
	h.state = nil
	h.round = 0
	return out, nil
}

// fullRound adds the round's constants, applies the quintic S-box to every
// state element, then multiplies by the MDS matrix. Per spec.md §9, MDS is
// always applied, including in the last full round.
func (h *Hasher) fullRound(round int) {
	h.addRoundConstants(round)
	h.applyQuinticSbox(true)
	h.mulMDS()
}

// partialRound is identical to fullRound except the S-box is applied only
// to the first state element.
func (h *Hasher) partialRound(round int) {
	h.addRoundConstants(round)
	h.applyQuinticSbox(false)
	h.mulMDS()
}

func (h *Hasher) addRoundConstants(round int) {
	t := h.params.T
	for j := 0; j < t; j++ {
		c := h.params.Constants[round*t+j]
		h.state[j].Add(&h.state[j], &c)
	}
}

// applyQuinticSbox raises each targeted state element to the 5th power via
// two squarings and a multiply (x^5 = x^4 * x), matching the constraint
// shape the circuit gadget must reproduce exactly.
func (h *Hasher) applyQuinticSbox(full bool) {
	n := 1
	if full {
		n = len(h.state)
	}
	for i := 0; i < n; i++ {
		s := h.state[i]
		var b fr.Element
		b.Square(&s)
		b.Square(&b)
		h.state[i].Mul(&s, &b)
	}
}

func (h *Hasher) mulMDS() {
	t := h.params.T
	next := make([]fr.Element, t)
	for i := 0; i < t; i++ {
		var acc fr.Element
		for j := 0; j < t; j++ {
			var tmp fr.Element
			tmp.Mul(&h.state[j], &h.params.MDS[i*t+j])
			acc.Add(&acc, &tmp)
		}
		next[i] = acc
	}
	h.state = next
}
