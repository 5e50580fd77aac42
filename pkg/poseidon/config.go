package poseidon

// The RLN relation (spec.md §4.7) needs two Poseidon shapes: a width-2
// instance for single-input hashes (id_commitment, nullifier) and a width-3
// instance for two-input hashes (a1, and Merkle sibling pairs). Both use the
// round counts from the reference parameter set this module was grounded
// on (_examples/original_source/src/poseidon.rs's own test: rf=8, rp=57).
const (
	FullRounds    = 8
	PartialRounds = 57
)

var (
	seedWidth2 = []byte("rln poseidon t2rf8rp57")
	seedWidth3 = []byte("rln poseidon t3rf8rp57")

	personaConstants = []byte("rlnhds_c")
	personaMDS       = []byte("rlnhds_m")
)

// Width2Params returns the (width=2, i.e. single-input) Poseidon parameters
// used for id_commitment = Poseidon(id_key) and nullifier = Poseidon(a1).
func Width2Params() (*Params, error) {
	return GenerateParams(personaConstants, personaMDS, seedWidth2, 2, FullRounds, PartialRounds)
}

// Width3Params returns the (width=3, i.e. two-input) Poseidon parameters
// used for a1 = Poseidon(id_key, epoch) and Merkle sibling-pair hashing.
func Width3Params() (*Params, error) {
	return GenerateParams(personaConstants, personaMDS, seedWidth3, 3, FullRounds, PartialRounds)
}
