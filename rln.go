// Package rln is the top-level orchestrator for the Rate-Limiting Nullifier
// protocol: it owns the Groth16 proving parameters, the Poseidon parameters,
// and an incremental Merkle tree of registered identity commitments, and
// exposes the operations of spec.md §4.9 over the wire formats of §6.
package rln

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	circuitrln "github.com/rln-labs/go-rln/circuits/rln"
	"github.com/rln-labs/go-rln/pkg/codec"
	"github.com/rln-labs/go-rln/pkg/field"
	"github.com/rln-labs/go-rln/pkg/hashtofield"
	"github.com/rln-labs/go-rln/pkg/merkle"
	"github.com/rln-labs/go-rln/pkg/poseidon"
	"github.com/rln-labs/go-rln/pkg/setup"
)

// fixed-header lengths of the wire formats in spec.md §6.
const (
	u64Size            = 8
	generateProofHeader = field.Size + u64Size + field.Size + u64Size
	verifyHeader        = codec.ProofSize + codec.PublicInputsSize + u64Size
)

// PoseidonParams bundles the two Poseidon parameter sets this module needs:
// width-2 for single-input absorptions (id_commitment, nullifier) and
// width-3 for two-input absorptions (a1, Merkle sibling-pair combination).
type PoseidonParams struct {
	Width2 *poseidon.Params
	Width3 *poseidon.Params
}

func defaultPoseidonParams() PoseidonParams {
	return PoseidonParams{Width2: circuitrln.Width2Params(), Width3: circuitrln.Width3Params()}
}

// RLN is one instance of the protocol: proving parameters, Poseidon
// parameters, and an incremental Merkle tree, all sized for a fixed depth
// (spec.md §3 "RLN instance"). The zero value is not usable; construct with
// New or NewWithRawParams.
type RLN struct {
	Depth int

	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey

	tree *merkle.IncrementalMerkleTree
	w2   *poseidon.Hasher
	w3   *poseidon.Hasher
}

// New runs a single-party trusted setup against the empty-witness circuit of
// the given depth and returns a fully initialised instance with an empty
// tree. poseidonParams may be nil to use this module's default parameters.
func New(depth int, poseidonParams *PoseidonParams) (*RLN, error) {
	params := defaultPoseidonParams()
	if poseidonParams != nil {
		params = *poseidonParams
	}

	ccs, err := setup.CompileCircuit(circuitrln.NewCircuit(depth))
	if err != nil {
		return nil, newErr("new", InvariantViolation, err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, newErr("new", RandomnessFailure, err)
	}
	return newInstance(depth, ccs, pk, vk, params)
}

// NewWithRawParams parses proving and verifying keys from an opaque blob
// instead of running a fresh setup: a 4-byte big-endian depth header (the
// same header-then-payload idiom as pkg/setup.ExportKeys/LoadKeys, see
// SPEC_FULL.md's depth-parameterised proving-parameter cache keying note)
// followed by the proving key's own encoding immediately followed by the
// verifying key's own encoding. This is spec.md §9's intended production
// entry point, and is the operation testable property 6 (§8) exercises: a
// blob tagged for a different depth than requested is rejected as
// DepthMismatch rather than being handed, undetected, to a ccs it was never
// compiled against.
func NewWithRawParams(depth int, paramsBytes []byte, poseidonParams *PoseidonParams) (*RLN, error) {
	params := defaultPoseidonParams()
	if poseidonParams != nil {
		params = *poseidonParams
	}

	if len(paramsBytes) < 4 {
		return nil, newErr("new_with_raw_params", InvalidLength, fmt.Errorf("raw params blob shorter than depth header"))
	}
	gotDepth := int(binary.BigEndian.Uint32(paramsBytes[:4]))
	if gotDepth != depth {
		return nil, newErr("new_with_raw_params", DepthMismatch, fmt.Errorf("raw params blob is tagged for depth %d, requested depth %d", gotDepth, depth))
	}

	ccs, err := setup.CompileCircuit(circuitrln.NewCircuit(depth))
	if err != nil {
		return nil, newErr("new_with_raw_params", InvariantViolation, err)
	}

	r := bytes.NewReader(paramsBytes[4:])
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(r); err != nil {
		return nil, newErr("new_with_raw_params", InvalidLength, err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, newErr("new_with_raw_params", InvalidLength, err)
	}

	return newInstance(depth, ccs, pk, vk, params)
}

// EncodeRawParams produces the blob NewWithRawParams consumes: a 4-byte
// big-endian depth header followed by this instance's proving key's and
// then its verifying key's own encoding.
func (r *RLN) EncodeRawParams() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(r.Depth)); err != nil {
		return nil, newErr("encode_raw_params", InvariantViolation, err)
	}
	if _, err := r.pk.WriteTo(&buf); err != nil {
		return nil, newErr("encode_raw_params", InvariantViolation, err)
	}
	if _, err := r.vk.WriteTo(&buf); err != nil {
		return nil, newErr("encode_raw_params", InvariantViolation, err)
	}
	return buf.Bytes(), nil
}

func newInstance(depth int, ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey, params PoseidonParams) (*RLN, error) {
	w3 := poseidon.New(params.Width3)
	nodeHash := func(inputs ...fr.Element) (fr.Element, error) { return w3.Hash(inputs) }

	tree, err := merkle.NewIncremental(depth, nodeHash)
	if err != nil {
		return nil, newErr("new", InvariantViolation, err)
	}

	return &RLN{
		Depth: depth,
		ccs:   ccs,
		pk:    pk,
		vk:    vk,
		tree:  tree,
		w2:    poseidon.New(params.Width2),
		w3:    w3,
	}, nil
}

// UpdateNextMember appends a member commitment (a canonical 32-byte Fr) to
// the tree at the next free index (spec.md §4.4).
func (r *RLN) UpdateNextMember(leafBytes []byte) error {
	leaf, err := field.Decode(leafBytes)
	if err != nil {
		return newErr("update_next_member", NonCanonicalField, err)
	}
	if err := r.tree.UpdateNext(leaf); err != nil {
		return newErr("update_next_member", IndexOutOfRange, err)
	}
	return nil
}

// DeleteMember tombstones the member at index (spec.md §4.4).
func (r *RLN) DeleteMember(index int) error {
	if err := r.tree.Delete(index); err != nil {
		return newErr("delete_member", IndexOutOfRange, err)
	}
	return nil
}

// GetRoot returns the current Merkle root, canonically encoded.
func (r *RLN) GetRoot() [32]byte {
	return field.Encode(r.tree.Root())
}

// SignalToField parses a length-prefixed (u64 little-endian) buffer and
// hashes the payload to a field element via hashtofield.Hash (spec.md §4.8).
func (r *RLN) SignalToField(rawMessage []byte) (fr.Element, error) {
	if len(rawMessage) < u64Size {
		return fr.Element{}, newErr("signal_to_field", InvalidLength, fmt.Errorf("buffer shorter than length prefix"))
	}
	n := binary.LittleEndian.Uint64(rawMessage[:u64Size])
	if uint64(len(rawMessage)-u64Size) != n {
		return fr.Element{}, newErr("signal_to_field", InvalidLength, fmt.Errorf("declared signal length %d, got %d", n, len(rawMessage)-u64Size))
	}
	return hashtofield.Hash(rawMessage[u64Size:]), nil
}

// KeyGen draws a uniformly random secret, computes its public commitment
// Poseidon(secret), and returns secret||public (spec.md §4.9, §6).
func (r *RLN) KeyGen() ([64]byte, error) {
	var out [64]byte

	raw := make([]byte, field.Size)
	if _, err := rand.Read(raw); err != nil {
		return out, newErr("key_gen", RandomnessFailure, err)
	}
	var secret fr.Element
	secret.SetBytes(raw)

	public, err := r.w2.Hash([]fr.Element{secret})
	if err != nil {
		return out, newErr("key_gen", InvariantViolation, err)
	}

	secretEnc := field.Encode(secret)
	publicEnc := field.Encode(public)
	copy(out[:32], secretEnc[:])
	copy(out[32:], publicEnc[:])
	return out, nil
}

// GenerateProof parses id_key||id_index||epoch||signal_len||signal, derives
// share_x, a1, share_y and nullifier, fetches the authentication path for
// id_index, drives the Groth16 prover, and returns the uncompressed proof
// followed by the public inputs blob (spec.md §4.9, §6).
func (r *RLN) GenerateProof(input []byte) ([]byte, error) {
	if len(input) < generateProofHeader {
		return nil, newErr("generate_proof", InvalidLength, fmt.Errorf("input shorter than fixed header"))
	}
	offset := 0

	idKey, err := field.Decode(input[offset : offset+field.Size])
	if err != nil {
		return nil, newErr("generate_proof", NonCanonicalField, err)
	}
	offset += field.Size

	idIndex := binary.LittleEndian.Uint64(input[offset : offset+u64Size])
	offset += u64Size

	epoch, err := field.Decode(input[offset : offset+field.Size])
	if err != nil {
		return nil, newErr("generate_proof", NonCanonicalField, err)
	}
	offset += field.Size

	signalLen := binary.LittleEndian.Uint64(input[offset : offset+u64Size])
	offset += u64Size
	if uint64(len(input)-offset) != signalLen {
		return nil, newErr("generate_proof", InvalidLength, fmt.Errorf("declared signal length %d, got %d", signalLen, len(input)-offset))
	}
	signal := input[offset:]

	assignment, public, err := circuitrln.PrepareWitness(idKey, int(idIndex), epoch, signal, r.tree)
	if err != nil {
		return nil, newErr("generate_proof", IndexOutOfRange, err)
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, newErr("generate_proof", InvariantViolation, err)
	}

	// groth16.Prove draws its own blinding randomness internally and doesn't
	// surface a distinguishable error for that path; nearly every failure
	// reaching here is the witness not satisfying the relation (e.g. proving
	// against a tombstoned leaf, spec.md §8 S4) or pk/ccs disagreeing on
	// shape, neither of which is "the CSPRNG returned an error" (§7). Treat
	// it as a contract break rather than mislabeling it RandomnessFailure.
	proof, err := groth16.Prove(r.ccs, r.pk, witness)
	if err != nil {
		return nil, newErr("generate_proof", InvariantViolation, err)
	}

	proofBytes, err := codec.EncodeProof(proof)
	if err != nil {
		return nil, newErr("generate_proof", InvariantViolation, err)
	}

	out := make([]byte, 0, len(proofBytes)+codec.PublicInputsSize)
	out = append(out, proofBytes...)
	out = append(out, public.Encode()...)
	return out, nil
}

// Verify parses proof||public_inputs||signal_len||signal, rejects if the
// recomputed hash_to_field(signal) disagrees with the parsed share_x, and
// otherwise calls the Groth16 verifier (spec.md §4.9, §6). A cryptographic
// verification failure returns (false, nil), not an error.
func (r *RLN) Verify(input []byte) (bool, error) {
	if len(input) < verifyHeader {
		return false, newErr("verify", InvalidLength, fmt.Errorf("input shorter than fixed header"))
	}
	offset := 0

	proof, err := codec.DecodeProof(input[offset : offset+codec.ProofSize])
	if err != nil {
		return false, newErr("verify", InvalidPoint, err)
	}
	offset += codec.ProofSize

	public, err := codec.DecodePublicInputs(input[offset : offset+codec.PublicInputsSize])
	if err != nil {
		return false, newErr("verify", NonCanonicalField, err)
	}
	offset += codec.PublicInputsSize

	signalLen := binary.LittleEndian.Uint64(input[offset : offset+u64Size])
	offset += u64Size
	if uint64(len(input)-offset) != signalLen {
		return false, newErr("verify", InvalidLength, fmt.Errorf("declared signal length %d, got %d", signalLen, len(input)-offset))
	}
	signal := input[offset:]

	recomputed := hashtofield.Hash(signal)
	if !recomputed.Equal(&public.ShareX) {
		return false, newErr("verify", SignalMismatch, nil)
	}

	publicAssignment := &circuitrln.Circuit{
		Root:      toVar(public.Root),
		Epoch:     toVar(public.Epoch),
		ShareX:    toVar(public.ShareX),
		ShareY:    toVar(public.ShareY),
		Nullifier: toVar(public.Nullifier),
	}
	witness, err := frontend.NewWitness(publicAssignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, newErr("verify", InvariantViolation, err)
	}

	if err := groth16.Verify(proof, r.vk, witness); err != nil {
		return false, nil
	}
	return true, nil
}

// Hash exposes the native width-3 Poseidon permutation this instance's tree
// combines sibling nodes with. Identity commitments (the tree's leaves) are
// computed with the width-2 instance instead, so Hash([id_key]) is not an
// id_commitment.
func (r *RLN) Hash(inputs []fr.Element) (fr.Element, error) {
	h, err := r.w3.Hash(inputs)
	if err != nil {
		return fr.Element{}, newErr("hash", InvariantViolation, err)
	}
	return h, nil
}

// ExportVerifyingKey writes this instance's verifying key via its own
// WriteTo encoding.
func (r *RLN) ExportVerifyingKey(w io.Writer) error {
	_, err := r.vk.WriteTo(w)
	if err != nil {
		return newErr("export_verifying_key", InvariantViolation, err)
	}
	return nil
}

// ExportProvingKey writes this instance's proving key via its own WriteTo
// encoding.
func (r *RLN) ExportProvingKey(w io.Writer) error {
	_, err := r.pk.WriteTo(w)
	if err != nil {
		return newErr("export_proving_key", InvariantViolation, err)
	}
	return nil
}

// RecoverIDKey recovers an identity's secret key from two distinct signal
// shares in the same epoch, exploiting the shared-line construction of
// spec.md §4.7: id_key = (x2*y1 - x1*y2) / (x2 - x1).
func RecoverIDKey(e1, e2 codec.PublicInputs) (fr.Element, error) {
	var dx fr.Element
	dx.Sub(&e2.ShareX, &e1.ShareX)
	if dx.IsZero() {
		return fr.Element{}, newErr("recover_id_key", InvariantViolation, fmt.Errorf("shares use the same share_x"))
	}

	var x2y1, x1y2, num fr.Element
	x2y1.Mul(&e2.ShareX, &e1.ShareY)
	x1y2.Mul(&e1.ShareX, &e2.ShareY)
	num.Sub(&x2y1, &x1y2)

	var dxInv fr.Element
	dxInv.Inverse(&dx)

	var idKey fr.Element
	idKey.Mul(&num, &dxInv)
	return idKey, nil
}

func toVar(e fr.Element) frontend.Variable {
	return frontend.Variable(e.BigInt(new(big.Int)))
}
