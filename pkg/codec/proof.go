// Package codec implements the fixed-layout wire formats of spec.md §6: the
// uncompressed Groth16 proof (three curve points) and the RLN public-inputs
// blob (five field elements).
package codec

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"

	"github.com/rln-labs/go-rln/pkg/field"
)

// Sizes of the uncompressed BN254 point encodings and their concatenation
// (spec.md §6).
const (
	G1UncompressedSize = 64
	G2UncompressedSize = 128
	ProofSize          = 2*G1UncompressedSize + G2UncompressedSize // A || B || C
)

// EncodeProof writes proof as A_uncompressed || B_uncompressed || C_uncompressed.
func EncodeProof(proof groth16.Proof) ([]byte, error) {
	p, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return nil, fmt.Errorf("codec: proof is not a BN254 groth16 proof")
	}

	out := make([]byte, 0, ProofSize)
	a := p.Ar.RawBytes()
	b := p.Bs.RawBytes()
	c := p.Krs.RawBytes()
	out = append(out, a[:]...)
	out = append(out, b[:]...)
	out = append(out, c[:]...)
	return out, nil
}

// DecodeProof parses a 256-byte uncompressed BN254 proof. Any point encoded
// as the point at infinity is rejected (spec.md §6).
func DecodeProof(b []byte) (*groth16bn254.Proof, error) {
	if len(b) != ProofSize {
		return nil, fmt.Errorf("codec: invalid proof length %d, want %d", len(b), ProofSize)
	}

	var proof groth16bn254.Proof
	if err := proof.Ar.Unmarshal(b[0:G1UncompressedSize]); err != nil {
		return nil, fmt.Errorf("codec: unmarshal A: %w", err)
	}
	if err := proof.Bs.Unmarshal(b[G1UncompressedSize : G1UncompressedSize+G2UncompressedSize]); err != nil {
		return nil, fmt.Errorf("codec: unmarshal B: %w", err)
	}
	if err := proof.Krs.Unmarshal(b[G1UncompressedSize+G2UncompressedSize:]); err != nil {
		return nil, fmt.Errorf("codec: unmarshal C: %w", err)
	}

	if proof.Ar.IsInfinity() || proof.Bs.IsInfinity() || proof.Krs.IsInfinity() {
		return nil, fmt.Errorf("codec: proof contains a point at infinity")
	}
	return &proof, nil
}

// PublicInputs is the RLN public witness in wire order (spec.md §3, §4.7).
type PublicInputs struct {
	Root      fr.Element
	Epoch     fr.Element
	ShareX    fr.Element
	ShareY    fr.Element
	Nullifier fr.Element
}

// PublicInputsSize is the encoded length of PublicInputs (spec.md §6).
const PublicInputsSize = 5 * field.Size

// Encode writes p as root||epoch||share_x||share_y||nullifier, 32 bytes each.
func (p PublicInputs) Encode() []byte {
	out := make([]byte, 0, PublicInputsSize)
	for _, e := range []fr.Element{p.Root, p.Epoch, p.ShareX, p.ShareY, p.Nullifier} {
		b := field.Encode(e)
		out = append(out, b[:]...)
	}
	return out
}

// DecodePublicInputs parses a 160-byte public inputs blob.
func DecodePublicInputs(b []byte) (PublicInputs, error) {
	var p PublicInputs
	if len(b) != PublicInputsSize {
		return p, fmt.Errorf("codec: invalid public inputs length %d, want %d", len(b), PublicInputsSize)
	}

	fields := make([]fr.Element, 5)
	for i := range fields {
		e, err := field.Decode(b[i*field.Size : (i+1)*field.Size])
		if err != nil {
			return p, fmt.Errorf("codec: public input %d: %w", i, err)
		}
		fields[i] = e
	}
	p.Root, p.Epoch, p.ShareX, p.ShareY, p.Nullifier = fields[0], fields[1], fields[2], fields[3], fields[4]
	return p, nil
}
