package codec_test

import (
	"bytes"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/rln-labs/go-rln/pkg/codec"
)

// trivialCircuit is just enough to exercise a real Groth16 proof for the
// codec round-trip test; it has no relation to the RLN circuit.
type trivialCircuit struct {
	X frontend.Variable `gnark:",public"`
	Y frontend.Variable
}

func (c *trivialCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.X, api.Mul(c.Y, c.Y))
	return nil
}

// TestProofCodecRoundTrip covers spec.md §8 property 8.
func TestProofCodecRoundTrip(t *testing.T) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &trivialCircuit{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	assignment := &trivialCircuit{X: 9, Y: 3}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		t.Fatalf("witness: %v", err)
	}
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	encoded, err := codec.EncodeProof(proof)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(encoded) != codec.ProofSize {
		t.Fatalf("encoded length = %d, want %d", len(encoded), codec.ProofSize)
	}

	decoded, err := codec.DecodeProof(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	reEncoded, err := codec.EncodeProof(decoded)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(encoded, reEncoded) {
		t.Fatal("decode(encode(p)) did not re-encode to the same bytes")
	}

	publicWitness, err := witness.Public()
	if err != nil {
		t.Fatalf("public witness: %v", err)
	}
	if err := groth16.Verify(decoded, vk, publicWitness); err != nil {
		t.Fatalf("verify decoded proof: %v", err)
	}
}

func TestDecodeProofRejectsInfinity(t *testing.T) {
	zero := make([]byte, codec.ProofSize)
	// The all-zero uncompressed encoding is gnark-crypto's point-at-infinity
	// representation for both G1 and G2.
	if _, err := codec.DecodeProof(zero); err == nil {
		t.Fatal("expected error decoding an all-zero (point-at-infinity) proof")
	}
}

func TestDecodeProofRejectsBadLength(t *testing.T) {
	if _, err := codec.DecodeProof(make([]byte, codec.ProofSize-1)); err == nil {
		t.Fatal("expected error for short proof buffer")
	}
}

func TestPublicInputsRoundTrip(t *testing.T) {
	pi := codec.PublicInputs{}
	encoded := pi.Encode()
	if len(encoded) != codec.PublicInputsSize {
		t.Fatalf("encoded length = %d, want %d", len(encoded), codec.PublicInputsSize)
	}

	decoded, err := codec.DecodePublicInputs(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Root.IsZero() || !decoded.Epoch.IsZero() {
		t.Fatal("zero-value public inputs did not decode to zero field elements")
	}
}

func TestDecodePublicInputsRejectsBadLength(t *testing.T) {
	if _, err := codec.DecodePublicInputs(make([]byte, codec.PublicInputsSize-1)); err == nil {
		t.Fatal("expected error for short public inputs buffer")
	}
}
