// Package setup wraps the external Groth16 library's "generate parameters
// for this circuit shape" interface (compile + setup + key I/O). The
// trusted-setup ceremony driver itself is out of scope (spec.md §1); this
// package exposes only the single-party dev-mode entry point the ceremony's
// own ouput is interchangeable with at the Groth16 API boundary.
package setup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// CompileCircuit compiles a gnark circuit into an R1CS constraint system
// over the BN254 scalar field.
func CompileCircuit(circuit frontend.Circuit) (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("setup: compile circuit: %w", err)
	}
	return ccs, nil
}

// DevSetup performs a single-party trusted setup (NOT for production) for
// the given circuit shape and writes the resulting keys to outputDir.
func DevSetup(circuit frontend.Circuit, depth int, outputDir, circuitName string) error {
	fmt.Println("================================================================")
	fmt.Println("  WARNING: Single-party setup (1-of-1 trust assumption)")
	fmt.Println("  DO NOT use these keys in production.")
	fmt.Println("================================================================")

	ccs, err := CompileCircuit(circuit)
	if err != nil {
		return err
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return fmt.Errorf("setup: groth16 setup: %w", err)
	}

	return ExportKeys(pk, vk, depth, outputDir, circuitName)
}

// ExportKeys writes the proving key and verifying key to outputDir, with
// the circuit's Merkle depth encoded in each file's header so a mismatched
// load is caught at load time rather than only at verify time.
// Files are named: <circuitName>_prover.key, <circuitName>_verifier.key
func ExportKeys(pk groth16.ProvingKey, vk groth16.VerifyingKey, depth int, outputDir, circuitName string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("setup: create output dir: %w", err)
	}

	pkPath := filepath.Join(outputDir, circuitName+"_prover.key")
	if err := saveKeyed(pkPath, depth, pk); err != nil {
		return fmt.Errorf("setup: export proving key: %w", err)
	}

	vkPath := filepath.Join(outputDir, circuitName+"_verifier.key")
	if err := saveKeyed(vkPath, depth, vk); err != nil {
		return fmt.Errorf("setup: export verifying key: %w", err)
	}

	fmt.Printf("Exported: %s, %s\n", pkPath, vkPath)
	return nil
}

// LoadKeys loads the proving and verifying keys from dir, checking that
// each file's encoded depth matches wantDepth.
func LoadKeys(dir, circuitName string, wantDepth int) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk := groth16.NewProvingKey(ecc.BN254)
	pkPath := filepath.Join(dir, circuitName+"_prover.key")
	if err := loadKeyed(pkPath, wantDepth, pk); err != nil {
		return nil, nil, fmt.Errorf("setup: load proving key: %w", err)
	}

	vk := groth16.NewVerifyingKey(ecc.BN254)
	vkPath := filepath.Join(dir, circuitName+"_verifier.key")
	if err := loadKeyed(vkPath, wantDepth, vk); err != nil {
		return nil, nil, fmt.Errorf("setup: load verifying key: %w", err)
	}

	return pk, vk, nil
}
