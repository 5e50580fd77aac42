package setup_test

import (
	"testing"

	"github.com/consensys/gnark/frontend"

	"github.com/rln-labs/go-rln/pkg/setup"
)

type squareCircuit struct {
	X frontend.Variable `gnark:",public"`
	Y frontend.Variable
}

func (c *squareCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.X, api.Mul(c.Y, c.Y))
	return nil
}

func TestCompileAndDevSetupExportLoad(t *testing.T) {
	ccs, err := setup.CompileCircuit(&squareCircuit{})
	if err != nil {
		t.Fatalf("compile circuit: %v", err)
	}
	if ccs.GetNbConstraints() == 0 {
		t.Fatal("expected at least one constraint")
	}

	tmpDir := t.TempDir()
	if err := setup.DevSetup(&squareCircuit{}, 3, tmpDir, "test"); err != nil {
		t.Fatalf("dev setup: %v", err)
	}

	pk, vk, err := setup.LoadKeys(tmpDir, "test", 3)
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	if pk == nil || vk == nil {
		t.Fatal("loaded nil keys")
	}
}

func TestLoadKeysRejectsDepthMismatch(t *testing.T) {
	tmpDir := t.TempDir()
	if err := setup.DevSetup(&squareCircuit{}, 3, tmpDir, "test"); err != nil {
		t.Fatalf("dev setup: %v", err)
	}

	if _, _, err := setup.LoadKeys(tmpDir, "test", 5); err == nil {
		t.Fatal("expected depth mismatch error")
	}
}
