package merkle_test

import (
	"bytes"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/rln-labs/go-rln/pkg/merkle"
	"github.com/rln-labs/go-rln/pkg/poseidon"
)

func testHasher(t *testing.T) merkle.Hasher {
	t.Helper()
	params, err := poseidon.Width3Params()
	if err != nil {
		t.Fatalf("poseidon params: %v", err)
	}
	h := poseidon.New(params)
	return func(inputs ...fr.Element) (fr.Element, error) {
		return h.Hash(inputs)
	}
}

func elem(v uint64) fr.Element {
	return fr.NewElement(v)
}

// TestUpdateWitnessRoundTrip covers spec.md §8 property 3: after update,
// check_inclusion(witness(i), i, v) is true and the root matches an
// independent rebuild from the same leaf set.
func TestUpdateWitnessRoundTrip(t *testing.T) {
	depth := 4
	hash := testHasher(t)
	tree, err := merkle.NewSparse(depth, hash)
	if err != nil {
		t.Fatalf("new sparse: %v", err)
	}

	leaves := map[int]fr.Element{0: elem(11), 3: elem(22), 7: elem(33)}
	for idx, v := range leaves {
		if err := tree.Update(idx, v); err != nil {
			t.Fatalf("update %d: %v", idx, err)
		}
	}

	for idx, v := range leaves {
		path, err := tree.Witness(idx)
		if err != nil {
			t.Fatalf("witness %d: %v", idx, err)
		}
		ok, err := tree.CheckInclusion(path, idx, v)
		if err != nil {
			t.Fatalf("check inclusion %d: %v", idx, err)
		}
		if !ok {
			t.Fatalf("inclusion check failed for leaf %d", idx)
		}
	}

	rebuilt, err := merkle.NewSparse(depth, hash)
	if err != nil {
		t.Fatalf("new sparse: %v", err)
	}
	for idx, v := range leaves {
		if err := rebuilt.Update(idx, v); err != nil {
			t.Fatalf("rebuilt update %d: %v", idx, err)
		}
	}
	got, want := tree.Root(), rebuilt.Root()
	if !got.Equal(&want) {
		t.Fatalf("root mismatch: %v != %v", got, want)
	}
}

// TestZeroEquivalence covers spec.md §8 property 4: the root of a tree with
// no insertions equals zero[depth], and updating then deleting a slot
// returns the root to its prior value.
func TestZeroEquivalence(t *testing.T) {
	depth := 5
	hash := testHasher(t)

	empty, err := merkle.NewSparse(depth, hash)
	if err != nil {
		t.Fatalf("new sparse: %v", err)
	}
	root := empty.Root()

	tree, err := merkle.NewIncremental(depth, hash)
	if err != nil {
		t.Fatalf("new incremental: %v", err)
	}
	if err := tree.UpdateNext(elem(5)); err != nil {
		t.Fatalf("update next: %v", err)
	}
	beforeDelete := tree.Root()
	if beforeDelete.Equal(&root) {
		t.Fatal("root should change after inserting a non-zero leaf")
	}

	if err := tree.Delete(0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	afterDelete := tree.Root()
	if !afterDelete.Equal(&root) {
		t.Fatal("root after update-then-delete should return to the empty-tree root")
	}
}

func TestIncrementalAppendOnly(t *testing.T) {
	hash := testHasher(t)
	tree, err := merkle.NewIncremental(3, hash)
	if err != nil {
		t.Fatalf("new incremental: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := tree.UpdateNext(elem(uint64(i + 1))); err != nil {
			t.Fatalf("update next %d: %v", i, err)
		}
	}
	if tree.NextIndex != 3 {
		t.Fatalf("next index = %d, want 3", tree.NextIndex)
	}

	if err := tree.Delete(1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if tree.NextIndex != 3 {
		t.Fatal("delete must not decrement next_index")
	}

	if err := tree.Delete(1); err == nil {
		t.Fatal("expected error deleting an already-empty slot")
	}
	if err := tree.Delete(5); err == nil {
		t.Fatal("expected error deleting index >= next_index")
	}
}

// TestIncrementalMatchesDirectRegistration covers spec.md §8 scenario S4:
// register 0,1,2, delete 1; the root equals the root of registering
// {0, 2, zero-at-1}.
func TestIncrementalMatchesDirectRegistration(t *testing.T) {
	hash := testHasher(t)

	incr, err := merkle.NewIncremental(3, hash)
	if err != nil {
		t.Fatalf("new incremental: %v", err)
	}
	for _, v := range []fr.Element{elem(10), elem(20), elem(30)} {
		if err := incr.UpdateNext(v); err != nil {
			t.Fatalf("update next: %v", err)
		}
	}
	if err := incr.Delete(1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	direct, err := merkle.NewSparse(3, hash)
	if err != nil {
		t.Fatalf("new sparse: %v", err)
	}
	var zero fr.Element
	for idx, v := range map[int]fr.Element{0: elem(10), 1: zero, 2: elem(30)} {
		if err := direct.Update(idx, v); err != nil {
			t.Fatalf("direct update %d: %v", idx, err)
		}
	}

	got, want := incr.Root(), direct.Root()
	if !got.Equal(&want) {
		t.Fatal("incremental tree with a deleted slot should match direct registration of {v0, zero, v2}")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	hash := testHasher(t)
	tree, err := merkle.NewIncremental(4, hash)
	if err != nil {
		t.Fatalf("new incremental: %v", err)
	}
	for _, v := range []fr.Element{elem(1), elem(2), elem(3)} {
		if err := tree.UpdateNext(v); err != nil {
			t.Fatalf("update next: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := tree.Save(&buf, tree.NextIndex); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := merkle.LoadIncremental(&buf, hash)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	got, want := loaded.Root(), tree.Root()
	if !got.Equal(&want) {
		t.Fatal("loaded tree root mismatch")
	}
	if loaded.NextIndex != tree.NextIndex {
		t.Fatalf("loaded next index = %d, want %d", loaded.NextIndex, tree.NextIndex)
	}
}

func TestBuildSparseMatchesSequentialUpdates(t *testing.T) {
	hash := testHasher(t)
	leaves := []fr.Element{elem(1), elem(2), elem(3), elem(4), elem(5)}

	parallel, err := merkle.BuildSparse(leaves, 5, hash)
	if err != nil {
		t.Fatalf("build sparse: %v", err)
	}

	sequential, err := merkle.NewSparse(5, hash)
	if err != nil {
		t.Fatalf("new sparse: %v", err)
	}
	for i, v := range leaves {
		if err := sequential.Update(i, v); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	got, want := parallel.Root(), sequential.Root()
	if !got.Equal(&want) {
		t.Fatal("parallel build root disagrees with sequential build")
	}
}

func TestIndexOutOfRange(t *testing.T) {
	hash := testHasher(t)
	tree, err := merkle.NewSparse(3, hash)
	if err != nil {
		t.Fatalf("new sparse: %v", err)
	}
	if err := tree.Update(8, elem(1)); err == nil {
		t.Fatal("expected error for index >= 2^depth")
	}
	if err := tree.Update(-1, elem(1)); err == nil {
		t.Fatal("expected error for negative index")
	}
}

func BenchmarkBuildSparseDepth10(b *testing.B) {
	params, err := poseidon.Width3Params()
	if err != nil {
		b.Fatalf("poseidon params: %v", err)
	}
	h := poseidon.New(params)
	hash := func(inputs ...fr.Element) (fr.Element, error) { return h.Hash(inputs) }

	leaves := make([]fr.Element, 1<<10)
	for i := range leaves {
		leaves[i] = elem(uint64(i + 1))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := merkle.BuildSparse(leaves, 10, hash); err != nil {
			b.Fatal(err)
		}
	}
}
