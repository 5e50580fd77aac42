package hashtofield

import "testing"

// TestDeterminism covers spec.md §8 property 5 (first half): hashing the
// same input twice agrees.
func TestDeterminism(t *testing.T) {
	x := []byte("hello")
	a := Hash(x)
	b := Hash(x)
	if !a.Equal(&b) {
		t.Fatalf("hash not deterministic: %v != %v", a, b)
	}
}

// TestEmptyVsNulByteDiffer covers spec.md §8 property 5 (second half).
func TestEmptyVsNulByteDiffer(t *testing.T) {
	empty := Hash([]byte{})
	nul := Hash([]byte{0})
	if empty.Equal(&nul) {
		t.Fatal(`hash_to_field("") == hash_to_field("\x00")`)
	}
}

func TestDistinctInputsDiffer(t *testing.T) {
	a := Hash([]byte("hello"))
	b := Hash([]byte("hello!"))
	if a.Equal(&b) {
		t.Fatal("distinct inputs produced the same field element")
	}
}
