// Package merkle implements the sparse and incremental Merkle membership
// trees over Poseidon-hashed Fr leaves (spec.md §4.3, §4.4). Both variants
// are map-backed: only nodes written by an update are stored, and absent
// positions take the value of a precomputed zero-subtree chain.
package merkle

import (
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Hasher is the variable-arity hash this tree is built over: two inputs to
// combine a node's children into its parent, one input for Insert's H(old)
// overlay (spec.md §4.3). Callers supply it (typically a pkg/poseidon
// width-3 instance) so this package stays independent of any specific
// Poseidon parameterisation.
type Hasher func(inputs ...fr.Element) (fr.Element, error)

// PathStep is one level of a Merkle authentication path: the sibling value
// at that level and whether the current node is a right child (sibling on
// the left) at that level.
type PathStep struct {
	Sibling fr.Element
	IsRight bool
}

// SparseMerkleTree is a fixed-depth tree represented as a mapping
// (level, index) -> Fr, where level 0 holds leaves and level Depth holds the
// root. Absent entries implicitly take the zero-chain value for their level.
type SparseMerkleTree struct {
	Depth int
	hash  Hasher

	// levels[0] holds leaves, levels[Depth] holds at most the single root
	// entry (index 0). Level indexing here is leaf-relative: level i stores
	// nodes i steps above the leaves.
	levels []map[int]fr.Element

	// zero[i] is the hash of an all-zero subtree of height i; zero[0] is
	// the zero leaf, zero[Depth] is the root of an empty tree.
	zero []fr.Element
}

// precomputeZero builds zero[0..=depth] as zero[0]=0, zero[i]=H(zero[i-1],zero[i-1]).
func precomputeZero(depth int, hash Hasher) ([]fr.Element, error) {
	zero := make([]fr.Element, depth+1)
	zero[0] = fr.Element{}
	for i := 1; i <= depth; i++ {
		h, err := hash(zero[i-1], zero[i-1])
		if err != nil {
			return nil, fmt.Errorf("merkle: precompute zero chain at level %d: %w", i, err)
		}
		zero[i] = h
	}
	return zero, nil
}

// NewSparse returns an empty tree of the given depth with no stored nodes;
// its root is zero[depth].
func NewSparse(depth int, hash Hasher) (*SparseMerkleTree, error) {
	zero, err := precomputeZero(depth, hash)
	if err != nil {
		return nil, err
	}
	levels := make([]map[int]fr.Element, depth+1)
	for i := range levels {
		levels[i] = make(map[int]fr.Element)
	}
	return &SparseMerkleTree{Depth: depth, hash: hash, levels: levels, zero: zero}, nil
}

// Root returns the current root, i.e. get(0, 0) in spec.md §3's terms.
func (t *SparseMerkleTree) Root() fr.Element {
	if v, ok := t.levels[t.Depth][0]; ok {
		return v
	}
	return t.zero[t.Depth]
}

func (t *SparseMerkleTree) node(level, index int) fr.Element {
	if v, ok := t.levels[level][index]; ok {
		return v
	}
	return t.zero[level]
}

// checkIndex returns IndexOutOfRange-shaped error text if index is outside
// [0, 2^depth).
func (t *SparseMerkleTree) checkIndex(index int) error {
	if index < 0 || index >= (1<<uint(t.Depth)) {
		return fmt.Errorf("merkle: index %d out of range for depth %d", index, t.Depth)
	}
	return nil
}

// Update stores leaf at (0, leafIndex) and recomputes every ancestor up
// to and including the root. Complexity: Depth hash evaluations.
func (t *SparseMerkleTree) Update(leafIndex int, leaf fr.Element) error {
	if err := t.checkIndex(leafIndex); err != nil {
		return err
	}
	t.levels[0][leafIndex] = leaf

	idx := leafIndex
	for level := 0; level < t.Depth; level++ {
		siblingIdx := idx ^ 1
		var left, right fr.Element
		if idx%2 == 0 {
			left, right = t.node(level, idx), t.node(level, siblingIdx)
		} else {
			left, right = t.node(level, siblingIdx), t.node(level, idx)
		}
		parent, err := t.hash(left, right)
		if err != nil {
			return fmt.Errorf("merkle: hash level %d: %w", level, err)
		}
		idx /= 2
		t.levels[level+1][idx] = parent
	}
	return nil
}

// Witness returns a Depth-long ordered list of (sibling, is_right) pairs,
// from the leaf level upward (spec.md §4.3).
func (t *SparseMerkleTree) Witness(leafIndex int) ([]PathStep, error) {
	if err := t.checkIndex(leafIndex); err != nil {
		return nil, err
	}
	path := make([]PathStep, t.Depth)
	idx := leafIndex
	for level := 0; level < t.Depth; level++ {
		isRight := idx%2 == 1
		siblingIdx := idx ^ 1
		path[level] = PathStep{Sibling: t.node(level, siblingIdx), IsRight: isRight}
		idx /= 2
	}
	return path, nil
}

// CheckInclusion recomputes the root from leaf using path and reports
// whether it matches the tree's current root. This is a sanity check only
// -- the circuit gadget in circuits/gadget performs the in-proof version.
func (t *SparseMerkleTree) CheckInclusion(path []PathStep, leafIndex int, leaf fr.Element) (bool, error) {
	if len(path) != t.Depth {
		return false, fmt.Errorf("merkle: path length %d disagrees with depth %d", len(path), t.Depth)
	}
	acc := leaf
	for _, step := range path {
		var left, right fr.Element
		if step.IsRight {
			left, right = step.Sibling, acc
		} else {
			left, right = acc, step.Sibling
		}
		h, err := t.hash(left, right)
		if err != nil {
			return false, fmt.Errorf("merkle: check inclusion: %w", err)
		}
		acc = h
	}
	root := t.Root()
	return acc.Equal(&root), nil
}

// Insert is a convenience overlay: when old is non-nil it asserts the
// currently-stored leaf either is the zero leaf (if old's value is zero)
// or equals H(old) before storing H(new). This guards against accidental
// overwrite of an occupied slot; it is a testing aid, not a security
// mechanism (spec.md §4.3).
func (t *SparseMerkleTree) Insert(leafIndex int, newVal fr.Element, old *fr.Element) error {
	if old != nil {
		current := t.node(0, leafIndex)
		if old.IsZero() {
			if !current.Equal(&t.zero[0]) {
				return fmt.Errorf("merkle: insert at %d: slot is occupied but old is zero", leafIndex)
			}
		} else {
			expect, err := t.hash(*old)
			if err != nil {
				return fmt.Errorf("merkle: insert: hash old: %w", err)
			}
			if !current.Equal(&expect) {
				return fmt.Errorf("merkle: insert at %d: stored leaf does not match H(old)", leafIndex)
			}
		}
	}
	hashed, err := t.hash(newVal)
	if err != nil {
		return fmt.Errorf("merkle: insert: hash new: %w", err)
	}
	return t.Update(leafIndex, hashed)
}

// IncrementalMerkleTree extends SparseMerkleTree with an append-only
// next_index and tombstoned deletion (spec.md §4.4).
type IncrementalMerkleTree struct {
	*SparseMerkleTree
	NextIndex int
}

// NewIncremental returns an empty incremental tree of the given depth.
func NewIncremental(depth int, hash Hasher) (*IncrementalMerkleTree, error) {
	sparse, err := NewSparse(depth, hash)
	if err != nil {
		return nil, err
	}
	return &IncrementalMerkleTree{SparseMerkleTree: sparse}, nil
}

// UpdateNext stores leaf at (0, NextIndex), propagates, then increments
// NextIndex. Fails if NextIndex == 2^Depth.
func (t *IncrementalMerkleTree) UpdateNext(leaf fr.Element) error {
	if t.NextIndex >= (1 << uint(t.Depth)) {
		return fmt.Errorf("merkle: tree is full at depth %d", t.Depth)
	}
	if err := t.Update(t.NextIndex, leaf); err != nil {
		return err
	}
	t.NextIndex++
	return nil
}

// Delete asserts index < NextIndex and the slot is currently non-zero,
// overwrites it with the zero leaf, and propagates. NextIndex is never
// decremented and the slot is never reused.
func (t *IncrementalMerkleTree) Delete(index int) error {
	if index < 0 || index >= t.NextIndex {
		return fmt.Errorf("merkle: delete index %d >= next_index %d", index, t.NextIndex)
	}
	current := t.node(0, index)
	if current.Equal(&t.zero[0]) {
		return fmt.Errorf("merkle: delete index %d: slot is already empty", index)
	}
	return t.Update(index, t.zero[0])
}

// ---------------------------------------------------------------------------
// Batch construction
// ---------------------------------------------------------------------------

// BuildSparse constructs a sparse tree of the given depth from leaves[0..],
// storing leaves[i] at leaf slot i. A worker pool hands out the leaf
// indices, matching the concurrency shape of the teacher's batch-build
// helper; the tree updates themselves are serialized under a mutex because
// the tree's maps and its hasher are not safe for concurrent use.
func BuildSparse(leaves []fr.Element, depth int, hash Hasher) (*SparseMerkleTree, error) {
	t, err := NewSparse(depth, hash)
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return t, nil
	}
	if len(leaves) > (1 << uint(depth)) {
		return nil, fmt.Errorf("merkle: %d leaves exceeds capacity 2^%d", len(leaves), depth)
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > len(leaves) {
		numWorkers = len(leaves)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	errs := make([]error, numWorkers)
	work := make(chan int, len(leaves))
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			for i := range work {
				mu.Lock()
				err := t.Update(i, leaves[i])
				mu.Unlock()
				if err != nil {
					errs[slot] = err
				}
			}
		}(w)
	}
	for i := range leaves {
		work <- i
	}
	close(work)
	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Serialization (binary format for persistence)
// ---------------------------------------------------------------------------
//
// Format:
//
//	uint32(depth) | uint32(nextIndex)
//	for level 0..depth:
//	  uint32(count)
//	  for each entry, sorted by index:
//	    uint32(index) | [32]byte(leaf, canonical big-endian)
//
// Zero-chain values are not stored; they are recomputed from the supplied
// hasher on load.

// Save writes the tree to w in a deterministic binary format. nextIndex is
// written into the header exactly as given.
func (t *SparseMerkleTree) Save(w io.Writer, nextIndex int) error {
	if err := binary.Write(w, binary.BigEndian, uint32(t.Depth)); err != nil {
		return fmt.Errorf("merkle: write depth: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(nextIndex)); err != nil {
		return fmt.Errorf("merkle: write next index: %w", err)
	}

	for level := 0; level <= t.Depth; level++ {
		m := t.levels[level]
		if err := binary.Write(w, binary.BigEndian, uint32(len(m))); err != nil {
			return fmt.Errorf("merkle: write level %d count: %w", level, err)
		}

		indices := make([]int, 0, len(m))
		for idx := range m {
			indices = append(indices, idx)
		}
		insertionSort(indices)

		for _, idx := range indices {
			if err := binary.Write(w, binary.BigEndian, uint32(idx)); err != nil {
				return fmt.Errorf("merkle: write level %d index %d: %w", level, idx, err)
			}
			v := m[idx]
			b := v.Bytes()
			if _, err := w.Write(b[:]); err != nil {
				return fmt.Errorf("merkle: write level %d value %d: %w", level, idx, err)
			}
		}
	}
	return nil
}

// LoadSparse reads a tree written by Save. hash must be the same hasher
// used when the tree was built.
func LoadSparse(r io.Reader, hash Hasher) (*SparseMerkleTree, int, error) {
	var depth, nextIndex uint32
	if err := binary.Read(r, binary.BigEndian, &depth); err != nil {
		return nil, 0, fmt.Errorf("merkle: read depth: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &nextIndex); err != nil {
		return nil, 0, fmt.Errorf("merkle: read next index: %w", err)
	}

	t, err := NewSparse(int(depth), hash)
	if err != nil {
		return nil, 0, err
	}

	for level := 0; level <= int(depth); level++ {
		var count uint32
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return nil, 0, fmt.Errorf("merkle: read level %d count: %w", level, err)
		}
		var buf [32]byte
		for j := 0; j < int(count); j++ {
			var idx uint32
			if err := binary.Read(r, binary.BigEndian, &idx); err != nil {
				return nil, 0, fmt.Errorf("merkle: read level %d index: %w", level, err)
			}
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, 0, fmt.Errorf("merkle: read level %d value: %w", level, err)
			}
			var v fr.Element
			v.SetBytes(buf[:])
			t.levels[level][int(idx)] = v
		}
	}
	return t, int(nextIndex), nil
}

// LoadIncremental reads a tree written by (*SparseMerkleTree).Save back into
// an IncrementalMerkleTree, restoring NextIndex from the header.
func LoadIncremental(r io.Reader, hash Hasher) (*IncrementalMerkleTree, error) {
	sparse, nextIndex, err := LoadSparse(r, hash)
	if err != nil {
		return nil, err
	}
	return &IncrementalMerkleTree{SparseMerkleTree: sparse, NextIndex: nextIndex}, nil
}

// insertionSort sorts s ascending; per-level entry counts are small enough
// that this beats pulling in sort.Ints for the common case.
func insertionSort(s []int) {
	for i := 1; i < len(s); i++ {
		key := s[i]
		j := i - 1
		for j >= 0 && s[j] > key {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = key
	}
}
