package recsort

import (
	"cmp"
	"slices"
	"testing"
)

func TestSortIndexAgainstReference(t *testing.T) {
	rng := newTestRNG(t)
	for _, n := range []int{0, 1, 2, 3, 10, 100, 1000, 4096} {
		for _, cutoff := range []int{1, 2, 16, 100000} {
			recs := make([]IndexRec, n)
			for i := range recs {
				recs[i] = IndexRec{Key: rng.Uint64N(uint64(n/2 + 1)), Offset: uint64(i), Len: 8}
			}
			want := slices.Clone(recs)
			slices.SortFunc(want, func(a, b IndexRec) int { return cmp.Compare(a.Key, b.Key) })

			SortIndex(recs, cutoff, 4, nil)

			assertNonDecreasing(t, sortedKeys(recs))
			// Same multiset: compare against a stable reference after
			// normalizing by full value (offset disambiguates duplicates).
			full := func(a, b IndexRec) int {
				if c := cmp.Compare(a.Key, b.Key); c != 0 {
					return c
				}
				return cmp.Compare(a.Offset, b.Offset)
			}
			got := slices.Clone(recs)
			slices.SortFunc(got, full)
			slices.SortFunc(want, full)
			if !slices.Equal(got, want) {
				t.Fatalf("n=%d cutoff=%d: sorted array is not a permutation of the input", n, cutoff)
			}
		}
	}
}

func TestSortIndexSingleWorkerIsSequential(t *testing.T) {
	rng := newTestRNG(t)
	recs := make([]IndexRec, 5000)
	for i := range recs {
		recs[i] = IndexRec{Key: rng.Uint64(), Offset: uint64(i)}
	}
	SortIndex(recs, 64, 1, nil)
	assertNonDecreasing(t, sortedKeys(recs))
}

func TestSortIndexDenseDuplicates(t *testing.T) {
	rng := newTestRNG(t)
	recs := make([]IndexRec, 2000)
	for i := range recs {
		recs[i] = IndexRec{Key: rng.Uint64N(3), Offset: uint64(i)}
	}
	SortIndex(recs, 10, 8, nil)
	assertNonDecreasing(t, sortedKeys(recs))
}

// TestSortIndexOverlapsBuild drives the build/sort overlap: a producer
// fills the index in source order publishing progress through a gate
// while the gated sort runs concurrently. If a leaf ever sorted before
// its prefix was published it would sort zeroed entries and the final
// array could not match the reference.
func TestSortIndexOverlapsBuild(t *testing.T) {
	rng := newTestRNG(t)
	const n = 1000
	const cutoff = 128

	source := make([]IndexRec, n)
	for i := range source {
		source[i] = IndexRec{Key: rng.Uint64N(500), Offset: uint64(i), Len: 8}
	}
	want := slices.Clone(source)
	slices.SortFunc(want, func(a, b IndexRec) int {
		if c := cmp.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return cmp.Compare(a.Offset, b.Offset)
	})

	idx := make([]IndexRec, n)
	gate := NewGate()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range source {
			idx[i] = source[i]
			if (i+1)%cutoff == 0 {
				gate.Publish(uint64(i + 1))
			}
		}
		gate.Publish(n)
	}()

	SortIndex(idx, cutoff, 4, gate)
	<-done

	if got := gate.Filled(); got != n {
		t.Errorf("gate at %d, want %d", got, n)
	}
	assertNonDecreasing(t, sortedKeys(idx))
	slices.SortFunc(idx, func(a, b IndexRec) int {
		if c := cmp.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return cmp.Compare(a.Offset, b.Offset)
	})
	if !slices.Equal(idx, want) {
		t.Fatal("overlapped sort lost or corrupted records")
	}
}

func TestMergeAdjacent(t *testing.T) {
	cases := []struct {
		name string
		keys []uint64
		mid  int
	}{
		{"interleaved", []uint64{1, 3, 5, 2, 4, 6}, 3},
		{"left run empty", []uint64{1, 2, 3}, 0},
		{"right run empty", []uint64{1, 2, 3}, 3},
		{"already ordered", []uint64{1, 2, 3, 4}, 2},
		{"all equal", []uint64{7, 7, 7, 7}, 2},
		{"right before left", []uint64{5, 6, 1, 2}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recs := make([]IndexRec, len(tc.keys))
			for i, k := range tc.keys {
				recs[i] = IndexRec{Key: k, Offset: uint64(i)}
			}
			mergeAdjacent(recs, tc.mid)
			assertNonDecreasing(t, sortedKeys(recs))
			if len(recs) != len(tc.keys) {
				t.Fatalf("length changed: %d != %d", len(recs), len(tc.keys))
			}
		})
	}
}
