package recsort

import (
	"cmp"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"
)

// SortIndex sorts recs by key with a task-parallel mergesort. Inclusive
// ranges [left, right] with right-left <= cutoff (at most cutoff+1
// records) are sorted by comparison; larger ranges recurse on both
// halves, spawning a goroutine for the left half when a worker slot is
// free, then merge the two adjacent sorted runs.
//
// workers bounds the number of goroutines sorting at once, the caller
// included, so at most workers-1 goroutines are spawned; workers <= 0
// selects the host's hardware concurrency. With workers == 1 the sort
// runs entirely on the calling goroutine.
//
// When gate is non-nil, each leaf first waits until the index prefix
// covering it has been published, which lets the sort overlap with
// BuildIndexInto on the same array. Internal merges need no gating: they
// only touch subranges their leaves already waited for.
//
// The sort is not stable; records with equal keys may appear in any order.
func SortIndex(recs []IndexRec, cutoff, workers int, gate *Gate) {
	if len(recs) == 0 {
		return
	}
	if cutoff < 1 {
		cutoff = 1
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	s := &sorter{
		recs:   recs,
		cutoff: cutoff,
		gate:   gate,
		// The calling goroutine is one worker; the semaphore holds the rest.
		spawn: semaphore.NewWeighted(int64(workers - 1)),
	}
	s.sortRange(0, len(recs)-1)
}

type sorter struct {
	recs   []IndexRec
	cutoff int
	gate   *Gate
	spawn  *semaphore.Weighted
}

// sortRange sorts the inclusive range [left, right].
func (s *sorter) sortRange(left, right int) {
	if left >= right {
		return
	}
	mid := left + (right-left)/2

	if right-left > s.cutoff {
		if s.spawn.TryAcquire(1) {
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer s.spawn.Release(1)
				s.sortRange(left, mid)
			}()
			s.sortRange(mid+1, right)
			wg.Wait()
		} else {
			s.sortRange(left, mid)
			s.sortRange(mid+1, right)
		}
		mergeAdjacent(s.recs[left:right+1], mid-left+1)
	} else {
		if s.gate != nil {
			s.gate.WaitUntil(uint64(right) + 1)
		}
		slices.SortFunc(s.recs[left:right+1], func(a, b IndexRec) int {
			return cmp.Compare(a.Key, b.Key)
		})
	}
}

// mergeAdjacent merges the two adjacent sorted runs recs[:mid] and
// recs[mid:] into a single sorted run. The left run is copied into a
// scratch buffer and the merge proceeds forward in place.
func mergeAdjacent(recs []IndexRec, mid int) {
	if mid <= 0 || mid >= len(recs) {
		return
	}
	// Already ordered across the seam; nothing to move.
	if recs[mid-1].Key <= recs[mid].Key {
		return
	}
	tmp := make([]IndexRec, mid)
	copy(tmp, recs[:mid])

	i, j, k := 0, mid, 0
	for i < len(tmp) && j < len(recs) {
		if recs[j].Key < tmp[i].Key {
			recs[k] = recs[j]
			j++
		} else {
			recs[k] = tmp[i]
			i++
		}
		k++
	}
	copy(recs[k:], tmp[i:])
}
