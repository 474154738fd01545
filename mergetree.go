package recsort

import (
	"fmt"

	"github.com/davide-marchi/recsort/transport"
)

// mergeToRoot runs the pairwise log2(P) tournament that reduces the
// per-rank sorted slices to one globally sorted index on rank 0.
//
// In round r the partner is rank XOR 2^r; a rank whose partner falls
// outside the group skips the round. The lower rank of each 2^(r+1)
// block receives its partner's slice, concatenates it after its own, and
// merges the two adjacent sorted runs; the higher rank sends its whole
// slice in one message and goes inactive. Payload sizes are never
// exchanged: each side derives the partner's subtree size from
// (n, round, size).
//
// The returned slice is the caller's merged slice and active reports
// whether this rank still holds records (only rank 0 after the last
// round). Senders return (nil, false, nil).
func mergeToRoot(tr transport.Transport, local []IndexRec, n uint64) (merged []IndexRec, active bool, err error) {
	rank, size := tr.Rank(), tr.Size()

	for round := 0; 1<<round < size; round++ {
		partner := rank ^ (1 << round)
		if partner >= size {
			continue
		}

		receiver := rank&((1<<(round+1))-1) == 0 && rank < partner
		if !receiver {
			if err := tr.Send(partner, tagMergeBase+round, marshalIndex(local)); err != nil {
				return nil, false, fmt.Errorf("round %d send to rank %d: %w", round, partner, err)
			}
			return nil, false, nil
		}

		expected := partnerSubtreeSize(partner, round, n, size)
		buf := make([]byte, expected*IndexRecWireSize)
		if err := tr.Recv(partner, tagMergeBase+round, buf); err != nil {
			return nil, false, fmt.Errorf("round %d receive from rank %d: %w", round, partner, err)
		}
		partnerRecs, err := unmarshalIndex(buf)
		if err != nil {
			return nil, false, fmt.Errorf("round %d slice from rank %d: %w", round, partner, err)
		}

		// Both runs are sorted; make them adjacent and merge in place.
		// The receive buffer is dead after this append.
		mineN := len(local)
		local = append(local, partnerRecs...)
		mergeAdjacent(local, mineN)
	}
	return local, true, nil
}
