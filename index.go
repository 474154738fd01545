package recsort

import (
	"encoding/binary"

	recerrors "github.com/davide-marchi/recsort/errors"
)

// IndexRec is a descriptor pointing at one record in the source file (24
// bytes in memory with padding, 20 bytes on the wire). It never owns
// payload bytes; Offset is a byte position, not a
// pointer, so an IndexRec stays valid after the mapping is torn down.
type IndexRec struct {
	Key    uint64 // copy of the record key, used for comparison
	Offset uint64 // byte offset of the record's first byte in the source file
	Len    uint32 // payload length
}

// IndexRecWireSize is the serialized size of one IndexRec on the wire:
// key (8B LE) | offset (8B LE) | len (4B LE), no padding.
const IndexRecWireSize = keySize + 8 + lenSize

// marshalIndex serializes recs into a fresh wire buffer.
func marshalIndex(recs []IndexRec) []byte {
	buf := make([]byte, len(recs)*IndexRecWireSize)
	for i, r := range recs {
		p := buf[i*IndexRecWireSize:]
		binary.LittleEndian.PutUint64(p, r.Key)
		binary.LittleEndian.PutUint64(p[8:], r.Offset)
		binary.LittleEndian.PutUint32(p[16:], r.Len)
	}
	return buf
}

// unmarshalIndex decodes a wire buffer produced by marshalIndex.
func unmarshalIndex(buf []byte) ([]IndexRec, error) {
	if len(buf)%IndexRecWireSize != 0 {
		return nil, recerrors.ErrBadWireLength
	}
	recs := make([]IndexRec, len(buf)/IndexRecWireSize)
	for i := range recs {
		p := buf[i*IndexRecWireSize:]
		recs[i] = IndexRec{
			Key:    binary.LittleEndian.Uint64(p),
			Offset: binary.LittleEndian.Uint64(p[8:]),
			Len:    binary.LittleEndian.Uint32(p[16:]),
		}
	}
	return recs, nil
}

// sliceStart returns the first record index owned by rank r out of size.
// The ranges [sliceStart(r), sliceStart(r+1)) partition [0, n).
func sliceStart(n uint64, rank, size int) uint64 {
	return n * uint64(rank) / uint64(size)
}

// countForRank returns the deterministic slice size for a rank. Every rank
// computes the same value from (n, rank, size), which is what lets the
// distribution and merge phases skip size handshakes entirely. Ranks
// outside the group hold nothing; a merge-tree subtree may reach past the
// last rank when the group size is not a power of two.
func countForRank(n uint64, rank, size int) int {
	if rank >= size {
		return 0
	}
	return int(sliceStart(n, rank+1, size) - sliceStart(n, rank, size))
}

// partnerSubtreeSize returns the number of index records held by partner
// at the given merge round: the sum of the initial slice sizes of the
// 2^round ranks in partner's subtree.
func partnerSubtreeSize(partner, round int, n uint64, size int) int {
	group := 1 << round
	base := (partner / group) * group
	sum := 0
	for k := 0; k < group; k++ {
		sum += countForRank(n, base+k, size)
	}
	return sum
}
