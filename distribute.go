package recsort

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sync/errgroup"

	recerrors "github.com/davide-marchi/recsort/errors"
	"github.com/davide-marchi/recsort/transport"
)

// Message tags. Merge rounds use tagMergeBase+round so a late round can
// never consume an earlier round's payload.
const (
	tagSlice     = 650
	tagMergeBase = 700
)

// maxInflightSends bounds how many slice sends the root scan keeps
// outstanding; once the limit is hit the scan blocks until any one of
// them completes.
const maxInflightSends = 8

// distributeRoot performs rank 0's half of the distribution: a single
// pass over the mapped input that builds one index slice per rank and
// ships each non-root slice the moment its last record is decoded. It
// returns rank 0's own (unsorted) slice after all sends complete and the
// file is unmapped. Exactly one index pass, exactly size-1 sends.
func distributeRoot(tr transport.Transport, path string, n uint64) ([]IndexRec, error) {
	size := tr.Size()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat input file: %w", err)
	}

	perRank := make([][]IndexRec, size)
	for r := 0; r < size; r++ {
		perRank[r] = make([]IndexRec, 0, countForRank(n, r, size))
	}

	if n == 0 {
		// Nothing to scan; every slice is empty but must still be sent.
		for r := 1; r < size; r++ {
			if err := tr.Send(r, tagSlice, nil); err != nil {
				return nil, err
			}
		}
		return perRank[0], nil
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("empty input with %d records expected: %w", n, recerrors.ErrShortInput)
	}

	fadviseSequential(int(f.Fd()), 0, st.Size())
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap input file: %w", err)
	}
	data := []byte(mm)

	sends := new(errgroup.Group)
	sends.SetLimit(maxInflightSends)

	var pos uint64
	rank := 0
	for i := uint64(0); i < n; i++ {
		for i >= sliceStart(n, rank+1, size) {
			rank++
		}
		key, plen, derr := DecodeHeader(data, pos)
		if derr != nil {
			_ = sends.Wait()
			_ = mm.Unmap()
			return nil, fmt.Errorf("record %d at offset %d: %w", i, pos, derr)
		}
		perRank[rank] = append(perRank[rank], IndexRec{Key: key, Offset: pos, Len: plen})
		pos += RecordSize(plen)

		// Slices are contiguous in the scan: ship a non-root slice the
		// moment its last record lands.
		if rank != 0 && i+1 == sliceStart(n, rank+1, size) {
			dest := rank
			buf := marshalIndex(perRank[dest])
			sends.Go(func() error {
				return tr.Send(dest, tagSlice, buf)
			})
		}
	}

	if pos != uint64(len(data)) {
		_ = sends.Wait()
		_ = mm.Unmap()
		return nil, fmt.Errorf("%d bytes after record %d: %w",
			uint64(len(data))-pos, n-1, recerrors.ErrTrailingBytes)
	}

	// Ranks with empty slices are never visited by the scan; they still
	// expect their zero-element message.
	for r := 1; r < size; r++ {
		if countForRank(n, r, size) == 0 {
			dest := r
			sends.Go(func() error {
				return tr.Send(dest, tagSlice, nil)
			})
		}
	}

	// Await all outstanding sends before tearing down the mapping.
	serr := sends.Wait()
	if uerr := mm.Unmap(); serr == nil && uerr != nil {
		serr = fmt.Errorf("unmap input file: %w", uerr)
	}
	if serr != nil {
		return nil, serr
	}
	return perRank[0], nil
}

// receiveSlice performs a non-root rank's half of the distribution: a
// single blocking receive of its deterministic slice size. No handshake;
// both sides compute the size from (n, rank, size).
func receiveSlice(tr transport.Transport, n uint64) ([]IndexRec, error) {
	count := countForRank(n, tr.Rank(), tr.Size())
	buf := make([]byte, count*IndexRecWireSize)
	if err := tr.Recv(0, tagSlice, buf); err != nil {
		return nil, fmt.Errorf("receive slice from root: %w", err)
	}
	return unmarshalIndex(buf)
}
