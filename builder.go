package recsort

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	recerrors "github.com/davide-marchi/recsort/errors"
)

// BuildIndex memory-maps the file at path and parses it into a fresh index
// of n records in source order. See BuildIndexInto for the gating contract.
func BuildIndex(path string, n uint64, notifyEvery uint64, gate *Gate) ([]IndexRec, error) {
	idx := make([]IndexRec, n)
	if err := BuildIndexInto(idx, path, notifyEvery, gate); err != nil {
		return nil, err
	}
	return idx, nil
}

// BuildIndexInto walks the mapped file in one pass and fills idx, one
// IndexRec per record, in source order. Only headers are read; payload
// bytes are never touched. If gate is non-nil and notifyEvery > 0, the
// builder publishes i+1 after every notifyEvery records, and always
// publishes len(idx) on completion so waiters can drain.
func BuildIndexInto(idx []IndexRec, path string, notifyEvery uint64, gate *Gate) error {
	n := uint64(len(idx))
	if n == 0 {
		if gate != nil {
			gate.Publish(0)
		}
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat input file: %w", err)
	}
	fadviseSequential(int(f.Fd()), 0, st.Size())

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("mmap input file: %w", err)
	}
	defer mm.Unmap()
	data := []byte(mm)

	var pos uint64
	for i := uint64(0); i < n; i++ {
		key, plen, err := DecodeHeader(data, pos)
		if err != nil {
			return fmt.Errorf("record %d at offset %d: %w", i, pos, err)
		}
		idx[i] = IndexRec{Key: key, Offset: pos, Len: plen}
		pos += RecordSize(plen)

		if gate != nil && notifyEvery > 0 && (i+1)%notifyEvery == 0 {
			gate.Publish(i + 1)
		}
	}

	if pos != uint64(len(data)) {
		return fmt.Errorf("%d bytes after record %d: %w",
			uint64(len(data))-pos, n-1, recerrors.ErrTrailingBytes)
	}

	if gate != nil {
		gate.Publish(n)
	}
	return nil
}
