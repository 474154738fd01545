package recsort

import (
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	recerrors "github.com/davide-marchi/recsort/errors"
)

// RewriteSorted materializes the sorted output: it maps the input file
// read-only, pre-sizes and maps the output file, and copies each record
// named by the sorted index — header and payload bytes verbatim — into
// the output in index order. The input file is never modified.
//
// Preconditions: the input file has not changed since the index was
// built, and idx is sorted by key.
func RewriteSorted(inPath, outPath string, idx []IndexRec) error {
	var outSize uint64
	for _, r := range idx {
		outSize += RecordSize(r.Len)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	if len(idx) == 0 {
		// Empty index: the output exists and is empty.
		return out.Truncate(0)
	}

	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat input file: %w", err)
	}
	inSize := uint64(st.Size())

	inMap, err := mmap.Map(in, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("mmap input file: %w", err)
	}
	defer inMap.Unmap()

	if err := fallocateFile(out, int64(outSize)); err != nil {
		return fmt.Errorf("preallocate output file: %w", err)
	}
	outMap, err := mmap.Map(out, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("mmap output file: %w", err)
	}
	prefaultRegion(outMap)

	var cursor uint64
	for i, r := range idx {
		size := RecordSize(r.Len)
		if r.Offset+size > inSize {
			outMap.Unmap()
			return fmt.Errorf("index entry %d (offset %d, len %d): %w",
				i, r.Offset, r.Len, recerrors.ErrIndexOverrun)
		}
		copy(outMap[cursor:cursor+size], inMap[r.Offset:r.Offset+size])
		cursor += size
	}

	if cursor != outSize {
		outMap.Unmap()
		return recerrors.ErrOutputSize
	}

	ferr := outMap.Flush()
	uerr := outMap.Unmap()
	return errors.Join(ferr, uerr)
}
