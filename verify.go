package recsort

import (
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	recerrors "github.com/davide-marchi/recsort/errors"
)

// VerifySorted scans path once and checks that it holds exactly n
// well-formed records with non-decreasing keys and no trailing bytes.
func VerifySorted(path string, n uint64) error {
	return scanRecords(path, n, nil)
}

// recordDigest summarizes a record stream as an order-independent
// multiset fingerprint: per-record xxhash64 digests folded by sum and
// xor, plus the record count and total byte size. Two files have equal
// digests iff (up to hash collision) one is a permutation of the other's
// records.
type recordDigest struct {
	count uint64
	bytes uint64
	sum   uint64
	xor   uint64
}

// VerifyPermutation checks that outPath holds exactly the records of
// inPath, each bit-for-bit intact, in some order. It catches payload
// corruption that the key-order scan cannot.
func VerifyPermutation(inPath, outPath string, n uint64) error {
	var inDig, outDig recordDigest
	if err := scanRecords(inPath, n, &inDig); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if err := scanRecords(outPath, n, &outDig); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if inDig != outDig {
		return recerrors.ErrDigestMismatch
	}
	return nil
}

// scanRecords walks n records, enforcing well-formedness. When dig is
// nil it additionally enforces non-decreasing key order; when dig is
// non-nil it folds per-record digests instead and ignores order.
func scanRecords(path string, n uint64, dig *recordDigest) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Size() == 0 {
		if n != 0 {
			return recerrors.ErrShortInput
		}
		return nil
	}
	fadviseSequential(int(f.Fd()), 0, st.Size())

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("mmap %s: %w", path, err)
	}
	defer mm.Unmap()
	data := []byte(mm)

	var pos uint64
	var prev uint64
	for i := uint64(0); i < n; i++ {
		key, plen, err := DecodeHeader(data, pos)
		if err != nil {
			return fmt.Errorf("record %d at offset %d: %w", i, pos, err)
		}
		size := RecordSize(plen)
		if dig != nil {
			h := xxhash.Sum64(data[pos : pos+size])
			dig.count++
			dig.bytes += size
			dig.sum += h
			dig.xor ^= h
		} else {
			if i > 0 && key < prev {
				return fmt.Errorf("record %d: key %d < %d: %w", i, key, prev, recerrors.ErrNotSorted)
			}
			prev = key
		}
		pos += size
	}

	if pos != uint64(len(data)) {
		return recerrors.ErrTrailingBytes
	}
	return nil
}
