package recsort

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

// DefaultSeed is the generator seed used when none is configured.
const DefaultSeed = 42

// InputPath returns the conventional location of a generated input file.
func InputPath(dir string, n uint64, payloadMax uint32) string {
	return filepath.Join(dir, fmt.Sprintf("unsorted_%d_%d.bin", n, payloadMax))
}

// OutputPath returns the conventional location of the sorted output file.
func OutputPath(dir string, n uint64, payloadMax uint32) string {
	return filepath.Join(dir, fmt.Sprintf("sorted_%d_%d.bin", n, payloadMax))
}

// GenerateInput creates an unsorted record file of n records with payload
// lengths in [8, payloadMax] at path. Generation is deterministic in
// (n, payloadMax, seed): keys derive from murmur3 of the record ordinal
// and payload bytes from an xxh3 stream, so a file can be regenerated
// bit-identically on any host. If path already exists with the exact
// expected size it is reused untouched.
//
// The file size is computed exactly up front, the file preallocated, and
// records written through a writable mapping.
func GenerateInput(path string, n uint64, payloadMax uint32, seed uint64) error {
	if payloadMax < 8 {
		payloadMax = 8
	}

	// Pass 1: derive lengths to learn the exact file size.
	var exactSize uint64
	for i := uint64(0); i < n; i++ {
		exactSize += RecordSize(recordLen(i, payloadMax, seed))
	}

	if st, err := os.Stat(path); err == nil && uint64(st.Size()) == exactSize {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create input directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create input file: %w", err)
	}
	defer f.Close()

	if n == 0 {
		return f.Truncate(0)
	}
	if err := fallocateFile(f, int64(exactSize)); err != nil {
		return fmt.Errorf("preallocate input file: %w", err)
	}

	mm, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("mmap input file: %w", err)
	}
	prefaultRegion(mm)

	var pos uint64
	var ordinal [8]byte
	for i := uint64(0); i < n; i++ {
		plen := recordLen(i, payloadMax, seed)
		EncodeHeader(mm, pos, recordKey(i, seed), plen)

		// Payload: xxh3 stream keyed by (seed, ordinal), 8 bytes per call.
		binary.LittleEndian.PutUint64(ordinal[:], i)
		payload := mm[pos+HeaderSize : pos+RecordSize(plen)]
		var word [8]byte
		for off := uint32(0); off < plen; off += 8 {
			binary.LittleEndian.PutUint64(word[:], xxh3.HashSeed(ordinal[:], seed+uint64(off)+1))
			copy(payload[off:], word[:])
		}
		pos += RecordSize(plen)
	}

	ferr := mm.Flush()
	uerr := mm.Unmap()
	if ferr != nil {
		return fmt.Errorf("flush input file: %w", ferr)
	}
	if uerr != nil {
		return fmt.Errorf("unmap input file: %w", uerr)
	}
	return nil
}

// recordKey derives the key of record i. Keys stay within int32 range so
// large runs exercise dense duplicates.
func recordKey(i, seed uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], i)
	return murmur3.Sum64WithSeed(b[:], uint32(seed)) & 0x7fffffff
}

// recordLen derives the payload length of record i in [8, payloadMax].
func recordLen(i uint64, payloadMax uint32, seed uint64) uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], i)
	span := uint64(payloadMax) - 8 + 1
	return 8 + uint32(xxh3.HashSeed(b[:], ^seed)%span)
}
