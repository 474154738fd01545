package recsort

import (
	"encoding/binary"
	"hash/fnv"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *randv2.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return randv2.New(randv2.NewPCG(testSeed1^s1, testSeed2^s2))
}

// testRecord is a record in its logical form, used to author inputs and
// to compare outputs.
type testRecord struct {
	key     uint64
	payload []byte
}

// encodeRecords lays records out in the on-disk stream format.
func encodeRecords(recs []testRecord) []byte {
	var size uint64
	for _, r := range recs {
		size += RecordSize(uint32(len(r.payload)))
	}
	buf := make([]byte, size)
	var pos uint64
	for _, r := range recs {
		EncodeHeader(buf, pos, r.key, uint32(len(r.payload)))
		copy(buf[pos+HeaderSize:], r.payload)
		pos += RecordSize(uint32(len(r.payload)))
	}
	return buf
}

// writeRecordFile writes records to a fresh file under t.TempDir.
func writeRecordFile(t *testing.T, recs []testRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.bin")
	if err := os.WriteFile(path, encodeRecords(recs), 0o644); err != nil {
		t.Fatalf("write record file: %v", err)
	}
	return path
}

// readRecords parses a record file back into logical records.
func readRecords(t *testing.T, path string) []testRecord {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read record file: %v", err)
	}
	var recs []testRecord
	var pos uint64
	for pos < uint64(len(data)) {
		key, plen, err := DecodeHeader(data, pos)
		if err != nil {
			t.Fatalf("decode record %d at offset %d: %v", len(recs), pos, err)
		}
		payload := append([]byte(nil), data[pos+HeaderSize:pos+RecordSize(plen)]...)
		recs = append(recs, testRecord{key: key, payload: payload})
		pos += RecordSize(plen)
	}
	return recs
}

// randomRecords builds n records with random keys in [0, keySpan) and
// payload lengths in [8, maxLen].
func randomRecords(rng *randv2.Rand, n int, keySpan uint64, maxLen int) []testRecord {
	recs := make([]testRecord, n)
	for i := range recs {
		plen := 8 + rng.IntN(maxLen-8+1)
		payload := make([]byte, plen)
		for j := range payload {
			payload[j] = byte(rng.Uint32())
		}
		recs[i] = testRecord{key: rng.Uint64N(keySpan), payload: payload}
	}
	return recs
}

// sortedKeys extracts keys from an index for order assertions.
func sortedKeys(idx []IndexRec) []uint64 {
	keys := make([]uint64, len(idx))
	for i, r := range idx {
		keys[i] = r.Key
	}
	return keys
}

func assertNonDecreasing(t *testing.T, keys []uint64) {
	t.Helper()
	for i := 1; i < len(keys); i++ {
		if keys[i] < keys[i-1] {
			t.Fatalf("keys out of order at %d: %d < %d", i, keys[i], keys[i-1])
		}
	}
}
