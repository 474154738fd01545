package recsort

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	recerrors "github.com/davide-marchi/recsort/errors"
)

// seqPayload builds the n-byte payload {start, start+1, ...}.
func seqPayload(start byte, n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = start + byte(i)
	}
	return p
}

func TestRewriteSortedSmallestNontrivial(t *testing.T) {
	// Four records with keys 5, 2, 9, 2 and distinct payload lengths;
	// sorted output is the two key-2 records (either order), then 5, 9.
	in := []testRecord{
		{key: 5, payload: seqPayload(0x00, 8)},
		{key: 2, payload: seqPayload(0x10, 12)},
		{key: 9, payload: seqPayload(0x20, 8)},
		{key: 2, payload: seqPayload(0x30, 9)},
	}
	inPath := writeRecordFile(t, in)
	outPath := filepath.Join(t.TempDir(), "sorted.bin")

	idx, err := BuildIndex(inPath, uint64(len(in)), 0, nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	SortIndex(idx, 2, 1, nil)

	if err := RewriteSorted(inPath, outPath, idx); err != nil {
		t.Fatalf("RewriteSorted: %v", err)
	}

	out := readRecords(t, outPath)
	if len(out) != 4 {
		t.Fatalf("output has %d records, want 4", len(out))
	}
	wantKeys := []uint64{2, 2, 5, 9}
	for i, r := range out {
		if r.key != wantKeys[i] {
			t.Errorf("record %d: key %d, want %d", i, r.key, wantKeys[i])
		}
	}
	// The two key-2 records may appear in either order; match by length.
	two := map[int][]byte{12: seqPayload(0x10, 12), 9: seqPayload(0x30, 9)}
	for _, r := range out[:2] {
		want, ok := two[len(r.payload)]
		if !ok || !bytes.Equal(r.payload, want) {
			t.Errorf("key-2 record with len %d has wrong payload", len(r.payload))
		}
		delete(two, len(r.payload))
	}
	if !bytes.Equal(out[2].payload, seqPayload(0x00, 8)) {
		t.Error("key-5 payload not preserved")
	}
	if !bytes.Equal(out[3].payload, seqPayload(0x20, 8)) {
		t.Error("key-9 payload not preserved")
	}

	if err := VerifySorted(outPath, 4); err != nil {
		t.Errorf("VerifySorted: %v", err)
	}
	if err := VerifyPermutation(inPath, outPath, 4); err != nil {
		t.Errorf("VerifyPermutation: %v", err)
	}
}

func TestRewriteSortedMixedLengths(t *testing.T) {
	rng := newTestRNG(t)
	lens := []int{8, 9, 16, 255}
	in := make([]testRecord, 100)
	for i := range in {
		plen := lens[rng.IntN(len(lens))]
		payload := make([]byte, plen)
		for j := range payload {
			payload[j] = byte(rng.Uint32())
		}
		in[i] = testRecord{key: rng.Uint64N(1000), payload: payload}
	}
	inPath := writeRecordFile(t, in)
	outPath := filepath.Join(t.TempDir(), "sorted.bin")

	idx, err := BuildIndex(inPath, uint64(len(in)), 0, nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	SortIndex(idx, 8, 4, nil)
	if err := RewriteSorted(inPath, outPath, idx); err != nil {
		t.Fatalf("RewriteSorted: %v", err)
	}

	// Byte-level check: the output must equal the input permuted by the
	// sorted index.
	inData, err := os.ReadFile(inPath)
	if err != nil {
		t.Fatal(err)
	}
	var want bytes.Buffer
	for _, r := range idx {
		want.Write(inData[r.Offset : r.Offset+RecordSize(r.Len)])
	}
	outData, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(outData, want.Bytes()) {
		t.Fatal("output differs from input permuted by the sorted index")
	}
}

func TestRewriteSortedEmptyIndex(t *testing.T) {
	inPath := writeRecordFile(t, nil)
	outPath := filepath.Join(t.TempDir(), "sorted.bin")
	if err := RewriteSorted(inPath, outPath, nil); err != nil {
		t.Fatalf("RewriteSorted: %v", err)
	}
	st, err := os.Stat(outPath)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if st.Size() != 0 {
		t.Errorf("output size %d, want 0", st.Size())
	}
	if err := VerifySorted(outPath, 0); err != nil {
		t.Errorf("VerifySorted on empty file: %v", err)
	}
}

func TestRewriteSortedIndexOverrun(t *testing.T) {
	in := []testRecord{{key: 1, payload: seqPayload(0, 8)}}
	inPath := writeRecordFile(t, in)
	outPath := filepath.Join(t.TempDir(), "sorted.bin")

	bad := []IndexRec{{Key: 1, Offset: 4, Len: 100}}
	err := RewriteSorted(inPath, outPath, bad)
	if !errors.Is(err, recerrors.ErrIndexOverrun) {
		t.Errorf("got %v, want ErrIndexOverrun", err)
	}
}
