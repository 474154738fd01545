package recsort

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateInputDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")

	if err := GenerateInput(a, 200, 64, 7); err != nil {
		t.Fatalf("GenerateInput: %v", err)
	}
	if err := GenerateInput(b, 200, 64, 7); err != nil {
		t.Fatalf("GenerateInput: %v", err)
	}
	da, _ := os.ReadFile(a)
	db, _ := os.ReadFile(b)
	if !bytes.Equal(da, db) {
		t.Fatal("same parameters produced different files")
	}

	c := filepath.Join(dir, "c.bin")
	if err := GenerateInput(c, 200, 64, 8); err != nil {
		t.Fatalf("GenerateInput: %v", err)
	}
	dc, _ := os.ReadFile(c)
	if bytes.Equal(da, dc) {
		t.Fatal("different seeds produced identical files")
	}
}

func TestGenerateInputWellFormed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.bin")
	const n = 300
	const payloadMax = 40
	if err := GenerateInput(path, n, payloadMax, DefaultSeed); err != nil {
		t.Fatalf("GenerateInput: %v", err)
	}

	recs := readRecords(t, path)
	if len(recs) != n {
		t.Fatalf("decoded %d records, want %d", len(recs), n)
	}
	sawMin, sawSpread := false, false
	for i, r := range recs {
		if len(r.payload) < 8 || len(r.payload) > payloadMax {
			t.Fatalf("record %d: payload length %d outside [8, %d]", i, len(r.payload), payloadMax)
		}
		if len(r.payload) == 8 {
			sawMin = true
		}
		if len(r.payload) > payloadMax/2 {
			sawSpread = true
		}
	}
	if !sawMin || !sawSpread {
		t.Error("payload lengths are not spread across the range")
	}
}

func TestGenerateInputReusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.bin")
	if err := GenerateInput(path, 50, 32, DefaultSeed); err != nil {
		t.Fatal(err)
	}
	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := GenerateInput(path, 50, 32, DefaultSeed); err != nil {
		t.Fatal(err)
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("existing file of the right size was regenerated")
	}
}

func TestGenerateInputZeroRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.bin")
	if err := GenerateInput(path, 0, 32, DefaultSeed); err != nil {
		t.Fatal(err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if st.Size() != 0 {
		t.Errorf("file size %d, want 0", st.Size())
	}
}
