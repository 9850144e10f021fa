package rag

import "testing"

func TestFileKeyDeterministic(t *testing.T) {
	a := FileKey("report.pdf")
	b := FileKey("report.pdf")
	if a != b {
		t.Fatalf("FileKey not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("FileKey length = %d, want 64 hex chars", len(a))
	}
	for _, c := range a {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			t.Fatalf("FileKey contains non-lowercase-hex rune %q", c)
		}
	}
}

func TestFileKeyDistinguishesFilenames(t *testing.T) {
	if FileKey("report.pdf") == FileKey("report2.pdf") {
		t.Fatal("different filenames produced the same key")
	}
	// Identity is the full filename, extension included.
	if FileKey("report.pdf") == FileKey("report.txt") {
		t.Fatal("different extensions produced the same key")
	}
}
