package splitter

import (
	"strings"
	"testing"
)

func TestSplit_Empty(t *testing.T) {
	s := New(100, 20)
	if got := s.Split(""); got != nil {
		t.Errorf("Split(\"\") = %v, want nil", got)
	}
	if got := s.Split("   \n\t  "); got != nil {
		t.Errorf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	s := New(100, 20)
	got := s.Split("alpha beta gamma")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(got), got)
	}
	if got[0] != "alpha beta gamma" {
		t.Errorf("chunk = %q, want input unchanged", got[0])
	}
}

func TestSplit_ChunkSizeBound(t *testing.T) {
	texts := []string{
		strings.Repeat("word ", 500),
		strings.Repeat("a", 1000),
		"para one.\n\npara two is a bit longer than para one.\n\npara three.",
		strings.Repeat("Sentence one. Sentence two! Sentence three? ", 40),
	}
	for _, size := range []int{10, 50, 100} {
		for _, overlap := range []int{0, 3, size / 2} {
			s := New(size, overlap)
			for _, text := range texts {
				for i, chunk := range s.Split(text) {
					if n := len([]rune(chunk)); n > size {
						t.Errorf("size=%d overlap=%d chunk %d has %d chars", size, overlap, i, n)
					}
					if strings.TrimSpace(chunk) == "" {
						t.Errorf("size=%d overlap=%d chunk %d is blank", size, overlap, i)
					}
				}
			}
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	s := New(40, 10)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	first := s.Split(text)
	for i := 0; i < 5; i++ {
		again := s.Split(text)
		if len(again) != len(first) {
			t.Fatalf("run %d: %d chunks, first run had %d", i, len(again), len(first))
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("run %d chunk %d differs", i, j)
			}
		}
	}
}

func TestSplit_Overlap(t *testing.T) {
	// With no separators present the splitter must cut hard and each
	// chunk must start overlap characters before the previous end.
	s := New(10, 4)
	text := strings.Repeat("x", 30)
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		tail := string(prev[len(prev)-4:])
		head := string(cur[:4])
		if tail != head {
			t.Errorf("chunk %d head %q does not overlap previous tail %q", i, head, tail)
		}
	}
}

func TestSplit_PrefersParagraphBreaks(t *testing.T) {
	s := New(30, 0)
	text := "first paragraph here.\n\nsecond paragraph follows here and keeps going for a while."
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	if !strings.HasSuffix(chunks[0], "\n\n") {
		t.Errorf("first chunk %q should end at the paragraph break", chunks[0])
	}
}

func TestSplit_CoversWholeText(t *testing.T) {
	// Without overlap and with a single-character alphabet, chunks must
	// reassemble to the original text.
	s := New(7, 0)
	text := strings.Repeat("abcdefg", 13)
	chunks := s.Split(text)
	if joined := strings.Join(chunks, ""); joined != text {
		t.Errorf("chunks do not cover input: got %d chars, want %d", len(joined), len(text))
	}
}

func TestNew_ClampsParameters(t *testing.T) {
	s := New(0, -5)
	if s.chunkSize != 1 || s.chunkOverlap != 0 {
		t.Errorf("got size=%d overlap=%d, want 1/0", s.chunkSize, s.chunkOverlap)
	}
	s = New(10, 25)
	if s.chunkOverlap != 9 {
		t.Errorf("overlap not clamped below size: %d", s.chunkOverlap)
	}
}
