package stream

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFramer_SplitAcrossChunks(t *testing.T) {
	f := &Framer{}

	got := f.Push([]byte("a\r"))
	if diff := cmp.Diff([]string{"a"}, got); diff != "" {
		t.Errorf("first chunk lines mismatch (-want +got):\n%s", diff)
	}

	got = f.Push([]byte("\nb\nc"))
	if diff := cmp.Diff([]string{"b"}, got); diff != "" {
		t.Errorf("second chunk lines mismatch (-want +got):\n%s", diff)
	}

	if f.Pending() != 1 {
		t.Errorf("expected 1 buffered byte, got %d", f.Pending())
	}
}

func TestFramer_EmptyChunk(t *testing.T) {
	f := &Framer{}
	if got := f.Push(nil); len(got) != 0 {
		t.Errorf("empty chunk emitted %q", got)
	}
}

func TestFramer_TerminatorOnlyChunk(t *testing.T) {
	f := &Framer{}
	got := f.Push([]byte("\n"))
	if diff := cmp.Diff([]string{""}, got); diff != "" {
		t.Errorf("terminator-only chunk mismatch (-want +got):\n%s", diff)
	}
}

func TestFramer_CRLFSingleTerminator(t *testing.T) {
	f := &Framer{}
	got := f.Push([]byte("x\r\ny\r\n"))
	if diff := cmp.Diff([]string{"x", "y"}, got); diff != "" {
		t.Errorf("CRLF lines mismatch (-want +got):\n%s", diff)
	}
}

func TestFramer_MixedTerminators(t *testing.T) {
	f := &Framer{}
	got := f.Push([]byte("a\rb\nc\r\nd"))
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("mixed terminators mismatch (-want +got):\n%s", diff)
	}
	if f.Pending() != 1 {
		t.Errorf("expected 'd' buffered, pending=%d", f.Pending())
	}
}

// All chunkings of a byte sequence must reassemble to the same lines.
func TestFramer_ChunkingInvariant(t *testing.T) {
	input := "12,3\r\n4;5\r6 7\n\n8|9\r\n"
	want := []string{"12,3", "4;5", "6 7", "", "8|9"}

	for split1 := 0; split1 <= len(input); split1++ {
		for split2 := split1; split2 <= len(input); split2++ {
			f := &Framer{}
			var got []string
			got = append(got, f.Push([]byte(input[:split1]))...)
			got = append(got, f.Push([]byte(input[split1:split2]))...)
			got = append(got, f.Push([]byte(input[split2:]))...)

			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("splits (%d,%d) mismatch (-want +got):\n%s", split1, split2, diff)
			}
			if f.Pending() != 0 {
				t.Fatalf("splits (%d,%d): %d bytes left buffered", split1, split2, f.Pending())
			}
		}
	}
}

func TestFramer_Clear(t *testing.T) {
	f := &Framer{}
	f.Push([]byte("partial"))
	f.Clear()
	if f.Pending() != 0 {
		t.Errorf("pending after clear = %d", f.Pending())
	}
	got := f.Push([]byte("x\n"))
	if diff := cmp.Diff([]string{"x"}, got); diff != "" {
		t.Errorf("post-clear mismatch (-want +got):\n%s", diff)
	}
}
