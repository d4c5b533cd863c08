package client

import "testing"

func TestAttach_RejectsInvalidName(t *testing.T) {
	t.Setenv("GHOSTLY_HOME", t.TempDir())
	if got := Attach("../escape"); got != 1 {
		t.Fatalf("Attach with invalid name = %d, want 1", got)
	}
}

func TestAttach_NoSuchSession(t *testing.T) {
	t.Setenv("GHOSTLY_HOME", t.TempDir())
	if got := Attach("nonexistent"); got != 1 {
		t.Fatalf("Attach to missing session = %d, want 1", got)
	}
}

func TestIndexByte(t *testing.T) {
	if i := indexByte([]byte("abc\x1cdef"), detachKey); i != 3 {
		t.Fatalf("indexByte = %d, want 3", i)
	}
	if i := indexByte([]byte("abcdef"), detachKey); i != -1 {
		t.Fatalf("indexByte = %d, want -1", i)
	}
}
