package authtoken

import "testing"

func TestGenerate_Unique(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a == b {
		t.Fatal("expected two distinct tokens")
	}
	if len(a) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(a))
	}
}

func TestHash_Deterministic(t *testing.T) {
	h1 := Hash("my-token")
	h2 := Hash("my-token")
	if h1 != h2 {
		t.Fatal("Hash should be deterministic for the same input")
	}
	if Hash("other-token") == h1 {
		t.Fatal("different tokens should hash differently")
	}
	if len(h1) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(h1))
	}
}
