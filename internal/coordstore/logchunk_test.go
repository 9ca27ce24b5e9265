package coordstore

import (
	"testing"
	"time"
)

func TestMarshalUnmarshalChunk_RoundTrip(t *testing.T) {
	chunk := LogChunk{
		RunID:    "run-1",
		JobID:    "job-1",
		WorkerID: "worker-1",
		Domain:   "acme",
		TS:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Stream:   "stdout",
		Text:     "hello world",
	}

	raw, err := marshalChunk(chunk)
	if err != nil {
		t.Fatalf("marshalChunk: %v", err)
	}

	got, err := unmarshalChunk(raw)
	if err != nil {
		t.Fatalf("unmarshalChunk: %v", err)
	}
	if got != chunk {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, chunk)
	}
}

func TestUnmarshalChunk_InvalidJSON(t *testing.T) {
	if _, err := unmarshalChunk("not json"); err == nil {
		t.Fatal("expected error for invalid json")
	}
}
