package blob

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	payload := []byte("hello, sonar")

	desc, err := s.Put(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if desc.Size != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", desc.Size, len(payload))
	}

	r, err := s.Get(desc.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestPutDedupsByContent(t *testing.T) {
	s := newTestStore(t)
	payload := []byte("identical payload")

	d1, err := s.Put(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Put #1: %v", err)
	}
	d2, err := s.Put(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Put #2: %v", err)
	}
	if d1.SHA256 != d2.SHA256 {
		t.Fatalf("expected identical sha256, got %q and %q", d1.SHA256, d2.SHA256)
	}
}

func TestGetRangeHonorsOffsetAndLength(t *testing.T) {
	s := newTestStore(t)
	payload := []byte("0123456789")
	desc, err := s.Put(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	r, err := s.GetRange(desc.Key, 3, 4)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "3456" {
		t.Fatalf("got %q, want %q", got, "3456")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("deadbeef"); err == nil {
		t.Fatal("expected error for missing blob")
	}
}

func TestVerifyDetectsTamper(t *testing.T) {
	s := newTestStore(t)
	desc, err := s.Put(bytes.NewReader([]byte("trustworthy")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Verify(desc.Key); err != nil {
		t.Fatalf("Verify on untouched blob: %v", err)
	}

	path := filepath.Join(s.root, desc.Key[:2], desc.Key)
	if err := os.WriteFile(path, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tampering with blob: %v", err)
	}
	if err := s.Verify(desc.Key); err == nil {
		t.Fatal("expected Verify to report a hash mismatch on a tampered blob")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	desc, err := s.Put(bytes.NewReader([]byte("gone soon")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(desc.Key); err != nil {
		t.Fatalf("Delete #1: %v", err)
	}
	if err := s.Delete(desc.Key); err != nil {
		t.Fatalf("Delete #2 (already gone): %v", err)
	}
}
