package editor

import (
	"os"
	"path/filepath"
	"testing"

	"termrt/internal/apperr"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestOpen_ReadsFileAndInfersLanguage(t *testing.T) {
	path := writeTempFile(t, "main.rs", "fn main(){}")
	s := NewStore()

	buf, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if buf.Language != "rust" {
		t.Errorf("Language = %q, want %q", buf.Language, "rust")
	}
	if buf.Modified {
		t.Error("Modified = true on fresh open, want false")
	}
	content, err := s.GetContent(buf.ID)
	if err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if content != "fn main(){}" {
		t.Errorf("GetContent() = %q, want %q", content, "fn main(){}")
	}
}

func TestOpen_SamePathReturnsSameBuffer(t *testing.T) {
	path := writeTempFile(t, "x.txt", "hello")
	s := NewStore()

	b1, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	b2, err := s.Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if b1.ID != b2.ID {
		t.Errorf("second Open() returned a different id: %q vs %q", b1.ID, b2.ID)
	}
}

func TestOpen_MissingFileIsIoError(t *testing.T) {
	s := NewStore()
	if _, err := s.Open("/nonexistent/path/does-not-exist"); apperr.KindOf(err) != apperr.IoError {
		t.Fatalf("kind = %v, want IoError", apperr.KindOf(err))
	}
}

func TestSave_NoIntervenngEditIsNoop(t *testing.T) {
	path := writeTempFile(t, "y.txt", "original")
	s := NewStore()
	buf, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Save(buf.ID); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "original" {
		t.Errorf("on-disk content = %q, want %q", data, "original")
	}
}

func TestOpenSetSaveReopen_RoundTrips(t *testing.T) {
	path := writeTempFile(t, "z.rs", "fn main(){}")

	s1 := NewStore()
	buf, err := s1.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s1.SetContent(buf.ID, "fn main(){ 1; }"); err != nil {
		t.Fatalf("SetContent() error = %v", err)
	}
	if err := s1.Save(buf.ID); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s1.Get(buf.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Modified {
		t.Error("Modified = true immediately after Save, want false")
	}

	s2 := NewStore()
	reopened, err := s2.Open(path)
	if err != nil {
		t.Fatalf("reopen in fresh store error = %v", err)
	}
	content, err := s2.GetContent(reopened.ID)
	if err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if content != "fn main(){ 1; }" {
		t.Errorf("GetContent() after round trip = %q, want %q", content, "fn main(){ 1; }")
	}
}

func TestSave_NoPathIsBadRequest(t *testing.T) {
	// A buffer with no path can't be produced via Open (which always sets
	// one), so construct one the way a future in-memory "new file" op would.
	s := NewStore()
	path := writeTempFile(t, "tmp.txt", "x")
	buf, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.mu.Lock()
	s.buffers[buf.ID].info.Path = ""
	delete(s.pathIndex, path)
	s.mu.Unlock()

	if err := s.Save(buf.ID); apperr.KindOf(err) != apperr.BadRequest {
		t.Fatalf("kind = %v, want BadRequest", apperr.KindOf(err))
	}
}

func TestClose_RemovesFromBothTables(t *testing.T) {
	path := writeTempFile(t, "c.txt", "data")
	s := NewStore()
	buf, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(buf.ID); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := s.Get(buf.ID); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("Get() after Close kind = %v, want NotFound", apperr.KindOf(err))
	}
	reopened, err := s.Open(path)
	if err != nil {
		t.Fatalf("reopen after close error = %v", err)
	}
	if reopened.ID == buf.ID {
		t.Error("reopen after close returned the closed buffer's id")
	}
}

func TestList_ReflectsOpenBuffers(t *testing.T) {
	s := NewStore()
	p1 := writeTempFile(t, "a.py", "x = 1")
	p2 := writeTempFile(t, "b.json", "{}")
	if _, err := s.Open(p1); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.Open(p2); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := len(s.List()); got != 2 {
		t.Errorf("List() len = %d, want 2", got)
	}
}

func TestInferLanguage_UnknownExtension(t *testing.T) {
	path := writeTempFile(t, "weird.xyz", "???")
	s := NewStore()
	buf, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if buf.Language != "unknown" {
		t.Errorf("Language = %q, want %q", buf.Language, "unknown")
	}
}
