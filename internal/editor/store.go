package editor

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"termrt/internal/apperr"
)

// Buffer is the caller-visible snapshot of an open editor buffer. It never
// carries the rope itself.
type Buffer struct {
	ID        string
	Path      string // "" if the buffer has no on-disk counterpart
	Name      string
	Language  string
	Modified  bool
	LineCount int
}

type entry struct {
	mu   sync.Mutex
	info Buffer
	rope *Rope
}

func (e *entry) snapshot() Buffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info
}

// Store owns the buffer table and the path index, independent of the
// terminal session registry. It shares the same "table + name/path index
// under one lock" shape as internal/registry.
type Store struct {
	mu        sync.Mutex
	buffers   map[string]*entry
	pathIndex map[string]string
}

// NewStore creates an empty buffer store.
func NewStore() *Store {
	return &Store{
		buffers:   make(map[string]*entry),
		pathIndex: make(map[string]string),
	}
}

// Open returns the existing buffer for path if one is already open,
// otherwise reads the file into a fresh rope and registers it.
func (s *Store) Open(path string) (*Buffer, error) {
	if path == "" {
		return nil, apperr.BadRequestf("path is required")
	}

	if existing := s.existingByPath(path); existing != nil {
		return existing, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Io("open", err)
	}

	rope := New(string(data))
	e := &entry{
		info: Buffer{
			ID:        uuid.NewString(),
			Path:      path,
			Name:      filepath.Base(path),
			Language:  inferLanguage(path),
			Modified:  false,
			LineCount: rope.LineCount(),
		},
		rope: rope,
	}

	s.mu.Lock()
	if id, ok := s.pathIndex[path]; ok {
		// lost a race with a concurrent Open of the same path.
		winner := s.buffers[id]
		s.mu.Unlock()
		snap := winner.snapshot()
		return &snap, nil
	}
	s.buffers[e.info.ID] = e
	s.pathIndex[path] = e.info.ID
	s.mu.Unlock()

	snap := e.snapshot()
	return &snap, nil
}

func (s *Store) existingByPath(path string) *Buffer {
	s.mu.Lock()
	id, ok := s.pathIndex[path]
	var e *entry
	if ok {
		e = s.buffers[id]
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	snap := e.snapshot()
	return &snap
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.Lock()
	e, ok := s.buffers[id]
	s.mu.Unlock()
	if !ok {
		return nil, apperr.NotFoundf("buffer %q not found", id)
	}
	return e, nil
}

// Get returns a snapshot of the buffer record.
func (s *Store) Get(id string) (*Buffer, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	snap := e.snapshot()
	return &snap, nil
}

// GetContent returns the buffer's full text.
func (s *Store) GetContent(id string) (string, error) {
	e, err := s.lookup(id)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rope.String(), nil
}

// SetContent replaces the buffer's text wholesale, marking it modified.
func (s *Store) SetContent(id, text string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rope = New(text)
	e.info.Modified = true
	e.info.LineCount = e.rope.LineCount()
	return nil
}

// Save atomically writes the rope's text to the buffer's path, taking an
// advisory lock on a sibling ".lock" file so two termrtd processes sharing
// a workspace don't interleave writes to the same path.
func (s *Store) Save(id string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	path := e.info.Path
	content := e.rope.String()
	e.mu.Unlock()

	if path == "" {
		return apperr.BadRequestf("buffer has no path to save to")
	}

	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return apperr.Io("save", err)
	}
	defer fl.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return apperr.Io("save", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperr.Io("save", err)
	}

	e.mu.Lock()
	e.info.Modified = false
	e.mu.Unlock()
	return nil
}

// Close drops the buffer from both tables.
func (s *Store) Close(id string) error {
	s.mu.Lock()
	e, ok := s.buffers[id]
	if ok {
		delete(s.buffers, id)
		if e.info.Path != "" {
			delete(s.pathIndex, e.info.Path)
		}
	}
	s.mu.Unlock()
	if !ok {
		return apperr.NotFoundf("buffer %q not found", id)
	}
	return nil
}

// List returns a snapshot of every open buffer.
func (s *Store) List() []Buffer {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.buffers))
	for _, e := range s.buffers {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	out := make([]Buffer, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	return out
}

var languageByExt = map[string]string{
	".rs":   "rust",
	".ts":   "ts",
	".tsx":  "ts",
	".js":   "js",
	".jsx":  "js",
	".py":   "python",
	".json": "json",
	".toml": "toml",
	".md":   "markdown",
	".html": "html",
	".htm":  "html",
	".css":  "css",
	".sh":   "shell",
	".bash": "shell",
}

func inferLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return "unknown"
}
