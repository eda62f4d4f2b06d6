package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"h2hcat/internal/catalog"
)

// MemoryStore keeps published archives in memory. Use in tests.
type MemoryStore struct {
	mu       sync.Mutex
	archives map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{archives: make(map[string][]byte)}
}

var _ catalog.ArchiveStore = (*MemoryStore)(nil)

func (s *MemoryStore) Put(_ context.Context, relPath string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading archive data: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives[relPath] = data
	return nil
}

func (s *MemoryStore) Open(_ context.Context, relPath string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.archives[relPath]
	if !ok {
		return nil, fmt.Errorf("archive not found: %s", relPath)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Exists(_ context.Context, relPath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.archives[relPath]
	return ok, nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.archives))
	for path := range s.archives {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *MemoryStore) Remove(_ context.Context, relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.archives, relPath)
	return nil
}

func (s *MemoryStore) ValidateSetup(context.Context) error { return nil }
