// Package memblob is an in-memory implementation of the domain blob
// interfaces with the same listing and not-found semantics as the S3 backend.
// Tests use it in place of a live bucket.
package memblob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

type object struct {
	data        []byte
	contentType string
	modified    time.Time
}

// Store is a concurrency-safe in-memory bucket.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	failing map[string]error
	puts    int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		objects: make(map[string]object),
		failing: make(map[string]error),
	}
}

// Seed stores data at path without counting it as a write.
func (s *Store) Seed(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = object{data: append([]byte(nil), data...), modified: time.Now().UTC()}
}

// Fail makes every operation touching path (or listing prefix) return err.
// A nil err clears the failure.
func (s *Store) Fail(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failing, path)
		return
	}
	s.failing[path] = err
}

// Bytes returns a copy of the object at path.
func (s *Store) Bytes(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), o.data...), true
}

// Puts returns how many writes have been made.
func (s *Store) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// Get implements domain.BlobReader.
func (s *Store) Get(_ context.Context, path string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failing[path]; err != nil {
		return nil, fmt.Errorf("memblob: get %s: %w", path, err)
	}
	o, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("memblob: get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

// List implements domain.BlobReader. Keys are returned in byte order, as S3
// does.
func (s *Store) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failing[prefix]; err != nil {
		return nil, fmt.Errorf("memblob: list prefix %s: %w", prefix, err)
	}
	var infos []domain.BlobInfo
	for k, o := range s.objects {
		if strings.HasPrefix(k, prefix) {
			infos = append(infos, domain.BlobInfo{
				Path:         k,
				Size:         int64(len(o.data)),
				ContentType:  o.contentType,
				LastModified: o.modified,
			})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// Put implements domain.BlobWriter.
func (s *Store) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("memblob: put %s: %w", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing[path]; err != nil {
		return fmt.Errorf("memblob: put %s: %w", path, err)
	}
	s.objects[path] = object{data: buf, contentType: contentType, modified: time.Now().UTC()}
	s.puts++
	return nil
}

// PutMultipart implements domain.BlobWriter; parts are irrelevant in memory.
func (s *Store) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return s.Put(ctx, path, data, "")
}

var _ domain.BlobStore = (*Store)(nil)
