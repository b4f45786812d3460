package testutil

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/trezcool/darasa/core/attachment"
)

var ErrStoreDown = errors.New("bucket unavailable")

// MemStore is an in-memory attachment.Store that counts calls and can be told to fail.
type MemStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string

	FailPut    bool
	FailRemove bool
	Puts       int
	Removes    int
}

var _ attachment.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{Objects: make(map[string][]byte), Types: make(map[string]string)}
}

func (s *MemStore) Put(_ context.Context, path string, body io.Reader, _ int64, contentType string) error {
	s.mu.Lock()
	s.Puts++
	fail := s.FailPut
	s.mu.Unlock()
	if fail {
		return ErrStoreDown
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Objects[path] = data
	s.Types[path] = contentType
	return nil
}

func (s *MemStore) Remove(_ context.Context, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Removes++
	if s.FailRemove {
		return ErrStoreDown
	}
	for _, p := range paths {
		delete(s.Objects, p)
		delete(s.Types, p)
	}
	return nil
}

func (s *MemStore) PublicURL(path string) string {
	return "https://cdn.test/" + path
}

func (s *MemStore) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Objects[path]
	return ok
}

func (s *MemStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.Objects))
	for k := range s.Objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *MemStore) Calls() (puts, removes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Puts, s.Removes
}
