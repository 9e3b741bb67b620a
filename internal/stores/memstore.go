package stores

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemRecord is the in-memory representation of a record used by MemStore.
type MemRecord struct {
	ID       string
	Deleted  bool
	Fields   map[string][]string // tag -> raw field values, e.g. "245__a" -> ["Hello"]
	Created  time.Time
	Modified time.Time
	Raw      map[RecordFlavor][]byte
}

// MemStore is a small, concurrency-safe in-memory RecordStore and KBStore,
// used by tests and local/dev runs in place of a real catalog backend.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*MemRecord
	kb      map[string]map[string]string
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]*MemRecord),
		kb:      make(map[string]map[string]string),
	}
}

// PutRecord registers or replaces a record.
func (s *MemStore) PutRecord(r *MemRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
}

// PutKB registers a knowledge-base mapping.
func (s *MemStore) PutKB(kb, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.kb[kb]
	if !ok {
		m = make(map[string]string)
		s.kb[kb] = m
	}
	m[key] = value
}

func (s *MemStore) RecordExists(_ context.Context, id string) (RecordStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return StatusAbsent, nil
	}
	if r.Deleted {
		return StatusDeleted, nil
	}
	return StatusPresent, nil
}

func (s *MemStore) GetFieldValues(_ context.Context, id, tag string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return r.Fields[strings.ToUpper(tag)], nil
}

func (s *MemStore) GetModificationDate(_ context.Context, id string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return time.Time{}, fmt.Errorf("no such record: %s", id)
	}
	return r.Modified, nil
}

func (s *MemStore) GetCreationDate(_ context.Context, id string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return time.Time{}, fmt.Errorf("no such record: %s", id)
	}
	return r.Created, nil
}

func (s *MemStore) GetRawRecord(_ context.Context, id string, flavor RecordFlavor) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("no such record: %s", id)
	}
	return r.Raw[flavor], nil
}

func (s *MemStore) Get(_ context.Context, kb, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.kb[kb]
	if !ok {
		return "", false, nil
	}
	v, ok := m[key]
	return v, ok, nil
}

// MemTagNameTable is a small in-memory TagNameTable, used the same way
// MemStore stands in for a real catalog: local/dev runs and tests.
type MemTagNameTable struct {
	mu       sync.RWMutex
	mappings map[string][]string
}

// NewMemTagNameTable creates an empty table.
func NewMemTagNameTable() *MemTagNameTable {
	return &MemTagNameTable{mappings: make(map[string][]string)}
}

// Put registers name as resolving to tags.
func (t *MemTagNameTable) Put(name string, tags ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mappings[strings.ToUpper(name)] = tags
}

func (t *MemTagNameTable) TagExists(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.mappings[strings.ToUpper(name)]
	return ok
}

func (t *MemTagNameTable) GetTagsFromName(name string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mappings[strings.ToUpper(name)]
}

func (t *MemTagNameTable) GetAllNameTagMappings() map[string][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string][]string, len(t.mappings))
	for k, v := range t.mappings {
		out[k] = v
	}
	return out
}
