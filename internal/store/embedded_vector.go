package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// EmbeddedVectorStore is a file-backed VectorClient used when no external
// vector backend is configured, and by tests. State is held in memory and
// persisted as a single JSON document on Save.
type EmbeddedVectorStore struct {
	mu          sync.RWMutex
	path        string
	collections map[string]*vectorCollection
}

type vectorCollection struct {
	Info   CollectionInfo `json:"info"`
	Points []Point        `json:"points"`
}

type vectorStoreState struct {
	Collections map[string]*vectorCollection `json:"collections"`
}

// NewEmbeddedVectorStore creates an in-memory vector store with no backing file.
func NewEmbeddedVectorStore() *EmbeddedVectorStore {
	return &EmbeddedVectorStore{
		collections: make(map[string]*vectorCollection),
	}
}

// OpenEmbeddedVectorStore loads a vector store from path, creating an empty
// store when the file does not exist yet.
func OpenEmbeddedVectorStore(path string) (*EmbeddedVectorStore, error) {
	s := NewEmbeddedVectorStore()
	s.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vector store state: %w", err)
	}

	var state vectorStoreState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse vector store state: %w", err)
	}
	if state.Collections != nil {
		s.collections = state.Collections
	}

	return s, nil
}

// Save persists the store state to its backing file. A store created with
// NewEmbeddedVectorStore has no backing file and Save is a no-op.
func (s *EmbeddedVectorStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(&vectorStoreState{Collections: s.collections}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize vector store state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create vector store directory: %w", err)
	}

	return os.WriteFile(s.path, data, 0644)
}

// ListCollections returns collection names in sorted order.
func (s *EmbeddedVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// GetCollectionInfo returns configuration and live point count for a collection.
func (s *EmbeddedVectorStore) GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, exists := s.collections[name]
	if !exists {
		return nil, fmt.Errorf("collection %s not found", name)
	}

	info := coll.Info
	info.PointCount = int64(len(coll.Points))

	return &info, nil
}

// ScrollPoints pages through points in insertion order. The cursor is the
// numeric offset of the next point, so the scan is stable across calls as
// long as the collection is not mutated mid-scan.
func (s *EmbeddedVectorStore) ScrollPoints(ctx context.Context, collection string, cursor string, limit int) ([]Point, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, exists := s.collections[collection]
	if !exists {
		return nil, "", fmt.Errorf("collection %s not found", collection)
	}

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid scroll cursor %q", cursor)
		}
		offset = parsed
	}

	if offset >= len(coll.Points) {
		return nil, "", nil
	}

	end := offset + limit
	if limit <= 0 || end > len(coll.Points) {
		end = len(coll.Points)
	}

	page := make([]Point, end-offset)
	copy(page, coll.Points[offset:end])

	next := ""
	if end < len(coll.Points) {
		next = strconv.Itoa(end)
	}

	return page, next, nil
}

// CreateCollection creates an empty collection.
func (s *EmbeddedVectorStore) CreateCollection(ctx context.Context, info CollectionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[info.Name]; exists {
		return fmt.Errorf("collection %s already exists", info.Name)
	}
	if info.Dimension <= 0 {
		return fmt.Errorf("collection %s has invalid dimension %d", info.Name, info.Dimension)
	}

	info.PointCount = 0
	s.collections[info.Name] = &vectorCollection{Info: info}

	return nil
}

// DeleteCollection removes a collection and all of its points.
func (s *EmbeddedVectorStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[name]; !exists {
		return fmt.Errorf("collection %s not found", name)
	}
	delete(s.collections, name)

	return nil
}

// UpsertPoints inserts new points or replaces existing ones by id.
func (s *EmbeddedVectorStore) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, exists := s.collections[collection]
	if !exists {
		return fmt.Errorf("collection %s not found", collection)
	}

	for _, point := range points {
		if len(point.Vector) != coll.Info.Dimension {
			return fmt.Errorf("point %s has dimension %d, collection %s expects %d",
				point.ID, len(point.Vector), collection, coll.Info.Dimension)
		}

		replaced := false
		for i := range coll.Points {
			if coll.Points[i].ID == point.ID {
				coll.Points[i] = point
				replaced = true
				break
			}
		}
		if !replaced {
			coll.Points = append(coll.Points, point)
		}
	}

	return nil
}
