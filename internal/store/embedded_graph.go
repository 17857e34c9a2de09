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

// EmbeddedGraphStore is a file-backed GraphClient used when no external
// graph backend is configured, and by tests. Like most graph backends it
// assigns internal node ids itself, so re-created nodes receive new ids and
// relationship restore must go through an id-remapping step.
type EmbeddedGraphStore struct {
	mu            sync.RWMutex
	path          string
	nextID        int64
	nodes         map[string]Node
	relationships map[string]Relationship
	indexes       []IndexDefinition
	constraints   []ConstraintDefinition
}

type graphStoreState struct {
	NextID        int64                   `json:"next_id"`
	Nodes         map[string]Node         `json:"nodes"`
	Relationships map[string]Relationship `json:"relationships"`
	Indexes       []IndexDefinition       `json:"indexes,omitempty"`
	Constraints   []ConstraintDefinition  `json:"constraints,omitempty"`
}

// NewEmbeddedGraphStore creates an in-memory graph store with no backing file.
func NewEmbeddedGraphStore() *EmbeddedGraphStore {
	return &EmbeddedGraphStore{
		nextID:        1,
		nodes:         make(map[string]Node),
		relationships: make(map[string]Relationship),
	}
}

// OpenEmbeddedGraphStore loads a graph store from path, creating an empty
// store when the file does not exist yet.
func OpenEmbeddedGraphStore(path string) (*EmbeddedGraphStore, error) {
	s := NewEmbeddedGraphStore()
	s.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read graph store state: %w", err)
	}

	var state graphStoreState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse graph store state: %w", err)
	}

	if state.Nodes != nil {
		s.nodes = state.Nodes
	}
	if state.Relationships != nil {
		s.relationships = state.Relationships
	}
	s.indexes = state.Indexes
	s.constraints = state.Constraints
	if state.NextID > 0 {
		s.nextID = state.NextID
	}

	return s, nil
}

// Save persists the store state to its backing file.
func (s *EmbeddedGraphStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.path == "" {
		return nil
	}

	state := &graphStoreState{
		NextID:        s.nextID,
		Nodes:         s.nodes,
		Relationships: s.relationships,
		Indexes:       s.indexes,
		Constraints:   s.constraints,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize graph store state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create graph store directory: %w", err)
	}

	return os.WriteFile(s.path, data, 0644)
}

// ApplySchema replaces the stored index and constraint definitions.
func (s *EmbeddedGraphStore) ApplySchema(ctx context.Context, indexes []IndexDefinition, constraints []ConstraintDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes = indexes
	s.constraints = constraints
	return nil
}

// ListLabels returns every label present on any node, sorted.
func (s *EmbeddedGraphStore) ListLabels(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, node := range s.nodes {
		for _, label := range node.Labels {
			seen[label] = true
		}
	}

	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	return labels, nil
}

// ListRelationshipTypes returns every relationship type present, sorted.
func (s *EmbeddedGraphStore) ListRelationshipTypes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, rel := range s.relationships {
		seen[rel.Type] = true
	}

	types := make([]string, 0, len(seen))
	for relType := range seen {
		types = append(types, relType)
	}
	sort.Strings(types)

	return types, nil
}

// ScanNodes pages through nodes carrying the given label, ordered by id so
// repeated scans are deterministic.
func (s *EmbeddedGraphStore) ScanNodes(ctx context.Context, label string, offset, limit int) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Node
	for _, node := range s.nodes {
		if nodeHasLabel(node, label) {
			matched = append(matched, node)
		}
	}
	sortNodesByID(matched)

	return pageNodes(matched, offset, limit), nil
}

// ScanRelationships pages through relationships of the given type, ordered by id.
func (s *EmbeddedGraphStore) ScanRelationships(ctx context.Context, relType string, offset, limit int) ([]Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Relationship
	for _, rel := range s.relationships {
		if rel.Type == relType {
			matched = append(matched, rel)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return graphIDLess(matched[i].ID, matched[j].ID) })

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], nil
}

// SampleNodes returns up to limit nodes in id order.
func (s *EmbeddedGraphStore) SampleNodes(ctx context.Context, limit int) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		all = append(all, node)
	}
	sortNodesByID(all)

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	return all, nil
}

// CreateNode creates a node under a freshly assigned id. Any id on the
// input node is ignored, matching backend behavior.
func (s *EmbeddedGraphStore) CreateNode(ctx context.Context, node Node) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(node.Labels) == 0 {
		return "", fmt.Errorf("node must carry at least one label")
	}

	node.ID = strconv.FormatInt(s.nextID, 10)
	s.nextID++
	s.nodes[node.ID] = node

	return node.ID, nil
}

// CreateRelationship creates a relationship between two existing nodes.
func (s *EmbeddedGraphStore) CreateRelationship(ctx context.Context, rel Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rel.Type == "" {
		return fmt.Errorf("relationship type is required")
	}
	if _, exists := s.nodes[rel.StartID]; !exists {
		return fmt.Errorf("start node %s not found", rel.StartID)
	}
	if _, exists := s.nodes[rel.EndID]; !exists {
		return fmt.Errorf("end node %s not found", rel.EndID)
	}

	if rel.ID == "" {
		rel.ID = strconv.FormatInt(s.nextID, 10)
		s.nextID++
	}
	s.relationships[rel.ID] = rel

	return nil
}

// ListIndexes returns the schema indexes.
func (s *EmbeddedGraphStore) ListIndexes(ctx context.Context) ([]IndexDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]IndexDefinition, len(s.indexes))
	copy(out, s.indexes)

	return out, nil
}

// ListConstraints returns the schema constraints.
func (s *EmbeddedGraphStore) ListConstraints(ctx context.Context) ([]ConstraintDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ConstraintDefinition, len(s.constraints))
	copy(out, s.constraints)

	return out, nil
}

// ClearAll removes every node and relationship. Schema definitions are kept.
func (s *EmbeddedGraphStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]Node)
	s.relationships = make(map[string]Relationship)

	return nil
}

// Helpers

func nodeHasLabel(node Node, label string) bool {
	for _, l := range node.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func sortNodesByID(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool { return graphIDLess(nodes[i].ID, nodes[j].ID) })
}

// graphIDLess orders numeric ids numerically and falls back to string order,
// so "10" sorts after "9" rather than between "1" and "2".
func graphIDLess(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

func pageNodes(nodes []Node, offset, limit int) []Node {
	if offset >= len(nodes) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(nodes) {
		end = len(nodes)
	}
	return nodes[offset:end]
}
