package store

import (
	"context"
)

// Node is one graph node. ID values are assigned by the backend and may
// change when a node is re-created; restore logic must not assume stability.
type Node struct {
	ID         string                 `json:"id"`
	Labels     []string               `json:"labels"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Relationship connects two nodes by their backend-assigned ids.
type Relationship struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	StartID    string                 `json:"start_id"`
	EndID      string                 `json:"end_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// IndexDefinition describes one schema index on the graph backend.
type IndexDefinition struct {
	Name       string   `json:"name"`
	Labels     []string `json:"labels"`
	Properties []string `json:"properties"`
}

// ConstraintDefinition describes one schema constraint on the graph backend.
type ConstraintDefinition struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Labels     []string `json:"labels"`
	Properties []string `json:"properties"`
}

// GraphClient is the boundary to the graph-store backend.
type GraphClient interface {
	// ListLabels returns all node labels present in the store.
	ListLabels(ctx context.Context) ([]string, error)

	// ListRelationshipTypes returns all relationship types present in the store.
	ListRelationshipTypes(ctx context.Context) ([]string, error)

	// ScanNodes pages through nodes carrying the given label.
	ScanNodes(ctx context.Context, label string, offset, limit int) ([]Node, error)

	// ScanRelationships pages through relationships of the given type.
	ScanRelationships(ctx context.Context, relType string, offset, limit int) ([]Relationship, error)

	// SampleNodes returns up to limit nodes across all labels, in a
	// deterministic order, for structural fingerprinting.
	SampleNodes(ctx context.Context, limit int) ([]Node, error)

	// CreateNode creates a node and returns the id assigned by the backend.
	CreateNode(ctx context.Context, node Node) (string, error)

	// CreateRelationship creates a relationship between existing nodes.
	CreateRelationship(ctx context.Context, rel Relationship) error

	// ListIndexes returns the schema indexes.
	ListIndexes(ctx context.Context) ([]IndexDefinition, error)

	// ListConstraints returns the schema constraints.
	ListConstraints(ctx context.Context) ([]ConstraintDefinition, error)

	// ApplySchema replaces the backend's index and constraint definitions.
	// Used by restore to rebuild schema exported alongside the data.
	ApplySchema(ctx context.Context, indexes []IndexDefinition, constraints []ConstraintDefinition) error

	// ClearAll removes every node and relationship. Used by restore before
	// re-creating data.
	ClearAll(ctx context.Context) error
}
