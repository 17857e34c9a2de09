package store

import (
	"context"
)

// CollectionInfo describes a single vector collection's configuration and size.
type CollectionInfo struct {
	Name       string `json:"name"`
	Dimension  int    `json:"dimension"`
	Distance   string `json:"distance"`
	PointCount int64  `json:"point_count"`
}

// Point is one stored vector with its payload.
type Point struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// VectorClient is the boundary to the vector-store backend. Connectivity
// failures are surfaced as errors, never panics, so callers can report
// partial success.
type VectorClient interface {
	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns configuration and point count for one collection.
	GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	// ScrollPoints pages through a collection's points with a stable cursor.
	// An empty cursor starts from the beginning; an empty returned cursor
	// means the scan is complete.
	ScrollPoints(ctx context.Context, collection string, cursor string, limit int) ([]Point, string, error)

	// CreateCollection creates a collection with the given configuration.
	CreateCollection(ctx context.Context, info CollectionInfo) error

	// DeleteCollection removes a collection and all of its points.
	DeleteCollection(ctx context.Context, name string) error

	// UpsertPoints inserts or replaces a batch of points.
	UpsertPoints(ctx context.Context, collection string, points []Point) error
}
