package migration

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"memstore-backup/internal/store"
)

// DryRunVectorClient wraps a VectorClient and intercepts every write. Writes
// are applied to an in-memory overlay instead of the backend, so the
// migration code path is identical in live and dry-run mode while the
// backend is never touched. Reads see the overlay first, then the backend.
type DryRunVectorClient struct {
	base store.VectorClient

	mu      sync.Mutex
	virtual map[string]*virtualCollection
	deleted map[string]bool

	wouldCreate int64
	wouldDelete int64
	wouldUpsert int64
}

type virtualCollection struct {
	info   store.CollectionInfo
	points []store.Point
}

// NewDryRunVectorClient creates a write-intercepting wrapper around base
func NewDryRunVectorClient(base store.VectorClient) *DryRunVectorClient {
	return &DryRunVectorClient{
		base:    base,
		virtual: make(map[string]*virtualCollection),
		deleted: make(map[string]bool),
	}
}

// WouldWrite returns the counts of intercepted creates, deletes, and
// upserted points.
func (c *DryRunVectorClient) WouldWrite() (creates, deletes, points int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wouldCreate, c.wouldDelete, c.wouldUpsert
}

// ListCollections merges backend collections with the overlay
func (c *DryRunVectorClient) ListCollections(ctx context.Context) ([]string, error) {
	names, err := c.base.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	merged := make(map[string]bool)
	for _, name := range names {
		if !c.deleted[name] {
			merged[name] = true
		}
	}
	for name := range c.virtual {
		merged[name] = true
	}

	out := make([]string, 0, len(merged))
	for name := range merged {
		out = append(out, name)
	}
	sort.Strings(out)

	return out, nil
}

// GetCollectionInfo serves overlay collections from memory
func (c *DryRunVectorClient) GetCollectionInfo(ctx context.Context, name string) (*store.CollectionInfo, error) {
	c.mu.Lock()
	if coll, exists := c.virtual[name]; exists {
		info := coll.info
		info.PointCount = int64(len(coll.points))
		c.mu.Unlock()
		return &info, nil
	}
	if c.deleted[name] {
		c.mu.Unlock()
		return nil, fmt.Errorf("collection %s not found", name)
	}
	c.mu.Unlock()

	return c.base.GetCollectionInfo(ctx, name)
}

// ScrollPoints pages overlay collections with a numeric offset cursor
func (c *DryRunVectorClient) ScrollPoints(ctx context.Context, collection string, cursor string, limit int) ([]store.Point, string, error) {
	c.mu.Lock()
	coll, exists := c.virtual[collection]
	if !exists {
		deleted := c.deleted[collection]
		c.mu.Unlock()
		if deleted {
			return nil, "", fmt.Errorf("collection %s not found", collection)
		}
		return c.base.ScrollPoints(ctx, collection, cursor, limit)
	}
	defer c.mu.Unlock()

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid scroll cursor %q", cursor)
		}
		offset = parsed
	}

	if offset >= len(coll.points) {
		return nil, "", nil
	}

	end := offset + limit
	if limit <= 0 || end > len(coll.points) {
		end = len(coll.points)
	}

	page := make([]store.Point, end-offset)
	copy(page, coll.points[offset:end])

	next := ""
	if end < len(coll.points) {
		next = strconv.Itoa(end)
	}

	return page, next, nil
}

// CreateCollection records the collection in the overlay
func (c *DryRunVectorClient) CreateCollection(ctx context.Context, info store.CollectionInfo) error {
	exists, err := c.collectionExists(ctx, info.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("collection %s already exists", info.Name)
	}
	if info.Dimension <= 0 {
		return fmt.Errorf("collection %s has invalid dimension %d", info.Name, info.Dimension)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.deleted, info.Name)
	info.PointCount = 0
	c.virtual[info.Name] = &virtualCollection{info: info}
	c.wouldCreate++

	return nil
}

// DeleteCollection hides the collection from subsequent reads
func (c *DryRunVectorClient) DeleteCollection(ctx context.Context, name string) error {
	exists, err := c.collectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("collection %s not found", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.virtual, name)
	c.deleted[name] = true
	c.wouldDelete++

	return nil
}

// UpsertPoints writes into the overlay for overlay collections and only
// counts for backend collections.
func (c *DryRunVectorClient) UpsertPoints(ctx context.Context, collection string, points []store.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleted[collection] {
		return fmt.Errorf("collection %s not found", collection)
	}

	coll, exists := c.virtual[collection]
	if !exists {
		c.wouldUpsert += int64(len(points))
		return nil
	}

	for _, point := range points {
		if len(point.Vector) != coll.info.Dimension {
			return fmt.Errorf("point %s has dimension %d, collection %s expects %d",
				point.ID, len(point.Vector), collection, coll.info.Dimension)
		}

		replaced := false
		for i := range coll.points {
			if coll.points[i].ID == point.ID {
				coll.points[i] = point
				replaced = true
				break
			}
		}
		if !replaced {
			coll.points = append(coll.points, point)
		}
	}
	c.wouldUpsert += int64(len(points))

	return nil
}

func (c *DryRunVectorClient) collectionExists(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	if _, exists := c.virtual[name]; exists {
		c.mu.Unlock()
		return true, nil
	}
	if c.deleted[name] {
		c.mu.Unlock()
		return false, nil
	}
	c.mu.Unlock()

	names, err := c.base.ListCollections(ctx)
	if err != nil {
		return false, err
	}
	for _, existing := range names {
		if existing == name {
			return true, nil
		}
	}
	return false, nil
}
