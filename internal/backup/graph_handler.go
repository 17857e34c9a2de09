package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"memstore-backup/internal/checksum"
	"memstore-backup/internal/logging"
	"memstore-backup/internal/store"
)

const (
	// GraphComponentName identifies the graph store component in manifests
	GraphComponentName = "graph_store"

	graphManifestFile  = "graph_manifest.json"
	graphSchemaFile    = "schema.json"
	defaultScanBatch   = 500
	defaultGraphSample = 100
)

// GraphHandler backs up and restores the graph store component. Nodes are
// exported per label and relationships per type, both as JSON-lines files.
//
// Restore is strictly two-phase: every node is created and its old id mapped
// to the freshly assigned one before any relationship is attempted. Graph
// backends assign node ids themselves, so relationships can only be rebuilt
// through that id map.
type GraphHandler struct {
	client     store.GraphClient
	engine     *checksum.Engine
	logger     *logging.Logger
	scanBatch  int
	sampleSize int
}

// graphComponentManifest indexes the files exported into a component directory
type graphComponentManifest struct {
	NodeFiles          []graphFileEntry `json:"node_files"`
	RelationshipFiles  []graphFileEntry `json:"relationship_files"`
	TotalNodes         int64            `json:"total_nodes"`
	TotalRelationships int64            `json:"total_relationships"`
	ExportedAt         time.Time        `json:"exported_at"`
}

type graphFileEntry struct {
	// Name is the label or relationship type the file holds.
	Name  string `json:"name"`
	File  string `json:"file"`
	Count int64  `json:"count"`
}

type graphSchema struct {
	Indexes     []store.IndexDefinition      `json:"indexes"`
	Constraints []store.ConstraintDefinition `json:"constraints"`
}

// NewGraphHandler creates a handler for the graph store component
func NewGraphHandler(client store.GraphClient, engine *checksum.Engine, logger *logging.Logger) *GraphHandler {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &GraphHandler{
		client:     client,
		engine:     engine,
		logger:     logger,
		scanBatch:  defaultScanBatch,
		sampleSize: defaultGraphSample,
	}
}

// Name returns the component identifier
func (h *GraphHandler) Name() string {
	return GraphComponentName
}

// CreateBackup exports nodes, relationships, and schema into dir
func (h *GraphHandler) CreateBackup(ctx context.Context, dir string) (*ComponentMeta, error) {
	start := time.Now()

	labels, err := h.client.ListLabels(ctx)
	if err != nil {
		return nil, NewConnectivityError("failed to list graph labels", err).WithComponent(h.Name())
	}
	relTypes, err := h.client.ListRelationshipTypes(ctx)
	if err != nil {
		return nil, NewConnectivityError("failed to list relationship types", err).WithComponent(h.Name())
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, NewStorageError("failed to create graph backup directory", err)
	}

	manifest := &graphComponentManifest{ExportedAt: time.Now().UTC()}
	var files []string

	// A node carrying several labels is exported once per label; restore
	// dedupes by node id, so the export stays simple and per-label files
	// stay self-contained.
	seenNodes := make(map[string]bool)
	for _, label := range labels {
		fileName := "nodes_" + sanitizeFileName(label) + ".jsonl"
		count, uniqueCount, err := h.exportNodes(ctx, label, filepath.Join(dir, fileName), seenNodes)
		if err != nil {
			return nil, err
		}
		manifest.NodeFiles = append(manifest.NodeFiles, graphFileEntry{Name: label, File: fileName, Count: count})
		manifest.TotalNodes += uniqueCount
		files = append(files, fileName)
	}

	for _, relType := range relTypes {
		fileName := "relationships_" + sanitizeFileName(relType) + ".jsonl"
		count, err := h.exportRelationships(ctx, relType, filepath.Join(dir, fileName))
		if err != nil {
			return nil, err
		}
		manifest.RelationshipFiles = append(manifest.RelationshipFiles, graphFileEntry{Name: relType, File: fileName, Count: count})
		manifest.TotalRelationships += count
		files = append(files, fileName)
	}

	if err := h.exportSchema(ctx, dir); err != nil {
		return nil, err
	}
	files = append(files, graphSchemaFile)

	if err := writeJSONFile(filepath.Join(dir, graphManifestFile), manifest); err != nil {
		return nil, NewStorageError("failed to write graph component manifest", err)
	}
	files = append(files, graphManifestFile)

	fingerprint, recordCount, err := h.CurrentStateChecksum(ctx)
	if err != nil {
		return nil, err
	}

	h.logger.WithFields(map[string]interface{}{
		"component":     h.Name(),
		"nodes":         manifest.TotalNodes,
		"relationships": manifest.TotalRelationships,
	}).Debug("Graph component exported")

	return &ComponentMeta{
		Name:        h.Name(),
		Status:      ComponentStatusCompleted,
		RecordCount: recordCount,
		Files:       files,
		Checksum:    fingerprint,
		Duration:    time.Since(start),
	}, nil
}

func (h *GraphHandler) exportNodes(ctx context.Context, label, path string, seenNodes map[string]bool) (int64, int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, 0, NewStorageError(fmt.Sprintf("failed to create node file for label %s", label), err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	var written, unique int64
	offset := 0
	for {
		nodes, err := h.client.ScanNodes(ctx, label, offset, h.scanBatch)
		if err != nil {
			return written, unique, NewConnectivityError(fmt.Sprintf("failed to scan nodes for label %s", label), err).WithComponent(h.Name())
		}
		if len(nodes) == 0 {
			break
		}

		for _, node := range nodes {
			if err := encoder.Encode(node); err != nil {
				return written, unique, NewStorageError(fmt.Sprintf("failed to write node for label %s", label), err)
			}
			written++
			if !seenNodes[node.ID] {
				seenNodes[node.ID] = true
				unique++
			}
		}

		offset += len(nodes)
	}

	if err := writer.Flush(); err != nil {
		return written, unique, NewStorageError(fmt.Sprintf("failed to flush node file for label %s", label), err)
	}

	return written, unique, nil
}

func (h *GraphHandler) exportRelationships(ctx context.Context, relType, path string) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, NewStorageError(fmt.Sprintf("failed to create relationship file for type %s", relType), err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	var written int64
	offset := 0
	for {
		rels, err := h.client.ScanRelationships(ctx, relType, offset, h.scanBatch)
		if err != nil {
			return written, NewConnectivityError(fmt.Sprintf("failed to scan relationships of type %s", relType), err).WithComponent(h.Name())
		}
		if len(rels) == 0 {
			break
		}

		for _, rel := range rels {
			if err := encoder.Encode(rel); err != nil {
				return written, NewStorageError(fmt.Sprintf("failed to write relationship of type %s", relType), err)
			}
			written++
		}

		offset += len(rels)
	}

	if err := writer.Flush(); err != nil {
		return written, NewStorageError(fmt.Sprintf("failed to flush relationship file for type %s", relType), err)
	}

	return written, nil
}

func (h *GraphHandler) exportSchema(ctx context.Context, dir string) error {
	indexes, err := h.client.ListIndexes(ctx)
	if err != nil {
		return NewConnectivityError("failed to list graph indexes", err).WithComponent(h.Name())
	}
	constraints, err := h.client.ListConstraints(ctx)
	if err != nil {
		return NewConnectivityError("failed to list graph constraints", err).WithComponent(h.Name())
	}

	schema := &graphSchema{Indexes: indexes, Constraints: constraints}
	if err := writeJSONFile(filepath.Join(dir, graphSchemaFile), schema); err != nil {
		return NewStorageError("failed to write graph schema", err)
	}

	return nil
}

// RestoreBackup clears the graph and rebuilds it from dir. Phase one creates
// every node and records the mapping from exported id to newly assigned id;
// phase two rebuilds relationships through that map. No relationship is
// attempted until the map is complete.
func (h *GraphHandler) RestoreBackup(ctx context.Context, dir string) (int64, error) {
	manifest, err := h.readComponentManifest(dir)
	if err != nil {
		return 0, err
	}
	schema, err := h.readSchema(dir)
	if err != nil {
		return 0, err
	}

	if err := h.client.ClearAll(ctx); err != nil {
		return 0, NewConnectivityError("failed to clear graph before restore", err).WithComponent(h.Name())
	}

	// Schema goes first so indexes and constraints are in force while data
	// loads.
	if err := h.client.ApplySchema(ctx, schema.Indexes, schema.Constraints); err != nil {
		return 0, NewConnectivityError("failed to apply graph schema", err).WithComponent(h.Name())
	}

	// Phase one: nodes.
	idMap := make(map[string]string)
	var restored int64
	for _, entry := range manifest.NodeFiles {
		count, err := h.restoreNodes(ctx, filepath.Join(dir, entry.File), entry.Name, idMap)
		if err != nil {
			return restored, err
		}
		restored += count
	}

	if int64(len(idMap)) != manifest.TotalNodes {
		return restored, NewCorruptionError(
			fmt.Sprintf("restored %d unique nodes, manifest declares %d", len(idMap), manifest.TotalNodes), nil)
	}

	// Phase two: relationships, only now that every node id is mapped.
	for _, entry := range manifest.RelationshipFiles {
		count, err := h.restoreRelationships(ctx, filepath.Join(dir, entry.File), entry.Name, idMap)
		if err != nil {
			return restored, err
		}
		restored += count
	}

	return restored, nil
}

func (h *GraphHandler) restoreNodes(ctx context.Context, path, label string, idMap map[string]string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, NewStorageError(fmt.Sprintf("failed to open node file for label %s", label), err)
	}
	defer file.Close()

	var restored int64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var node store.Node
		if err := json.Unmarshal(line, &node); err != nil {
			return restored, NewCorruptionError(fmt.Sprintf("malformed node record for label %s", label), err)
		}

		// Multi-label nodes appear in several files; create each once.
		if _, exists := idMap[node.ID]; exists {
			continue
		}

		oldID := node.ID
		newID, err := h.client.CreateNode(ctx, node)
		if err != nil {
			return restored, NewConnectivityError(fmt.Sprintf("failed to create node for label %s", label), err).WithComponent(h.Name())
		}

		idMap[oldID] = newID
		restored++
	}
	if err := scanner.Err(); err != nil {
		return restored, NewStorageError(fmt.Sprintf("failed to read node file for label %s", label), err)
	}

	return restored, nil
}

func (h *GraphHandler) restoreRelationships(ctx context.Context, path, relType string, idMap map[string]string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, NewStorageError(fmt.Sprintf("failed to open relationship file for type %s", relType), err)
	}
	defer file.Close()

	var restored int64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rel store.Relationship
		if err := json.Unmarshal(line, &rel); err != nil {
			return restored, NewCorruptionError(fmt.Sprintf("malformed relationship record for type %s", relType), err)
		}

		startID, ok := idMap[rel.StartID]
		if !ok {
			return restored, NewCorruptionError(
				fmt.Sprintf("relationship of type %s references unknown start node %s", relType, rel.StartID), nil)
		}
		endID, ok := idMap[rel.EndID]
		if !ok {
			return restored, NewCorruptionError(
				fmt.Sprintf("relationship of type %s references unknown end node %s", relType, rel.EndID), nil)
		}

		rel.ID = ""
		rel.StartID = startID
		rel.EndID = endID

		if err := h.client.CreateRelationship(ctx, rel); err != nil {
			return restored, NewConnectivityError(fmt.Sprintf("failed to create relationship of type %s", relType), err).WithComponent(h.Name())
		}
		restored++
	}
	if err := scanner.Err(); err != nil {
		return restored, NewStorageError(fmt.Sprintf("failed to read relationship file for type %s", relType), err)
	}

	return restored, nil
}

// VerifyBackup checks the exported files against the component manifest
// without touching the backend
func (h *GraphHandler) VerifyBackup(ctx context.Context, dir string) error {
	manifest, err := h.readComponentManifest(dir)
	if err != nil {
		return err
	}

	for _, entry := range manifest.NodeFiles {
		count, err := countJSONLines(filepath.Join(dir, entry.File))
		if err != nil {
			return NewCorruptionError(fmt.Sprintf("unreadable node file for label %s", entry.Name), err)
		}
		if count != entry.Count {
			return NewCorruptionError(
				fmt.Sprintf("label %s has %d nodes on disk, manifest declares %d", entry.Name, count, entry.Count), nil)
		}
	}

	for _, entry := range manifest.RelationshipFiles {
		count, err := countJSONLines(filepath.Join(dir, entry.File))
		if err != nil {
			return NewCorruptionError(fmt.Sprintf("unreadable relationship file for type %s", entry.Name), err)
		}
		if count != entry.Count {
			return NewCorruptionError(
				fmt.Sprintf("type %s has %d relationships on disk, manifest declares %d", entry.Name, count, entry.Count), nil)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, graphSchemaFile)); err != nil {
		return NewCorruptionError("missing graph schema file", err)
	}

	return nil
}

// CurrentStateChecksum fingerprints the live graph structure
func (h *GraphHandler) CurrentStateChecksum(ctx context.Context) (string, int64, error) {
	labels, err := h.client.ListLabels(ctx)
	if err != nil {
		return "", 0, NewConnectivityError("failed to list graph labels", err).WithComponent(h.Name())
	}
	relTypes, err := h.client.ListRelationshipTypes(ctx)
	if err != nil {
		return "", 0, NewConnectivityError("failed to list relationship types", err).WithComponent(h.Name())
	}

	state := checksum.GraphState{
		NodeCounts:         make(map[string]int64),
		RelationshipCounts: make(map[string]int64),
	}

	// Nodes are keyed by their full label set, so a {Person, Admin} node is
	// distinguishable from separate Person and Admin nodes.
	seenNodes := make(map[string]bool)
	for _, label := range labels {
		if err := h.tallyNodesByLabelSet(ctx, label, seenNodes, state.NodeCounts); err != nil {
			return "", 0, err
		}
	}

	var totalRelationships int64
	for _, relType := range relTypes {
		count, err := h.countRelationships(ctx, relType)
		if err != nil {
			return "", 0, err
		}
		state.RelationshipCounts[relType] = count
		totalRelationships += count
	}

	propertyKeys, err := h.samplePropertyKeys(ctx)
	if err != nil {
		return "", 0, err
	}
	state.PropertyKeys = propertyKeys

	fingerprint, err := h.engine.GraphFingerprint(state)
	if err != nil {
		return "", 0, err
	}

	return fingerprint, int64(len(seenNodes)) + totalRelationships, nil
}

func (h *GraphHandler) tallyNodesByLabelSet(ctx context.Context, label string, seenNodes map[string]bool, counts map[string]int64) error {
	offset := 0
	for {
		nodes, err := h.client.ScanNodes(ctx, label, offset, h.scanBatch)
		if err != nil {
			return NewConnectivityError(fmt.Sprintf("failed to scan nodes for label %s", label), err).WithComponent(h.Name())
		}
		if len(nodes) == 0 {
			return nil
		}

		for _, node := range nodes {
			if seenNodes[node.ID] {
				continue
			}
			seenNodes[node.ID] = true
			counts[checksum.LabelSetKey(node.Labels)]++
		}
		offset += len(nodes)
	}
}

func (h *GraphHandler) countRelationships(ctx context.Context, relType string) (int64, error) {
	var count int64
	offset := 0
	for {
		rels, err := h.client.ScanRelationships(ctx, relType, offset, h.scanBatch)
		if err != nil {
			return count, NewConnectivityError(fmt.Sprintf("failed to scan relationships of type %s", relType), err).WithComponent(h.Name())
		}
		if len(rels) == 0 {
			return count, nil
		}

		count += int64(len(rels))
		offset += len(rels)
	}
}

func (h *GraphHandler) samplePropertyKeys(ctx context.Context) ([]string, error) {
	nodes, err := h.client.SampleNodes(ctx, h.sampleSize)
	if err != nil {
		return nil, NewConnectivityError("failed to sample graph nodes", err).WithComponent(h.Name())
	}

	seen := make(map[string]bool)
	for _, node := range nodes {
		for key := range node.Properties {
			seen[key] = true
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys, nil
}

func (h *GraphHandler) readComponentManifest(dir string) (*graphComponentManifest, error) {
	var manifest graphComponentManifest
	if err := readJSONFile(filepath.Join(dir, graphManifestFile), &manifest); err != nil {
		return nil, NewCorruptionError("missing or malformed graph component manifest", err)
	}
	return &manifest, nil
}

func (h *GraphHandler) readSchema(dir string) (*graphSchema, error) {
	var schema graphSchema
	if err := readJSONFile(filepath.Join(dir, graphSchemaFile), &schema); err != nil {
		return nil, NewCorruptionError("missing or malformed graph schema file", err)
	}
	return &schema, nil
}
