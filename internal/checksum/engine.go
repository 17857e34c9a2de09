// Package checksum computes deterministic structural fingerprints of
// backend state and of on-disk backup trees. Fingerprints are corruption
// and regression detectors, not security primitives: they summarize
// structure (counts, dimensions, schema shape) rather than hashing every
// byte of content, and they are truncated to a short hex prefix.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultHashLength is the number of hex characters kept from a digest.
const DefaultHashLength = 16

// Data is a snapshot of system state at one instant. The same structure
// describes a live system and an on-disk backup tree, so one comparison
// routine covers both directions. GeneratedAt is informational only and is
// excluded from every hash.
type Data struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	Components   map[string]string `json:"components"`
	RecordCounts map[string]int64  `json:"record_counts"`
	Overall      string            `json:"overall"`
}

// VectorCollectionState is the structural summary of one vector collection
// that feeds its fingerprint: configuration plus the lengths of a small
// deterministic sample of stored vectors. Vector contents are deliberately
// not hashed.
type VectorCollectionState struct {
	Name          string `json:"name"`
	PointCount    int64  `json:"point_count"`
	Dimension     int    `json:"dimension"`
	SampleLengths []int  `json:"sample_lengths"`
}

// GraphState is the structural summary of a graph backend: node counts per
// sorted label-set, relationship counts per type, and the sorted property
// keys observed on a bounded node sample.
type GraphState struct {
	NodeCounts         map[string]int64 `json:"node_counts"`
	RelationshipCounts map[string]int64 `json:"relationship_counts"`
	PropertyKeys       []string         `json:"property_keys"`
}

// Engine computes fingerprints and compares snapshots.
type Engine struct {
	hashLength int
}

// NewEngine creates an engine producing hashes of DefaultHashLength hex characters.
func NewEngine() *Engine {
	return &Engine{hashLength: DefaultHashLength}
}

// VectorFingerprint fingerprints a set of vector collections. Input order
// does not matter; collections are sorted by name before hashing.
func (e *Engine) VectorFingerprint(collections []VectorCollectionState) (string, error) {
	sorted := make([]VectorCollectionState, len(collections))
	copy(sorted, collections)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	return e.hashValue(sorted)
}

// GraphFingerprint fingerprints graph structure. Map keys serialize in
// sorted order, and PropertyKeys are sorted defensively, so the result is
// independent of enumeration order.
func (e *Engine) GraphFingerprint(state GraphState) (string, error) {
	keys := make([]string, len(state.PropertyKeys))
	copy(keys, state.PropertyKeys)
	sort.Strings(keys)
	state.PropertyKeys = keys

	return e.hashValue(state)
}

// DirectoryFingerprint fingerprints an on-disk backup tree as the hash of
// the sorted list of relativePath:contentHash pairs for every regular file
// under root. Adding, removing, or altering any file changes the result;
// enumeration order does not. Files whose slash-separated relative path
// appears in exclude are skipped, so a manifest written next to the data it
// describes can stay out of its own checksum.
func (e *Engine) DirectoryFingerprint(root string, exclude ...string) (string, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, rel := range exclude {
		excluded[rel] = true
	}

	var entries []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if excluded[filepath.ToSlash(rel)] {
			return nil
		}

		contentHash, err := hashFileContents(path)
		if err != nil {
			return err
		}

		entries = append(entries, filepath.ToSlash(rel)+":"+contentHash)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint directory %s: %w", root, err)
	}

	sort.Strings(entries)

	digest := sha256.Sum256([]byte(strings.Join(entries, "\n")))
	return e.truncate(hex.EncodeToString(digest[:])), nil
}

// BuildData assembles a Data snapshot from per-component fingerprints and
// record counts, computing the overall checksum over both maps. The
// timestamp is set for reporting but does not participate in any hash.
func (e *Engine) BuildData(components map[string]string, recordCounts map[string]int64) (*Data, error) {
	if components == nil {
		components = make(map[string]string)
	}
	if recordCounts == nil {
		recordCounts = make(map[string]int64)
	}

	overall, err := e.hashValue(struct {
		Components   map[string]string `json:"components"`
		RecordCounts map[string]int64  `json:"record_counts"`
	}{components, recordCounts})
	if err != nil {
		return nil, err
	}

	return &Data{
		GeneratedAt:  time.Now().UTC(),
		Components:   components,
		RecordCounts: recordCounts,
		Overall:      overall,
	}, nil
}

// hashValue serializes v as JSON (map keys sort during marshaling, which
// makes the serialization canonical) and returns the truncated sha256 hex.
func (e *Engine) hashValue(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize state for fingerprinting: %w", err)
	}

	digest := sha256.Sum256(data)
	return e.truncate(hex.EncodeToString(digest[:])), nil
}

func (e *Engine) truncate(hash string) string {
	if len(hash) > e.hashLength {
		return hash[:e.hashLength]
	}
	return hash
}

func hashFileContents(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// LabelSetKey builds the canonical node-count key for a set of labels:
// the labels sorted and joined with "+".
func LabelSetKey(labels []string) string {
	sorted := make([]string, len(labels))
	copy(sorted, labels)
	sort.Strings(sorted)
	return strings.Join(sorted, "+")
}
