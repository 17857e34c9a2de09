package checksum

import (
	"fmt"
	"sort"
)

// Difference is one divergence between two snapshots.
type Difference struct {
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}

// Comparison is the result of comparing two snapshots. Differences is keyed
// by "components.<name>" or "record_counts.<name>"; a key missing on one
// side appears with a nil value for that side.
type Comparison struct {
	Identical   bool                  `json:"identical"`
	Differences map[string]Difference `json:"differences"`
}

// Compare diffs two snapshots field by field. Timestamps never participate,
// and Identical is derived from the component and count maps rather than
// from the stored Overall fields, so a stale Overall cannot mask divergence.
func (e *Engine) Compare(before, after *Data) (*Comparison, error) {
	if before == nil || after == nil {
		return nil, fmt.Errorf("cannot compare nil checksum data")
	}

	result := &Comparison{Differences: make(map[string]Difference)}

	for name, b := range before.Components {
		a, aok := after.Components[name]
		if aok && a == b {
			continue
		}
		result.Differences["components."+name] = Difference{
			Before: b,
			After:  optionalString(a, aok),
		}
	}
	for name, a := range after.Components {
		if _, seen := before.Components[name]; seen {
			continue
		}
		result.Differences["components."+name] = Difference{Before: nil, After: a}
	}

	for name, b := range before.RecordCounts {
		a, aok := after.RecordCounts[name]
		if aok && a == b {
			continue
		}
		result.Differences["record_counts."+name] = Difference{
			Before: b,
			After:  optionalCount(a, aok),
		}
	}
	for name, a := range after.RecordCounts {
		if _, seen := before.RecordCounts[name]; seen {
			continue
		}
		result.Differences["record_counts."+name] = Difference{Before: nil, After: a}
	}

	result.Identical = len(result.Differences) == 0
	return result, nil
}

// DifferenceKeys returns the difference keys in sorted order, for reporting.
func (c *Comparison) DifferenceKeys() []string {
	keys := make([]string, 0, len(c.Differences))
	for key := range c.Differences {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func optionalString(v string, ok bool) interface{} {
	if !ok {
		return nil
	}
	return v
}

func optionalCount(v int64, ok bool) interface{} {
	if !ok {
		return nil
	}
	return v
}
