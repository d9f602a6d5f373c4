package designsvc

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Diff operations.
const (
	OpAdded    = "added"
	OpRemoved  = "removed"
	OpModified = "modified"
)

type Change struct {
	Path      string `json:"path"`
	Operation string `json:"operation"`
	OldValue  any    `json:"oldValue,omitempty"`
	NewValue  any    `json:"newValue,omitempty"`
}

type DiffSummary struct {
	TotalChanges int `json:"totalChanges"`
	Added        int `json:"added"`
	Removed      int `json:"removed"`
	Modified     int `json:"modified"`
}

// DiffSnapshots produces a structural diff between two JSON snapshots. Paths
// are dot-joined field names with [i] for array elements. The summary counts
// always total the change list.
func DiffSnapshots(a, b []byte) ([]Change, DiffSummary, error) {
	var va, vb any
	if len(a) > 0 {
		if err := json.Unmarshal(a, &va); err != nil {
			return nil, DiffSummary{}, fmt.Errorf("snapshot A: %w", err)
		}
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &vb); err != nil {
			return nil, DiffSummary{}, fmt.Errorf("snapshot B: %w", err)
		}
	}

	changes := []Change{}
	walk("", va, vb, &changes)

	var sum DiffSummary
	sum.TotalChanges = len(changes)
	for _, c := range changes {
		switch c.Operation {
		case OpAdded:
			sum.Added++
		case OpRemoved:
			sum.Removed++
		case OpModified:
			sum.Modified++
		}
	}
	return changes, sum, nil
}

func walk(path string, a, b any, out *[]Change) {
	ma, aIsMap := a.(map[string]any)
	mb, bIsMap := b.(map[string]any)
	if aIsMap && bIsMap {
		keys := map[string]struct{}{}
		for k := range ma {
			keys[k] = struct{}{}
		}
		for k := range mb {
			keys[k] = struct{}{}
		}
		sorted := make([]string, 0, len(keys))
		for k := range keys {
			sorted = append(sorted, k)
		}
		sort.Strings(sorted)
		for _, k := range sorted {
			av, inA := ma[k]
			bv, inB := mb[k]
			p := join(path, k)
			switch {
			case inA && !inB:
				*out = append(*out, Change{Path: p, Operation: OpRemoved, OldValue: av})
			case !inA && inB:
				*out = append(*out, Change{Path: p, Operation: OpAdded, NewValue: bv})
			default:
				walk(p, av, bv, out)
			}
		}
		return
	}

	sa, aIsSlice := a.([]any)
	sb, bIsSlice := b.([]any)
	if aIsSlice && bIsSlice {
		n := len(sa)
		if len(sb) > n {
			n = len(sb)
		}
		for i := 0; i < n; i++ {
			p := fmt.Sprintf("%s[%d]", path, i)
			switch {
			case i >= len(sb):
				*out = append(*out, Change{Path: p, Operation: OpRemoved, OldValue: sa[i]})
			case i >= len(sa):
				*out = append(*out, Change{Path: p, Operation: OpAdded, NewValue: sb[i]})
			default:
				walk(p, sa[i], sb[i], out)
			}
		}
		return
	}

	if !reflect.DeepEqual(a, b) {
		*out = append(*out, Change{Path: path, Operation: OpModified, OldValue: a, NewValue: b})
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
