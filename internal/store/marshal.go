package store

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/dopgraph/internal/value"
)

// marshalStrings converts a string list to canonical JSON TEXT.
func marshalStrings(ss []string) (string, error) {
	items := make([]value.Value, len(ss))
	for i, s := range ss {
		items[i] = value.String(s)
	}
	data, err := value.MarshalCanonical(value.NewList(items...))
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

// marshalStringMap converts a string map to canonical JSON TEXT with
// keys in canonical order.
func marshalStringMap(m map[string]string) (string, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	d := value.NewDict()
	for _, k := range value.SortedKeys(keys) {
		d.Set(k, value.String(m[k]))
	}
	data, err := value.MarshalCanonical(value.NewObject(d))
	if err != nil {
		return "", fmt.Errorf("marshal string map: %w", err)
	}
	return string(data), nil
}

func unmarshalStrings(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(data), &ss); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	return ss, nil
}

func unmarshalStringMap(data string) (map[string]string, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal string map: %w", err)
	}
	return m, nil
}

func sortedInts(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
