package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// FromGo converts a decoded Go value (JSON, YAML, CUE) into a Value.
//
// nil becomes Null, every numeric kind becomes Number, bools become 0/1,
// slices become lists and string-keyed maps become dicts with sorted keys.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		if val {
			return Number(1), nil
		}
		return Number(0), nil
	case string:
		return String(val), nil
	case float64:
		return Number(val), nil
	case float32:
		return Number(val), nil
	case int:
		return Number(val), nil
	case int32:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case uint64:
		return Number(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", val, err)
		}
		return Number(f), nil
	case []any:
		items := make([]Value, len(val))
		for i, elem := range val {
			item, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = item
		}
		return NewList(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := NewDict()
		for _, k := range keys {
			item, err := FromGo(val[k])
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			d.Set(k, item)
		}
		return NewObject(d), nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// MustFromGo is like FromGo but panics on error. Use only in tests.
func MustFromGo(v any) Value {
	out, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return out
}

// ToGo converts v into plain Go data suitable for encoding/json or YAML.
// Payloads other than list and dict render as their kind name.
func ToGo(v Value) any {
	switch val := OrNull(v).(type) {
	case Null:
		return nil
	case Number:
		return float64(val)
	case String:
		return string(val)
	case Object:
		if val.h == nil {
			return nil
		}
		switch p := val.h.payload.(type) {
		case *List:
			out := make([]any, len(p.items))
			for i, item := range p.items {
				out[i] = ToGo(item)
			}
			return out
		case *Dict:
			out := make(map[string]any, len(p.keys))
			for _, k := range p.keys {
				out[k] = ToGo(p.m[k])
			}
			return out
		default:
			return "<" + p.Kind() + ">"
		}
	default:
		return nil
	}
}

// UnmarshalJSON decodes a JSON document into a Value.
func UnmarshalJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromGo(raw)
}
