package value

import "slices"

// Payload is the capability interface for opaque object data (geometry,
// lists, dicts, ...). Payloads must be safe for concurrent reads.
type Payload interface {
	// Kind names the payload type, e.g. "list" or "primitive".
	Kind() string

	// Clone returns an independent copy that may be mutated freely.
	Clone() Payload
}

// Handle is the shared box around a payload. Every holder of an Object
// (the producing node's output slot and each consumer) points at the same
// Handle; the payload lives as long as the longest holder.
type Handle struct {
	payload Payload
}

// Object is the object-handle variant of Value.
//
// The zero Object holds no handle and behaves as Null.
type Object struct {
	h *Handle
}

func (Object) value() {}

// NewObject wraps p in a fresh handle.
func NewObject(p Payload) Object {
	if p == nil {
		return Object{}
	}
	return Object{h: &Handle{payload: p}}
}

// Payload returns the shared payload for read-only access.
// Callers MUST NOT mutate the returned payload; use Mutate instead.
func (o Object) Payload() Payload {
	if o.h == nil {
		return nil
	}
	return o.h.payload
}

// Handle exposes the underlying handle for identity checks.
func (o Object) Handle() *Handle {
	return o.h
}

// Mutate implements the copy-on-write discipline: it clones the payload,
// applies fn to the clone and returns a new Object around it. The original
// handle, possibly shared by other consumers, is never touched.
func Mutate(o Object, fn func(Payload) error) (Object, error) {
	if o.h == nil {
		return Object{}, nil
	}
	clone := o.h.payload.Clone()
	if err := fn(clone); err != nil {
		return Object{}, err
	}
	return NewObject(clone), nil
}

// Payload kind names for built-in payloads.
const (
	KindList = "list"
	KindDict = "dict"
)

// List is an ordered sequence of values.
type List struct {
	items []Value
}

// NewList builds a list object from vals.
func NewList(vals ...Value) Object {
	items := make([]Value, len(vals))
	for i, v := range vals {
		items[i] = OrNull(v)
	}
	return NewObject(&List{items: items})
}

// Kind implements Payload.
func (l *List) Kind() string { return KindList }

// Clone implements Payload. Items are values and therefore immutable, so a
// shallow copy of the slice is a full copy.
func (l *List) Clone() Payload {
	return &List{items: slices.Clone(l.items)}
}

// Len returns the number of items.
func (l *List) Len() int { return len(l.items) }

// At returns the i-th item.
func (l *List) At(i int) Value { return l.items[i] }

// Items returns a copy of the items.
func (l *List) Items() []Value { return slices.Clone(l.items) }

// Append adds items. Only valid on a clone obtained through Mutate.
func (l *List) Append(vals ...Value) {
	for _, v := range vals {
		l.items = append(l.items, OrNull(v))
	}
}

// Set replaces the i-th item. Only valid on a clone obtained through Mutate.
func (l *List) Set(i int, v Value) {
	l.items[i] = OrNull(v)
}

// AsList returns the list payload of v, if any.
func AsList(v Value) (*List, bool) {
	o, ok := v.(Object)
	if !ok || o.h == nil {
		return nil, false
	}
	l, ok := o.h.payload.(*List)
	return l, ok
}

// Dict is a string-keyed map that remembers insertion order.
type Dict struct {
	keys []string
	m    map[string]Value
}

// NewDict builds an empty dict payload.
func NewDict() *Dict {
	return &Dict{m: make(map[string]Value)}
}

// Kind implements Payload.
func (d *Dict) Kind() string { return KindDict }

// Clone implements Payload.
func (d *Dict) Clone() Payload {
	m := make(map[string]Value, len(d.m))
	for k, v := range d.m {
		m[k] = v
	}
	return &Dict{keys: slices.Clone(d.keys), m: m}
}

// Set inserts or replaces key. Only valid on an unshared payload.
func (d *Dict) Set(key string, v Value) {
	if _, ok := d.m[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.m[key] = OrNull(v)
}

// Get returns the value for key.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (d *Dict) Keys() []string { return slices.Clone(d.keys) }

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// AsDict returns the dict payload of v, if any.
func AsDict(v Value) (*Dict, bool) {
	o, ok := v.(Object)
	if !ok || o.h == nil {
		return nil, false
	}
	d, ok := o.h.payload.(*Dict)
	return d, ok
}
