package value

import (
	"fmt"
	"math"
	"strconv"
)

// Value is a sealed interface representing anything a node can produce.
// Only Null, Number, String and Object implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null is the absence of a value. Unbound inputs without defaults and
// outputs of skipped nodes read as Null.
type Null struct{}

func (Null) value() {}

// Number is a numeric scalar. All numeric kinds collapse to float64.
type Number float64

func (Number) value() {}

// String is a text scalar.
type String string

func (String) value() {}

// Kind names for the scalar variants. Object kinds come from Payload.Kind.
const (
	KindNull   = "null"
	KindNumber = "number"
	KindString = "string"
)

// KindOf returns the kind name of v. Objects report their payload kind.
func KindOf(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return KindNull
	case Number:
		return KindNumber
	case String:
		return KindString
	case Object:
		if val.h == nil {
			return KindNull
		}
		return val.h.payload.Kind()
	default:
		return fmt.Sprintf("%T", v)
	}
}

// IsNull reports whether v is Null, a nil interface, or an empty Object.
func IsNull(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return true
	case Object:
		return val.h == nil
	default:
		return false
	}
}

// OrNull maps a nil interface to Null so callers never hand out nil Values.
func OrNull(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}

// Same reports whether a and b are the same value by identity.
//
// Scalars compare by value. Objects compare by handle pointer, not by
// content: two independently produced lists with equal items are NOT the
// same. This is the comparison the evaluator uses to decide whether a
// downstream node must re-run, trading perfect minimality for speed.
func Same(a, b Value) bool {
	a, b = OrNull(a), OrNull(b)
	switch av := a.(type) {
	case Null:
		return IsNull(b)
	case Number:
		bv, ok := b.(Number)
		if !ok {
			return false
		}
		// NaN is never equal to itself; treat identical bit patterns as same
		return av == bv || math.Float64bits(float64(av)) == math.Float64bits(float64(bv))
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Object:
		if av.h == nil {
			return IsNull(b)
		}
		bv, ok := b.(Object)
		return ok && av.h == bv.h
	default:
		return false
	}
}

// Equal reports deep structural equality. Lists and dicts compare
// element-wise; other payloads fall back to identity.
func Equal(a, b Value) bool {
	if Same(a, b) {
		return true
	}
	ao, aok := a.(Object)
	bo, bok := b.(Object)
	if !aok || !bok || ao.h == nil || bo.h == nil {
		return false
	}
	switch ap := ao.h.payload.(type) {
	case *List:
		bp, ok := bo.h.payload.(*List)
		if !ok || len(ap.items) != len(bp.items) {
			return false
		}
		for i := range ap.items {
			if !Equal(ap.items[i], bp.items[i]) {
				return false
			}
		}
		return true
	case *Dict:
		bp, ok := bo.h.payload.(*Dict)
		if !ok || len(ap.keys) != len(bp.keys) {
			return false
		}
		for _, k := range ap.keys {
			bv, found := bp.Get(k)
			if !found {
				return false
			}
			av, _ := ap.Get(k)
			if !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// AsNumber returns the numeric content of v. Numeric strings are NOT
// coerced; only Number succeeds.
func AsNumber(v Value) (float64, bool) {
	n, ok := v.(Number)
	return float64(n), ok
}

// AsString returns the string content of v.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// Format renders v for logs and CLI output.
func Format(v Value) string {
	switch val := OrNull(v).(type) {
	case Null:
		return "null"
	case Number:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case String:
		return strconv.Quote(string(val))
	case Object:
		if val.h == nil {
			return "null"
		}
		if b, err := MarshalCanonical(val); err == nil {
			return string(b)
		}
		return fmt.Sprintf("<%s %p>", val.h.payload.Kind(), val.h)
	default:
		return fmt.Sprintf("%v", v)
	}
}
