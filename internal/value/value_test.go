package value

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealedInterface(t *testing.T) {
	var _ Value = Null{}
	var _ Value = Number(1)
	var _ Value = String("x")
	var _ Value = Object{}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNull, KindOf(nil))
	assert.Equal(t, KindNull, KindOf(Null{}))
	assert.Equal(t, KindNull, KindOf(Object{}))
	assert.Equal(t, KindNumber, KindOf(Number(3)))
	assert.Equal(t, KindString, KindOf(String("a")))
	assert.Equal(t, KindList, KindOf(NewList()))
	assert.Equal(t, KindDict, KindOf(NewObject(NewDict())))
}

func TestSame_Scalars(t *testing.T) {
	assert.True(t, Same(Number(1), Number(1)))
	assert.False(t, Same(Number(1), Number(2)))
	assert.False(t, Same(Number(1), String("1")))
	assert.True(t, Same(String("a"), String("a")))
	assert.True(t, Same(nil, Null{}))
	assert.True(t, Same(Object{}, Null{}))
	nan := Number(math.NaN())
	assert.True(t, Same(nan, nan), "identical NaN bits are the same value")
}

func TestSame_ObjectsCompareByHandle(t *testing.T) {
	a := NewList(Number(1), Number(2))
	b := NewList(Number(1), Number(2))

	assert.True(t, Same(a, a))
	assert.False(t, Same(a, b), "distinct handles are not the same even with equal content")
	assert.True(t, Equal(a, b), "but they are structurally equal")
}

func TestEqual_Dict(t *testing.T) {
	d1 := NewDict()
	d1.Set("x", Number(1))
	d1.Set("y", String("two"))
	d2 := NewDict()
	d2.Set("y", String("two"))
	d2.Set("x", Number(1))

	assert.True(t, Equal(NewObject(d1), NewObject(d2)))

	d2.Set("x", Number(5))
	assert.False(t, Equal(NewObject(d1), NewObject(d2)))
}

func TestMutate_CopyOnWrite(t *testing.T) {
	orig := NewList(Number(1), Number(2))

	mutated, err := Mutate(orig, func(p Payload) error {
		p.(*List).Append(Number(3))
		return nil
	})
	require.NoError(t, err)

	origList, _ := AsList(orig)
	newList, _ := AsList(mutated)
	assert.Equal(t, 2, origList.Len(), "original payload must be untouched")
	assert.Equal(t, 3, newList.Len())
	assert.False(t, Same(orig, mutated))
}

func TestMutate_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Mutate(NewList(), func(Payload) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestDict_KeepsInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set("b", Number(1))
	d.Set("a", Number(2))
	d.Set("b", Number(3))

	assert.Equal(t, []string{"b", "a"}, d.Keys())
	v, ok := d.Get("b")
	require.True(t, ok)
	assert.Equal(t, Number(3), v)
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"n":    3,
		"s":    "x",
		"list": []any{1.5, nil, true},
	})
	require.NoError(t, err)

	d, ok := AsDict(v)
	require.True(t, ok)
	assert.Equal(t, []string{"list", "n", "s"}, d.Keys())

	list, _ := d.Get("list")
	l, ok := AsList(list)
	require.True(t, ok)
	assert.Equal(t, Number(1.5), l.At(0))
	assert.Equal(t, Null{}, l.At(1))
	assert.Equal(t, Number(1), l.At(2))
}

func TestFromGo_Unsupported(t *testing.T) {
	_, err := FromGo(struct{}{})
	assert.Error(t, err)
}

func TestToGo_RoundTrip(t *testing.T) {
	in := map[string]any{"a": []any{1.0, "b"}, "c": nil}
	v := MustFromGo(in)
	assert.Equal(t, in, ToGo(v))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "null", Format(nil))
	assert.Equal(t, "2.5", Format(Number(2.5)))
	assert.Equal(t, `"hi"`, Format(String("hi")))
	assert.Equal(t, "[1,2]", Format(NewList(Number(1), Number(2))))
}
