package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"null", Null{}, "null"},
		{"integral", Number(42), "42"},
		{"negative zero", Number(math.Copysign(0, -1)), "0"},
		{"fraction", Number(0.5), "0.5"},
		{"string", String("a<b>&c"), `"a<b>&c"`},
		{"line separator", String("x\u2028y"), "\"x\u2028y\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_EscapedBackslashStays(t *testing.T) {
	got, err := MarshalCanonical(String(`\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	decomposed := String("e\u0301")
	composed := String("\u00e9")

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(composed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonical_DictKeyOrder(t *testing.T) {
	d := NewDict()
	d.Set("b", Number(1))
	d.Set("a", NewList(String("x"), Null{}))

	got, err := MarshalCanonical(NewObject(d))
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",null],"b":1}`, string(got))
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(Number(math.Inf(1)))
	assert.Error(t, err)
	_, err = MarshalCanonical(Number(math.NaN()))
	assert.Error(t, err)
}

type opaque struct{}

func (opaque) Kind() string     { return "primitive" }
func (o opaque) Clone() Payload { return o }

func TestMarshalCanonical_RejectsOpaquePayload(t *testing.T) {
	_, err := MarshalCanonical(NewObject(opaque{}))
	assert.ErrorContains(t, err, "primitive")
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D.. which sort BEFORE U+FB01 in UTF-16
	// but AFTER it in UTF-8 byte order.
	keys := []string{"\ufb01", "\U0001F600", "a"}
	assert.Equal(t, []string{"a", "\U0001F600", "\ufb01"}, SortedKeys(keys))
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := MustFingerprint(DomainParams, map[string]Value{"x": Number(1), "y": String("z")})
	b := MustFingerprint(DomainParams, map[string]Value{"y": String("z"), "x": Number(1)})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c := MustFingerprint(DomainOutputs, map[string]Value{"x": Number(1), "y": String("z")})
	assert.NotEqual(t, a, c, "domain separation must change the hash")
}

func TestUnmarshalJSON(t *testing.T) {
	v, err := UnmarshalJSON([]byte(`{"k":[1,2.5,"s",null]}`))
	require.NoError(t, err)
	assert.Equal(t, `{"k":[1,2.5,"s",null]}`, Format(v))
}
