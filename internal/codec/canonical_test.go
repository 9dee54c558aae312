package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"zero", Int(0), "0"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"array of ints", Array{Int(1), Int(2), Int(3)}, "[1,2,3]"},
		{"simple object", Object{"a": Int(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	obj := Object{
		"zebra": Int(1),
		"alpha": Int(2),
		"beta":  Int(3),
	}

	got, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(got))
}

func TestMarshalNestedSortedKeys(t *testing.T) {
	obj := Object{
		"z": Object{"b": Int(1), "a": Int(2)},
		"a": Int(3),
	}

	got, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(got))
}

func TestMarshalNoInsignificantWhitespace(t *testing.T) {
	obj := Object{"a": Array{Int(1), Int(2)}, "b": String("x")}
	got, err := Marshal(obj)
	require.NoError(t, err)
	assert.NotContains(t, string(got), " ")
	assert.NotContains(t, string(got), "\n")
	assert.NotContains(t, string(got), "\t")
}

func TestMarshalStringEscaping(t *testing.T) {
	got, err := Marshal(String(`he said "hi"` + "\n"))
	require.NoError(t, err)
	assert.Equal(t, `"he said \"hi\"\n"`, string(got))
}

func TestMarshalNoHTMLEscaping(t *testing.T) {
	got, err := Marshal(String("<a>&amp;</a>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a>&amp;</a>"`, string(got))
}

func TestMarshalIsDeterministicAcrossCalls(t *testing.T) {
	obj := Object{
		"items": Array{
			Object{"item_id": String("P1"), "bias_cents": Int(-150)},
			Object{"item_id": String("P2"), "bias_cents": Int(0)},
		},
		"version": Int(1),
	}

	first, err := Marshal(obj)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Marshal(obj)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestFingerprintChangesWithInput(t *testing.T) {
	h1, err := Fingerprint(Object{"a": Int(1)})
	require.NoError(t, err)
	h2, err := Fingerprint(Object{"a": Int(2)})
	require.NoError(t, err)

	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, h2)
}

func TestFingerprintIsLowercaseHex(t *testing.T) {
	h, err := Fingerprint(Object{"k": String("v")})
	require.NoError(t, err)
	for _, r := range h {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'), "unexpected char %q", r)
	}
}

func TestMarshalNilValueErrors(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)
}
