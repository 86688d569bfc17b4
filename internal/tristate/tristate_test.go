package tristate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	testCases := []struct {
		a, b     State
		expected State
	}{
		{All, All, All},
		{Not, Not, Not},
		{All, Not, Partial},
		{Not, All, Partial},
		{Partial, Partial, Partial},
		{Partial, All, Partial},
		{Not, Partial, Partial},
	}

	for _, tc := range testCases {
		result := Combine(tc.a, tc.b)
		if result != tc.expected {
			t.Errorf("Combine(%s, %s): expected %s, got %s", tc.a, tc.b, tc.expected, result)
		}
	}
}

func TestCombineAll(t *testing.T) {
	_, ok := CombineAll()
	assert.False(t, ok, "empty input has no summary")

	s, ok := CombineAll(All)
	require.True(t, ok)
	assert.Equal(t, All, s)

	s, _ = CombineAll(Not, Not, Not)
	assert.Equal(t, Not, s)

	s, _ = CombineAll(All, All, Not)
	assert.Equal(t, Partial, s)

	s, _ = CombineAll(Partial, All, All)
	assert.Equal(t, Partial, s)
}

func TestFromBoolAndParse(t *testing.T) {
	assert.Equal(t, All, FromBool(true))
	assert.Equal(t, Not, FromBool(false))

	for _, s := range []State{Not, Partial, All} {
		parsed, err := Parse(int(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := Parse(7)
	assert.Error(t, err)
	assert.False(t, State(-1).Valid())
	assert.Equal(t, "State(9)", State(9).String())
}
