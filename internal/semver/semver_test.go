package semver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	v, err := Parse("1.2.5")
	require.NoError(t, err)
	assert.Equal(t, Version{1, 2, 5}, v)
	assert.Equal(t, "1.2.5", v.String())
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "1.2", "1.2.3.4", "a.b.c", "1.-2.3", "v1.2.3"} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestBump(t *testing.T) {
	base := Version{1, 2, 5}

	v, err := Bump(base, Major)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v.String())

	v, err = Bump(base, Minor)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", v.String())

	v, err = Bump(base, Patch)
	require.NoError(t, err)
	assert.Equal(t, "1.2.6", v.String())

	_, err = Bump(base, "huge")
	assert.Error(t, err)
}

func TestCompareNumericNotLexicographic(t *testing.T) {
	a, _ := Parse("1.10.0")
	b, _ := Parse("1.9.0")
	assert.Equal(t, 1, Compare(a, b))

	c, _ := Parse("2.0.0")
	d, _ := Parse("10.0.0")
	assert.Equal(t, -1, Compare(c, d))

	assert.Equal(t, 0, Compare(a, a))
}

func TestMax(t *testing.T) {
	v, ok := Max([]string{"1.0.0", "1.10.2", "1.9.9", "bogus"})
	require.True(t, ok)
	assert.Equal(t, "1.10.2", v.String())

	_, ok = Max(nil)
	assert.False(t, ok)
}
