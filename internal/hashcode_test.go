package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringHash(t *testing.T) {
	fixtures := map[string]int32{
		"":                0,
		"default":         1544803905,
		"myCache":         1482644790,
		"ABCDEFGHIJKL":    -1671596858,
		"Cache1234567890": -1172872323,
		"Cache-123":       1449161031,
	}
	for name, expected := range fixtures {
		assert.Equalf(t, expected, StringHash(name), "hash of %q", name)
	}
}

func TestStringHash_SurrogatePairs(t *testing.T) {
	// U+1F6AD is encoded as the surrogate pair D83D DEAD.
	expected := 31*int32(0xD83D) + int32(0xDEAD)
	assert.Equal(t, expected, StringHash("\U0001F6AD"))
}

func TestStringHash_MixedPlanes(t *testing.T) {
	// invalid bytes decode to U+FFFD
	assert.Equal(t, 31*int32('a')+0xFFFD, StringHash("a\xff"))
	expected := 31*(31*(31*int32('x')+0xD83D)+0xDEAD) + int32('y')
	assert.Equal(t, expected, StringHash("x\U0001F6ADy"))
}
