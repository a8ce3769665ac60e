package thin

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanglinqiang/ignite"
	"github.com/yanglinqiang/ignite/internal/bitset"
)

func TestParseVersion(t *testing.T) {
	invalid := []string{
		" 1. 7. 0 ",
		"1.7.0.ver",
		"a.c.d",
		"asdasd",
		"1.2",
		"1.2.3.4",
	}
	for _, ver := range invalid {
		_, ok := ParseVersion(ver)
		require.False(t, ok)
	}
	ver, ok := ParseVersion("1.7.0")
	require.True(t, ok)
	require.Equal(t, ver, ProtocolVersion{1, 7, 0})
	require.Equal(t, "1.7.0", ver.String())
}

func TestCompareVersion(t *testing.T) {
	var fixtures []ProtocolVersion
	var k, i, j int16
	for k = 0; k < 3; k++ {
		for i = 0; i < 10; i++ {
			for j = 0; j < 10; j++ {
				fixtures = append(fixtures, ProtocolVersion{k, i, j})
			}
		}
	}
	test := make([]ProtocolVersion, len(fixtures))
	copy(test, fixtures)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	rnd.Shuffle(len(test), func(i, j int) {
		test[i], test[j] = test[j], test[i]
	})
	sort.Slice(test, func(i, j int) bool {
		return test[i].Compare(test[j]) < 0
	})
	require.Equal(t, fixtures, test)
}

func TestProtocolFeatures(t *testing.T) {
	ctx := NewProtocolContext(ProtocolVersion{1, 6, 0}, UserAttributesFeature)
	require.Equal(t, ProtocolVersion{1, 6, 0}, ctx.Version())
	require.Nil(t, ctx.features)
	for f := _minFeature; f <= _maxFeature; f++ {
		require.False(t, ctx.SupportsAttributeFeature(f))
	}
	require.False(t, ctx.SupportsBitmapFeatures())

	var features []AttributeFeature
	for f := _minFeature; f <= _maxFeature; f++ {
		features = append(features, f)
	}
	ctx = NewProtocolContext(ProtocolVersion{1, 7, 0}, features...)
	require.True(t, ctx.SupportsBitmapFeatures())
	require.Equal(t, ProtocolVersion{1, 7, 0}, ctx.Version())
	for f := _minFeature; f <= _maxFeature; f++ {
		require.True(t, ctx.SupportsAttributeFeature(f))
	}

	cloned := ctx.clone()
	ctx.updateAttributeFeatures(bitset.New())
	for f := _minFeature; f <= _maxFeature; f++ {
		require.False(t, ctx.SupportsAttributeFeature(f))
		require.True(t, cloned.SupportsAttributeFeature(f))
	}
}

func TestProtocolVersionCapabilities(t *testing.T) {
	fixtures := []struct {
		ver          ProtocolVersion
		flags        bool
		transactions bool
		expiry       bool
	}{
		{ProtocolVersion{1, 0, 0}, false, false, false},
		{ProtocolVersion{1, 3, 0}, false, false, false},
		{ProtocolVersion{1, 4, 0}, true, false, false},
		{ProtocolVersion{1, 5, 0}, true, true, false},
		{ProtocolVersion{1, 6, 0}, true, true, true},
		{ProtocolVersion{1, 7, 0}, true, true, true},
	}
	for _, fixture := range fixtures {
		t.Run(fixture.ver.String(), func(t *testing.T) {
			ctx := NewProtocolContext(fixture.ver)
			require.Equal(t, fixture.flags, ctx.SupportsResponseFlags())
			require.Equal(t, fixture.transactions, ctx.SupportsTransactions())
			require.Equal(t, fixture.expiry, ctx.SupportsExpiryPolicy())
			require.True(t, isSupportedVersion(fixture.ver))
		})
	}
	require.False(t, isSupportedVersion(ProtocolVersion{2, 0, 0}))
	require.False(t, isSupportedVersion(ProtocolVersion{1, 7, 1}))
	require.False(t, isSupportedVersion(ProtocolVersion{0, 9, 0}))
}

func TestProtocolContextRequire(t *testing.T) {
	ctx := NewProtocolContext(ProtocolVersion{1, 5, 0})
	require.NoError(t, ctx.require(capTransactions))
	err := ctx.require(capExpiryPolicy)
	require.Equal(t, ignite.FunctionalityDisabled, ignite.CodeOf(err))
	require.Contains(t, err.Error(), "expiry policies")
	require.Contains(t, err.Error(), "1.6.0")
}
