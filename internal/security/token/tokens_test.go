package tokens

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := Generate(DefaultBytes)
		require.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		require.NoError(t, err)
		assert.Len(t, raw, DefaultBytes)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}

func TestGenerate_RejectsShort(t *testing.T) {
	_, err := Generate(8)
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ungWv48Bz-pBQUDeXa4iI7ADYaOWF3qctBD_YfIAFa0", Hash("abc"))
	assert.NotEqual(t, Hash("a"), Hash("b"))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("s1", "s1"))
	assert.False(t, Equal("s1", "s2"))
	assert.False(t, Equal("s1", "s11"))
	assert.False(t, Equal("", "x"))
}
