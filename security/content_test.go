package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashContent(t *testing.T) {
	a := HashContent([]byte("hello"))
	b := HashContent([]byte("hello"))
	c := HashContent([]byte("world"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := GenerateMasterKey()
	require.NoError(t, err)

	sealer, err := NewSealer(key)
	require.NoError(t, err)

	plaintext := []byte("contribution content")
	sealed, err := sealer.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenRejectsTamperedPayload(t *testing.T) {
	key, err := GenerateMasterKey()
	require.NoError(t, err)
	sealer, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("data"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = sealer.Open(sealed)
	assert.Error(t, err)
}

func TestNewSealerRejectsBadKeys(t *testing.T) {
	_, err := NewSealer("not base64!!!")
	assert.Error(t, err)

	_, err = NewSealer("c2hvcnQ=") // decodes to fewer than 32 bytes
	assert.Error(t, err)
}
