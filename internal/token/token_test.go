package token

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		tok, err := New()
		require.NoError(t, err)
		assert.True(t, Valid(tok), "token %q", tok)
	}
}

func TestGeneratorRejectsBiasedBytes(t *testing.T) {
	// 0xff is above the rejection threshold; the remaining bytes map to 0..7.
	src := bytes.NewReader(append(bytes.Repeat([]byte{0xff}, 16), 0, 1, 2, 3, 4, 5, 6, 7, 0, 0, 0, 0, 0, 0, 0, 0))
	tok, err := NewGenerator(src).Next()
	require.NoError(t, err)
	assert.Equal(t, "01234567", tok)
}

func TestGeneratorMapsIntoAlphabet(t *testing.T) {
	src := bytes.NewReader([]byte{10, 35, 36, 71, 251, 0, 1, 2, 9, 9, 9, 9, 9, 9, 9, 9})
	tok, err := NewGenerator(src).Next()
	require.NoError(t, err)
	assert.Equal(t, "az0zz012", tok)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGeneratorPropagatesReadErrors(t *testing.T) {
	_, err := NewGenerator(failingReader{}).Next()
	assert.ErrorContains(t, err, "entropy exhausted")
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("abc12345"))
	assert.False(t, Valid("ABC12345"))
	assert.False(t, Valid("abc1234"))
	assert.False(t, Valid("abc-2345"))
}
