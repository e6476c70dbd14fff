package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateGeneratesKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hospital.key")

	kr, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, path, kr.Path())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, raw, keySize*2, "key file holds the hex encoding")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadOrCreateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hospital.key")

	_, err := LoadOrCreate(path)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = LoadOrCreate(path)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second, "a second start must not rotate the key")
}

func TestLoadOrCreateReusesKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hospital.key")

	kr1, err := LoadOrCreate(path)
	require.NoError(t, err)
	c1, err := NewCipher(kr1)
	require.NoError(t, err)
	token, err := c1.Seal("12.345.678-5")
	require.NoError(t, err)

	kr2, err := LoadOrCreate(path)
	require.NoError(t, err)
	c2, err := NewCipher(kr2)
	require.NoError(t, err)

	v := c2.Decode(token)
	assert.Equal(t, KindSealed, v.Kind)
	assert.Equal(t, "12.345.678-5", v.Plaintext)
}

func TestLoadOrCreateCorruptKey(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not hex", "zzzz-not-hex-zzzz"},
		{"wrong length", "deadbeef"},
		{"empty file", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hospital.key")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := LoadOrCreate(path)
			var keyErr *KeyError
			require.ErrorAs(t, err, &keyErr)
			assert.Equal(t, path, keyErr.Path)

			// The corrupt file must survive untouched for operators to inspect.
			raw, readErr := os.ReadFile(path)
			require.NoError(t, readErr)
			assert.Equal(t, tt.content, string(raw))
		})
	}
}
