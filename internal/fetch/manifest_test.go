package fetch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periods_registered.txt")

	m := NewManifest()
	m.Register("2023", "02")
	m.Register("2023", "01")
	m.Register("2024", "01")
	require.NoError(t, m.Save(path))

	loaded, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023", "2024"}, loaded.Years())
	assert.Equal(t, []string{"01", "02"}, loaded.Months("2023"))
	assert.True(t, loaded.Has("2024", "01"))
	assert.False(t, loaded.Has("2024", "02"))
}

func TestManifestFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.txt")

	m := NewManifest()
	m.Register("2023", "03")
	m.Register("2023", "01")
	require.NoError(t, m.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2023 - 01,03\n", string(data))
}

func TestLoadManifestMissingFile(t *testing.T) {
	m, err := LoadManifest(filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)
	assert.Empty(t, m.Years())
}

func TestLoadManifestMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.txt")
	require.NoError(t, os.WriteFile(path, []byte("2023 01,02\n"), 0644))

	_, err := LoadManifest(path)
	assert.Error(t, err)
}

func TestManifestRegisterIdempotent(t *testing.T) {
	m := NewManifest()
	m.Register("2023", "05")
	m.Register("2023", "05")
	assert.Equal(t, []string{"05"}, m.Months("2023"))
}
