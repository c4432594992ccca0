package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonhatcher/watson/internal/config"
)

func TestLoad_DefaultsExtToWatson(t *testing.T) {
	m, err := config.Load([]byte(`root = "src"
entry = "main"
`))
	require.NoError(t, err)
	assert.Equal(t, "src", m.Root)
	assert.Equal(t, "main", m.Entry)
	assert.Equal(t, "watson", m.Ext)
}

func TestLoad_RejectsMissingRequiredField(t *testing.T) {
	_, err := config.Load([]byte(`root = "src"
`))
	require.Error(t, err)
	var invalid *config.ErrInvalidManifest
	require.ErrorAs(t, err, &invalid)
}

func TestLoad_RejectsExtWithLeadingDot(t *testing.T) {
	_, err := config.Load([]byte(`root = "src"
entry = "main"
ext = ".watson"
`))
	require.Error(t, err)
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	_, err := config.Load([]byte(`root = "src"
entry = "main"
bogus = "x"
`))
	require.Error(t, err)
}

func TestLocate_FindsManifestInAncestorDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ManifestName), []byte(""), 0o644))
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := config.Locate(nested)
	require.NoError(t, err)
	want, err := filepath.Abs(filepath.Join(dir, config.ManifestName))
	require.NoError(t, err)
	assert.Equal(t, want, found)
}

func TestLocate_ErrorsWhenNoManifestExists(t *testing.T) {
	dir := t.TempDir()
	_, err := config.Locate(dir)
	require.Error(t, err)
	var notFound *config.ErrManifestNotFound
	require.ErrorAs(t, err, &notFound)
}
