package source_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonhatcher/watson/internal/source"
)

func TestCache_LoadResolvesDottedModuleNameToPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "c.watson"), []byte("hello"), 0o644))

	cache := source.NewCache(dir, "watson")
	src, err := cache.Load("a.b.c", source.OriginImport, source.Span{})
	require.NoError(t, err)
	assert.Equal(t, "hello", src.Text)
}

func TestCache_LoadRejectsDuplicateModuleName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.watson"), []byte("x"), 0o644))
	cache := source.NewCache(dir, "watson")
	_, err := cache.Load("main", source.OriginRoot, source.Span{})
	require.NoError(t, err)

	_, err = cache.Load("main", source.OriginRoot, source.Span{})
	require.Error(t, err)
	var dup *source.ErrAlreadyDeclared
	require.ErrorAs(t, err, &dup)
}

func TestCache_TextResolvesSpanToSubstring(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.watson"), []byte("hello world"), 0o644))
	cache := source.NewCache(dir, "watson")
	_, err := cache.Load("main", source.OriginRoot, source.Span{})
	require.NoError(t, err)

	text, ok := cache.Text(source.Span{Source: "main", StartByte: 6, EndByte: 11})
	require.True(t, ok)
	assert.Equal(t, "world", text)
}

func TestCache_LineColCountsNewlines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.watson"), []byte("ab\ncd"), 0o644))
	cache := source.NewCache(dir, "watson")
	_, err := cache.Load("main", source.OriginRoot, source.Span{})
	require.NoError(t, err)

	line, col := cache.LineCol("main", 4)
	assert.Equal(t, 2, line)
	assert.Equal(t, 2, col)
}
